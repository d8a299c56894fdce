package main

import (
	"context"
	"fmt"
	"os"

	"github.com/slack-go/slack"
	"github.com/spf13/cobra"

	"github.com/artifactory/invoice-reminders/environments"
	"github.com/artifactory/invoice-reminders/internal/domain"
	"github.com/artifactory/invoice-reminders/pkg/logger"
	"github.com/artifactory/invoice-reminders/pkg/redis"
	"github.com/artifactory/invoice-reminders/pkg/tidyhq"

	_ "github.com/artifactory/invoice-reminders/docs" // swagger docs
)

// @title Invoice Reminders API
// @version 1.0
// @description Overdue invoice reminders for TidyHQ, driven from Slack

// @host localhost:8080
// @BasePath /

// @schemes http https

var configPath string

func main() {
	logger.Init()

	rootCmd := &cobra.Command{
		Use:           "invoice-reminders",
		Short:         "Post overdue TidyHQ invoices to Slack and act on the buttons",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "path to the JSON config file")

	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(listenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// snapshotCache is the part of the Valkey client the services and health check share.
type snapshotCache interface {
	SaveSnapshot(ctx context.Context, channelID, messageTS string, group domain.OverdueGroup) error
	GetSnapshot(ctx context.Context, channelID, messageTS string) (*domain.OverdueGroup, error)
	Ping(ctx context.Context) error
}

type deps struct {
	cfg       *environments.Config
	billing   *tidyhq.Client
	slack     *slack.Client
	redis     *redis.Client
	snapshots snapshotCache
}

// bootstrap loads config and builds the clients both commands need.
func bootstrap() (*deps, error) {
	cfg, err := environments.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.SetDebug(cfg.LogLevel == "debug")

	if cfg.Debug.Enabled {
		logger.Warnf("Debug mode on: member traffic goes to %s, admin traffic to %s",
			cfg.Debug.SlackUserID, cfg.Debug.AdminChannel)
	}

	options := []slack.Option{slack.OptionDebug(cfg.LogLevel == "debug")}
	if cfg.Slack.AppToken != "" {
		options = append(options, slack.OptionAppLevelToken(cfg.Slack.AppToken))
	}

	d := &deps{
		cfg:     cfg,
		billing: tidyhq.NewClient(cfg.TidyHQ),
		slack:   slack.New(cfg.Slack.BotToken, options...),
	}

	logger.Infof("TidyHQ configured: %s", d.billing.GetURL())

	// A nil *redis.Client must not reach the services as a non-nil interface.
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Warnf("Redis not available, snapshots disabled: %v", err)
		} else {
			d.redis = redisClient
			d.snapshots = redisClient
		}
	}

	return d, nil
}

func (d *deps) close() {
	if d.redis != nil {
		logger.Infof("Closing Redis connection...")
		if err := d.redis.Close(); err != nil {
			logger.Errorf("Error closing Redis: %v", err)
		}
	}
}
