package environments

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/artifactory/invoice-reminders/pkg/validator"
)

const envPrefix = "REMINDERS"

type Config struct {
	LogLevel string       `mapstructure:"log_level" validate:"omitempty,oneof=debug info"`
	Slack    SlackConfig  `mapstructure:"slack"`
	TidyHQ   TidyHQConfig `mapstructure:"tidyhq"`
	Org      OrgConfig    `mapstructure:"org"`
	Scan     ScanConfig   `mapstructure:"scan"`
	Redis    RedisConfig  `mapstructure:"redis"`
	Server   ServerConfig `mapstructure:"server"`
	Debug    DebugConfig  `mapstructure:"debug"`
}

type SlackConfig struct {
	BotToken      string       `mapstructure:"bot_token" validate:"required"`
	AppToken      string       `mapstructure:"app_token" validate:"omitempty,startswith=xapp-"`
	SigningSecret string       `mapstructure:"signing_secret"`
	AdminChannel  string       `mapstructure:"admin_channel" validate:"required"`
	Admins        AdminsConfig `mapstructure:"admins"`
}

// AdminsConfig lists the Slack user IDs looped into member conversations.
type AdminsConfig struct {
	Treasurer  string `mapstructure:"treasurer" validate:"required"`
	Membership string `mapstructure:"membership" validate:"required"`
}

type TidyHQConfig struct {
	Token        string        `mapstructure:"token" validate:"required"`
	APIURL       string        `mapstructure:"api_url" validate:"required,url"`
	SlackFieldID string        `mapstructure:"slack_field_id"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// OrgConfig describes the organisation's TidyHQ site and email sign-off.
type OrgConfig struct {
	Domain         string `mapstructure:"domain" validate:"required,hostname"`
	Name           string `mapstructure:"name" validate:"required"`
	SignOff        string `mapstructure:"sign_off"`
	TreasurerEmail string `mapstructure:"treasurer_email" validate:"required,email"`
}

type ScanConfig struct {
	LookbackDays int    `mapstructure:"lookback_days" validate:"min=1"`
	OverdueDays  int    `mapstructure:"overdue_days" validate:"min=0"`
	Schedule     string `mapstructure:"schedule"`
	AlertAfter   int    `mapstructure:"alert_after" validate:"min=0"`
}

type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Host        string        `mapstructure:"host"`
	Port        string        `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

type ServerConfig struct {
	Port   string `mapstructure:"port" validate:"required,numeric"`
	APIKey string `mapstructure:"api_key"`
}

// DebugConfig redirects all member-facing traffic to a sandbox user and channel.
// It is off unless Enabled is set.
type DebugConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	SlackUserID     string `mapstructure:"slack_user_id" validate:"required_if=Enabled true"`
	TidyHQContactID string `mapstructure:"tidyhq_contact_id" validate:"required_if=Enabled true"`
	AdminChannel    string `mapstructure:"admin_channel" validate:"required_if=Enabled true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("tidyhq.api_url", "https://api.tidyhq.com/v1")
	v.SetDefault("tidyhq.timeout", 30*time.Second)
	v.SetDefault("scan.lookback_days", 90)
	v.SetDefault("scan.overdue_days", 7)
	v.SetDefault("scan.schedule", "")
	v.SetDefault("scan.alert_after", 3)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.snapshot_ttl", 30*24*time.Hour)
	v.SetDefault("server.port", "8080")
	v.SetDefault("debug.enabled", false)
}

// Load reads the JSON configuration document at path, overlays REMINDERS_* environment
// variables and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Org.SignOff == "" {
		cfg.Org.SignOff = cfg.Org.Name + " Committee"
	}

	if err := validator.New().ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// AdminChannel is where every staff-facing notification is posted.
func (c *Config) AdminChannel() string {
	if c.Debug.Enabled {
		return c.Debug.AdminChannel
	}
	return c.Slack.AdminChannel
}

// RedirectIDs swaps member identities for the sandbox ones when debug mode is on.
func (c *Config) RedirectIDs(contactID, slackUserID string) (string, string) {
	if !c.Debug.Enabled {
		return contactID, slackUserID
	}
	return c.Debug.TidyHQContactID, c.Debug.SlackUserID
}
