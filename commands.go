package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/artifactory/invoice-reminders/handlers"
	"github.com/artifactory/invoice-reminders/internal/interaction"
	"github.com/artifactory/invoice-reminders/internal/middlewares"
	"github.com/artifactory/invoice-reminders/internal/scheduler"
	"github.com/artifactory/invoice-reminders/internal/service"
	"github.com/artifactory/invoice-reminders/pkg/logger"
	"github.com/artifactory/invoice-reminders/pkg/validator"
	"github.com/artifactory/invoice-reminders/routes"
)

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Post one summary per contact with overdue invoices, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := bootstrap()
			if err != nil {
				return err
			}
			defer d.close()

			scanService := service.NewScanService(d.billing, d.slack, d.snapshots, d.cfg)

			report, err := scanService.Run(cmd.Context())
			if err != nil {
				return err
			}

			logger.Infof("Scan %s finished: %d contacts overdue, %d posted, %d failed",
				report.RunID, report.Contacts, report.Posted, report.Failed)
			return nil
		},
	}
}

func listenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Handle summary and reminder button clicks until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := bootstrap()
			if err != nil {
				return err
			}
			defer d.close()

			return runListener(d)
		},
	}
}

func runListener(d *deps) error {
	cfg := d.cfg

	if cfg.Slack.AppToken == "" && cfg.Slack.SigningSecret == "" {
		return errors.New("listen needs slack.app_token for Socket Mode or slack.signing_secret for HTTP interactivity")
	}

	logger.Infof("Starting invoice reminder listener...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scanService := service.NewScanService(d.billing, d.slack, d.snapshots, cfg)
	actionService := service.NewActionService(d.billing, d.slack, d.snapshots, cfg)
	dispatcher := interaction.NewDispatcher(actionService)

	sched := scheduler.NewScheduler(scanService, d.slack, cfg.AdminChannel())

	// Interfaces stay nil when the component is off so health reports it as disabled.
	var redisPing interface{ Ping(context.Context) error }
	if d.snapshots != nil {
		redisPing = d.snapshots
	}

	var slackConn interface{ Connected() bool }
	if cfg.Slack.AppToken != "" {
		listener := interaction.NewListener(d.slack, dispatcher, cfg.LogLevel == "debug")
		slackConn = listener

		go func() {
			logger.Infof("Connecting to Slack Socket Mode...")
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("Socket Mode listener stopped: %v", err)
			}
		}()
	}

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(redisPing, slackConn)
	scanHandler := handlers.NewScanHandler(sched)
	schedulerHandler := handlers.NewSchedulerHandler(sched, ctx, cfg)
	interactionHandler := handlers.NewInteractionHandler(dispatcher)

	// Auto-start scheduler
	if cfg.Scan.Schedule != "" {
		logger.Infof("Auto-starting scheduler...")
		if err := sched.StartWithParams(ctx, cfg.Scan.Schedule, cfg.Scan.AlertAfter); err != nil {
			logger.Warnf("Failed to auto-start scheduler: %v", err)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validator.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			middlewares.APIKeyHeader,
		},
	}))

	// Setup routes
	routes.RegisterRoutes(e, healthHandler, scanHandler, schedulerHandler, interactionHandler, cfg)

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Infof("Server starting on http://localhost%s", addr)
		logger.Infof("Swagger docs available at http://localhost%s/swagger/index.html", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("Shutting down gracefully...")

	// Stop the scheduler before cancelling so an in-flight scan is not cut short by the context.
	if sched.IsRunning() {
		logger.Infof("Stopping scheduler...")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()

		done := make(chan error, 1)
		go func() {
			done <- sched.Stop()
		}()

		select {
		case err := <-done:
			if err != nil {
				logger.Errorf("Error stopping scheduler: %v", err)
			} else {
				logger.Infof("Scheduler stopped successfully")
			}
		case <-stopCtx.Done():
			logger.Warnf("Scheduler stop timeout, forcing shutdown")
		}
	}

	// Cancel context to close the Socket Mode connection
	cancel()

	// Shutdown HTTP server (with timeout)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Infof("Shutting down HTTP server...")
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	} else {
		logger.Infof("HTTP server stopped successfully")
	}

	logger.Infof("Waiting for in-flight button clicks...")
	dispatcher.Wait()

	logger.Infof("Graceful shutdown completed")
	return nil
}
