package routes

import (
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/artifactory/invoice-reminders/environments"
	"github.com/artifactory/invoice-reminders/handlers"
	"github.com/artifactory/invoice-reminders/internal/middlewares"
)

// RegisterRoutes registers all API routes with middleware
func RegisterRoutes(
	e *echo.Echo,
	healthHandler *handlers.HealthHandler,
	scanHandler *handlers.ScanHandler,
	schedulerHandler *handlers.SchedulerHandler,
	interactionHandler *handlers.InteractionHandler,
	cfg *environments.Config,
) {
	e.GET("/health", healthHandler.Health)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// Slack interactivity over HTTP, verified by request signature
	e.POST("/slack/interactions", interactionHandler.HandleInteraction, middlewares.SlackSignature(cfg.Slack.SigningSecret))

	// API v1 base group, every route behind the operator API key
	v1 := e.Group("/api/v1", middlewares.APIKeyAuth(cfg.Server.APIKey))

	v1.POST("/scan", scanHandler.TriggerScan)

	schedulerGroup := v1.Group("/scheduler")

	schedulerGroup.POST("/start", schedulerHandler.StartScheduler)
	schedulerGroup.POST("/stop", schedulerHandler.StopScheduler)
	schedulerGroup.GET("/status", schedulerHandler.GetSchedulerStatus)
}
