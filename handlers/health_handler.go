package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type connectionChecker interface {
	Connected() bool
}

// HealthHandler handles health checks.
type HealthHandler struct {
	redis        pinger
	slack        connectionChecker
	checkTimeout time.Duration
}

// NewHealthHandler takes nil for any component that is not in use.
func NewHealthHandler(redisClient pinger, slack connectionChecker) *HealthHandler {
	return &HealthHandler{
		redis:        redisClient,
		slack:        slack,
		checkTimeout: 2 * time.Second,
	}
}

// Health returns overall status and basic component statuses (Slack and Redis).
// @Summary Health check
// @Description Returns overall status with Slack Socket Mode and snapshot cache connectivity
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /health [get]
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.checkTimeout)
	defer cancel()

	overallStatus := "ok"

	slackStatus := "disabled"
	if h.slack != nil {
		if h.slack.Connected() {
			slackStatus = "up"
		} else {
			slackStatus = "down"
			overallStatus = "down"
		}
	}

	redisStatus := "disabled"
	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			redisStatus = "down"
			if overallStatus == "ok" {
				overallStatus = "degraded"
			}
		} else {
			redisStatus = "up"
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().Format(time.RFC3339),
		"components": map[string]any{
			"slack": map[string]any{
				"status": slackStatus,
			},
			"redis": map[string]any{
				"status": redisStatus,
			},
		},
	})
}
