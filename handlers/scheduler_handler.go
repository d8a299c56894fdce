package handlers

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/artifactory/invoice-reminders/environments"
	"github.com/artifactory/invoice-reminders/internal/scheduler"
	"github.com/artifactory/invoice-reminders/pkg/response"
	"github.com/artifactory/invoice-reminders/pkg/validator"
)

type SchedulerHandler struct {
	scheduler *scheduler.Scheduler
	ctx       context.Context
	config    *environments.Config
}

type StartSchedulerRequest struct {
	Schedule   *string `json:"schedule,omitempty"`
	AlertAfter *int    `json:"alertAfter,omitempty" validate:"omitempty,min=0"`
}

func NewSchedulerHandler(
	sched *scheduler.Scheduler,
	ctx context.Context,
	cfg *environments.Config,
) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: sched,
		ctx:       ctx,
		config:    cfg,
	}
}

// StartScheduler godoc
// @Summary Start the scan scheduler
// @Description Starts running Scan-and-Post on a cron schedule, defaulting to the configured one
// @Tags scheduler
// @Accept json
// @Produce json
// @Param x-reminders-auth-key header string true "API key"
// @Param request body StartSchedulerRequest false "Scheduler parameters (optional)"
// @Success 200 {object} response.SuccessResponse{data=scheduler.SchedulerStatus}
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/scheduler/start [post]
func (h *SchedulerHandler) StartScheduler(c echo.Context) error {
	if h.scheduler.IsRunning() {
		return response.OkWithMessage(c, "Scheduler is already running", h.scheduler.GetStatus())
	}

	var req StartSchedulerRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	schedule := h.config.Scan.Schedule
	if req.Schedule != nil {
		schedule = *req.Schedule
	}

	alertAfter := h.config.Scan.AlertAfter
	if req.AlertAfter != nil {
		alertAfter = *req.AlertAfter
	}

	if err := h.scheduler.StartWithParams(h.ctx, schedule, alertAfter); err != nil {
		if errors.Is(err, scheduler.ErrInvalidSchedule) {
			return response.UnprocessableEntity(c, err)
		}
		return response.InternalServerError(c, err)
	}

	return response.OkWithMessage(c, "Scheduler started successfully", h.scheduler.GetStatus())
}

// StopScheduler godoc
// @Summary Stop the scan scheduler
// @Description Stops scheduled scans. A scan already in flight runs to completion.
// @Tags scheduler
// @Accept json
// @Produce json
// @Param x-reminders-auth-key header string true "API key"
// @Success 200 {object} response.SuccessResponse{data=scheduler.SchedulerStatus}
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/scheduler/stop [post]
func (h *SchedulerHandler) StopScheduler(c echo.Context) error {
	if !h.scheduler.IsRunning() {
		return response.OkWithMessage(c, "Scheduler is already stopped", h.scheduler.GetStatus())
	}

	if err := h.scheduler.Stop(); err != nil {
		return response.InternalServerError(c, err)
	}

	return response.OkWithMessage(c, "Scheduler stopped successfully", h.scheduler.GetStatus())
}

// GetSchedulerStatus godoc
// @Summary Get scheduler status
// @Description Returns the schedule, run statistics and failure state
// @Tags scheduler
// @Accept json
// @Produce json
// @Param x-reminders-auth-key header string true "API key"
// @Success 200 {object} response.SuccessResponse{data=scheduler.SchedulerStatus}
// @Router /api/v1/scheduler/status [get]
func (h *SchedulerHandler) GetSchedulerStatus(c echo.Context) error {
	return response.Ok(c, h.scheduler.GetStatus())
}
