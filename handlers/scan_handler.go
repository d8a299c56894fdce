package handlers

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/artifactory/invoice-reminders/internal/domain"
	"github.com/artifactory/invoice-reminders/internal/scheduler"
	"github.com/artifactory/invoice-reminders/internal/service"
	"github.com/artifactory/invoice-reminders/pkg/response"
)

type scanTrigger interface {
	TriggerScan(ctx context.Context) (*service.ScanReport, error)
}

type ScanHandler struct {
	scans scanTrigger
}

func NewScanHandler(scans scanTrigger) *ScanHandler {
	return &ScanHandler{scans: scans}
}

// TriggerScan godoc
// @Summary Run Scan-and-Post now
// @Description Fetches unpaid invoices and posts overdue summaries to the admin channel
// @Tags scan
// @Accept json
// @Produce json
// @Param x-reminders-auth-key header string true "API key"
// @Success 200 {object} response.SuccessResponse{data=service.ScanReport}
// @Failure 409 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/scan [post]
func (h *ScanHandler) TriggerScan(c echo.Context) error {
	// The scan outlives the request.
	report, err := h.scans.TriggerScan(context.WithoutCancel(c.Request().Context()))

	switch {
	case err == nil:
		return response.OkWithMessage(c, "Scan completed", report)
	case errors.Is(err, scheduler.ErrScanInProgress):
		return response.Conflict(c, err)
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return response.BadGateway(c, err, report)
	default:
		return response.InternalServerError(c, err)
	}
}
