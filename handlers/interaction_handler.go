package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/slack-go/slack"

	"github.com/artifactory/invoice-reminders/pkg/response"
)

type interactionDispatcher interface {
	Dispatch(callback slack.InteractionCallback)
}

// InteractionHandler receives Slack interactivity requests over HTTP, as an alternative to Socket Mode.
type InteractionHandler struct {
	dispatcher interactionDispatcher
}

func NewInteractionHandler(dispatcher interactionDispatcher) *InteractionHandler {
	return &InteractionHandler{dispatcher: dispatcher}
}

// HandleInteraction godoc
// @Summary Slack interactivity endpoint
// @Description Acknowledges a signed block_actions payload and processes it in the background
// @Tags slack
// @Accept x-www-form-urlencoded
// @Produce json
// @Param payload formData string true "Slack interaction payload"
// @Success 200
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Router /slack/interactions [post]
func (h *InteractionHandler) HandleInteraction(c echo.Context) error {
	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(c.FormValue("payload")), &callback); err != nil {
		return response.BadRequest(c, fmt.Errorf("invalid interaction payload: %w", err))
	}

	h.dispatcher.Dispatch(callback)

	return c.NoContent(http.StatusOK)
}
