package middlewares

import (
	"bytes"
	"fmt"
	"io"

	"github.com/labstack/echo/v4"
	"github.com/slack-go/slack"

	"github.com/artifactory/invoice-reminders/pkg/logger"
	"github.com/artifactory/invoice-reminders/pkg/response"
)

// SlackSignature rejects requests not signed with the app's signing secret.
// The body is restored for the next handler.
func SlackSignature(signingSecret string) echo.MiddlewareFunc {
	if signingSecret == "" {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				return response.InternalServerError(
					c,
					fmt.Errorf("slack signing secret is not configured"),
				)
			}
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			body, err := io.ReadAll(req.Body)
			if err != nil {
				return response.BadRequest(c, fmt.Errorf("failed to read request body: %w", err))
			}
			req.Body = io.NopCloser(bytes.NewReader(body))

			verifier, err := slack.NewSecretsVerifier(req.Header, signingSecret)
			if err != nil {
				logger.Warnf("Rejected Slack request: %v", err)
				return response.UnauthorizedWithMessage(c, "Invalid Slack signature")
			}

			if _, err := verifier.Write(body); err != nil {
				return response.InternalServerError(c, err)
			}

			if err := verifier.Ensure(); err != nil {
				logger.Warnf("Rejected Slack request: %v", err)
				return response.UnauthorizedWithMessage(c, "Invalid Slack signature")
			}

			return next(c)
		}
	}
}
