package middlewares

import (
	"crypto/subtle"
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/artifactory/invoice-reminders/pkg/logger"
	"github.com/artifactory/invoice-reminders/pkg/response"
)

// APIKeyHeader carries the operator key for the /api/v1 routes.
const APIKeyHeader = "x-reminders-auth-key"

// secureCompare compares two strings in a way that is safer against timing attacks.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// APIKeyAuth guards the operator API. Rejections are logged with the route and caller.
func APIKeyAuth(apiKey string) echo.MiddlewareFunc {
	if apiKey == "" {
		logger.Warnf("server.api_key is not set, the operator API will answer 500")

		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				return response.InternalServerError(c, fmt.Errorf("API key is not configured"))
			}
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.Request().Header.Get(APIKeyHeader)

			switch {
			case token == "":
				logger.Warnf("Rejected %s %s from %s: missing %s", c.Request().Method, c.Path(), c.RealIP(), APIKeyHeader)
				return response.UnauthorizedWithMessage(c, "Missing API key")
			case !secureCompare(token, apiKey):
				logger.Warnf("Rejected %s %s from %s: wrong API key", c.Request().Method, c.Path(), c.RealIP())
				return response.UnauthorizedWithMessage(c, "Invalid API key")
			}

			return next(c)
		}
	}
}
