package middleware

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// CustomErrorHandler renders every error as a JSON body with a single
// "error" field. Internal details are never leaked in production; the
// full error always goes to the log.
func CustomErrorHandler(production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		message := ""

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if msg, ok := he.Message.(string); ok && msg != "" {
				message = msg
			}
		}

		if message == "" {
			switch code {
			case http.StatusNotFound:
				message = "The requested resource doesn't exist."
			case http.StatusForbidden:
				message = "You don't have permission to access this resource."
			case http.StatusUnauthorized:
				message = "Please log in to continue."
			case http.StatusBadRequest:
				message = "The request could not be processed."
			default:
				if production {
					message = "An error occurred"
				} else {
					message = err.Error()
				}
			}
		}

		slog.Error("request failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", code,
			"error", err)

		if c.Response().Committed {
			return
		}
		if writeErr := c.JSON(code, map[string]interface{}{"error": message}); writeErr != nil {
			slog.Error("failed to write error response", "error", writeErr)
		}
	}
}
