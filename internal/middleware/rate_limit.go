package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"community_capital/internal/services"
)

// RateLimit counts requests per client IP in fixed Redis windows. Fails
// open when Redis is unavailable so an outage degrades to unlimited
// rather than denying everything.
func RateLimit(cache *services.RedisCache, scope string, limit int64, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := fmt.Sprintf("ratelimit:%s:%s", scope, c.RealIP())

			count, err := cache.Increment(c.Request().Context(), key, window)
			if err != nil {
				slog.Warn("rate limit check failed", "scope", scope, "error", err)
				return next(c)
			}

			if count > limit {
				slog.Warn("rate limit exceeded", "scope", scope, "ip", c.RealIP())
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests, please try again later")
			}
			return next(c)
		}
	}
}
