package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys set by RequireAuth.
const (
	ContextUserID    = "userID"
	ContextUserPhone = "userPhone"
)

// RequireAuth verifies the Bearer JWT and stores the caller's identity in
// the request context.
func RequireAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var tokenString string
			authHeader := c.Request().Header.Get("Authorization")
			switch {
			case authHeader != "":
				tokenString = strings.TrimPrefix(authHeader, "Bearer ")
				if tokenString == authHeader {
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
				}
			case c.QueryParam("token") != "":
				// WebSocket clients cannot set headers from the browser.
				tokenString = c.QueryParam("token")
			default:
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token claims")
			}

			userID, ok := claims["user_id"].(float64)
			if !ok || userID <= 0 {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token claims")
			}

			c.Set(ContextUserID, uint(userID))
			if phone, ok := claims["phone"].(string); ok {
				c.Set(ContextUserPhone, phone)
			}
			return next(c)
		}
	}
}

// UserID returns the authenticated user id from the context, or 0.
func UserID(c echo.Context) uint {
	if id, ok := c.Get(ContextUserID).(uint); ok {
		return id
	}
	return 0
}
