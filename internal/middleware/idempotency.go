package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
)

// ResponseCache is the key/value surface the idempotency layer needs;
// services.RedisCache satisfies it.
type ResponseCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key
// instead of re-executing the handler, so client retries of money-moving
// requests cannot double-submit. Keys are scoped per user. Requests
// without the header pass through untouched.
func Idempotency(cache ResponseCache) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get(idempotencyHeader)
			if key == "" {
				return next(c)
			}

			ctx := c.Request().Context()
			redisKey := fmt.Sprintf("idempotency:%d:%s", UserID(c), key)

			var stored storedResponse
			if err := cache.Get(ctx, redisKey, &stored); err == nil {
				return c.JSONBlob(stored.Status, stored.Body)
			}

			// Mark the key in flight; a concurrent duplicate gets a
			// conflict instead of a second execution.
			inFlight, err := cache.SetNX(ctx, redisKey+":inflight", true, time.Minute)
			if err == nil && !inFlight {
				return echo.NewHTTPError(http.StatusConflict, "Request with this idempotency key is already in flight")
			}
			defer cache.Delete(ctx, redisKey+":inflight")

			recorder := &responseRecorder{ResponseWriter: c.Response().Writer, body: &bytes.Buffer{}}
			c.Response().Writer = recorder

			if err := next(c); err != nil {
				return err
			}

			// Only successful outcomes are replayable; errors may be
			// retried for real.
			if recorder.status < http.StatusBadRequest && recorder.body.Len() > 0 {
				_ = cache.Set(ctx, redisKey, storedResponse{
					Status: recorder.status,
					Body:   json.RawMessage(recorder.body.Bytes()),
				}, idempotencyTTL)
			}
			return nil
		}
	}
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	body   *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return io.MultiWriter(r.ResponseWriter, r.body).Write(b)
}
