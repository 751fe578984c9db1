package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errCacheMiss = errors.New("cache miss")

// fakeCache mirrors RedisCache's JSON round-trip behavior in memory.
type fakeCache struct {
	entries map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string, dest interface{}) error {
	data, ok := c.entries[key]
	if !ok {
		return errCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = data
	return nil
}

func (c *fakeCache) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
	if _, ok := c.entries[key]; ok {
		return false, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	c.entries[key] = data
	return true, nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

func doIdempotent(t *testing.T, cache ResponseCache, key string, handler echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payments/charge", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(ContextUserID, uint(1))

	require.NoError(t, Idempotency(cache)(handler)(c))
	return rec
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	cache := newFakeCache()
	executions := 0
	handler := func(c echo.Context) error {
		executions++
		return c.JSON(http.StatusAccepted, map[string]interface{}{"success": true, "attempt": executions})
	}

	first := doIdempotent(t, cache, "key-1", handler)
	assert.Equal(t, http.StatusAccepted, first.Code)
	assert.Equal(t, 1, executions)

	// The retry is served from the cache without re-running the handler.
	second := doIdempotent(t, cache, "key-1", handler)
	assert.Equal(t, http.StatusAccepted, second.Code)
	assert.Equal(t, 1, executions)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestIdempotency_DistinctKeysExecuteIndependently(t *testing.T) {
	cache := newFakeCache()
	executions := 0
	handler := func(c echo.Context) error {
		executions++
		return c.JSON(http.StatusAccepted, map[string]interface{}{"success": true})
	}

	doIdempotent(t, cache, "key-a", handler)
	doIdempotent(t, cache, "key-b", handler)
	assert.Equal(t, 2, executions)
}

func TestIdempotency_MissingHeaderPassesThrough(t *testing.T) {
	cache := newFakeCache()
	executions := 0
	handler := func(c echo.Context) error {
		executions++
		return c.JSON(http.StatusAccepted, map[string]interface{}{"success": true})
	}

	doIdempotent(t, cache, "", handler)
	doIdempotent(t, cache, "", handler)
	assert.Equal(t, 2, executions)
	assert.Empty(t, cache.entries)
}

func TestIdempotency_ConcurrentDuplicateConflicts(t *testing.T) {
	cache := newFakeCache()
	// Another request holds the in-flight marker.
	_, err := cache.SetNX(context.Background(), "idempotency:1:key-1:inflight", true, time.Minute)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payments/charge", nil)
	req.Header.Set(idempotencyHeader, "key-1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(ContextUserID, uint(1))

	handlerRan := false
	err = Idempotency(cache)(func(echo.Context) error {
		handlerRan = true
		return nil
	})(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusConflict, he.Code)
	assert.False(t, handlerRan)
}

func TestIdempotency_ErrorResponsesAreNotCached(t *testing.T) {
	cache := newFakeCache()
	executions := 0
	handler := func(c echo.Context) error {
		executions++
		if executions == 1 {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "bad request"})
		}
		return c.JSON(http.StatusAccepted, map[string]interface{}{"success": true})
	}

	first := doIdempotent(t, cache, "key-1", handler)
	assert.Equal(t, http.StatusBadRequest, first.Code)

	// The client may retry a failed request for real.
	second := doIdempotent(t, cache, "key-1", handler)
	assert.Equal(t, http.StatusAccepted, second.Code)
	assert.Equal(t, 2, executions)
}

func TestIdempotency_KeysAreScopedPerUser(t *testing.T) {
	cache := newFakeCache()
	executions := 0
	handler := func(c echo.Context) error {
		executions++
		return c.JSON(http.StatusAccepted, map[string]interface{}{"success": true})
	}

	e := echo.New()
	for _, userID := range []uint{1, 2} {
		req := httptest.NewRequest(http.MethodPost, "/payments/charge", nil)
		req.Header.Set(idempotencyHeader, "shared-key")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set(ContextUserID, userID)
		require.NoError(t, Idempotency(cache)(handler)(c))
	}
	assert.Equal(t, 2, executions, "the same key from different users must not collide")
}
