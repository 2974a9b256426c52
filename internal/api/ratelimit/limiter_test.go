package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEcho(l *IPLimiter) *echo.Echo {
	e := echo.New()
	e.Use(l.Middleware(func(c echo.Context) bool { return c.Path() == "/health" }))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return e
}

func request(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":12345"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestIPLimiter_BlocksAfterLimit(t *testing.T) {
	l := NewIPLimiter(2, time.Minute)
	e := newTestEcho(l)

	first := request(e, "10.0.0.1")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, request(e, "10.0.0.1").Code)

	blocked := request(e, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "0", blocked.Header().Get("RateLimit-Remaining"))
	assert.NotEmpty(t, blocked.Header().Get(echo.HeaderRetryAfter))

	assert.Equal(t, http.StatusOK, request(e, "10.0.0.2").Code, "other IPs have their own budget")
}

func TestIPLimiter_SkipperIsNotCounted(t *testing.T) {
	l := NewIPLimiter(1, time.Minute)
	e := newTestEcho(l)

	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.1:1"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, http.StatusOK, request(e, "10.0.0.1").Code)
}

func TestIPLimiter_WindowResets(t *testing.T) {
	l := NewIPLimiter(1, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	allowed, _, _ := l.allow("1.2.3.4")
	require.True(t, allowed)
	allowed, _, _ = l.allow("1.2.3.4")
	require.False(t, allowed)

	now = now.Add(time.Minute)
	allowed, _, _ = l.allow("1.2.3.4")
	assert.True(t, allowed)
}

func TestIPLimiter_Cleanup(t *testing.T) {
	l := NewIPLimiter(5, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.allow("1.1.1.1")
	now = now.Add(30 * time.Second)
	l.allow("2.2.2.2")
	now = now.Add(45 * time.Second)

	l.Cleanup()
	assert.Equal(t, 1, l.trackedIPs())
}

func TestNewIPLimiter_Defaults(t *testing.T) {
	l := NewIPLimiter(0, 0)
	assert.Equal(t, int64(DefaultRequestsPerWindow), l.limit)
	assert.Equal(t, DefaultWindowDuration, l.window)
}
