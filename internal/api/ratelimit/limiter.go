package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	DefaultRequestsPerWindow = 50
	DefaultWindowDuration    = 15 * time.Minute
)

type ipBucket struct {
	count     int64
	resetTime time.Time
}

// IPLimiter is a fixed-window request counter keyed by client IP.
type IPLimiter struct {
	mu        sync.Mutex
	ipBuckets map[string]*ipBucket

	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewIPLimiter creates a limiter allowing requests per window for each IP.
// Non-positive values fall back to the defaults.
func NewIPLimiter(requests int, window time.Duration) *IPLimiter {
	if requests <= 0 {
		requests = DefaultRequestsPerWindow
	}
	if window <= 0 {
		window = DefaultWindowDuration
	}
	return &IPLimiter{
		ipBuckets: make(map[string]*ipBucket),
		limit:     int64(requests),
		window:    window,
		now:       time.Now,
	}
}

// Middleware rejects requests over the limit with 429 and reports the budget
// in RateLimit-* headers. Requests for which skip returns true are not counted.
func (l *IPLimiter) Middleware(skip func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skip != nil && skip(c) {
				return next(c)
			}

			allowed, remaining, reset := l.allow(c.RealIP())

			h := c.Response().Header()
			h.Set("RateLimit-Limit", strconv.FormatInt(l.limit, 10))
			h.Set("RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			h.Set("RateLimit-Reset", strconv.Itoa(int(reset.Seconds())))

			if !allowed {
				h.Set(echo.HeaderRetryAfter, strconv.Itoa(int(reset.Seconds())))
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later")
			}

			return next(c)
		}
	}
}

func (l *IPLimiter) allow(ip string) (bool, int64, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	bucket, exists := l.ipBuckets[ip]
	if !exists || !now.Before(bucket.resetTime) {
		bucket = &ipBucket{resetTime: now.Add(l.window)}
		l.ipBuckets[ip] = bucket
	}

	reset := bucket.resetTime.Sub(now).Round(time.Second)
	if bucket.count >= l.limit {
		return false, 0, reset
	}

	bucket.count++
	return true, l.limit - bucket.count, reset
}

// Cleanup drops buckets whose window has passed.
func (l *IPLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for ip, bucket := range l.ipBuckets {
		if !now.Before(bucket.resetTime) {
			delete(l.ipBuckets, ip)
		}
	}
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (l *IPLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Cleanup()
			}
		}
	}()
}

func (l *IPLimiter) trackedIPs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ipBuckets)
}
