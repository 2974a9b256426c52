package fetch

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/slipstream/mediabridge/internal/config"
)

// Policy configures the capped exponential backoff used for outbound requests.
type Policy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	// MaxJitter adds a random delay in [0, MaxJitter) on top of each backoff.
	MaxJitter time.Duration
}

// DefaultPolicy returns the reference policy: 4 attempts, 5s per attempt,
// 500ms doubling up to 3s, no jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    4,
		AttemptTimeout: 5 * time.Second,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       3 * time.Second,
	}
}

// PolicyFromConfig converts the retry section of the config into a Policy.
func PolicyFromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		MaxAttempts:    cfg.MaxAttempts,
		AttemptTimeout: cfg.AttemptTimeout,
		BaseDelay:      cfg.BaseDelay,
		MaxDelay:       cfg.MaxDelay,
		MaxJitter:      cfg.MaxJitter,
	}
}

// WithTimeout returns a copy of the policy using a different per-attempt timeout.
func (p Policy) WithTimeout(d time.Duration) Policy {
	if d > 0 {
		p.AttemptTimeout = d
	}
	return p
}

// Backoff returns min(MaxDelay, BaseDelay*2^n) for the retry following the
// n-th (0-based) failed attempt.
func (p Policy) Backoff(n int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 0; i < n; i++ {
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			break
		}
		delay *= 2
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

func (p Policy) delay(n int) time.Duration {
	d := p.Backoff(n)
	if p.MaxJitter > 0 {
		d += rand.N(p.MaxJitter)
	}
	return d
}

// IsRetryableStatus reports whether an upstream status is worth another attempt.
// The catalog answers 403 and 429 when it throttles.
func IsRetryableStatus(code int) bool {
	return code == http.StatusForbidden || code == http.StatusTooManyRequests
}

// IsNetworkError checks if an error is likely due to network unavailability
// or an attempt timeout.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	var dnsErr *net.DNSError
	if errors.As(err, &netErr) || errors.As(err, &dnsErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	networkIndicators := []string{
		"connection refused",
		"no such host",
		"timeout",
		"network is unreachable",
		"no route to host",
		"host is down",
		"dial tcp",
		"i/o timeout",
		"connection reset",
		"unexpected eof",
		"temporary failure in name resolution",
	}
	for _, indicator := range networkIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}

// IsRetryable classifies an attempt error. Status errors are retried only for
// throttling codes; anything else with a status is fatal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return IsRetryableStatus(statusErr.StatusCode)
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return IsNetworkError(err)
}
