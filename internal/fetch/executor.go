package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
)

// ErrRetriesExhausted is returned when every attempt failed with a retryable error.
var ErrRetriesExhausted = errors.New("retry budget exhausted")

const defaultMaxBodyBytes = 8 << 20

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

var secretParams = []string{"api_key", "apikey", "token", "access_token"}

// RedactURL masks credential query parameters so URLs can be logged and
// surfaced in errors.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return rawURL
	}
	q := u.Query()
	changed := false
	for _, name := range secretParams {
		if q.Has(name) {
			q.Set(name, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Getter performs a GET with the executor's retry policy. It is the seam the
// catalog and identifier-provider clients depend on.
type Getter interface {
	Get(ctx context.Context, rawURL string, header http.Header) (*Response, error)
	GetWithPolicy(ctx context.Context, rawURL string, header http.Header, policy Policy) (*Response, error)
}

// Executor issues HTTP GETs with bounded, capped exponential retry.
type Executor struct {
	client       *http.Client
	policy       Policy
	maxBodyBytes int64
	logger       zerolog.Logger
	timer        retry.Timer
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxBodyBytes limits how much of a response body is read.
func WithMaxBodyBytes(n int64) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxBodyBytes = n
		}
	}
}

// WithTimer replaces the timer used to wait between attempts.
func WithTimer(t retry.Timer) Option {
	return func(e *Executor) {
		e.timer = t
	}
}

// NewExecutor creates an executor. A nil client uses a fresh http.Client
// without a global timeout; per-attempt timeouts come from the policy.
func NewExecutor(client *http.Client, policy Policy, logger zerolog.Logger, opts ...Option) *Executor {
	if client == nil {
		client = &http.Client{}
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	e := &Executor{
		client:       client,
		policy:       policy,
		maxBodyBytes: defaultMaxBodyBytes,
		logger:       logger.With().Str("component", "fetch").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the executor's default policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Get fetches rawURL with the default policy.
func (e *Executor) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	return e.GetWithPolicy(ctx, rawURL, header, e.policy)
}

// GetWithPolicy fetches rawURL, retrying timeouts, network failures and
// 403/429 responses up to policy.MaxAttempts. Other failures return at once.
func (e *Executor) GetWithPolicy(ctx context.Context, rawURL string, header http.Header, policy Policy) (*Response, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	var (
		resp     *Response
		attempts int
		safeURL  = RedactURL(rawURL)
	)

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(policy.MaxAttempts)),
		retry.LastErrorOnly(true),
		// retry-go counts n from 1 for the first retry.
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return policy.delay(max(int(n)-1, 0))
		}),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && retry.IsRecoverable(err) && IsRetryable(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			if int(n)+1 >= policy.MaxAttempts {
				return
			}
			e.logger.Warn().
				Err(err).
				Str("url", safeURL).
				Uint("attempt", n+1).
				Int("maxAttempts", policy.MaxAttempts).
				Dur("nextRetryIn", policy.Backoff(int(n))).
				Msg("upstream request failed, will retry")
		}),
	}
	if e.timer != nil {
		opts = append(opts, retry.WithTimer(e.timer))
	}

	err := retry.Do(func() error {
		attempts++
		r, err := e.attempt(ctx, rawURL, header, policy.AttemptTimeout)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, opts...)

	if err == nil {
		if attempts > 1 {
			e.logger.Debug().Str("url", safeURL).Int("attempt", attempts).Msg("request succeeded after retry")
		}
		return resp, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("request to %s aborted: %w", safeURL, ctxErr)
	}

	if IsRetryable(err) {
		e.logger.Error().Err(err).Str("url", safeURL).Int("attempts", attempts).
			Msg("upstream request failed after all retries")
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
	}

	e.logger.Debug().Err(err).Str("url", safeURL).Msg("non-retryable upstream failure")
	return nil, err
}

func (e *Executor) attempt(ctx context.Context, rawURL string, header http.Header, timeout time.Duration) (*Response, error) {
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = RedactURL(urlErr.URL)
		}
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", RedactURL(rawURL), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			URL:        RedactURL(rawURL),
			Body:       truncate(string(body), 256),
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
