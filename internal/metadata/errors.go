package metadata

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/slipstream/mediabridge/internal/fetch"
)

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrNotFound            = errors.New("no catalog subject matched")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// UpstreamError reports a failed call to the identifier provider or the
// catalog. It matches ErrUpstreamUnavailable with errors.Is.
type UpstreamError struct {
	Op  string
	URL string
	Err error
}

func (e *UpstreamError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s (%s): %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

func newUpstreamError(op string, err error) *UpstreamError {
	ue := &UpstreamError{Op: op, Err: err}

	var statusErr *fetch.StatusError
	var urlErr *url.Error
	switch {
	case errors.As(err, &statusErr):
		ue.URL = fetch.RedactURL(statusErr.URL)
	case errors.As(err, &urlErr):
		ue.URL = fetch.RedactURL(urlErr.URL)
	}
	return ue
}
