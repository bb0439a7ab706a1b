package providers

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is the sentinel wrapped by every UnavailableError.
var ErrUnavailable = errors.New("provider unavailable")

// errNotFound marks a 404 so callers can map it to an empty result.
var errNotFound = errors.New("not found")

// UnavailableError reports that a provider could not serve a request.
// The resolver chains record these as warnings and fall through to the
// next provider.
type UnavailableError struct {
	Provider   string
	Reason     string
	RetryAfter time.Duration
}

func (e *UnavailableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s unavailable: %s (retry after %s)", e.Provider, e.Reason, e.RetryAfter)
	}
	return fmt.Sprintf("%s unavailable: %s", e.Provider, e.Reason)
}

func (e *UnavailableError) Unwrap() error {
	return ErrUnavailable
}

func unavailable(provider, format string, args ...any) error {
	return &UnavailableError{Provider: provider, Reason: fmt.Sprintf(format, args...)}
}
