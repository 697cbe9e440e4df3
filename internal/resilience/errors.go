package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// TransientError tags a failure as retryable. The vendor client wraps
// HTTP 429/5xx responses in one so the retry loop knows to try again.
type TransientError struct {
	Err        error
	StatusCode int
}

func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying: an explicit
// TransientError anywhere in the chain, or a network timeout. Context
// cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsTransientHTTPStatus reports whether an HTTP status from the vendor
// should be retried. 429 means we outran the rate limit; 5xx means the
// vendor is struggling. 4xx other than 408/429 is our fault and retrying
// will not change the answer.
func IsTransientHTTPStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return code >= 500 && code <= 504
}
