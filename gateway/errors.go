package gateway

import (
	"errors"
	"fmt"
)

// Sentinel errors for failure classes without structured detail.
var (
	// ErrTimeout is returned when the transport-level timeout retry budget
	// is exhausted.
	ErrTimeout = errors.New("gateway request timed out")

	// ErrAuthFailed is returned on a 401 response. It is fatal and never
	// retried.
	ErrAuthFailed = errors.New("gateway authentication failed")
)

// RateLimitError is returned on a 429 response. It carries the upstream
// retry-after value so the caller can back off. Never retried internally.
type RateLimitError struct {
	RetryAfter string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after: %s", e.RetryAfter)
}

// BadRequestError is returned on a 400 response with the upstream error
// detail. Fatal and never retried.
type BadRequestError struct {
	Detail string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("bad request: %s", e.Detail)
}

// UpstreamError is returned for any other non-2xx response.
type UpstreamError struct {
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error (%d): %s", e.Status, e.Detail)
}

// NetworkError wraps a non-timeout transport failure.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
