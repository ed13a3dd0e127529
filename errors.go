package threadloom

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidConfig is returned when the orchestrator configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrThreadNotFound is returned when a thread does not exist
	ErrThreadNotFound = errors.New("thread not found")

	// ErrInvalidModel is returned when a requested model is not in the registry
	ErrInvalidModel = errors.New("invalid model")

	// ErrEmptyContent is returned when a message has no content
	ErrEmptyContent = errors.New("message content is empty")
)

// ThreadError represents an error with additional context
type ThreadError struct {
	Op       string         // Operation that failed
	Err      error          // Underlying error
	ThreadID string         // Thread ID if applicable
	Context  map[string]any // Additional context
}

// Error implements the error interface
func (e *ThreadError) Error() string {
	if e.ThreadID != "" {
		return fmt.Sprintf("%s (thread=%s): %v", e.Op, e.ThreadID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *ThreadError) Unwrap() error {
	return e.Err
}

// WithContext adds additional context to the error
func (e *ThreadError) WithContext(key string, value any) *ThreadError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewThreadError creates a new ThreadError
func NewThreadError(op string, err error) *ThreadError {
	return &ThreadError{
		Op:  op,
		Err: err,
	}
}

// NewThreadErrorWithID creates a new ThreadError bound to a thread
func NewThreadErrorWithID(op string, threadID string, err error) *ThreadError {
	return &ThreadError{
		Op:       op,
		Err:      err,
		ThreadID: threadID,
	}
}
