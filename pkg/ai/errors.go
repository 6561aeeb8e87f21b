// Package ai provides common types shared by the STT, LLM, and TTS provider
// implementations: a standard error taxonomy and retry configuration.
package ai

import (
	"context"
	"errors"
	"time"
)

// Common error classes used across providers.
var (
	// ErrRecoverable indicates a temporary provider failure that may succeed
	// if retried, or that can be absorbed by a fallback back-end.
	// Examples: socket drop, HTTP 5xx, rate limiting.
	ErrRecoverable = errors.New("recoverable provider error")

	// ErrFatal indicates a permanent failure that will not succeed if
	// retried. Examples: missing API key, unsupported audio format.
	ErrFatal = errors.New("fatal provider error")

	// ErrInvalidInput indicates the caller supplied something the provider
	// cannot accept. Examples: unsupported document kind, oversized upload,
	// missing session token. Rejected synchronously, session unaffected.
	ErrInvalidInput = errors.New("invalid input")
)

// RetryConfig configures retry behavior for recoverable errors.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig provides sensible defaults for provider retries.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:    1,
	InitialDelay:  100 * time.Millisecond,
	MaxDelay:      5 * time.Second,
	BackoffFactor: 2.0,
}

// IsRecoverable reports whether an error may succeed on retry or fallback.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

// IsFatal reports whether an error is permanent and should not be retried.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// IsCancellation reports whether an error is a cooperative cancellation.
// Cancellation is not a failure: it must short-circuit silently and never
// surface as user-visible error text.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ClassifiedError wraps an underlying error with a retry classification.
type ClassifiedError struct {
	Underlying error
	Retryable  bool
	Message    string
}

func (e *ClassifiedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Underlying.Error()
}

func (e *ClassifiedError) Unwrap() error {
	if e.Retryable {
		return ErrRecoverable
	}
	return ErrFatal
}

// NewRecoverableError creates a recoverable error with context.
func NewRecoverableError(underlying error, message string) error {
	return &ClassifiedError{Underlying: underlying, Retryable: true, Message: message}
}

// NewFatalError creates a fatal error with context.
func NewFatalError(underlying error, message string) error {
	return &ClassifiedError{Underlying: underlying, Retryable: false, Message: message}
}
