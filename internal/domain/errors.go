package domain

import (
	"context"
	"errors"
	"fmt"
)

// Common domain errors.
var (
	ErrAttemptNotFound    = errors.New("payment attempt not found")
	ErrAttemptExists      = errors.New("a payment attempt is already live for this merchant reference")
	ErrAttemptResolved    = errors.New("payment attempt already resolved")
	ErrCreationFailed     = errors.New("transaction creation failed")
	ErrEmptySecret        = errors.New("provider secret key is empty")
	ErrUnsupportedGateway = errors.New("unsupported gateway combination")
)

// AuthenticationError indicates the provider auth step failed. Retryable.
type AuthenticationError struct {
	Provider Provider
	Err      error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication with %s failed: %v", e.Provider, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// UnsupportedCombinationError indicates the factory could not resolve a
// provider+method pair. Caller configuration bug, not retryable.
type UnsupportedCombinationError struct {
	Provider Provider
	Method   Method
}

func (e *UnsupportedCombinationError) Error() string {
	return fmt.Sprintf("no gateway registered for provider %q with method %q", e.Provider, e.Method)
}

func (e *UnsupportedCombinationError) Is(target error) bool {
	return target == ErrUnsupportedGateway
}

// UnsupportedOperationError indicates a gateway variant was invoked with
// an operation its provider protocol has no concept of. Internal wiring
// defect, not retryable.
type UnsupportedOperationError struct {
	Provider  Provider
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("provider %s does not support operation %q", e.Provider, e.Operation)
}

// TransportError indicates a network or I/O failure while talking to a
// provider endpoint. Retryable.
type TransportError struct {
	Provider Provider
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure calling %s %s: %v", e.Provider, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError indicates a malformed signal payload from the
// execution surface or a provider response that failed to parse.
// Provider-side defect or tampering, not retryable.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid payload: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid payload: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Retryable classifies an error for the caller: transport and
// authentication failures (and caller-imposed timeouts) are worth
// retrying, everything else is not.
func Retryable(err error) bool {
	var authErr *AuthenticationError
	var transportErr *TransportError
	switch {
	case errors.As(err, &authErr), errors.As(err, &transportErr):
		return true
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return true
	default:
		return false
	}
}
