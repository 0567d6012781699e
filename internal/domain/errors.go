package domain

import (
	"errors"
	"fmt"
)

// NetworkErrorKind classifies a transient failure.
type NetworkErrorKind string

// Network error kinds.
const (
	NetworkNoConnectivity NetworkErrorKind = "no_connectivity"
	NetworkTimeout        NetworkErrorKind = "timeout"
	NetworkRateLimited    NetworkErrorKind = "rate_limited"
	NetworkUnexpected     NetworkErrorKind = "unexpected"
)

// NetworkError is a transient failure that survived all retries.
type NetworkError struct {
	Kind     NetworkErrorKind
	URL      string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	var msg string
	switch e.Kind {
	case NetworkNoConnectivity:
		msg = "no connectivity"
	case NetworkTimeout:
		msg = "request timed out"
	case NetworkRateLimited:
		msg = "rate limited by provider"
	default:
		msg = "unexpected network failure"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s after %d attempts: %v", msg, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s after %d attempts", msg, e.Attempts)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ProviderRejection is a permanent 4xx answer from an upstream API.
type ProviderRejection struct {
	StatusCode int
	URL        string
	Message    string
}

func (e *ProviderRejection) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider rejected request (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider rejected request (%d)", e.StatusCode)
}

// UnsupportedTokenError is returned when a symbol is not in the registry.
type UnsupportedTokenError struct {
	Symbol string
}

func (e *UnsupportedTokenError) Error() string {
	return fmt.Sprintf("unsupported token: %s", e.Symbol)
}

// PersistenceError wraps a repository failure.
type PersistenceError struct {
	Operation string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error in %s: %v", e.Operation, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ValidationError is returned for malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Reason)
}

// IsTransient reports whether retrying the whole user action may succeed.
func IsTransient(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
