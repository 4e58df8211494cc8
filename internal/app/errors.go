package app

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAlreadyExists         = errors.New("object already exists")
	ErrInvalid               = errors.New("invalid operation")
	ErrNotFound              = errors.New("object not found")
	ErrAuth                  = errors.New("authentication failed")
	ErrPartialReconciliation = errors.New("partial reconciliation")
	ErrRateLimited           = errors.New("rate limited")
	ErrTransport             = errors.New("transport failure")
)

// TransportError represents a failure to reach the remote API,
// including timeouts and server side errors.
type TransportError struct {
	Endpoint   string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error for %s: status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport error for %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// AuthError represents an expired or invalid credential.
type AuthError struct {
	Endpoint string
	Code     int // error code reported by the remote API or HTTP status
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error for %s: %d: %s", e.Endpoint, e.Code, e.Message)
}

func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}

// RateLimitError is returned when the remote API refuses a request because of rate limiting.
type RateLimitError struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited for %s: retry after %s", e.Endpoint, e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// PartialReconciliationError is returned when a relation was detached,
// but the subsequent attach did not complete.
// The relation is then left in an intermediate state and the caller should retry.
type PartialReconciliationError struct {
	Detached int // number of detached members
	Err      error
}

func (e *PartialReconciliationError) Error() string {
	return fmt.Sprintf("relation left detached after removing %d members: %v", e.Detached, e.Err)
}

func (e *PartialReconciliationError) Unwrap() error {
	return e.Err
}

func (e *PartialReconciliationError) Is(target error) bool {
	return target == ErrPartialReconciliation
}
