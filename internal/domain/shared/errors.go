// Package shared contains the error taxonomy, domain events and value objects
// used across the progression domain packages. It has no external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds. Every domain error carries one of these as its Kind so
// that callers can branch with errors.Is without knowing the concrete error.
var (
	ErrNotFound               = errors.New("entity not found")
	ErrAlreadyExists          = errors.New("entity already exists")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidState           = errors.New("invalid state")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrTimeout                = errors.New("operation timeout")
	ErrServiceUnavailable     = errors.New("service unavailable")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g. "progress", "daily", "leaderboard"
	Op      string // operation that failed
	Kind    error  // base kind or domain sentinel for errors.Is
	Message string // human-readable message
	Err     error  // underlying cause (optional)
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches against the kind chain first, then the cause.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrUserNotFound      = NewDomainError("progress", "Find", ErrNotFound, "user not found")
	ErrUserAlreadyExists = NewDomainError("progress", "Create", ErrAlreadyExists, "user already exists")
	ErrInvalidGameType   = NewDomainError("progress", "Validate", ErrInvalidInput, "invalid game type")
	ErrInvalidArgument   = NewDomainError("progress", "Validate", ErrInvalidInput, "invalid input")

	// ErrConcurrencyConflict is surfaced once the ledger ran out of attempts.
	ErrConcurrencyConflict = NewDomainError("progress", "Commit", ErrConcurrentModification, "could not commit update after retries")
	ErrStoreTimeout        = NewDomainError("store", "Request", ErrTimeout, "store operation timed out")
	ErrStoreUnavailable    = NewDomainError("store", "Request", ErrServiceUnavailable, "store unavailable")
)

var (
	ErrAlreadyCompleted = NewDomainError("daily", "Complete", ErrAlreadyExists, "daily challenge already completed today")
	ErrBadgeNotFound    = NewDomainError("achievement", "Find", ErrNotFound, "badge not found")
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR CODES
// ══════════════════════════════════════════════════════════════════════════════

// Code is the stable, client-facing identifier of an error condition.
type Code string

const (
	CodeUserNotFound        Code = "USER_NOT_FOUND"
	CodeUserAlreadyExists   Code = "USER_ALREADY_EXISTS"
	CodeInvalidGameType     Code = "INVALID_GAME_TYPE"
	CodeInvalidInput        Code = "INVALID_INPUT"
	CodeAlreadyCompleted    Code = "ALREADY_COMPLETED"
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"
	CodeStoreTimeout        Code = "STORE_TIMEOUT"
	CodeStoreUnavailable    Code = "STORE_UNAVAILABLE"
	CodeBadgeNotFound       Code = "BADGE_NOT_FOUND"
	CodeNotFound            Code = "NOT_FOUND"
	CodeInternal            Code = "INTERNAL"
)

// Ordered: specific sentinels before the generic kinds they share.
var codeTable = []struct {
	target error
	code   Code
}{
	{ErrUserNotFound, CodeUserNotFound},
	{ErrBadgeNotFound, CodeBadgeNotFound},
	{ErrUserAlreadyExists, CodeUserAlreadyExists},
	{ErrAlreadyCompleted, CodeAlreadyCompleted},
	{ErrInvalidGameType, CodeInvalidGameType},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrConcurrentModification, CodeConcurrencyConflict},
	{ErrTimeout, CodeStoreTimeout},
	{ErrServiceUnavailable, CodeStoreUnavailable},
	{ErrNotFound, CodeNotFound},
}

// CodeOf maps any error to its stable code. Unknown errors are INTERNAL.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	for _, row := range codeTable {
		if errors.Is(err, row.target) {
			return row.code
		}
	}
	return CodeInternal
}

// MessageOf returns the human-readable message of the outermost DomainError.
// Internal errors get a generic message so storage details never leak.
func MessageOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

func IsNotFound(err error) bool      { return errors.Is(err, ErrNotFound) }
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }
func IsValidation(err error) bool    { return errors.Is(err, ErrInvalidInput) }

// IsRetryable reports whether the ledger may run the transaction again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrTimeout)
}

// IsDegradable reports the failures a non-critical read may swallow.
func IsDegradable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrTimeout)
}
