package util

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies failures so transport adapters can pick a status without inspecting messages.
type ErrorKind string

const (
	KindAuthRequired        ErrorKind = "auth_required"
	KindAuthentication      ErrorKind = "authentication"
	KindRateLimited         ErrorKind = "rate_limited"
	KindValidation          ErrorKind = "validation"
	KindIdempotencyConflict ErrorKind = "idempotency_conflict"
	KindBackend             ErrorKind = "backend"
	KindInternal            ErrorKind = "internal"
)

// Retryable reports whether a caller may resend the identical request later.
func (k ErrorKind) Retryable() bool {
	return k == KindRateLimited || k == KindBackend
}

// DomainError standardizes application errors.
type DomainError struct {
	Kind       ErrorKind
	Code       string
	Message    string
	Field      string
	RetryAfter time.Duration
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail returns a copy of the error carrying an extra detail entry.
func (e *DomainError) WithDetail(key string, value any) *DomainError {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// NewDomainError constructs a DomainError.
func NewDomainError(kind ErrorKind, code, message string, details map[string]any) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message, Details: details}
}

func NewAuthRequired() error {
	return NewDomainError(KindAuthRequired, "AUTH_REQUIRED", "auth required", nil)
}

func NewAuthenticationError(reason string) error {
	return NewDomainError(KindAuthentication, "UNAUTHORIZED", reason, nil)
}

func NewRateLimitError(retryAfter time.Duration) error {
	return &DomainError{
		Kind:       KindRateLimited,
		Code:       "RATE_LIMITED",
		Message:    "rate limit exceeded",
		RetryAfter: retryAfter,
		Details:    map[string]any{"retry_after_ms": retryAfter.Milliseconds()},
	}
}

func NewValidationError(field, message string) error {
	return &DomainError{
		Kind:    KindValidation,
		Code:    "VALIDATION_FAILED",
		Message: message,
		Field:   field,
		Details: map[string]any{"field": field},
	}
}

func NewIdempotencyConflict(message string) error {
	return NewDomainError(KindIdempotencyConflict, "IDEMPOTENCY_CONFLICT", message, nil)
}

func NewBackendError(err error) error {
	return &DomainError{
		Kind:    KindBackend,
		Code:    "BACKEND_UNAVAILABLE",
		Message: "helpdesk backend call failed",
		Err:     err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Kind:    KindInternal,
		Code:    "INTERNAL_ERROR",
		Message: "internal server error",
		Err:     err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Kind:    KindInternal,
		Code:    "INTERNAL_ERROR",
		Message: "internal server error",
		Err:     err,
	}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	if de := ToDomainError(err); de != nil {
		return de.Kind
	}
	return ""
}
