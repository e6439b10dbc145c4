package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound signals a missing collection.
	ErrNotFound = errors.New("collection not found")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrVersionNotFound signals a missing version snapshot.
	ErrVersionNotFound = errors.New("version not found")
	// ErrValidation signals an invalid request payload or schema violation.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized signals a request with no authenticated user where one is required.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden signals an authenticated user denied by an access predicate.
	ErrForbidden = errors.New("forbidden")
	// ErrHookFailed signals a lifecycle hook returning an error.
	ErrHookFailed = errors.New("hook failed")
	// ErrNotVersioned signals a version operation on a collection without versioning.
	ErrNotVersioned = errors.New("collection is not versioned")
)

// Violation is one field-level validation failure.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError wraps ErrValidation with every violating field, not just the first.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Message
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a validation error from field violations.
func NewValidationError(violations ...Violation) error {
	return &ValidationError{Violations: violations}
}

// HookError wraps ErrHookFailed with the hook type that failed and whether the
// storage mutation had already been committed when the hook ran.
type HookError struct {
	Hook      string
	Committed bool
	Err       error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s hook: %v", e.Hook, e.Err)
}

func (e *HookError) Unwrap() error { return ErrHookFailed }

// NewHookError creates a hook failure error.
func NewHookError(hook string, committed bool, err error) error {
	return &HookError{Hook: hook, Committed: committed, Err: err}
}
