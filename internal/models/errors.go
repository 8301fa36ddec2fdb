package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies user-facing failures.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindConflict   ErrorKind = "conflict"
	KindNotFound   ErrorKind = "not_found"
)

// UserError is a failure caused by the caller's input or by the current state.
// Message is shown to the user verbatim.
type UserError struct {
	Kind    ErrorKind
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

// Invalid creates a validation error.
func Invalid(format string, args ...any) *UserError {
	return &UserError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates an error for an action that the current state does not allow.
func Conflict(format string, args ...any) *UserError {
	return &UserError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates an error for a missing resource.
func NotFound(resource, id string) *UserError {
	return &UserError{Kind: KindNotFound, Message: fmt.Sprintf("%s not found: %s", resource, id)}
}

// AsUserError unwraps err into a *UserError when it is one.
func AsUserError(err error) (*UserError, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
