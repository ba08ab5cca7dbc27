// Package apperr classifies business failures and carries them to the
// HTTP boundary, where every outcome is rendered as the same result
// envelope. Internal details of unclassified errors never reach the
// response body.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindTransient
)

type Error struct {
	Kind        Kind
	Message     string
	FieldErrors map[string][]string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation builds a field-level failure. The message stays generic;
// per-field messages live in the map.
func Validation(fields map[string][]string) *Error {
	return &Error{
		Kind:        KindValidation,
		Message:     "please check the errors below",
		FieldErrors: fields,
	}
}

// Result is the uniform envelope every action returns to the client.
type Result struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	FieldErrors map[string][]string `json:"field_errors,omitempty"`
	Data        any                 `json:"data,omitempty"`
}

func OK(message string, data any) Result {
	return Result{Success: true, Message: message, Data: data}
}

// ToResult converts any error into the envelope plus the HTTP status it
// should ship with. Unclassified errors collapse to a generic message.
func ToResult(err error) (int, Result) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, Result{
			Success: false,
			Message: "something went wrong",
		}
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case KindValidation:
		status = http.StatusBadRequest
	case KindNotFound:
		status = http.StatusNotFound
	case KindConflict:
		status = http.StatusConflict
	case KindUnauthorized:
		status = http.StatusUnauthorized
	case KindTransient:
		status = http.StatusServiceUnavailable
	case KindInternal:
		return http.StatusInternalServerError, Result{
			Success: false,
			Message: "something went wrong",
		}
	}

	return status, Result{
		Success:     false,
		Message:     appErr.Message,
		FieldErrors: appErr.FieldErrors,
	}
}

func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
