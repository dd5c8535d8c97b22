package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failure so the API layer can map it to a status code.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindConflict    ErrorKind = "conflict"
	KindNoop        ErrorKind = "noop"
	KindNotFound    ErrorKind = "not_found"
	KindForbidden   ErrorKind = "forbidden"
	KindUnavailable ErrorKind = "unavailable"
)

// AppError is a classified domain error. Code is a stable machine-readable reason.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(kind ErrorKind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

func Validation(code, message string) *AppError {
	return NewAppError(KindValidation, code, message)
}

func Conflict(code, message string) *AppError {
	return NewAppError(KindConflict, code, message)
}

// Noop signals that the requested change has already happened.
func Noop(code, message string) *AppError {
	return NewAppError(KindNoop, code, message)
}

func NotFound(code, message string) *AppError {
	return NewAppError(KindNotFound, code, message)
}

func Forbidden(code, message string) *AppError {
	return NewAppError(KindForbidden, code, message)
}

func Unavailable(code, message string, err error) *AppError {
	return &AppError{Kind: KindUnavailable, Code: code, Message: message, Err: err}
}

// AsAppError extracts the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// HTTPStatus maps an error to the response status used by the handlers.
func HTTPStatus(err error) int {
	appErr, ok := AsAppError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch appErr.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict, KindNoop:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
