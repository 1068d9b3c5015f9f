// internal/httperr/httperr.go

// Package httperr carries the error taxonomy of the callable operations:
// every failure surfaced to a client is one of a small set of codes plus a
// stable human-readable message.
package httperr

import (
	"errors"
	"net/http"
)

// Code classifies a callable-operation failure.
type Code string

const (
	CodeUnauthenticated  Code = "unauthenticated"
	CodeInvalidArgument  Code = "invalid-argument"
	CodeNotFound         Code = "not-found"
	CodePermissionDenied Code = "permission-denied"
	CodeInternal         Code = "internal"
)

// Error is a coded, client-visible failure.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// HTTPStatus maps the code to its HTTP status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodePermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func Unauthenticated(msg string) *Error {
	return &Error{Code: CodeUnauthenticated, Message: msg}
}

func InvalidArgument(msg string) *Error {
	return &Error{Code: CodeInvalidArgument, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

func PermissionDenied(msg string) *Error {
	return &Error{Code: CodePermissionDenied, Message: msg}
}

func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// From extracts the coded error, wrapping anything else as an internal
// error with a generic message so internals never leak to clients.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeInternal, Message: "internal error"}
}

// Write reports the failure on an HTTP response.
func Write(w http.ResponseWriter, err error) {
	e := From(err)
	http.Error(w, e.Message, e.HTTPStatus())
}
