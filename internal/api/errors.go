package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a handler error with an HTTP status.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError returns an Error with the given status, code and message.
func NewError(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// WrapError returns an Error wrapping err.
func WrapError(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Message: err.Error(), Err: err}
}

// BadRequest is a 400 with code BAD_REQUEST.
func BadRequest(format string, args ...any) *Error {
	return NewError(http.StatusBadRequest, "BAD_REQUEST", fmt.Sprintf(format, args...))
}

// errorBody is the JSON body sent for an *Error.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// asError converts err to an *Error, mapping unknown errors to 500.
func asError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return &Error{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL",
		Message: http.StatusText(http.StatusInternalServerError),
		Err:     err,
	}, false
}
