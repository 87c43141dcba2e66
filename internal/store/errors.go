package store

import (
	"errors"
	"fmt"
)

// Code categorizes store errors.
type Code string

const (
	// CodeDuplicateKey indicates Create was given an identifier already in use.
	CodeDuplicateKey Code = "DUPLICATE_KEY"

	// CodeNotFound indicates Update was given an identifier not in the store.
	CodeNotFound Code = "NOT_FOUND"

	// CodeIdentifierImmutable indicates a patch tried to change a record's id.
	CodeIdentifierImmutable Code = "IDENTIFIER_IMMUTABLE"

	// CodeInvalidRecord indicates a record failed validation.
	CodeInvalidRecord Code = "INVALID_RECORD"

	// CodeClosed indicates the store was latched by an emergency flush or Close.
	CodeClosed Code = "CLOSED"

	// CodePersistFailed indicates the snapshot could not be written.
	CodePersistFailed Code = "PERSIST_FAILED"
)

// Error is returned by repository operations. The store is never modified
// by an operation that returns an Error.
type Error struct {
	Code    Code
	Store   string
	ID      int64
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s (store=%s)", e.Code, e.Message, e.Store)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PersistError reports a failed snapshot write.
type PersistError struct {
	Store string
	Path  string
	Err   error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s: write %s (store=%s): %v", CodePersistFailed, e.Path, e.Store, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the store error code carried by err, or "" if err did
// not come from the store.
func ErrorCode(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	var pe *PersistError
	if errors.As(err, &pe) {
		return CodePersistFailed
	}
	return ""
}

// IsDuplicateKey reports whether err is a DUPLICATE_KEY error.
func IsDuplicateKey(err error) bool {
	return ErrorCode(err) == CodeDuplicateKey
}

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool {
	return ErrorCode(err) == CodeNotFound
}

// IsClosed reports whether err is a CLOSED error.
func IsClosed(err error) bool {
	return ErrorCode(err) == CodeClosed
}

func (s *Store[T]) errDuplicate(id int64) *Error {
	return &Error{Code: CodeDuplicateKey, Store: s.name, ID: id, Message: fmt.Sprintf("key %d already in use", id)}
}

func (s *Store[T]) errNotFound(id int64) *Error {
	return &Error{Code: CodeNotFound, Store: s.name, ID: id, Message: fmt.Sprintf("key %d not found", id)}
}

func (s *Store[T]) errClosed() *Error {
	return &Error{Code: CodeClosed, Store: s.name, Message: "store is closed"}
}
