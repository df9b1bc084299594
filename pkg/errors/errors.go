// Package errors augments the standard errors
// provided by fmt (https://golang.org/src/fmt/errors.go)
// with a Wrap() method to wrap errors without resorting
// to fmt.Errorf("%w", err), and defines the error taxonomy
// shared by all thicket packages.
package errors

import (
	stderr "errors"
	"fmt"
)

var _ error = New("")

// Taxonomy of failure conditions surfaced by the filesystem.
//
// Every fallible public operation returns an error matching exactly one
// of these through errors.Is.
var (
	// ErrNotFound flags a missing block, a missing path segment or an
	// absent share counter.
	ErrNotFound = New("not found")

	// ErrDecryption flags a wrong key, corrupted ciphertext or malformed
	// padding.
	ErrDecryption = New("decryption failure")

	// ErrAlreadyExists flags a path collision on create.
	ErrAlreadyExists = New("already exists")

	// ErrInvalidInput flags an empty or mis-sized seed, or a malformed path.
	ErrInvalidInput = New("invalid input")

	// ErrBackend flags a store read or write failure. Callers retry these
	// themselves: there is no internal retry loop.
	ErrBackend = New("backend failure")

	// ErrNotInitialized flags an operation attempted before a session exists.
	ErrNotInitialized = New("not initialized")

	// ErrNotADirectory flags a path segment resolving to a file where a
	// directory is required.
	ErrNotADirectory = New("not a directory")

	// ErrNotAFile flags a read of a directory node as file content.
	ErrNotAFile = New("not a file")

	// ErrBadBlock flags a block whose content does not match its id.
	ErrBadBlock = New("block does not match its content id")
)

// New Error
func New(msg string) *Error {
	return &Error{msg: msg}
}

// Newf builds an Error from a format string
func Newf(format string, args ...interface{}) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// Error augments the standard error interface with a Wrap method.
//
// The main difference with github.com/pkg/errors is that we are wrapping
// errors from errors, not from text.
type Error struct {
	msg  string
	err  error
	base *Error
}

// Error message
func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

// Unwrap nested error
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Wrap returns a copy of e nesting the given error.
//
// The receiver is not modified, so the taxonomy sentinels above can be
// wrapped concurrently at call sites. The copy still matches the
// receiver under Is.
func (e *Error) Wrap(err error) *Error {
	return &Error{msg: e.msg, err: err, base: e}
}

// Wrapf nests a formatted message under e.
func (e *Error) Wrapf(format string, args ...interface{}) *Error {
	return e.Wrap(Newf(format, args...))
}

// Is of some error type?
func (e *Error) Is(target error) bool {
	return e == target || e.err == target || (e.base != nil && e.base.Is(target))
}

// As finds the first error in err's chain that matches target, and if so, sets target to that error value and returns true.
// (a shortcut to standard lib errors.As)
func As(err error, target interface{}) bool {
	return stderr.As(err, target)
}

// Is reports whether any error in err's chain matches target
// (a shortcut to standard lib errors.Is)
func Is(err, target error) bool {
	return stderr.Is(err, target)
}
