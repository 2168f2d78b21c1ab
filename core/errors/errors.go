// Package errors provides coded, structured errors compatible with the standard library.
//
// Overview:
//   - Responsibility: Classify failures so the CLI can choose exit behaviour and messages
//   - Key Types: Code for classification, E for structured errors
//   - Concurrency Model: All functions are safe for concurrent use
//   - Error Semantics: E unwraps to its cause, so errors.Is/As see through it
//   - Performance Notes: One allocation per constructed error
//
// Usage:
//
//	err := errors.New(errors.CodeFailedPrecondition, "pyproject.toml not found")
//	wrapped := errors.Wrap(errors.CodeInternal, "write document", ioErr)
//	code := errors.CodeOf(err)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents an error classification code.
type Code string

// Error codes used across workerkit.
const (
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeFailedPrecondition Code = "FAILED_PRECONDITION"
	CodeInternal           Code = "INTERNAL"
	CodeUnavailable        Code = "UNAVAILABLE"
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeDataLoss           Code = "DATA_LOSS"
	CodeAborted            Code = "ABORTED"
)

// E is a structured error with a code, the failing operation, and an optional cause.
type E struct {
	Code Code   // Error classification code
	Op   string // Operation that failed
	Err  error  // Underlying error (may be nil)
	Msg  string // Human-readable message
}

// Error implements the error interface.
func (e *E) Error() string {
	parts := []string{string(e.Code)}
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.Msg != "" {
		parts = append(parts, e.Msg)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying error.
func (e *E) Unwrap() error {
	return e.Err
}

// New creates a structured error with the given code and message.
func New(code Code, msg string) error {
	return &E{Code: code, Msg: msg}
}

// Wrap creates a structured error around err for operation op.
// Wrap returns nil when err is nil.
func Wrap(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{Code: code, Op: op, Err: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(code Code, op string, err error, format string, args ...any) error {
	return &E{Code: code, Op: op, Err: err, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the outermost code from err, or "" when err carries none.
func CodeOf(err error) Code {
	var e *E
	if err != nil && errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
