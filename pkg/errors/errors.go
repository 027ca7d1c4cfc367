// Package errors provides structured error types for depmap.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the HTTP API
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes fall into four groups:
//   - Parse failures (SYNTAX_ERROR, MISSING_NAME), fatal for one descriptor only
//   - Build failures (EMPTY_INPUT, INVALID_PACKAGE), fatal for a graph build
//   - Build diagnostics (DUPLICATE_*, UNRESOLVED_DEPENDENCY), never returned as errors
//   - Query failures (PACKAGE_NOT_FOUND, NO_PATH, INVALID_INPUT)
//
// # Usage
//
//	err := errors.New(errors.ErrCodePackageNotFound, "package %q not found", name)
//	if errors.Is(err, errors.ErrCodePackageNotFound) {
//	    // Handle missing package
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInternal, origErr, "failed to load snapshot %s", id)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Parse errors
	ErrCodeSyntax      Code = "SYNTAX_ERROR"
	ErrCodeMissingName Code = "MISSING_NAME"

	// Build errors
	ErrCodeEmptyInput     Code = "EMPTY_INPUT"
	ErrCodeInvalidPackage Code = "INVALID_PACKAGE"

	// Build diagnostics, reported as warnings rather than returned
	ErrCodeDuplicateName  Code = "DUPLICATE_NAME"
	ErrCodeDuplicateAlias Code = "DUPLICATE_ALIAS"
	ErrCodeUnresolved     Code = "UNRESOLVED_DEPENDENCY"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeNotFound         Code = "NOT_FOUND"
	ErrCodePackageNotFound  Code = "PACKAGE_NOT_FOUND"
	ErrCodeNoPath           Code = "NO_PATH"
	ErrCodeSnapshotNotFound Code = "SNAPSHOT_NOT_FOUND"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
	ErrCodeCanceled    Code = "CANCELED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Canceled converts a context error into a CANCELED error, keeping the
// context error as the cause so errors.Is(err, context.Canceled) still holds.
func Canceled(cause error) *Error {
	return Wrap(ErrCodeCanceled, cause, "operation canceled")
}
