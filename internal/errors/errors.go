package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable failure category mapped to process exit codes.
type Code int

const (
	CodeSuccess  Code = 0
	CodeInternal Code = 1
	CodeUsage    Code = 2

	CodeAuth        Code = 10
	CodeRateLimited Code = 11
	CodePartial     Code = 15

	// Validation failures, raised before any chain or network call.
	CodeInvalidAmount Code = 20
	CodeUnsupported   Code = 21
	CodeInvalidRoute  Code = 22
	CodeRouteMismatch Code = 23

	// Execution failures, raised after at least one I/O attempt.
	CodeUserRejected Code = 30
	CodeBusinessRule Code = 31
	CodeUnavailable  Code = 32
	CodeSigner       Code = 33
)

// Error is a typed error that carries a stable code through the call stack.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf extracts the typed code, defaulting to CodeInternal for foreign errors.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	if typed, ok := As(err); ok {
		return typed.Code
	}
	return CodeInternal
}

// IsValidation reports whether err was raised by input validation, before any
// chain call was attempted.
func IsValidation(err error) bool {
	switch CodeOf(err) {
	case CodeUsage, CodeInvalidAmount, CodeUnsupported, CodeInvalidRoute, CodeRouteMismatch:
		return true
	default:
		return false
	}
}

func ExitCode(err error) int {
	if err == nil {
		return int(CodeSuccess)
	}
	return int(CodeOf(err))
}
