// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for the drmseq library.

package api

import "fmt"

// Common errors used across the library.
var (
	ErrOutputInactive     = fmt.Errorf("output has no active pipe")
	ErrFlipPending        = fmt.Errorf("page flip already pending")
	ErrNotMaster          = fmt.Errorf("device session is not display master")
	ErrNotSupported       = fmt.Errorf("operation not supported")
	ErrBufferIncompatible = fmt.Errorf("buffer cannot be bound to display pipe")
	ErrDeviceClosed       = fmt.Errorf("device is closed")
	ErrAlreadyRegistered  = fmt.Errorf("wakeup already registered for this generation")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeOutputInactive
	ErrCodeFlipPending
	ErrCodeNotMaster
	ErrCodeNotSupported
	ErrCodeBufferIncompatible
	ErrCodeDeviceClosed
	ErrCodeInternal
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the wrapped error to errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches an underlying error, usually one of the sentinels above.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
