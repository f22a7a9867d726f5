// Package domainerrors carries typed error codes from services to transports.
//
// Services return *Error values created with New or Wrap; handlers translate
// them to HTTP status codes with ToHTTPStatus and never expose the wrapped
// cause. Stores return sentinel errors instead (see pkg/platform/sentinel).
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	CodeNotFound           Code = "not_found"
	CodeValidation         Code = "validation_error"
	CodeBadRequest         Code = "bad_request"
	CodeComplianceRejected Code = "compliance_rejected"
	CodeConflict           Code = "conflict"
	CodeProvider           Code = "provider_error"
	CodeStorage            Code = "storage_error"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
)

// Error is a coded error with a caller-safe message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same code, and the same message when
// the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && (t.Message == "" || e.Message == t.Message)
}

// New creates a coded error without an underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and a caller-safe message to err.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// As returns the outermost *Error in the chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether the outermost domain error in the chain has code.
func HasCode(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// Is is an alias of HasCode kept for handler readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a domain code to an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeComplianceRejected, CodeForbidden:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	case CodeProvider:
		return http.StatusBadGateway
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// IsClientSafe reports whether the message of a code may be shown to callers.
// Storage, provider and internal failures only expose their code.
func IsClientSafe(code Code) bool {
	switch code {
	case CodeStorage, CodeInternal, CodeProvider:
		return false
	default:
		return true
	}
}
