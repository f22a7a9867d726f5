// Package providers holds the failure taxonomy shared by every third-party
// adapter (voice agents, SMS, calendar).
package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	dErrors "dunning/pkg/domain-errors"
)

// ErrorCategory defines the normalized failure taxonomy
type ErrorCategory string

const (
	// ErrorTimeout indicates the provider took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the provider returned invalid/malformed data
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorAuthentication indicates credential or permission issues
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorProviderOutage indicates the provider is unavailable
	ErrorProviderOutage ErrorCategory = "provider_outage"

	// ErrorRejected indicates the provider refused the request as invalid
	ErrorRejected ErrorCategory = "rejected"

	// ErrorNotFound indicates the requested call or event doesn't exist
	ErrorNotFound ErrorCategory = "not_found"

	// ErrorRateLimited indicates too many requests
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorInternal indicates an unexpected internal error
	ErrorInternal ErrorCategory = "internal"
)

// ProviderError wraps provider failures with normalized categorization.
// Message carries the provider's own error payload so operators can act on it.
type ProviderError struct {
	Category   ErrorCategory
	ProviderID string
	Operation  string
	StatusCode int
	Message    string
	Underlying error
	Retryable  bool
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s %s [%s]: %s: %v", e.ProviderID, e.Operation, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider %s %s [%s]: %s", e.ProviderID, e.Operation, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// NewProviderError creates a new normalized provider error
func NewProviderError(category ErrorCategory, providerID, operation, message string, underlying error) *ProviderError {
	retryable := category == ErrorTimeout ||
		category == ErrorProviderOutage ||
		category == ErrorRateLimited

	return &ProviderError{
		Category:   category,
		ProviderID: providerID,
		Operation:  operation,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// FromStatus classifies a non-2xx response. body is the provider's payload.
func FromStatus(providerID, operation string, status int, body string) *ProviderError {
	var category ErrorCategory
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		category = ErrorAuthentication
	case status == http.StatusNotFound:
		category = ErrorNotFound
	case status == http.StatusTooManyRequests:
		category = ErrorRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		category = ErrorTimeout
	case status >= 500:
		category = ErrorProviderOutage
	case status >= 400:
		category = ErrorRejected
	default:
		category = ErrorBadData
	}
	pe := NewProviderError(category, providerID, operation, body, nil)
	pe.StatusCode = status
	return pe
}

// FromTransport classifies a failure that produced no response.
func FromTransport(providerID, operation string, err error) *ProviderError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewProviderError(ErrorTimeout, providerID, operation, "request timed out", err)
	}
	return NewProviderError(ErrorProviderOutage, providerID, operation, "request failed", err)
}

// IsRetryable checks if an error is worth retrying
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error
func GetCategory(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}

// ToDomain converts a provider failure into a provider_error (or timeout)
// domain error. The provider payload stays in the wrapped cause.
func ToDomain(err error, message string) error {
	if err == nil {
		return nil
	}
	if GetCategory(err) == ErrorTimeout {
		return dErrors.Wrap(err, dErrors.CodeTimeout, message)
	}
	return dErrors.Wrap(err, dErrors.CodeProvider, message)
}
