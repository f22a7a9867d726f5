// Package domain holds the typed identifiers shared across services.
//
// Identifiers cross trust boundaries (HTTP bodies, provider webhooks, Excel
// imports) and are parsed once at the edge with the Parse* helpers. Services
// accept the typed values only.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "dunning/pkg/domain-errors"
)

// ResidentID is the facility-issued resident identifier (e.g. "600999").
type ResidentID string

// CallID is the voice-provider-issued call identifier.
type CallID string

// OperatorID identifies an authenticated operator (JWT subject).
type OperatorID uuid.UUID

// EventID identifies a calendar event at the calendar provider.
type EventID string

func (r ResidentID) String() string { return string(r) }
func (c CallID) String() string     { return string(c) }
func (e EventID) String() string    { return string(e) }

func (o OperatorID) String() string { return uuid.UUID(o).String() }

// IsNil reports whether the operator id is the zero UUID.
func (o OperatorID) IsNil() bool { return uuid.UUID(o) == uuid.Nil }

// ParseResidentID trims and validates a resident identifier.
func ParseResidentID(s string) (ResidentID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "resident_id is required")
	}
	if len(s) > 64 {
		return "", dErrors.New(dErrors.CodeValidation, "resident_id is too long")
	}
	return ResidentID(s), nil
}

// ParseCallID validates a provider call identifier.
func ParseCallID(s string) (CallID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "call_id is required")
	}
	if len(s) > 128 {
		return "", dErrors.New(dErrors.CodeValidation, "call_id is too long")
	}
	return CallID(s), nil
}

// ParseOperatorID parses a non-nil UUID operator identifier.
func ParseOperatorID(s string) (OperatorID, error) {
	if s == "" {
		return OperatorID{}, dErrors.New(dErrors.CodeValidation, "operator id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return OperatorID{}, dErrors.New(dErrors.CodeValidation, "invalid operator id")
	}
	if u == uuid.Nil {
		return OperatorID{}, dErrors.New(dErrors.CodeValidation, "operator id cannot be nil")
	}
	return OperatorID(u), nil
}
