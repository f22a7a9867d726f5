package webhook

import (
	"strconv"
	"strings"
	"time"

	id "dunning/pkg/domain"
	dErrors "dunning/pkg/domain-errors"
)

// EventCallEnded marks the terminal lifecycle event of a call.
const EventCallEnded = "call.ended"

// providerEventTypes maps provider-native names onto the envelope's names.
var providerEventTypes = map[string]string{
	"call_ended":         EventCallEnded, // retell
	"end-of-call-report": EventCallEnded, // vapi server messages
}

// NormalizeEventType returns the envelope name for a provider event type.
// Unknown types pass through unchanged.
func NormalizeEventType(t string) string {
	t = strings.TrimSpace(t)
	if mapped, ok := providerEventTypes[strings.ToLower(t)]; ok {
		return mapped
	}
	return t
}

// Event is one provider lifecycle notification as received.
type Event struct {
	EventType string
	CallID    id.CallID
	Data      map[string]any
	Metadata  map[string]any
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.EventType) == "" {
		return dErrors.New(dErrors.CodeValidation, "event_type is required")
	}
	if strings.TrimSpace(e.CallID.String()) == "" {
		return dErrors.New(dErrors.CodeValidation, "call_id is required")
	}
	return nil
}

// SafeData is the non-PHI projection of an event that is stored in clear
// and handed to post-call hooks.
type SafeData struct {
	CallID          id.CallID `json:"call_id"`
	EventType       string    `json:"event_type"`
	Timestamp       time.Time `json:"timestamp"`
	CallDuration    *float64  `json:"call_duration"`
	CallStatus      string    `json:"call_status,omitempty"`
	ActionItems     []any     `json:"action_items"`
	ConsentObtained bool      `json:"consent_obtained"`
}

// protectedData is sealed before it is stored. Only captured when the
// provider marks the event with metadata.store_phi.
type protectedData struct {
	ResidentID  string `json:"resident_id,omitempty"`
	ContactInfo string `json:"contact_info,omitempty"`
}

// Ack is returned for every accepted event, including redeliveries.
type Ack struct {
	EventID   int64
	Duplicate bool
}

func safeData(e Event, received time.Time) SafeData {
	out := SafeData{
		CallID:      e.CallID,
		EventType:   e.EventType,
		Timestamp:   received,
		ActionItems: []any{},
	}
	if d, ok := number(e.Data["duration"]); ok {
		out.CallDuration = &d
	}
	if s, ok := e.Data["status"].(string); ok {
		out.CallStatus = s
	}
	if items, ok := e.Data["actionItems"].([]any); ok {
		out.ActionItems = items
	}
	out.ConsentObtained, _ = e.Metadata["consent"].(bool)
	return out
}

func protected(e Event) (protectedData, bool) {
	if store, _ := e.Metadata["store_phi"].(bool); !store {
		return protectedData{}, false
	}
	p := protectedData{}
	p.ResidentID = stringish(e.Metadata["resident_id"])
	p.ContactInfo = stringish(e.Metadata["contact_number"])
	return p, true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// stringish accepts ids sent as JSON numbers as well as strings.
func stringish(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}
