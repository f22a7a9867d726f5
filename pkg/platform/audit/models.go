package audit

import (
	"context"
	"time"

	"dunning/pkg/platform/privacy"
)

// EventCategory classifies audit events by their retention needs.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance (contact
	// attempts, rejected contact windows, verification outcomes).
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers authentication and webhook signature failures.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. SubjectHash is
// the SHA-256 of the resident id; raw identifiers never reach the audit trail.
type Event struct {
	Category    EventCategory
	Timestamp   time.Time
	Action      string
	SubjectHash string
	CallID      string
	Channel     string
	Decision    string
	Reason      string
	OperatorID  string
	RequestID   string
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subjectHash string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

type AuditEvent string

const (
	EventComplianceRejected   AuditEvent = "compliance_rejected"
	EventIdentityVerified     AuditEvent = "identity_verified"
	EventIdentityNotVerified  AuditEvent = "identity_not_verified"
	EventSMSSent              AuditEvent = "sms_sent"
	EventCallScheduled        AuditEvent = "call_scheduled"
	EventCallRescheduled      AuditEvent = "call_rescheduled"
	EventAppointmentBooked    AuditEvent = "appointment_booked"
	EventAppointmentConflict  AuditEvent = "appointment_conflict"
	EventCallInitiated        AuditEvent = "call_initiated"
	EventCallCompleted        AuditEvent = "call_completed"
	EventCallFailed           AuditEvent = "call_failed"
	EventNotesRecorded        AuditEvent = "notes_recorded"
	EventPaymentProcessed     AuditEvent = "payment_processed"
	EventWebhookReceived      AuditEvent = "webhook_received"
	EventWebhookRejected      AuditEvent = "webhook_rejected"
	EventResidentsImported    AuditEvent = "residents_imported"
	EventOperatorAuthRejected AuditEvent = "operator_auth_rejected"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventComplianceRejected:  CategoryCompliance,
	EventIdentityVerified:    CategoryCompliance,
	EventIdentityNotVerified: CategoryCompliance,
	EventSMSSent:             CategoryCompliance,
	EventCallScheduled:       CategoryCompliance,
	EventCallRescheduled:     CategoryCompliance,
	EventAppointmentBooked:   CategoryCompliance,
	EventCallInitiated:       CategoryCompliance,
	EventCallCompleted:       CategoryCompliance,
	EventPaymentProcessed:    CategoryCompliance,

	EventWebhookRejected:      CategorySecurity,
	EventOperatorAuthRejected: CategorySecurity,

	EventAppointmentConflict: CategoryOperations,
	EventCallFailed:          CategoryOperations,
	EventNotesRecorded:       CategoryOperations,
	EventWebhookReceived:     CategoryOperations,
	EventResidentsImported:   CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// SubjectHash hashes a resident id for the SubjectHash field.
func SubjectHash(residentID string) string {
	return privacy.HashID(residentID)
}
