// Package records is the persistence contract for residents, reminders,
// payments, appointments, call attempts, notes and call events.
//
// Two implementations exist: PostgresStore for deployments and MemoryStore
// for tests and local runs without DATABASE_URL. Both return sentinel errors:
// ErrNotFound for missing rows, ErrAlreadyUsed when a uniqueness key (call_id,
// event hash) was already recorded and ErrConflict for competing writes.
package records

import (
	"encoding/json"
	"strings"
	"time"

	id "dunning/pkg/domain"
)

// Resident is one debtor row, owned by the import job.
type Resident struct {
	ResidentID       id.ResidentID
	FirstName        string
	LastName         string
	ContactFirstName string
	ContactLastName  string
	ContactNumber    string
	DateOfBirth      string
	Balance          id.Cents
	DueDate          *time.Time
	FacilityName     string
	FacilityCode     string
	PayerDesc        string
	UpdatedAt        time.Time
}

// FullName joins the resident's names.
func (r Resident) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// ContactName joins the contact's names.
func (r Resident) ContactName() string {
	return strings.TrimSpace(r.ContactFirstName + " " + r.ContactLastName)
}

// ResidentFilter narrows a resident search. Every set field must match.
type ResidentFilter struct {
	ResidentID   string
	ResidentName string
	DateOfBirth  string
	ContactName  string
}

// IsEmpty reports whether no filter is set.
func (f ResidentFilter) IsEmpty() bool {
	return f.ResidentID == "" && f.ResidentName == "" && f.DateOfBirth == "" && f.ContactName == ""
}

// ReminderType is the channel a reminder was created for.
type ReminderType string

const (
	ReminderCall ReminderType = "call"
	ReminderSMS  ReminderType = "sms"
)

// Reminder is an immutable scheduled contact. A reschedule inserts a new row
// whose Supersedes points at the previous one.
type Reminder struct {
	ReminderID   int64
	ResidentID   *id.ResidentID
	ContactName  string
	Type         ReminderType
	ScheduleTime time.Time
	MessageID    string
	Supersedes   *int64
	CreatedAt    time.Time
}

// PaymentStatus values.
const (
	PaymentPending   = "pending"
	PaymentProcessed = "processed"
)

type Payment struct {
	PaymentID  int64
	ResidentID id.ResidentID
	Amount     id.Cents
	Method     string
	Status     string
	CreatedAt  time.Time
}

type Appointment struct {
	AppointmentID   int64
	CallID          id.CallID
	ResidentID      id.ResidentID
	CalendarEventID id.EventID
	Title           string
	Description     string
	StartTime       time.Time
	EndTime         time.Time
	CreatedAt       time.Time
}

// CallAttempt is written once per call_id when a call reaches a terminal state.
// Artifacts are optional; providers do not guarantee them.
type CallAttempt struct {
	CallID       id.CallID
	ResidentID   id.ResidentID
	Phone        string
	Direction    string
	Provider     string
	Status       string
	Cost         *float64
	Transcript   *string
	RecordingURL *string
	Analysis     json.RawMessage
	CreatedAt    time.Time
}

// ConversationNote stores operator notes. PHIData is a sealed blob.
type ConversationNote struct {
	NoteID    int64
	CallID    id.CallID
	Notes     string
	PHIData   string
	CreatedAt time.Time
}

// CallEvent is one received provider webhook. EventHash identifies redeliveries.
type CallEvent struct {
	EventID    int64
	CallID     id.CallID
	EventType  string
	EventHash  string
	SafeData   json.RawMessage
	PHIData    *string
	ReceivedAt time.Time
}
