package outreach

import (
	"fmt"
	"strings"
	"time"

	id "dunning/pkg/domain"
	dErrors "dunning/pkg/domain-errors"
)

// Payment methods accepted by ProcessPayment.
const (
	MethodPhone  = "phone"
	MethodOnline = "online"
	MethodMail   = "mail"
)

// MaxNotesLength bounds one conversation note.
const MaxNotesLength = 10000

// SMSRequest carries what the reminder text names. ResidentID is optional and
// only links the reminder row.
type SMSRequest struct {
	ContactNumber string
	ContactName   string
	ResidentID    id.ResidentID
	ResidentName  string
	Balance       id.Cents
	DueDate       string
	FacilityName  string
}

func (r SMSRequest) Validate() error {
	if strings.TrimSpace(r.ContactNumber) == "" {
		return dErrors.New(dErrors.CodeValidation, "contact_number is required")
	}
	if strings.TrimSpace(r.ResidentName) == "" {
		return dErrors.New(dErrors.CodeValidation, "resident_name is required")
	}
	if r.Balance < 0 {
		return dErrors.New(dErrors.CodeValidation, "balance cannot be negative")
	}
	return nil
}

// SMSResult identifies the sent message and its reminder row.
type SMSResult struct {
	MessageID  string
	ReminderID int64
}

// ScheduleRequest asks for a reminder call at ScheduleTime.
type ScheduleRequest struct {
	ResidentID   id.ResidentID
	ContactName  string
	ScheduleTime time.Time
}

func (r ScheduleRequest) Validate() error {
	if r.ResidentID == "" {
		return dErrors.New(dErrors.CodeValidation, "resident_id is required")
	}
	if r.ScheduleTime.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "schedule_time is required")
	}
	return nil
}

type NotesRequest struct {
	CallID     id.CallID
	ResidentID id.ResidentID
	Notes      string
}

func (r NotesRequest) Validate() error {
	if r.CallID == "" {
		return dErrors.New(dErrors.CodeValidation, "call_id is required")
	}
	if strings.TrimSpace(r.Notes) == "" {
		return dErrors.New(dErrors.CodeValidation, "notes are required")
	}
	if len(r.Notes) > MaxNotesLength {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("notes exceed %d characters", MaxNotesLength))
	}
	return nil
}

type PaymentRequest struct {
	ResidentID id.ResidentID
	Method     string
	Amount     id.Cents
}

func (r PaymentRequest) Validate() error {
	if r.ResidentID == "" {
		return dErrors.New(dErrors.CodeValidation, "resident_id is required")
	}
	switch r.Method {
	case MethodPhone, MethodOnline, MethodMail:
	default:
		return dErrors.New(dErrors.CodeValidation, "payment_method must be phone, online or mail")
	}
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be greater than zero")
	}
	return nil
}
