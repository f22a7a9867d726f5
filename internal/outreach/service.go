// Package outreach holds the contact actions the voice agent and operators
// trigger besides calls and bookings: reminder texts, scheduled reminder
// calls, conversation notes and payment records, plus the read-only listings.
//
// Every contact action checks the compliance window before it writes or calls
// anything.
package outreach

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"dunning/internal/compliance"
	"dunning/internal/platform/config"
	"dunning/internal/platform/metrics"
	"dunning/internal/providers"
	"dunning/internal/providers/sms"
	"dunning/internal/records"
	id "dunning/pkg/domain"
	dErrors "dunning/pkg/domain-errors"
	"dunning/pkg/platform/audit"
	"dunning/pkg/platform/phi"
	"dunning/pkg/platform/privacy"
	"dunning/pkg/platform/sentinel"
	"dunning/pkg/requestcontext"
)

type Store interface {
	FindResident(ctx context.Context, residentID id.ResidentID) (*records.Resident, error)
	InsertReminder(ctx context.Context, r records.Reminder) (*records.Reminder, error)
	LatestReminder(ctx context.Context, residentID id.ResidentID, typ records.ReminderType) (*records.Reminder, error)
	InsertNote(ctx context.Context, n records.ConversationNote) (*records.ConversationNote, error)
	InsertPayment(ctx context.Context, p records.Payment) (*records.Payment, error)
	ListCallAttempts(ctx context.Context, limit int) ([]records.CallAttempt, error)
	ListReminders(ctx context.Context, limit int) ([]records.Reminder, error)
	ListPayments(ctx context.Context, limit int) ([]records.Payment, error)
}

// SMSSender delivers one text message and returns the provider message id.
type SMSSender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

type Gate interface {
	Check(ctx context.Context, subject compliance.Subject) (compliance.Decision, error)
}

// Sealer encrypts PHI before it is stored.
type Sealer interface {
	SealJSON(v any, aad []byte) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store    Store
	sms      SMSSender
	gate     Gate
	outreach config.OutreachConfig
	sealer   Sealer
	auditor  AuditPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Service)

func WithAuditor(a AuditPublisher) Option {
	return func(s *Service) { s.auditor = a }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithSealer enables PHI capture on notes. Without it the resident id is
// dropped from notes.
func WithSealer(sealer Sealer) Option {
	return func(s *Service) { s.sealer = sealer }
}

func NewService(store Store, sender SMSSender, gate Gate, cfg config.OutreachConfig, opts ...Option) *Service {
	s := &Service{
		store:    store,
		sms:      sender,
		gate:     gate,
		outreach: cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendSMS texts a balance reminder and records an sms reminder row. Outside
// the contact window nothing is sent and nothing is written.
func (s *Service) SendSMS(ctx context.Context, req SMSRequest) (*SMSResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkWindow(ctx, compliance.ChannelSMS, req.ContactNumber, req.ResidentID); err != nil {
		return nil, err
	}

	start := time.Now()
	messageID, err := s.sms.Send(ctx, req.ContactNumber, ReminderText(s.outreach.OrgName, s.outreach.PaymentURL, req))
	s.metrics.ObserveProvider(sms.ProviderName, "send_message", start)
	if err != nil {
		s.metrics.IncProviderError(sms.ProviderName, string(providers.GetCategory(err)))
		s.metrics.IncContactAttempt(string(compliance.ChannelSMS), "failed")
		s.logger.ErrorContext(ctx, "sms send failed",
			"to", privacy.MaskPhone(req.ContactNumber),
			"error", err,
		)
		return nil, providers.ToDomain(err, "sms provider failed to send message")
	}
	s.metrics.IncContactAttempt(string(compliance.ChannelSMS), "sent")

	reminder := records.Reminder{
		ContactName:  strings.TrimSpace(req.ContactName),
		Type:         records.ReminderSMS,
		ScheduleTime: requestcontext.Now(ctx),
		MessageID:    messageID,
		CreatedAt:    requestcontext.Now(ctx),
	}
	if req.ResidentID != "" {
		rid := req.ResidentID
		reminder.ResidentID = &rid
	}
	saved, err := s.store.InsertReminder(ctx, reminder)
	if err != nil {
		s.logger.ErrorContext(ctx, "sms sent but reminder insert failed",
			"message_id", messageID,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to record sms reminder")
	}

	s.emit(ctx, audit.Event{
		Action:      string(audit.EventSMSSent),
		SubjectHash: subjectHash(req.ResidentID),
		Channel:     string(compliance.ChannelSMS),
		Decision:    "sent",
	})
	s.logger.InfoContext(ctx, "sms reminder sent",
		"to", privacy.MaskPhone(req.ContactNumber),
		"message_id", messageID,
		"reminder_id", saved.ReminderID,
	)
	return &SMSResult{MessageID: messageID, ReminderID: saved.ReminderID}, nil
}

// ScheduleCall records a reminder call for a later time.
func (s *Service) ScheduleCall(ctx context.Context, req ScheduleRequest) (*records.Reminder, error) {
	return s.scheduleCall(ctx, req, false)
}

// RescheduleCall records a new reminder call. The previous reminder stays as
// it was; the new row points at it through Supersedes.
func (s *Service) RescheduleCall(ctx context.Context, req ScheduleRequest) (*records.Reminder, error) {
	return s.scheduleCall(ctx, req, true)
}

func (s *Service) scheduleCall(ctx context.Context, req ScheduleRequest, reschedule bool) (*records.Reminder, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	phone, err := s.contactNumber(ctx, req.ResidentID)
	if err != nil {
		return nil, err
	}
	if err := s.checkWindow(ctx, compliance.ChannelCall, phone, req.ResidentID); err != nil {
		return nil, err
	}

	rid := req.ResidentID
	reminder := records.Reminder{
		ResidentID:   &rid,
		ContactName:  strings.TrimSpace(req.ContactName),
		Type:         records.ReminderCall,
		ScheduleTime: req.ScheduleTime,
		CreatedAt:    requestcontext.Now(ctx),
	}
	action := audit.EventCallScheduled
	if reschedule {
		action = audit.EventCallRescheduled
		prev, err := s.store.LatestReminder(ctx, req.ResidentID, records.ReminderCall)
		switch {
		case err == nil:
			reminder.Supersedes = &prev.ReminderID
		case !errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to load previous reminder")
		}
	}

	saved, err := s.store.InsertReminder(ctx, reminder)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to record reminder call")
	}
	s.emit(ctx, audit.Event{
		Action:      string(action),
		SubjectHash: subjectHash(req.ResidentID),
		Channel:     string(compliance.ChannelCall),
		Decision:    "scheduled",
	})
	s.logger.InfoContext(ctx, "reminder call scheduled",
		"reminder_id", saved.ReminderID,
		"schedule_time", saved.ScheduleTime,
		"reschedule", reschedule,
	)
	return saved, nil
}

// RecordNotes stores operator notes for a call. The resident id is sealed
// into the PHI blob, bound to the call id.
func (s *Service) RecordNotes(ctx context.Context, req NotesRequest) (*records.ConversationNote, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	note := records.ConversationNote{
		CallID:    req.CallID,
		Notes:     strings.TrimSpace(req.Notes),
		CreatedAt: requestcontext.Now(ctx),
	}
	if req.ResidentID != "" {
		if s.sealer == nil {
			s.logger.WarnContext(ctx, "no PHI key configured, resident id not stored with note", "call_id", req.CallID)
		} else {
			sealed, err := s.sealer.SealJSON(map[string]string{"resident_id": req.ResidentID.String()}, phi.AAD("conversation_note", req.CallID.String()))
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to protect note")
			}
			note.PHIData = sealed
		}
	}

	saved, err := s.store.InsertNote(ctx, note)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to record notes")
	}
	s.emit(ctx, audit.Event{
		Action:      string(audit.EventNotesRecorded),
		SubjectHash: subjectHash(req.ResidentID),
		CallID:      req.CallID.String(),
	})
	s.logger.InfoContext(ctx, "conversation notes recorded", "note_id", saved.NoteID, "call_id", req.CallID)
	return saved, nil
}

// ProcessPayment records a payment promise. No money moves; the row is
// picked up by back-office processing.
func (s *Service) ProcessPayment(ctx context.Context, req PaymentRequest) (*records.Payment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	saved, err := s.store.InsertPayment(ctx, records.Payment{
		ResidentID: req.ResidentID,
		Amount:     req.Amount,
		Method:     req.Method,
		Status:     records.PaymentPending,
		CreatedAt:  requestcontext.Now(ctx),
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to record payment")
	}
	s.emit(ctx, audit.Event{
		Action:      string(audit.EventPaymentProcessed),
		SubjectHash: subjectHash(req.ResidentID),
		Decision:    req.Method,
	})
	s.logger.InfoContext(ctx, "payment recorded", "payment_id", saved.PaymentID, "method", req.Method)
	return saved, nil
}

func (s *Service) ListCallLogs(ctx context.Context, limit int) ([]records.CallAttempt, error) {
	out, err := s.store.ListCallAttempts(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to list call logs")
	}
	return out, nil
}

func (s *Service) ListReminders(ctx context.Context, limit int) ([]records.Reminder, error) {
	out, err := s.store.ListReminders(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to list reminders")
	}
	return out, nil
}

func (s *Service) ListPayments(ctx context.Context, limit int) ([]records.Payment, error) {
	out, err := s.store.ListPayments(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to list payments")
	}
	return out, nil
}

// contactNumber returns the resident's phone for zone resolution. An unknown
// resident resolves to the default zone.
func (s *Service) contactNumber(ctx context.Context, residentID id.ResidentID) (string, error) {
	r, err := s.store.FindResident(ctx, residentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", nil
		}
		return "", dErrors.Wrap(err, dErrors.CodeStorage, "failed to load resident")
	}
	return r.ContactNumber, nil
}

func (s *Service) checkWindow(ctx context.Context, channel compliance.Channel, phone string, residentID id.ResidentID) error {
	decision, err := s.gate.Check(ctx, compliance.Subject{Channel: channel, Phone: phone, ResidentID: residentID})
	if err == nil {
		return nil
	}
	s.metrics.IncComplianceRejection(string(channel))
	s.metrics.IncContactAttempt(string(channel), "rejected")
	s.emit(ctx, audit.Event{
		Action:      string(audit.EventComplianceRejected),
		SubjectHash: subjectHash(residentID),
		Channel:     string(channel),
		Decision:    "rejected",
		Reason:      decision.Reason,
	})
	s.logger.InfoContext(ctx, "contact rejected by window",
		"channel", channel,
		"zone", decision.Zone,
		"local_time", decision.LocalTime.Format(time.Kitchen),
	)
	return err
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit outreach audit event", "action", event.Action, "error", err)
	}
}

func subjectHash(residentID id.ResidentID) string {
	if residentID == "" {
		return ""
	}
	return audit.SubjectHash(residentID.String())
}
