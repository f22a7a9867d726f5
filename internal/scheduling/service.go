// Package scheduling books appointments on the shared calendar.
//
// Bookings for one calendar are serialized by a lock.Locker held across the
// conflict check and the event creation, so two requests for the same slot
// cannot both pass the check.
package scheduling

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dunning/internal/compliance"
	"dunning/internal/platform/metrics"
	"dunning/internal/providers"
	"dunning/internal/providers/calendar"
	"dunning/internal/records"
	"dunning/internal/scheduling/lock"
	id "dunning/pkg/domain"
	dErrors "dunning/pkg/domain-errors"
	"dunning/pkg/platform/audit"
	"dunning/pkg/platform/privacy"
	"dunning/pkg/requestcontext"
)

// MaxDurationMinutes bounds one appointment.
const MaxDurationMinutes = 8 * 60

type Store interface {
	InsertAppointment(ctx context.Context, a records.Appointment) (*records.Appointment, error)
}

type Gate interface {
	Check(ctx context.Context, subject compliance.Subject) (compliance.Decision, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Request is one booking. End is Start plus DurationMinutes.
type Request struct {
	CallID          id.CallID
	ResidentID      id.ResidentID
	ContactEmail    string
	Start           time.Time
	DurationMinutes int
	Title           string
	Description     string
}

func (r Request) End() time.Time {
	return r.Start.Add(time.Duration(r.DurationMinutes) * time.Minute)
}

// Validate checks the request before any side effect.
func (r Request) Validate() error {
	if r.ResidentID == "" {
		return dErrors.New(dErrors.CodeValidation, "resident_id is required")
	}
	if !strings.Contains(r.ContactEmail, "@") {
		return dErrors.New(dErrors.CodeValidation, "contact_email must be an email address")
	}
	if r.Start.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "start_time is required")
	}
	if r.DurationMinutes <= 0 || r.DurationMinutes > MaxDurationMinutes {
		return dErrors.New(dErrors.CodeValidation, "duration_minutes must be between 1 and 480")
	}
	if strings.TrimSpace(r.Title) == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	return nil
}

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) share any instant.
// Intervals that only touch at an endpoint do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

type Service struct {
	calendar Calendar
	store    Store
	gate     Gate
	locker   lock.Locker
	auditor  AuditPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
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

// WithLocker replaces the default in-process lock, typically with lock.Redis.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) { s.locker = l }
}

func NewService(cal Calendar, store Store, gate Gate, opts ...Option) *Service {
	s := &Service{
		calendar: cal,
		store:    store,
		gate:     gate,
		locker:   lock.NewLocal(0),
		logger:   slog.Default(),
		tracer:   otel.Tracer("dunning/scheduling"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book creates a calendar event for req and records the appointment.
func (s *Service) Book(ctx context.Context, req Request) (*records.Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	subjectHash := audit.SubjectHash(req.ResidentID.String())

	decision, err := s.gate.Check(ctx, compliance.Subject{
		Channel:    compliance.ChannelAppointment,
		ResidentID: req.ResidentID,
	})
	if err != nil {
		s.metrics.IncComplianceRejection(string(compliance.ChannelAppointment))
		s.metrics.IncContactAttempt(string(compliance.ChannelAppointment), "rejected")
		s.emit(ctx, audit.Event{
			Action:      string(audit.EventComplianceRejected),
			SubjectHash: subjectHash,
			CallID:      req.CallID.String(),
			Channel:     string(compliance.ChannelAppointment),
			Decision:    "rejected",
			Reason:      decision.Reason,
		})
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, s.calendar.CalendarID())
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "calendar is busy with another booking, retry shortly")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock calendar")
	}
	defer release()

	end := req.End()
	existing, err := s.listEvents(ctx, req.Start, end)
	if err != nil {
		return nil, providers.ToDomain(err, "calendar provider failed to list events")
	}
	for _, ev := range existing {
		if Overlaps(req.Start, end, ev.Start, ev.End) {
			s.metrics.IncBookingConflict()
			s.emit(ctx, audit.Event{
				Action:      string(audit.EventAppointmentConflict),
				SubjectHash: subjectHash,
				CallID:      req.CallID.String(),
				Channel:     string(compliance.ChannelAppointment),
				Decision:    "conflict",
			})
			s.logger.InfoContext(ctx, "appointment slot unavailable",
				"start", req.Start,
				"end", end,
				"conflicting_event", ev.ID,
			)
			return nil, dErrors.New(dErrors.CodeConflict, "requested time overlaps an existing appointment")
		}
	}

	created, err := s.createEvent(ctx, calendar.NewEvent{
		Summary:     req.Title,
		Description: req.Description,
		Start:       req.Start,
		End:         end,
		Attendees:   []string{req.ContactEmail},
	})
	if err != nil {
		return nil, providers.ToDomain(err, "calendar provider failed to create event")
	}

	appt, err := s.store.InsertAppointment(ctx, records.Appointment{
		CallID:          req.CallID,
		ResidentID:      req.ResidentID,
		CalendarEventID: id.EventID(created.ID),
		Title:           req.Title,
		Description:     req.Description,
		StartTime:       req.Start,
		EndTime:         end,
		CreatedAt:       requestcontext.Now(ctx),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "calendar event created but appointment insert failed",
			"calendar_event_id", created.ID,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to record appointment")
	}

	s.metrics.IncContactAttempt(string(compliance.ChannelAppointment), "booked")
	s.emit(ctx, audit.Event{
		Action:      string(audit.EventAppointmentBooked),
		SubjectHash: subjectHash,
		CallID:      req.CallID.String(),
		Channel:     string(compliance.ChannelAppointment),
		Decision:    "booked",
	})
	s.logger.InfoContext(ctx, "appointment booked",
		"appointment_id", appt.AppointmentID,
		"calendar_event_id", created.ID,
		"attendee", privacy.MaskEmail(req.ContactEmail),
		"start", req.Start,
	)
	return appt, nil
}

func (s *Service) listEvents(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	ctx, span := s.tracer.Start(ctx, "calendar.ListEvents", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	events, err := s.calendar.ListEvents(ctx, from, to)
	s.metrics.ObserveProvider(calendar.ProviderName, "list_events", start)
	if err != nil {
		s.metrics.IncProviderError(calendar.ProviderName, string(providers.GetCategory(err)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "list events failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("calendar.events", len(events)))
	return events, nil
}

func (s *Service) createEvent(ctx context.Context, e calendar.NewEvent) (calendar.Event, error) {
	ctx, span := s.tracer.Start(ctx, "calendar.CreateEvent", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	created, err := s.calendar.CreateEvent(ctx, e)
	s.metrics.ObserveProvider(calendar.ProviderName, "create_event", start)
	if err != nil {
		s.metrics.IncProviderError(calendar.ProviderName, string(providers.GetCategory(err)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "create event failed")
		return calendar.Event{}, err
	}
	span.SetAttributes(attribute.String("calendar.event_id", created.ID))
	return created, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit scheduling audit event", "action", event.Action, "error", err)
	}
}
