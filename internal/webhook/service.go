// Package webhook ingests call lifecycle events pushed by the voice provider.
//
// Each event is split into a clear safe projection and an optional sealed PHI
// blob, stored once per distinct payload, and call.ended events are handed to
// the registered hooks. Redeliveries are acknowledged without a second row;
// a redelivered call.ended reruns the hooks while its call log is missing.
package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"dunning/internal/platform/metrics"
	"dunning/internal/records"
	id "dunning/pkg/domain"
	dErrors "dunning/pkg/domain-errors"
	"dunning/pkg/platform/audit"
	"dunning/pkg/platform/phi"
	"dunning/pkg/platform/sentinel"
	"dunning/pkg/requestcontext"
)

type Store interface {
	InsertCallEvent(ctx context.Context, e records.CallEvent) (*records.CallEvent, error)
}

// CallLogs reports whether a call already has its call log row.
type CallLogs interface {
	FindCallAttempt(ctx context.Context, callID id.CallID) (*records.CallAttempt, error)
}

// Sealer encrypts PHI before it is stored.
type Sealer interface {
	SealJSON(v any, aad []byte) (string, error)
}

// Hook runs after a call.ended event was stored, and again on redelivery
// while the call has no call log. Errors are logged and never fail the delivery.
type Hook interface {
	Name() string
	OnCallEnded(ctx context.Context, data SafeData) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store   Store
	sealer  Sealer
	hooks   []Hook
	logs    CallLogs
	auditor AuditPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Service)

// WithSealer enables PHI capture. Without it PHI is dropped even when the
// event asks for it to be stored.
func WithSealer(sealer Sealer) Option {
	return func(s *Service) { s.sealer = sealer }
}

func WithHooks(hooks ...Hook) Option {
	return func(s *Service) { s.hooks = append(s.hooks, hooks...) }
}

// WithCallLogs lets a redelivered call.ended retry the hooks when the first
// delivery did not produce a call log.
func WithCallLogs(logs CallLogs) Option {
	return func(s *Service) { s.logs = logs }
}

func WithAuditor(a AuditPublisher) Option {
	return func(s *Service) { s.auditor = a }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest stores ev and runs the call.ended hooks. Only a storage failure
// is returned as an error; a redelivered event yields Ack.Duplicate.
func (s *Service) Ingest(ctx context.Context, ev Event) (*Ack, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	ev.EventType = NormalizeEventType(ev.EventType)
	received := requestcontext.Now(ctx)
	safe := safeData(ev, received)

	hash, err := EventHash(ev)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "event payload is not serializable")
	}
	safeJSON, err := json.Marshal(safe)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode event")
	}

	row := records.CallEvent{
		CallID:     ev.CallID,
		EventType:  ev.EventType,
		EventHash:  hash,
		SafeData:   safeJSON,
		ReceivedAt: received,
	}
	if sealed := s.sealPHI(ctx, ev); sealed != "" {
		row.PHIData = &sealed
	}

	stored, err := s.store.InsertCallEvent(ctx, row)
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.metrics.IncWebhookEvent(ev.EventType, "duplicate")
			if ev.EventType == EventCallEnded && s.callLogMissing(ctx, ev.CallID) {
				s.logger.InfoContext(ctx, "call.ended redelivered before its call log was written, rerunning hooks",
					"call_id", ev.CallID,
				)
				s.runHooks(ctx, safe)
				return &Ack{Duplicate: true}, nil
			}
			s.logger.InfoContext(ctx, "webhook redelivery ignored",
				"call_id", ev.CallID,
				"event_type", ev.EventType,
			)
			return &Ack{Duplicate: true}, nil
		}
		s.metrics.IncWebhookEvent(ev.EventType, "failed")
		s.logger.ErrorContext(ctx, "failed to store webhook event",
			"call_id", ev.CallID,
			"event_type", ev.EventType,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to store call event")
	}
	s.metrics.IncWebhookEvent(ev.EventType, "stored")
	s.emit(ctx, audit.Event{
		Action:    string(audit.EventWebhookReceived),
		CallID:    ev.CallID.String(),
		Decision:  ev.EventType,
		RequestID: requestcontext.RequestID(ctx),
	})
	s.logger.InfoContext(ctx, "webhook event stored",
		"call_id", ev.CallID,
		"event_type", ev.EventType,
		"event_id", stored.EventID,
	)

	if ev.EventType == EventCallEnded {
		s.runHooks(ctx, safe)
	}
	return &Ack{EventID: stored.EventID}, nil
}

// EventHash identifies an event by call, type and canonical payload. The
// receipt timestamp is not part of it, so redeliveries hash identically.
func EventHash(ev Event) (string, error) {
	// encoding/json sorts map keys, which makes the payload canonical.
	payload, err := json.Marshal(struct {
		Data     map[string]any `json:"data"`
		Metadata map[string]any `json:"metadata"`
	}{ev.Data, ev.Metadata})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s", ev.CallID, ev.EventType, payload))
	return hex.EncodeToString(sum[:]), nil
}

func (s *Service) sealPHI(ctx context.Context, ev Event) string {
	p, ok := protected(ev)
	if !ok {
		return ""
	}
	if s.sealer == nil {
		s.logger.WarnContext(ctx, "phi capture requested but no PHI key is configured, dropping",
			"call_id", ev.CallID,
		)
		return ""
	}
	sealed, err := s.sealer.SealJSON(p, phi.AAD("call_event", ev.CallID.String()))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to seal webhook phi, dropping",
			"call_id", ev.CallID,
			"error", err,
		)
		return ""
	}
	return sealed
}

func (s *Service) callLogMissing(ctx context.Context, callID id.CallID) bool {
	if s.logs == nil {
		return false
	}
	_, err := s.logs.FindCallAttempt(ctx, callID)
	if err == nil {
		return false
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "failed to look up call log for redelivery",
			"call_id", callID,
			"error", err,
		)
		return false
	}
	return true
}

func (s *Service) runHooks(ctx context.Context, data SafeData) {
	for _, h := range s.hooks {
		if err := h.OnCallEnded(ctx, data); err != nil {
			s.logger.WarnContext(ctx, "post-call hook failed",
				"hook", h.Name(),
				"call_id", data.CallID,
				"error", err,
			)
		}
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit webhook audit event", "action", event.Action, "error", err)
	}
}
