// Package calls drives outbound voice calls from compliance check to a
// persisted call_logs row.
//
// A call is created at the configured voice.Provider and then completed either
// by the webhook path (server) or by Run's poll-after-wait (CLI). Both paths
// end in Complete, and the call_logs primary key keeps the result to one row
// per call_id whichever path arrives first.
package calls

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dunning/internal/compliance"
	"dunning/internal/platform/metrics"
	"dunning/internal/providers"
	"dunning/internal/providers/voice"
	"dunning/internal/records"
	id "dunning/pkg/domain"
	dErrors "dunning/pkg/domain-errors"
	"dunning/pkg/platform/audit"
	"dunning/pkg/platform/privacy"
	"dunning/pkg/platform/sentinel"
	"dunning/pkg/requestcontext"
)

const tracerName = "dunning/calls"

// Store is the persistence the orchestrator needs.
type Store interface {
	FindResident(ctx context.Context, residentID id.ResidentID) (*records.Resident, error)
	InsertCallAttempt(ctx context.Context, c records.CallAttempt) error
	FindCallAttempt(ctx context.Context, callID id.CallID) (*records.CallAttempt, error)
}

// Gate approves the contact window.
type Gate interface {
	Check(ctx context.Context, subject compliance.Subject) (compliance.Decision, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Orchestrator runs the outbound call state machine.
type Orchestrator struct {
	provider voice.Provider
	store    Store
	gate     Gate
	auditor  AuditPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	pollWait time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

type Option func(*Orchestrator)

func WithAuditor(a AuditPublisher) Option {
	return func(o *Orchestrator) { o.auditor = a }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithPollWait sets how long Run waits between initiating and retrieving.
func WithPollWait(d time.Duration) Option {
	return func(o *Orchestrator) { o.pollWait = d }
}

// WithSleeper replaces the context-aware wait used by Run.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

func New(provider voice.Provider, store Store, gate Gate, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider: provider,
		store:    store,
		gate:     gate,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		pollWait: 10 * time.Second,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProviderName is the voice provider calls are placed with.
func (o *Orchestrator) ProviderName() string {
	return o.provider.Name()
}

// Initiate creates a call for residentID. A compliance rejection or provider
// failure returns a Failed attempt together with the error; nothing is
// persisted in either case.
func (o *Orchestrator) Initiate(ctx context.Context, residentID id.ResidentID) (*Attempt, error) {
	resident, err := o.store.FindResident(ctx, residentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "resident not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to load resident")
	}

	attempt := &Attempt{ResidentID: residentID, Provider: o.provider.Name(), State: StateInitiating}
	o.metrics.IncCallTransition(string(StateInitiating))

	decision, err := o.gate.Check(ctx, compliance.Subject{
		Channel:    compliance.ChannelCall,
		Phone:      resident.ContactNumber,
		ResidentID: residentID,
	})
	if err != nil {
		o.fail(attempt, ReasonNotCompliant)
		o.metrics.IncComplianceRejection(string(compliance.ChannelCall))
		o.metrics.IncContactAttempt(string(compliance.ChannelCall), "rejected")
		o.emit(ctx, audit.Event{
			Action:      string(audit.EventComplianceRejected),
			SubjectHash: audit.SubjectHash(residentID.String()),
			Channel:     string(compliance.ChannelCall),
			Decision:    "rejected",
			Reason:      decision.Reason,
		})
		o.logger.InfoContext(ctx, "outbound call rejected by contact window",
			"zone", decision.Zone,
			"local_time", decision.LocalTime.Format(time.Kitchen),
		)
		return attempt, err
	}

	callID, err := o.initiateWithProvider(ctx, callRequest(resident))
	if err != nil {
		var perr *providers.ProviderError
		reason := err.Error()
		if errors.As(err, &perr) {
			reason = perr.Message
		}
		o.fail(attempt, reason)
		o.metrics.IncContactAttempt(string(compliance.ChannelCall), "failed")
		o.emit(ctx, audit.Event{
			Action:      string(audit.EventCallFailed),
			SubjectHash: audit.SubjectHash(residentID.String()),
			Channel:     string(compliance.ChannelCall),
			Decision:    "failed",
			Reason:      string(providers.GetCategory(err)),
		})
		o.logger.ErrorContext(ctx, "voice provider failed to create call",
			"provider", attempt.Provider,
			"phone", privacy.MaskPhone(resident.ContactNumber),
			"error", err,
		)
		return attempt, providers.ToDomain(err, "voice provider failed to create call")
	}

	attempt.CallID = callID
	attempt.State = StatePending
	o.metrics.IncCallTransition(string(StatePending))
	o.metrics.IncContactAttempt(string(compliance.ChannelCall), "initiated")
	o.emit(ctx, audit.Event{
		Action:      string(audit.EventCallInitiated),
		SubjectHash: audit.SubjectHash(residentID.String()),
		CallID:      callID.String(),
		Channel:     string(compliance.ChannelCall),
		Decision:    "initiated",
	})
	o.logger.InfoContext(ctx, "outbound call initiated",
		"provider", attempt.Provider,
		"call_id", callID,
		"phone", privacy.MaskPhone(resident.ContactNumber),
	)
	return attempt, nil
}

func (o *Orchestrator) initiateWithProvider(ctx context.Context, req voice.CallRequest) (id.CallID, error) {
	ctx, span := o.tracer.Start(ctx, "voice.InitiateCall",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("voice.provider", o.provider.Name())),
	)
	defer span.End()

	start := time.Now()
	callID, err := o.provider.InitiateCall(ctx, req)
	o.metrics.ObserveProvider(o.provider.Name(), "initiate_call", start)
	if err != nil {
		o.metrics.IncProviderError(o.provider.Name(), string(providers.GetCategory(err)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "initiate call failed")
		return "", err
	}
	span.SetAttributes(attribute.String("voice.call_id", callID.String()))
	return callID, nil
}

// Complete retrieves callID and, when the provider reports it ended, writes
// the call_logs row. A call that has not ended stays Pending. fallback is used
// when the provider payload does not carry the resident id.
//
// A row that already exists counts as success. A storage failure after the
// call happened is returned as storage_error; the provider side is not undone.
func (o *Orchestrator) Complete(ctx context.Context, callID id.CallID, fallback id.ResidentID) (*Attempt, error) {
	details, err := o.retrieveFromProvider(ctx, callID)
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to retrieve call details",
			"provider", o.provider.Name(),
			"call_id", callID,
			"error", err,
		)
		return nil, providers.ToDomain(err, "voice provider failed to return call details")
	}

	residentID := details.ResidentID
	if residentID == "" {
		residentID = fallback
	}
	attempt := &Attempt{CallID: callID, ResidentID: residentID, Provider: o.provider.Name(), State: StatePending}
	if !details.Ended {
		o.logger.DebugContext(ctx, "call not ended yet", "call_id", callID, "status", details.Status)
		return attempt, nil
	}

	artifacts := voice.ExtractArtifacts(o.provider, details)
	err = o.store.InsertCallAttempt(ctx, records.CallAttempt{
		CallID:       callID,
		ResidentID:   residentID,
		Phone:        details.CustomerNumber,
		Direction:    "outbound",
		Provider:     o.provider.Name(),
		Status:       details.Status,
		Cost:         artifacts.Cost,
		Transcript:   artifacts.Transcript,
		RecordingURL: artifacts.RecordingURL,
		Analysis:     artifacts.Analysis,
		CreatedAt:    requestcontext.Now(ctx),
	})
	attempt.State = StateCompleted
	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		o.logger.InfoContext(ctx, "call attempt already recorded", "call_id", callID)
		return attempt, nil
	case err != nil:
		o.logger.ErrorContext(ctx, "call completed at provider but log insert failed",
			"call_id", callID,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to record call attempt")
	}

	attempt.Recorded = true
	o.metrics.IncCallTransition(string(StateCompleted))
	o.emit(ctx, audit.Event{
		Action:      string(audit.EventCallCompleted),
		SubjectHash: audit.SubjectHash(residentID.String()),
		CallID:      callID.String(),
		Channel:     string(compliance.ChannelCall),
		Decision:    details.Status,
	})
	o.logger.InfoContext(ctx, "call attempt recorded",
		"call_id", callID,
		"status", details.Status,
		"has_transcript", artifacts.Transcript != nil,
		"has_recording", artifacts.RecordingURL != nil,
	)
	return attempt, nil
}

func (o *Orchestrator) retrieveFromProvider(ctx context.Context, callID id.CallID) (*voice.CallDetails, error) {
	ctx, span := o.tracer.Start(ctx, "voice.RetrieveCallDetails",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("voice.provider", o.provider.Name()),
			attribute.String("voice.call_id", callID.String()),
		),
	)
	defer span.End()

	start := time.Now()
	details, err := o.provider.RetrieveCallDetails(ctx, callID)
	o.metrics.ObserveProvider(o.provider.Name(), "retrieve_call", start)
	if err != nil {
		o.metrics.IncProviderError(o.provider.Name(), string(providers.GetCategory(err)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieve call failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("voice.status", details.Status))
	return details, nil
}

// Run is the blocking poll mode: initiate, wait the poll interval, retrieve
// once. The returned attempt is Pending when the call has not ended yet.
func (o *Orchestrator) Run(ctx context.Context, residentID id.ResidentID) (*Attempt, error) {
	attempt, err := o.Initiate(ctx, residentID)
	if err != nil {
		return attempt, err
	}
	if err := o.sleep(ctx, o.pollWait); err != nil {
		return attempt, err
	}
	return o.Complete(ctx, attempt.CallID, residentID)
}

// Lookup returns the persisted call_logs row for callID.
func (o *Orchestrator) Lookup(ctx context.Context, callID id.CallID) (*records.CallAttempt, error) {
	c, err := o.store.FindCallAttempt(ctx, callID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "call not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to load call")
	}
	return c, nil
}

func (o *Orchestrator) fail(a *Attempt, reason string) {
	a.State = StateFailed
	a.Reason = reason
	o.metrics.IncCallTransition(string(StateFailed))
}

func (o *Orchestrator) emit(ctx context.Context, event audit.Event) {
	if o.auditor == nil {
		return
	}
	if err := o.auditor.Emit(ctx, event); err != nil {
		o.logger.WarnContext(ctx, "failed to emit call audit event", "action", event.Action, "error", err)
	}
}

func callRequest(r *records.Resident) voice.CallRequest {
	req := voice.CallRequest{
		ResidentID:    r.ResidentID,
		ContactName:   r.ContactName(),
		ContactNumber: r.ContactNumber,
		ResidentName:  r.FullName(),
		FacilityName:  r.FacilityName,
		Balance:       r.Balance,
		PayerDesc:     r.PayerDesc,
	}
	if r.DueDate != nil {
		req.DueDate = r.DueDate.Format("2006-01-02")
	}
	return req
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
