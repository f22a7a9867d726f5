// Package publisher emits audit events to an audit.Store, synchronously or
// through a bounded buffer drained by one background goroutine.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	audit "dunning/pkg/platform/audit"
	"dunning/pkg/requestcontext"
)

// ErrBufferFull is returned by Emit in async mode when the buffer is full.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher writes audit events to a store.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	bufferSize int
	events     chan auditItem
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

type auditItem struct {
	ctx   context.Context
	event audit.Event
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer switches Emit to buffered, non-blocking writes.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.bufferSize = size
	}
}

// WithLogger sets a logger for async write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a publisher. Without WithAsyncBuffer, Emit writes synchronously.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize > 0 {
		p.events = make(chan auditItem, p.bufferSize)
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Emit records an event. Missing timestamps take the request time and a
// missing category is derived from the action.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.OperatorID == "" {
		if op := requestcontext.OperatorID(ctx); !op.IsNil() {
			event.OperatorID = op.String()
		}
	}

	if p.events == nil {
		return p.store.Append(ctx, event)
	}

	// the request context may be cancelled before the write drains
	item := auditItem{ctx: context.WithoutCancel(ctx), event: event}
	select {
	case p.events <- item:
		return nil
	default:
	}
	select {
	case p.events <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

// List returns events recorded for a hashed subject.
func (p *Publisher) List(ctx context.Context, subjectHash string) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, subjectHash)
}

// Close drains buffered events and stops the background writer.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.events != nil {
			close(p.events)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for item := range p.events {
		if err := p.store.Append(item.ctx, item.event); err != nil && p.logger != nil {
			p.logger.ErrorContext(item.ctx, "failed to persist audit event",
				"action", item.event.Action,
				"error", err,
			)
		}
	}
}
