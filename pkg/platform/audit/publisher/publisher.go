// Package publisher emits audit events to a Store.
//
// Compliance events are always written synchronously and fail closed: if the
// write fails the caller gets the error and must fail its operation. Operations
// events go through an optional async buffer and are dropped when it is full.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	id "carecheck/pkg/domain"
	audit "carecheck/pkg/platform/audit"
	"carecheck/pkg/requestcontext"
)

var errBufferFull = errors.New("audit buffer full")

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer routes operations events through a buffered background writer.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan audit.Event, size)
		}
	}
}

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit enriches the event from the request context and persists it.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Category = audit.AuditEvent(event.Action).Category()
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.ActorID == "" {
		if actor := requestcontext.UserID(ctx); !actor.IsNil() {
			event.ActorID = actor.String()
		}
	}

	if p.buffer == nil || event.Category == audit.CategoryCompliance {
		if err := p.store.Append(ctx, event); err != nil {
			p.logger.ErrorContext(ctx, "audit persistence failed",
				"action", event.Action,
				"verification_id", event.VerificationID.String(),
				"error", err,
			)
			return err
		}
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.buffer <- event:
		return nil
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event", "action", event.Action)
		return errBufferFull
	}
}

// List returns the events recorded for a verification.
func (p *Publisher) List(ctx context.Context, verificationID id.VerificationID) ([]audit.Event, error) {
	return p.store.ListByVerification(ctx, verificationID)
}

// Close drains the async buffer. Safe to call more than once.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Error("async audit persistence failed",
				"action", event.Action,
				"error", err,
			)
		}
	}
}
