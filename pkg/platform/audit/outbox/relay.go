// Package outbox relays audit outbox rows to Kafka.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"carecheck/internal/platform/kafka/producer"
	"carecheck/pkg/platform/audit/store/postgres"
)

// Source is the outbox table.
type Source interface {
	FetchUnprocessed(ctx context.Context, limit int) ([]postgres.OutboxEntry, error)
	MarkProcessed(ctx context.Context, entryID uuid.UUID, at time.Time) error
}

// Publisher sends one message to Kafka.
type Publisher interface {
	Publish(ctx context.Context, msg producer.Message) error
}

// Relay polls the outbox and publishes rows in insertion order.
type Relay struct {
	source    Source
	publisher Publisher
	topic     string
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

// Option configures the Relay.
type Option func(*Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) { r.interval = d }
}

func WithBatchSize(n int) Option {
	return func(r *Relay) { r.batchSize = n }
}

func New(source Source, publisher Publisher, topic string, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		source:    source,
		publisher: publisher,
		topic:     topic,
		interval:  time.Second,
		batchSize: 100,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "audit outbox relay failed", "error", err)
			}
		}
	}
}

// RelayOnce publishes one batch. It stops at the first publish failure so
// ordering is kept; the row is retried on the next tick.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	entries, err := r.source.FetchUnprocessed(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, e := range entries {
		msg := producer.Message{
			Topic:   r.topic,
			Key:     []byte(e.ID.String()),
			Value:   e.Payload,
			Headers: map[string]string{"aggregate_id": e.AggregateID},
		}
		if err := r.publisher.Publish(ctx, msg); err != nil {
			return sent, err
		}
		if err := r.source.MarkProcessed(ctx, e.ID, time.Now()); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}
