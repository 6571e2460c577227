// Package consumer runs a franz-go consumer group and hands records to a Handler.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one consumed record.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Partition int32
	Offset    int64
	Headers   map[string]string
}

// Handler processes one message. Returning an error stops the consumer without
// committing, so the message is redelivered after restart. Handlers return nil
// for poison messages they have logged.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// Consumer polls a consumer group and commits after each handled batch.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// New joins the consumer group for the given topics.
func New(brokers []string, group string, topics []string, handler Handler, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, handler: handler, logger: logger}, nil
}

const (
	minFetchBackoff = 250 * time.Millisecond
	maxFetchBackoff = 5 * time.Second
)

// fetchBackoff doubles from minFetchBackoff per consecutive failed poll, capped
// at maxFetchBackoff.
func fetchBackoff(failures int) time.Duration {
	d := minFetchBackoff
	for i := 1; i < failures && d < maxFetchBackoff; i++ {
		d *= 2
	}
	return min(d, maxFetchBackoff)
}

// Run polls until ctx is cancelled. Polls that return only errors back off
// before retrying.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()
	failures := 0
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		var fetchErr error
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.ErrorContext(ctx, "kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
			fetchErr = err
		})
		if fetchErr != nil && fetches.NumRecords() == 0 {
			failures++
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchBackoff(failures)):
			}
			continue
		}
		failures = 0

		var handleErr error
		fetches.EachRecord(func(r *kgo.Record) {
			if handleErr != nil {
				return
			}
			msg := &Message{
				Topic:     r.Topic,
				Key:       r.Key,
				Value:     r.Value,
				Partition: r.Partition,
				Offset:    r.Offset,
				Headers:   make(map[string]string, len(r.Headers)),
			}
			for _, h := range r.Headers {
				msg.Headers[h.Key] = string(h.Value)
			}
			handleErr = c.handler.Handle(ctx, msg)
		})
		if handleErr != nil {
			return fmt.Errorf("handle kafka message: %w", handleErr)
		}
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil && ctx.Err() == nil {
			c.logger.ErrorContext(ctx, "kafka commit failed", "error", err)
		}
	}
}
