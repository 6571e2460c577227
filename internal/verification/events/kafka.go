package events

import (
	"context"
	"fmt"
	"log/slog"

	"carecheck/internal/platform/kafka/consumer"
	"carecheck/internal/platform/kafka/producer"
)

// MessagePublisher is the producer surface the Kafka bus needs.
type MessagePublisher interface {
	Publish(ctx context.Context, msg producer.Message) error
}

// KafkaPublisher writes events to a topic keyed by verification id, so events
// for one record stay ordered on one partition.
type KafkaPublisher struct {
	producer MessagePublisher
	topic    string
}

func NewKafkaPublisher(p MessagePublisher, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event PhaseCompleted) error {
	value, err := Encode(event)
	if err != nil {
		return fmt.Errorf("encode phase event: %w", err)
	}
	return p.producer.Publish(ctx, producer.Message{
		Topic: p.topic,
		Key:   []byte(event.VerificationID.String()),
		Value: value,
		Headers: map[string]string{
			"event_type": "phase_completed",
			"next_phase": string(event.Next),
		},
	})
}

// KafkaHandler adapts a Handler to the consumer. Undecodable messages are
// logged and skipped; handler errors are logged and the offset is committed,
// since a failed phase is recorded on the record, not retried.
type KafkaHandler struct {
	handler Handler
	logger  *slog.Logger
}

func NewKafkaHandler(handler Handler, logger *slog.Logger) *KafkaHandler {
	return &KafkaHandler{handler: handler, logger: logger}
}

func (h *KafkaHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	event, err := Decode(msg.Value)
	if err != nil {
		h.logger.ErrorContext(ctx, "skipping undecodable phase event",
			"key", string(msg.Key),
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	if err := h.handler.HandlePhaseCompleted(ctx, event); err != nil {
		h.logger.ErrorContext(ctx, "phase event handler failed",
			"verification_id", event.VerificationID.String(),
			"phase", string(event.Next),
			"error", err,
		)
	}
	return nil
}
