package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"carecheck/internal/platform/kafka/consumer"
	audit "carecheck/pkg/platform/audit"
	"carecheck/pkg/platform/audit/store/postgres"
)

// EventStore materialises audit events for querying.
type EventStore interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
}

// Handler writes audit events consumed from Kafka into audit_events.
type Handler struct {
	store  EventStore
	logger *slog.Logger
}

// NewHandler creates an audit materialisation handler.
func NewHandler(store EventStore, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Handle processes one audit message. Malformed messages are logged and
// committed so they do not block the partition.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to parse audit event ID",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	var payload postgres.Payload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal audit payload",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}
	if payload.Action == "" {
		h.logger.ErrorContext(ctx, "audit event missing action", "event_id", eventID)
		return nil
	}

	event, err := payload.ToEvent()
	if err != nil {
		h.logger.ErrorContext(ctx, "invalid audit payload",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}

	if err := h.store.AppendWithID(ctx, eventID, event); err != nil {
		return fmt.Errorf("store audit event: %w", err)
	}

	h.logger.DebugContext(ctx, "stored audit event",
		"event_id", eventID,
		"action", event.Action,
		"verification_id", event.VerificationID.String(),
	)
	return nil
}
