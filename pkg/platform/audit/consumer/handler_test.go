package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carecheck/internal/platform/kafka/consumer"
	audit "carecheck/pkg/platform/audit"
	"carecheck/pkg/platform/audit/store/postgres"
)

type recordingStore struct {
	ids    []uuid.UUID
	events []audit.Event
	err    error
}

func (r *recordingStore) AppendWithID(_ context.Context, eventID uuid.UUID, event audit.Event) error {
	if r.err != nil {
		return r.err
	}
	r.ids = append(r.ids, eventID)
	r.events = append(r.events, event)
	return nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestHandler_Materialises(t *testing.T) {
	store := &recordingStore{}
	h := NewHandler(store, discard())

	eventID := uuid.New()
	verificationID := uuid.New()
	body, err := json.Marshal(postgres.Payload{
		ID:             eventID.String(),
		Category:       string(audit.CategoryCompliance),
		Timestamp:      time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC).Format(time.RFC3339Nano),
		VerificationID: verificationID.String(),
		Action:         string(audit.EventWWCCConfirmedByAdmin),
		ActorID:        "admin-1",
	})
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), &consumer.Message{Key: []byte(eventID.String()), Value: body}))
	require.Len(t, store.events, 1)
	assert.Equal(t, eventID, store.ids[0])
	assert.Equal(t, verificationID, uuid.UUID(store.events[0].VerificationID))
	assert.Equal(t, "admin-1", store.events[0].ActorID)
}

func TestHandler_SkipsPoisonMessages(t *testing.T) {
	store := &recordingStore{}
	h := NewHandler(store, discard())

	assert.NoError(t, h.Handle(context.Background(), &consumer.Message{Key: []byte("not-a-uuid"), Value: []byte("{}")}))
	assert.NoError(t, h.Handle(context.Background(), &consumer.Message{Key: []byte(uuid.NewString()), Value: []byte("{")}))
	assert.NoError(t, h.Handle(context.Background(), &consumer.Message{Key: []byte(uuid.NewString()), Value: []byte(`{"action":""}`)}))
	assert.Empty(t, store.events)
}

func TestHandler_StoreFailureIsRetried(t *testing.T) {
	store := &recordingStore{err: errors.New("db down")}
	h := NewHandler(store, discard())
	body, _ := json.Marshal(postgres.Payload{Timestamp: time.Now().Format(time.RFC3339Nano), Action: "phase_completed"})

	err := h.Handle(context.Background(), &consumer.Message{Key: []byte(uuid.NewString()), Value: body})
	assert.Error(t, err)
}
