// Package events carries phase-completed events between the pipeline and the
// dispatcher that runs dependent phases.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"carecheck/internal/verification/models"
	id "carecheck/pkg/domain"
)

// ErrBusFull is returned by the in-process bus when its buffer is saturated.
var ErrBusFull = errors.New("event bus full")

// PhaseCompleted announces that a phase finished and Next should run.
type PhaseCompleted struct {
	VerificationID id.VerificationID
	CandidateID    id.CandidateID
	Completed      models.Phase
	Next           models.Phase
	Generation     int64
	OccurredAt     time.Time
}

// Publisher emits phase-completed events.
type Publisher interface {
	Publish(ctx context.Context, event PhaseCompleted) error
}

// Handler consumes phase-completed events.
type Handler interface {
	HandlePhaseCompleted(ctx context.Context, event PhaseCompleted) error
}

type wireEvent struct {
	VerificationID string    `json:"verification_id"`
	CandidateID    string    `json:"candidate_id"`
	Completed      string    `json:"completed"`
	Next           string    `json:"next"`
	Generation     int64     `json:"generation"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Encode renders the event as JSON.
func Encode(e PhaseCompleted) ([]byte, error) {
	return json.Marshal(wireEvent{
		VerificationID: e.VerificationID.String(),
		CandidateID:    e.CandidateID.String(),
		Completed:      string(e.Completed),
		Next:           string(e.Next),
		Generation:     e.Generation,
		OccurredAt:     e.OccurredAt,
	})
}

// Decode parses an encoded event.
func Decode(data []byte) (PhaseCompleted, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return PhaseCompleted{}, fmt.Errorf("decode phase event: %w", err)
	}
	verificationID, err := id.ParseVerificationID(w.VerificationID)
	if err != nil {
		return PhaseCompleted{}, err
	}
	candidateID, err := id.ParseCandidateID(w.CandidateID)
	if err != nil {
		return PhaseCompleted{}, err
	}
	return PhaseCompleted{
		VerificationID: verificationID,
		CandidateID:    candidateID,
		Completed:      models.Phase(w.Completed),
		Next:           models.Phase(w.Next),
		Generation:     w.Generation,
		OccurredAt:     w.OccurredAt,
	}, nil
}
