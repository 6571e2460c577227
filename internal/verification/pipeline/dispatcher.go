package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"carecheck/internal/verification/events"
	"carecheck/internal/verification/models"
	dErrors "carecheck/pkg/domain-errors"
	"carecheck/pkg/platform/sentinel"
)

// Dispatcher consumes phase-completed events and runs the dependent phase.
type Dispatcher struct {
	orchestrator *Orchestrator
	logger       *slog.Logger
}

func NewDispatcher(o *Orchestrator, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{orchestrator: o, logger: logger}
}

// HandlePhaseCompleted implements events.Handler. An event that no longer
// applies (record resubmitted, cross-check already settled) is dropped.
func (d *Dispatcher) HandlePhaseCompleted(ctx context.Context, event events.PhaseCompleted) error {
	switch event.Next {
	case models.PhaseCrossCheck:
		err := d.orchestrator.RunCrossCheckPhase(ctx, event.VerificationID)
		if dErrors.HasCode(err, dErrors.CodeConflict) || dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			d.logger.InfoContext(ctx, "dropping stale phase event",
				"verification_id", event.VerificationID.String(),
				"phase", string(event.Next),
				"reason", dErrors.MessageOf(err),
			)
			return nil
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			d.logger.WarnContext(ctx, "phase event for unknown record",
				"verification_id", event.VerificationID.String(),
			)
			return nil
		}
		return err
	case models.PhaseIdentity, models.PhaseWWCC:
	}
	d.logger.WarnContext(ctx, "no dependent phase for event",
		"verification_id", event.VerificationID.String(),
		"phase", string(event.Next),
	)
	return nil
}
