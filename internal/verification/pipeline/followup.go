package pipeline

import (
	"context"
	"errors"

	"carecheck/internal/verification/events"
	"carecheck/internal/verification/models"
	"carecheck/pkg/platform/sentinel"
	"carecheck/pkg/requestcontext"
)

// RedriveFollowUps re-publishes cross-check events for records whose earlier
// publish failed. The marker is cleared once the event is out, or when the
// record no longer needs a cross-check. Returns how many events were published.
func (o *Orchestrator) RedriveFollowUps(ctx context.Context) (int, error) {
	recs, err := o.store.ListFollowUpPending(ctx)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, rec := range recs {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		needed := rec.CanStartCrossCheck() == nil
		if needed {
			event := events.PhaseCompleted{
				VerificationID: rec.ID,
				CandidateID:    rec.CandidateID,
				Next:           models.PhaseCrossCheck,
				Generation:     rec.Generation,
				OccurredAt:     requestcontext.Now(ctx),
			}
			if err := o.events.Publish(ctx, event); err != nil {
				o.metrics.IncrementFollowUpFailure()
				o.logger.WarnContext(ctx, "follow-up re-drive failed, will retry",
					"verification_id", rec.ID.String(),
					"error", err,
				)
				continue
			}
			published++
		}

		generation := rec.Generation
		_, err := o.store.Execute(ctx, rec.ID,
			func(r *models.Record) error {
				if r.Generation != generation {
					return sentinel.ErrConflict
				}
				return nil
			},
			func(r *models.Record) { r.FollowUpPending = false },
		)
		if err != nil && !errors.Is(err, sentinel.ErrConflict) {
			o.logger.ErrorContext(ctx, "failed to clear follow-up marker",
				"verification_id", rec.ID.String(),
				"error", err,
			)
		}
	}
	return published, nil
}
