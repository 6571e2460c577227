package service

import (
	"context"
	"errors"

	"carecheck/internal/verification/models"
	"carecheck/internal/verification/staleness"
	id "carecheck/pkg/domain"
	"carecheck/pkg/platform/audit"
	"carecheck/pkg/platform/sentinel"
	"carecheck/pkg/requestcontext"
)

var errNoLongerStale = errors.New("record no longer stale")

// ReadStatus returns the candidate's legacy overall code. A candidate with no
// record is not_started.
func (s *Service) ReadStatus(ctx context.Context, candidateID id.CandidateID) (models.OverallStatus, error) {
	rec, err := s.Status(ctx, candidateID)
	if err != nil {
		return models.OverallNotStarted, err
	}
	if rec == nil {
		return models.OverallNotStarted, nil
	}
	return rec.OverallStatus(), nil
}

// Status returns the candidate's record after staleness repair, or nil when
// the candidate has not submitted anything.
func (s *Service) Status(ctx context.Context, candidateID id.CandidateID) (*models.Record, error) {
	rec, err := s.store.FindByCandidate(ctx, candidateID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "failed to load verification")
	}
	return s.repairStale(ctx, rec), nil
}

// repairStale escalates stuck automated checks to review. The condition is
// re-checked under the store lock so a phase finishing concurrently wins. A
// failed repair is logged and the unrepaired record is returned.
func (s *Service) repairStale(ctx context.Context, rec *models.Record) *models.Record {
	now := requestcontext.Now(ctx)
	if !staleness.IsStale(rec, now, s.staleAfter) {
		return rec
	}

	var escalated []staleness.Section
	repaired, err := s.store.Execute(ctx, rec.ID,
		func(r *models.Record) error {
			if !staleness.IsStale(r, now, s.staleAfter) {
				return errNoLongerStale
			}
			return nil
		},
		func(r *models.Record) {
			escalated = staleness.Escalate(r, now, s.staleAfter)
		},
	)
	if errors.Is(err, errNoLongerStale) {
		if fresh, findErr := s.store.FindByID(ctx, rec.ID); findErr == nil {
			return fresh
		}
		return rec
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to escalate stale verification",
			"verification_id", rec.ID.String(),
			"error", err,
		)
		return rec
	}

	for _, section := range escalated {
		s.metrics.IncrementEscalation(string(section))
		s.emit(ctx, repaired, audit.EventStalenessEscalated, "review", string(section)+": "+models.IssueAutoCheckTimedOut)
		s.logger.WarnContext(ctx, "escalated stale automated check",
			"verification_id", repaired.ID.String(),
			"section", string(section),
		)
	}
	return repaired
}
