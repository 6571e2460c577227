package service

import (
	"context"

	"carecheck/internal/verification/models"
	id "carecheck/pkg/domain"
	dErrors "carecheck/pkg/domain-errors"
	"carecheck/pkg/requestcontext"
)

// TriggerPhase runs one automated phase for the record and returns the record
// as the phase left it. Phase failures show up as section status, not as an
// error. Candidates may only trigger phases on their own record.
func (s *Service) TriggerPhase(ctx context.Context, recordID id.VerificationID, phase string) (*models.Record, error) {
	p, err := models.ParseTriggerablePhase(phase)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.FindByID(ctx, recordID)
	if err != nil {
		return nil, translate(err, "failed to load verification")
	}
	if err := authorizeRecord(ctx, rec); err != nil {
		return nil, err
	}

	switch p {
	case models.PhaseIdentity:
		err = s.phases.RunIdentityPhase(ctx, recordID)
	case models.PhaseWWCC:
		err = s.phases.RunWWCCDocPhase(ctx, recordID)
	case models.PhaseCrossCheck:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "cross-check is scheduled by the pipeline")
	}
	if err != nil {
		return nil, translate(err, "failed to run "+string(p)+" phase")
	}

	rec, err = s.store.FindByID(ctx, recordID)
	if err != nil {
		return nil, translate(err, "failed to load verification")
	}
	return rec, nil
}

// authorizeRecord lets admins act on any record and candidates on their own.
func authorizeRecord(ctx context.Context, rec *models.Record) error {
	if requestcontext.Role(ctx).CanOverride() {
		return nil
	}
	if id.CandidateFromUser(requestcontext.UserID(ctx)) != rec.CandidateID {
		return dErrors.New(dErrors.CodeForbidden, "verification belongs to another candidate")
	}
	return nil
}
