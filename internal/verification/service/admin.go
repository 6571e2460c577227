package service

import (
	"context"
	"strings"
	"time"

	"carecheck/internal/verification/models"
	id "carecheck/pkg/domain"
	dErrors "carecheck/pkg/domain-errors"
	"carecheck/pkg/platform/audit"
	"carecheck/pkg/requestcontext"
)

func requireOverride(ctx context.Context) error {
	if !requestcontext.Role(ctx).CanOverride() {
		return dErrors.New(dErrors.CodeForbidden, "admin role required")
	}
	return nil
}

func requireReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return reason, nil
}

// override is the shared shape of every manual transition: role check, guarded
// write, audit and metrics, then cross-check scheduling when the write made
// both inputs favourable.
func (s *Service) override(
	ctx context.Context,
	recordID id.VerificationID,
	action audit.AuditEvent,
	reason string,
	guard func(*models.Record) error,
	apply func(*models.Record, time.Time) bool,
	completed models.Phase,
) (*models.Record, error) {
	if err := requireOverride(ctx); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	var scheduled bool
	rec, err := s.store.Execute(ctx, recordID, guard, func(r *models.Record) {
		scheduled = apply(r, now)
	})
	if err != nil {
		return nil, translate(err, "failed to apply "+string(action))
	}

	s.metrics.IncrementAdminOverride(string(action))
	s.emit(ctx, rec, action, "override", reason)
	s.logger.InfoContext(ctx, "admin override applied",
		"verification_id", rec.ID.String(),
		"action", string(action),
		"actor_id", requestcontext.UserID(ctx).String(),
		"overall_status", rec.OverallStatus().Code(),
	)
	if scheduled {
		s.phases.ScheduleCrossCheck(ctx, rec, completed)
	}
	return rec, nil
}

// VerifyIdentity approves the identity section by hand and then updates the
// candidate's denormalised level. A level write failure is reported as an
// internal error; the approval itself stands and the call can be retried.
func (s *Service) VerifyIdentity(ctx context.Context, recordID id.VerificationID) (*models.Record, error) {
	rec, err := s.override(ctx, recordID, audit.EventIdentityVerifiedByAdmin, "",
		func(r *models.Record) error {
			if err := r.CheckNotBarred(); err != nil {
				return err
			}
			if r.Identity.Status == models.IdentityNotStarted {
				return dErrors.New(dErrors.CodeConflict, "no identity submission to verify")
			}
			return nil
		},
		(*models.Record).ApplyIdentityVerified,
		models.PhaseIdentity,
	)
	if err != nil {
		return nil, err
	}
	if s.levels != nil {
		if err := s.levels.SetVerificationLevel(ctx, rec.CandidateID, rec.OverallStatus()); err != nil {
			s.logger.ErrorContext(ctx, "failed to update candidate verification level",
				"verification_id", rec.ID.String(),
				"candidate_id", rec.CandidateID.String(),
				"error", err,
			)
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "identity verified but candidate level update failed")
		}
	}
	return rec, nil
}

// RejectIdentity rejects the identity section. Any OCG clearance is voided.
func (s *Service) RejectIdentity(ctx context.Context, recordID id.VerificationID, reason string) (*models.Record, error) {
	if err := requireOverride(ctx); err != nil {
		return nil, err
	}
	reason, err := requireReason(reason)
	if err != nil {
		return nil, err
	}
	return s.override(ctx, recordID, audit.EventIdentityRejectedByAdmin, reason,
		func(r *models.Record) error {
			if err := r.CheckNotBarred(); err != nil {
				return err
			}
			if r.Identity.Status == models.IdentityNotStarted {
				return dErrors.New(dErrors.CodeConflict, "no identity submission to reject")
			}
			return nil
		},
		func(r *models.Record, now time.Time) bool {
			r.ApplyIdentityRejected(reason, now)
			return false
		},
		models.PhaseIdentity,
	)
}

// ConfirmWWCC stands in for the automated WWCC document check.
func (s *Service) ConfirmWWCC(ctx context.Context, recordID id.VerificationID) (*models.Record, error) {
	return s.override(ctx, recordID, audit.EventWWCCConfirmedByAdmin, "",
		(*models.Record).CanConfirmWWCC,
		(*models.Record).ApplyWWCCConfirmed,
		models.PhaseWWCC,
	)
}

// RejectWWCC rejects the WWCC section. A barred record cannot be rejected.
func (s *Service) RejectWWCC(ctx context.Context, recordID id.VerificationID, reason string) (*models.Record, error) {
	if err := requireOverride(ctx); err != nil {
		return nil, err
	}
	reason, err := requireReason(reason)
	if err != nil {
		return nil, err
	}
	return s.override(ctx, recordID, audit.EventWWCCRejectedByAdmin, reason,
		func(r *models.Record) error {
			if err := r.CheckNotBarred(); err != nil {
				return err
			}
			if r.WWCC.Status == models.WWCCNotStarted {
				return dErrors.New(dErrors.CodeConflict, "no wwcc submission to reject")
			}
			return nil
		},
		func(r *models.Record, now time.Time) bool {
			r.ApplyWWCCRejected(reason, now)
			return false
		},
		models.PhaseWWCC,
	)
}

// ApproveCrossCheck settles a cross-check that went to review. It does not
// touch OCG state; full verification still needs a CLEARED result.
func (s *Service) ApproveCrossCheck(ctx context.Context, recordID id.VerificationID) (*models.Record, error) {
	return s.override(ctx, recordID, audit.EventCrossCheckApprovedByAdmin, "",
		(*models.Record).CanApproveCrossCheck,
		func(r *models.Record, now time.Time) bool {
			r.ApplyCrossCheckApproved(now)
			return false
		},
		models.PhaseCrossCheck,
	)
}
