package service

import (
	"context"
	"strings"

	"carecheck/internal/verification/models"
	id "carecheck/pkg/domain"
	dErrors "carecheck/pkg/domain-errors"
	"carecheck/pkg/platform/audit"
	"carecheck/pkg/requestcontext"
)

// IdentitySubmission is a candidate's identity details and document uploads.
type IdentitySubmission struct {
	ContactEmail string
	Declared     models.IdentityDeclared
	Documents    []models.DocumentRef
}

func (s IdentitySubmission) validate() error {
	switch {
	case strings.TrimSpace(s.Declared.Surname) == "":
		return dErrors.New(dErrors.CodeValidation, "surname is required")
	case strings.TrimSpace(s.Declared.DateOfBirth) == "":
		return dErrors.New(dErrors.CodeValidation, "date_of_birth is required")
	case len(s.Documents) == 0:
		return dErrors.New(dErrors.CodeValidation, "at least one identity document is required")
	}
	return nil
}

// WWCCSubmission is a candidate's Working With Children Check evidence.
type WWCCSubmission struct {
	Declared  models.WWCCDeclared
	Documents []models.DocumentRef
}

func (s WWCCSubmission) validate() error {
	if _, err := models.ParseWWCCMethod(string(s.Declared.Method)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "method must be one of: grant_email, screenshot, manual_entry")
	}
	switch {
	case models.NormaliseWWCCNumber(s.Declared.Number) == "":
		return dErrors.New(dErrors.CodeValidation, "wwcc number is required")
	case strings.TrimSpace(s.Declared.FamilyName) == "":
		return dErrors.New(dErrors.CodeValidation, "family_name is required")
	case strings.TrimSpace(s.Declared.DateOfBirth) == "":
		return dErrors.New(dErrors.CodeValidation, "date_of_birth is required")
	case s.Declared.Method.RequiresDocuments() && len(s.Documents) == 0:
		return dErrors.New(dErrors.CodeValidation, "documents are required for method "+string(s.Declared.Method))
	case !s.Declared.Method.RequiresDocuments() && strings.TrimSpace(s.Declared.Expiry) == "":
		return dErrors.New(dErrors.CodeValidation, "expiry is required for manual entry")
	}
	return nil
}

// SubmitIdentity stores a new identity submission, creating the record on the
// candidate's first submission. Earlier automated output is discarded and the
// identity generation moves, so an identity phase still running for the old
// submission is dropped.
func (s *Service) SubmitIdentity(ctx context.Context, candidateID id.CandidateID, sub IdentitySubmission) (*models.Record, error) {
	if err := sub.validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	rec, err := s.store.Upsert(ctx, candidateID, func(existing *models.Record) (*models.Record, error) {
		rec := existing
		if rec == nil {
			rec = models.NewRecord(id.NewVerificationID(), candidateID, now)
		}
		if err := rec.CheckNotBarred(); err != nil {
			return nil, err
		}
		if email := strings.TrimSpace(sub.ContactEmail); email != "" {
			rec.ContactEmail = email
		}
		rec.ApplyIdentitySubmission(sub.Declared, sub.Documents, now)
		return rec, nil
	})
	if err != nil {
		return nil, translate(err, "failed to store identity submission")
	}

	s.emit(ctx, rec, audit.EventIdentitySubmitted, string(rec.Identity.Status), "")
	s.logger.InfoContext(ctx, "identity submitted",
		"verification_id", rec.ID.String(),
		"generation", rec.Identity.Generation,
	)
	return rec, nil
}

// SubmitWWCC stores a new WWCC submission. The number is stored normalised so
// OCG reference numbers match it however the candidate spaced it. Any OCG
// result held for the previous submission no longer applies and is cleared.
func (s *Service) SubmitWWCC(ctx context.Context, candidateID id.CandidateID, sub WWCCSubmission) (*models.Record, error) {
	if err := sub.validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	rec, err := s.store.Upsert(ctx, candidateID, func(existing *models.Record) (*models.Record, error) {
		rec := existing
		if rec == nil {
			rec = models.NewRecord(id.NewVerificationID(), candidateID, now)
		}
		if err := rec.CheckNotBarred(); err != nil {
			return nil, err
		}
		declared := sub.Declared
		declared.Number = models.NormaliseWWCCNumber(declared.Number)
		rec.ApplyWWCCSubmission(declared, sub.Documents, now)
		return rec, nil
	})
	if err != nil {
		return nil, translate(err, "failed to store wwcc submission")
	}

	s.emit(ctx, rec, audit.EventWWCCSubmitted, string(rec.WWCC.Status), string(rec.WWCC.Declared.Method))
	s.logger.InfoContext(ctx, "wwcc submitted",
		"verification_id", rec.ID.String(),
		"method", string(rec.WWCC.Declared.Method),
		"generation", rec.WWCC.Generation,
	)
	return rec, nil
}
