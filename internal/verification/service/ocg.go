package service

import (
	"context"
	"errors"
	"strings"

	"carecheck/internal/verification/models"
	"carecheck/internal/verification/ocg"
	"carecheck/internal/verification/pipeline"
	id "carecheck/pkg/domain"
	dErrors "carecheck/pkg/domain-errors"
	"carecheck/pkg/platform/audit"
	"carecheck/pkg/requestcontext"
)

var errRecordTerminal = errors.New("record is barred")

// AppliedResult is one OCG row written to a record.
type AppliedResult struct {
	VerificationID  id.VerificationID
	ReferenceNumber string
	ResultStatus    string
	Status          models.WWCCStatus
}

// IngestSummary reports what happened to each row of an OCG email.
type IngestSummary struct {
	EmployerID string
	Applied    []AppliedResult
	// Unmatched rows had no record with that WWCC number and family name, or
	// more than one.
	Unmatched []ocg.Result
	// Ignored rows matched a barred record, which accepts no further results.
	Ignored []ocg.Result
}

// ParseAuthoritativeEmail extracts the structured content of an OCG
// notification. A structurally incomplete email is CodeMalformedInput and
// should be routed to manual review.
func ParseAuthoritativeEmail(html string) (*ocg.Email, error) {
	email, err := ocg.ParseString(html)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeMalformedInput, "ocg email could not be parsed")
	}
	return email, nil
}

// IngestOCGEmail parses an OCG notification and applies each result to the
// record holding that WWCC number and family name.
func (s *Service) IngestOCGEmail(ctx context.Context, html string) (*IngestSummary, error) {
	email, err := ParseAuthoritativeEmail(html)
	if err != nil {
		s.logger.WarnContext(ctx, "rejected malformed ocg email", "error", err)
		if s.auditor != nil {
			if emitErr := s.auditor.Emit(ctx, audit.Event{
				Timestamp: requestcontext.Now(ctx),
				Action:    string(audit.EventOCGEmailRejected),
				Decision:  "manual_review",
				Reason:    err.Error(),
			}); emitErr != nil {
				s.logger.WarnContext(ctx, "failed to emit audit event", "error", emitErr)
			}
		}
		return nil, err
	}

	summary := &IngestSummary{EmployerID: email.EmployerID}
	for _, result := range email.Results {
		rec, err := s.matchResult(ctx, result)
		if err != nil {
			return summary, err
		}
		if rec == nil {
			s.metrics.IncrementOCGResult("unmatched")
			s.logger.WarnContext(ctx, "ocg result matched no single record",
				"reference_number", result.ReferenceNumber,
			)
			summary.Unmatched = append(summary.Unmatched, result)
			continue
		}

		applied, err := s.applyResult(ctx, rec.ID, email, result)
		if errors.Is(err, errRecordTerminal) {
			s.metrics.IncrementOCGResult("ignored")
			s.logger.InfoContext(ctx, "ignoring ocg result for barred record",
				"verification_id", rec.ID.String(),
				"result_status", result.ResultStatus,
			)
			summary.Ignored = append(summary.Ignored, result)
			continue
		}
		if err != nil {
			return summary, translate(err, "failed to apply ocg result")
		}
		summary.Applied = append(summary.Applied, *applied)
	}

	s.logger.InfoContext(ctx, "ocg email ingested",
		"employer_id", email.EmployerID,
		"applied", len(summary.Applied),
		"unmatched", len(summary.Unmatched),
		"ignored", len(summary.Ignored),
	)
	return summary, nil
}

// matchResult finds the one record whose WWCC number matches the row and whose
// family name agrees. Nil when there is no such record or it is ambiguous.
func (s *Service) matchResult(ctx context.Context, result ocg.Result) (*models.Record, error) {
	number := models.NormaliseWWCCNumber(result.ReferenceNumber)
	if number == "" {
		return nil, nil
	}
	candidates, err := s.store.FindByWWCCNumber(ctx, number)
	if err != nil {
		return nil, translate(err, "failed to look up wwcc number")
	}
	var match *models.Record
	for _, rec := range candidates {
		familyName := rec.WWCC.Declared.FamilyName
		if strings.TrimSpace(familyName) == "" {
			familyName = rec.Identity.Declared.Surname
		}
		if !pipeline.SameSurname(familyName, result.FamilyName) {
			continue
		}
		if match != nil {
			return nil, nil
		}
		match = rec
	}
	return match, nil
}

func (s *Service) applyResult(ctx context.Context, recordID id.VerificationID, email *ocg.Email, result ocg.Result) (*AppliedResult, error) {
	now := requestcontext.Now(ctx)
	status := ocg.MapResultStatus(result.ResultStatus)
	stored := models.OCGResult{
		ResultStatus: result.ResultStatus,
		ResultText:   result.ResultText,
		Reference:    result.ReferenceNumber,
		EmployerID:   email.EmployerID,
		VerifiedAt:   email.VerificationDatetime,
		AppliedAt:    now,
	}
	if result.ExpiryDate != nil {
		stored.ExpiryDate = *result.ExpiryDate
	}

	var scheduled bool
	rec, err := s.store.Execute(ctx, recordID,
		func(r *models.Record) error {
			if r.IsBarred() {
				return errRecordTerminal
			}
			return nil
		},
		func(r *models.Record) {
			scheduled = r.ApplyOCGResult(stored, status, now)
		},
	)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementOCGResult(string(status))
	s.emit(ctx, rec, audit.EventOCGResultApplied, string(status), result.ResultStatus)
	s.logger.InfoContext(ctx, "ocg result applied",
		"verification_id", rec.ID.String(),
		"result_status", result.ResultStatus,
		"wwcc_status", string(status),
		"overall_status", rec.OverallStatus().Code(),
	)
	if scheduled {
		s.phases.ScheduleCrossCheck(ctx, rec, models.PhaseWWCC)
	}
	return &AppliedResult{
		VerificationID:  rec.ID,
		ReferenceNumber: result.ReferenceNumber,
		ResultStatus:    result.ResultStatus,
		Status:          status,
	}, nil
}
