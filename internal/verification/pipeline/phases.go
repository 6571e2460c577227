package pipeline

import (
	"context"
	"strings"
	"time"

	"carecheck/internal/verification/models"
	"carecheck/internal/verification/ports"
	id "carecheck/pkg/domain"
	strutil "carecheck/pkg/platform/strings"
	"carecheck/pkg/requestcontext"
)

const (
	labelDeclared = "declared details"
	labelIdentity = "identity document"
	labelWWCC     = "wwcc"
)

type identityOutcome struct {
	status    models.IdentityStatus
	extracted models.ExtractedFields
	issues    []string
}

// RunIdentityPhase extracts the identity document and compares it with what
// the candidate declared.
func (o *Orchestrator) RunIdentityPhase(ctx context.Context, recordID id.VerificationID) (err error) {
	ctx, cancel := context.WithTimeout(ctx, o.phaseTimeout)
	defer cancel()
	ctx, span := o.startSpan(ctx, models.PhaseIdentity, recordID)
	defer func() { endSpan(span, err) }()

	run, release, skipped, err := o.begin(ctx, recordID, models.PhaseIdentity,
		(*models.Record).CanStartIdentityPhase,
		func(r *models.Record, now time.Time) { r.SetIdentityStatus(models.IdentityProcessing, now) },
	)
	if err != nil || skipped {
		return err
	}
	defer release()

	outcome := o.checkIdentity(ctx, run.snapshot)
	rec, scheduled, err := o.finish(ctx, run,
		func(r *models.Record) bool { return r.Identity.Status == models.IdentityProcessing },
		func(r *models.Record, now time.Time) bool {
			r.Identity.Extracted = outcome.extracted
			r.Identity.Issues = outcome.issues
			r.SetIdentityStatus(outcome.status, now)
			if outcome.status == models.IdentityVerified {
				return r.ScheduleCrossCheck(now)
			}
			return false
		},
	)
	if err != nil || rec == nil {
		return err
	}
	o.complete(ctx, run, rec, string(outcome.status), scheduled)
	return nil
}

func (o *Orchestrator) checkIdentity(ctx context.Context, rec *models.Record) identityOutcome {
	declared := rec.Identity.Declared
	docs, err := o.fetchDocuments(ctx, rec.Identity.Documents)
	if err != nil {
		return identityOutcome{status: models.IdentityFailed, issues: []string{"document fetch failed: " + err.Error()}}
	}
	res, err := o.extractor.Extract(ctx, ports.ExtractionRequest{
		Kind:      ports.KindIdentityDocument,
		Documents: docs,
		Declared: map[string]string{
			models.FieldSurname:         declared.Surname,
			models.FieldGivenNames:      declared.GivenNames,
			models.FieldDateOfBirth:     declared.DateOfBirth,
			models.FieldPassportCountry: declared.PassportCountry,
		},
	})
	if err != nil {
		return identityOutcome{status: models.IdentityFailed, issues: []string{"extraction failed: " + err.Error()}}
	}

	issues := strutil.DedupeAndTrim(res.Issues)
	if !res.Pass {
		if len(issues) == 0 {
			issues = []string{"document failed authenticity checks"}
		}
		return identityOutcome{status: models.IdentityRejected, extracted: res.Fields, issues: issues}
	}

	mismatches := comparePeople(labelDeclared, person{
		Surname:     declared.Surname,
		GivenNames:  declared.GivenNames,
		DateOfBirth: declared.DateOfBirth,
	}, labelIdentity, person{
		Surname:     res.Fields[models.FieldSurname],
		GivenNames:  res.Fields[models.FieldGivenNames],
		DateOfBirth: res.Fields[models.FieldDateOfBirth],
	})
	if strings.TrimSpace(res.Fields[models.FieldGivenNames]) == "" && strings.TrimSpace(declared.GivenNames) != "" {
		mismatches = append(mismatches, "given names not found on "+labelIdentity)
	}
	if country := res.Fields[models.FieldPassportCountry]; country != "" && declared.PassportCountry != "" &&
		normaliseName(country) != normaliseName(declared.PassportCountry) {
		mismatches = append(mismatches, "passport country mismatch between "+labelDeclared+" and "+labelIdentity)
	}
	if len(mismatches) > 0 {
		return identityOutcome{status: models.IdentityReview, extracted: res.Fields, issues: append(issues, mismatches...)}
	}
	return identityOutcome{status: models.IdentityVerified, extracted: res.Fields, issues: issues}
}

type wwccOutcome struct {
	status    models.WWCCStatus
	extracted models.ExtractedFields
	issues    []string
}

// RunWWCCDocPhase checks the WWCC evidence the candidate supplied. Success is
// doc_verified, which still awaits the OCG.
func (o *Orchestrator) RunWWCCDocPhase(ctx context.Context, recordID id.VerificationID) (err error) {
	ctx, cancel := context.WithTimeout(ctx, o.phaseTimeout)
	defer cancel()
	ctx, span := o.startSpan(ctx, models.PhaseWWCC, recordID)
	defer func() { endSpan(span, err) }()

	run, release, skipped, err := o.begin(ctx, recordID, models.PhaseWWCC,
		(*models.Record).CanStartWWCCPhase,
		func(r *models.Record, now time.Time) { r.SetWWCCStatus(models.WWCCProcessing, now) },
	)
	if err != nil || skipped {
		return err
	}
	defer release()

	outcome := o.checkWWCC(ctx, run.snapshot)
	rec, scheduled, err := o.finish(ctx, run,
		func(r *models.Record) bool { return r.WWCC.Status == models.WWCCProcessing },
		func(r *models.Record, now time.Time) bool {
			r.WWCC.Extracted = outcome.extracted
			r.WWCC.Issues = outcome.issues
			r.SetWWCCStatus(outcome.status, now)
			if outcome.status == models.WWCCDocVerified {
				return r.ScheduleCrossCheck(now)
			}
			return false
		},
	)
	if err != nil || rec == nil {
		return err
	}
	o.complete(ctx, run, rec, string(outcome.status), scheduled)
	return nil
}

func (o *Orchestrator) checkWWCC(ctx context.Context, rec *models.Record) wwccOutcome {
	declared := rec.WWCC.Declared
	var (
		fields   models.ExtractedFields
		issues   []string
		mismatch bool
	)

	switch declared.Method {
	case models.WWCCMethodManualEntry:
		fields = models.ExtractedFields{
			models.FieldWWCCNumber:  declared.Number,
			models.FieldExpiryDate:  declared.Expiry,
			models.FieldSurname:     declared.FamilyName,
			models.FieldGivenNames:  declared.GivenNames,
			models.FieldDateOfBirth: declared.DateOfBirth,
		}
	case models.WWCCMethodGrantEmail, models.WWCCMethodScreenshot:
		kind := ports.KindWWCCScreenshot
		if declared.Method == models.WWCCMethodGrantEmail {
			kind = ports.KindWWCCGrantPDF
		}
		docs, err := o.fetchDocuments(ctx, rec.WWCC.Documents)
		if err != nil {
			return wwccOutcome{status: models.WWCCFailed, issues: []string{"document fetch failed: " + err.Error()}}
		}
		res, err := o.extractor.Extract(ctx, ports.ExtractionRequest{
			Kind:      kind,
			Documents: docs,
			Declared: map[string]string{
				models.FieldWWCCNumber:  declared.Number,
				models.FieldExpiryDate:  declared.Expiry,
				models.FieldSurname:     declared.FamilyName,
				models.FieldDateOfBirth: declared.DateOfBirth,
			},
		})
		if err != nil {
			return wwccOutcome{status: models.WWCCFailed, issues: []string{"extraction failed: " + err.Error()}}
		}
		fields = res.Fields
		issues = strutil.DedupeAndTrim(res.Issues)
		if !res.Pass {
			if len(issues) == 0 {
				issues = []string{"document failed authenticity checks"}
			}
			return wwccOutcome{status: models.WWCCRejected, extracted: fields, issues: issues}
		}
		switch extracted := fields[models.FieldWWCCNumber]; {
		case strings.TrimSpace(extracted) == "":
			issues = append(issues, "wwcc number not found on document")
			mismatch = true
		case models.NormaliseWWCCNumber(extracted) != models.NormaliseWWCCNumber(declared.Number):
			issues = append(issues, "wwcc number on document does not match declared number")
			mismatch = true
		}
	default:
		return wwccOutcome{status: models.WWCCFailed, issues: []string{"unsupported wwcc method " + string(declared.Method)}}
	}

	expiry := fields[models.FieldExpiryDate]
	if strings.TrimSpace(expiry) == "" {
		expiry = declared.Expiry
	}
	expiresOn, ok := parseDate(expiry)
	if !ok {
		issues = append(issues, "wwcc expiry date missing or unreadable")
		return wwccOutcome{status: models.WWCCReview, extracted: fields, issues: issues}
	}
	if expiresOn.Before(today(requestcontext.Now(ctx))) {
		issues = append(issues, "wwcc expired on "+expiresOn.Format("2006-01-02"))
		return wwccOutcome{status: models.WWCCExpired, extracted: fields, issues: issues}
	}
	if mismatch {
		return wwccOutcome{status: models.WWCCReview, extracted: fields, issues: issues}
	}
	return wwccOutcome{status: models.WWCCDocVerified, extracted: fields, issues: issues}
}

func today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RunCrossCheckPhase compares the identity document's name and date of birth
// with the WWCC holder's. It runs only once both inputs are favourable.
func (o *Orchestrator) RunCrossCheckPhase(ctx context.Context, recordID id.VerificationID) (err error) {
	ctx, cancel := context.WithTimeout(ctx, o.phaseTimeout)
	defer cancel()
	ctx, span := o.startSpan(ctx, models.PhaseCrossCheck, recordID)
	defer func() { endSpan(span, err) }()

	run, release, skipped, err := o.begin(ctx, recordID, models.PhaseCrossCheck,
		(*models.Record).CanStartCrossCheck,
		func(r *models.Record, now time.Time) { r.SetCrossCheckStatus(models.CrossCheckProcessing, now) },
	)
	if err != nil || skipped {
		return err
	}
	defer release()

	issues := crossCheckIssues(run.snapshot)
	status := models.CrossCheckPassed
	if len(issues) > 0 {
		status = models.CrossCheckReview
	}
	rec, _, err := o.finish(ctx, run,
		func(r *models.Record) bool {
			return r.CrossCheck.Status == models.CrossCheckProcessing && r.ReadyForCrossCheck()
		},
		func(r *models.Record, now time.Time) bool {
			r.CrossCheck.Issues = issues
			r.SetCrossCheckStatus(status, now)
			r.FollowUpPending = false
			return false
		},
	)
	if err != nil || rec == nil {
		return err
	}
	o.complete(ctx, run, rec, string(status), false)
	return nil
}

// crossCheckIssues compares the two sides. Each side prefers extracted values
// and falls back to declared ones, which covers admin approvals made without
// a successful extraction.
func crossCheckIssues(rec *models.Record) []string {
	identity := person{
		Surname:     firstNonEmpty(rec.Identity.Extracted[models.FieldSurname], rec.Identity.Declared.Surname),
		GivenNames:  firstNonEmpty(rec.Identity.Extracted[models.FieldGivenNames], rec.Identity.Declared.GivenNames),
		DateOfBirth: firstNonEmpty(rec.Identity.Extracted[models.FieldDateOfBirth], rec.Identity.Declared.DateOfBirth),
	}
	wwcc := person{
		Surname:     firstNonEmpty(rec.WWCC.Extracted[models.FieldSurname], rec.WWCC.Declared.FamilyName),
		GivenNames:  firstNonEmpty(rec.WWCC.Extracted[models.FieldGivenNames], rec.WWCC.Declared.GivenNames),
		DateOfBirth: firstNonEmpty(rec.WWCC.Extracted[models.FieldDateOfBirth], rec.WWCC.Declared.DateOfBirth),
	}
	if strings.TrimSpace(wwcc.Surname) == "" {
		return []string{"wwcc holder name unavailable"}
	}
	return comparePeople(labelIdentity, identity, labelWWCC, wwcc)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
