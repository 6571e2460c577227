package models

import (
	"maps"
	"slices"
	"strings"
	"time"
	"unicode"

	id "carecheck/pkg/domain"
	dErrors "carecheck/pkg/domain-errors"
)

// Keys used in ExtractedFields. Extractors may return others; these are the ones compared.
const (
	FieldSurname         = "surname"
	FieldGivenNames      = "given_names"
	FieldDateOfBirth     = "date_of_birth"
	FieldPassportCountry = "passport_country"
	FieldDocumentNumber  = "document_number"
	FieldWWCCNumber      = "wwcc_number"
	FieldExpiryDate      = "expiry_date"
)

// IssueAutoCheckTimedOut is appended when a stuck automated check is escalated.
const IssueAutoCheckTimedOut = "auto-check timed out"

// DocumentRef points at an uploaded file in document storage.
type DocumentRef struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type,omitempty"`
}

// ExtractedFields holds values read from documents by the extraction service.
type ExtractedFields map[string]string

// IdentityDeclared is what the candidate typed in about themselves.
type IdentityDeclared struct {
	Surname         string `json:"surname"`
	GivenNames      string `json:"given_names"`
	DateOfBirth     string `json:"date_of_birth"`
	PassportCountry string `json:"passport_country"`
}

// WWCCDeclared is the candidate's WWCC submission. The name and date of birth
// are as they appear on the clearance; the OCG checks against them.
type WWCCDeclared struct {
	Method      WWCCMethod `json:"method"`
	Number      string     `json:"number"`
	Expiry      string     `json:"expiry"`
	FamilyName  string     `json:"family_name"`
	GivenNames  string     `json:"given_names,omitempty"`
	DateOfBirth string     `json:"date_of_birth"`
}

// OCGResult is the last authoritative result applied to the record.
type OCGResult struct {
	ResultStatus string    `json:"result_status"`
	ResultText   string    `json:"result_text,omitempty"`
	Reference    string    `json:"reference_number"`
	ExpiryDate   string    `json:"expiry_date,omitempty"`
	EmployerID   string    `json:"employer_id,omitempty"`
	VerifiedAt   string    `json:"verified_at,omitempty"`
	AppliedAt    time.Time `json:"applied_at"`
}

type IdentitySection struct {
	// Generation counts identity submissions. The identity phase refuses to
	// write once it has moved.
	Generation      int64
	Declared        IdentityDeclared
	Documents       []DocumentRef
	Status          IdentityStatus
	StatusAt        time.Time
	Extracted       ExtractedFields
	Issues          []string
	RejectionReason string
}

type WWCCSection struct {
	// Generation counts WWCC submissions. The WWCC phase refuses to write once
	// it has moved.
	Generation      int64
	Declared        WWCCDeclared
	Documents       []DocumentRef
	Status          WWCCStatus
	StatusAt        time.Time
	Extracted       ExtractedFields
	Issues          []string
	RejectionReason string
	OCG             *OCGResult
}

type CrossCheckSection struct {
	Status   CrossCheckStatus
	StatusAt time.Time
	Issues   []string
}

// Record is the single verification record held per candidate.
type Record struct {
	ID          id.VerificationID
	CandidateID id.CandidateID
	// ContactEmail receives failure notifications. Optional.
	ContactEmail string
	Identity     IdentitySection
	WWCC         WWCCSection
	CrossCheck   CrossCheckSection
	// Generation increments on a resubmission of either section. The
	// cross-check depends on both, so it is keyed on this counter.
	Generation int64
	// FollowUpPending marks a record whose dependent phase could not be scheduled.
	FollowUpPending bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewRecord returns a record with every section not started.
func NewRecord(recordID id.VerificationID, candidateID id.CandidateID, now time.Time) *Record {
	return &Record{
		ID:          recordID,
		CandidateID: candidateID,
		Identity:    IdentitySection{Status: IdentityNotStarted},
		WWCC:        WWCCSection{Status: WWCCNotStarted},
		CrossCheck:  CrossCheckSection{Status: CrossCheckNotStarted},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// OverallStatus derives the legacy code from the current section statuses.
func (r *Record) OverallStatus() OverallStatus {
	return DeriveOverallStatus(r.Identity.Status, r.WWCC.Status, r.CrossCheck.Status)
}

// IsBarred reports whether the OCG has barred the candidate.
func (r *Record) IsBarred() bool {
	return r.WWCC.Status.IsTerminal()
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := *r
	c.Identity.Documents = slices.Clone(r.Identity.Documents)
	c.Identity.Extracted = maps.Clone(r.Identity.Extracted)
	c.Identity.Issues = slices.Clone(r.Identity.Issues)
	c.WWCC.Documents = slices.Clone(r.WWCC.Documents)
	c.WWCC.Extracted = maps.Clone(r.WWCC.Extracted)
	c.WWCC.Issues = slices.Clone(r.WWCC.Issues)
	if r.WWCC.OCG != nil {
		ocg := *r.WWCC.OCG
		c.WWCC.OCG = &ocg
	}
	c.CrossCheck.Issues = slices.Clone(r.CrossCheck.Issues)
	return &c
}

// SetIdentityStatus moves the identity section. StatusAt only moves on a real change.
func (r *Record) SetIdentityStatus(s IdentityStatus, now time.Time) {
	if r.Identity.Status != s {
		r.Identity.Status = s
		r.Identity.StatusAt = now
	}
	r.UpdatedAt = now
}

// SetWWCCStatus moves the WWCC section. StatusAt only moves on a real change.
func (r *Record) SetWWCCStatus(s WWCCStatus, now time.Time) {
	if r.WWCC.Status != s {
		r.WWCC.Status = s
		r.WWCC.StatusAt = now
	}
	r.UpdatedAt = now
}

// SetCrossCheckStatus moves the cross-check section. StatusAt only moves on a real change.
func (r *Record) SetCrossCheckStatus(s CrossCheckStatus, now time.Time) {
	if r.CrossCheck.Status != s {
		r.CrossCheck.Status = s
		r.CrossCheck.StatusAt = now
	}
	r.UpdatedAt = now
}

// CheckNotBarred guards every mutation except reads.
func (r *Record) CheckNotBarred() error {
	if r.IsBarred() {
		return dErrors.New(dErrors.CodeInvariantViolation, "candidate is barred; record is closed to changes")
	}
	return nil
}

// ApplyIdentitySubmission stores a fresh identity submission and discards prior AI output.
func (r *Record) ApplyIdentitySubmission(declared IdentityDeclared, docs []DocumentRef, now time.Time) {
	r.Identity.Declared = declared
	r.Identity.Documents = slices.Clone(docs)
	r.Identity.Extracted = nil
	r.Identity.Issues = nil
	r.Identity.RejectionReason = ""
	r.SetIdentityStatus(IdentityPending, now)
	r.resetCrossCheck(now)
	r.Identity.Generation++
	r.Generation++
}

// ApplyWWCCSubmission stores a fresh WWCC submission and discards prior AI and OCG output.
func (r *Record) ApplyWWCCSubmission(declared WWCCDeclared, docs []DocumentRef, now time.Time) {
	r.WWCC.Declared = declared
	r.WWCC.Documents = slices.Clone(docs)
	r.WWCC.Extracted = nil
	r.WWCC.Issues = nil
	r.WWCC.RejectionReason = ""
	r.WWCC.OCG = nil
	r.SetWWCCStatus(WWCCPending, now)
	r.resetCrossCheck(now)
	r.WWCC.Generation++
	r.Generation++
}

// PhaseGeneration is the counter a phase captures at start and checks before
// writing. Each document phase is keyed on its own section, so a resubmission
// of the other section does not void its result.
func (r *Record) PhaseGeneration(p Phase) int64 {
	switch p {
	case PhaseIdentity:
		return r.Identity.Generation
	case PhaseWWCC:
		return r.WWCC.Generation
	case PhaseCrossCheck:
	}
	return r.Generation
}

// NormaliseWWCCNumber strips spacing, punctuation and case from a WWCC number
// so declared, extracted and OCG reference numbers compare equal.
func NormaliseWWCCNumber(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ReadyForCrossCheck reports whether both inputs to the cross-check are favourable.
func (r *Record) ReadyForCrossCheck() bool {
	if r.Identity.Status != IdentityVerified {
		return false
	}
	return r.WWCC.Status == WWCCDocVerified || r.WWCC.Status == WWCCOCGVerified
}

// ScheduleCrossCheck marks the cross-check pending when both inputs are favourable
// and it has not already settled. Returns true when a run should be dispatched.
func (r *Record) ScheduleCrossCheck(now time.Time) bool {
	if !r.ReadyForCrossCheck() {
		return false
	}
	switch r.CrossCheck.Status {
	case CrossCheckPassed, CrossCheckReview:
		return false
	case CrossCheckNotStarted, CrossCheckPending, CrossCheckProcessing:
	}
	r.CrossCheck.Issues = nil
	r.SetCrossCheckStatus(CrossCheckPending, now)
	return true
}

// ApplyIdentityVerified records a manual identity approval.
func (r *Record) ApplyIdentityVerified(now time.Time) bool {
	r.Identity.RejectionReason = ""
	r.SetIdentityStatus(IdentityVerified, now)
	return r.ScheduleCrossCheck(now)
}

// ApplyIdentityRejected records a manual identity rejection. Any OCG clearance is
// voided so a fresh CLEARED result is required afterwards.
func (r *Record) ApplyIdentityRejected(reason string, now time.Time) {
	r.Identity.RejectionReason = reason
	r.SetIdentityStatus(IdentityRejected, now)
	r.resetCrossCheck(now)
	r.voidOCGClearance(now)
}

// CanConfirmWWCC checks a manual WWCC confirmation is allowed.
func (r *Record) CanConfirmWWCC() error {
	if err := r.CheckNotBarred(); err != nil {
		return err
	}
	if r.WWCC.Status == WWCCNotStarted {
		return dErrors.New(dErrors.CodeConflict, "no wwcc submission to confirm")
	}
	if r.WWCC.Status == WWCCOCGVerified {
		return dErrors.New(dErrors.CodeConflict, "wwcc already cleared by OCG")
	}
	return nil
}

// ApplyWWCCConfirmed records a manual substitute for the WWCC document phase.
func (r *Record) ApplyWWCCConfirmed(now time.Time) bool {
	r.WWCC.RejectionReason = ""
	r.SetWWCCStatus(WWCCDocVerified, now)
	return r.ScheduleCrossCheck(now)
}

// ApplyWWCCRejected records a manual WWCC rejection.
func (r *Record) ApplyWWCCRejected(reason string, now time.Time) {
	r.WWCC.RejectionReason = reason
	r.WWCC.OCG = nil
	r.SetWWCCStatus(WWCCRejected, now)
	r.resetCrossCheck(now)
}

// CanApproveCrossCheck checks the cross-check is waiting on a human.
func (r *Record) CanApproveCrossCheck() error {
	if err := r.CheckNotBarred(); err != nil {
		return err
	}
	if r.CrossCheck.Status != CrossCheckReview {
		return dErrors.New(dErrors.CodeConflict, "cross-check is not awaiting review")
	}
	return nil
}

// ApplyCrossCheckApproved settles a reviewed cross-check as passed.
func (r *Record) ApplyCrossCheckApproved(now time.Time) {
	r.SetCrossCheckStatus(CrossCheckPassed, now)
}

// ApplyOCGResult records an authoritative result. Returns true when the result
// completes the inputs for a cross-check that still needs to run.
func (r *Record) ApplyOCGResult(result OCGResult, status WWCCStatus, now time.Time) bool {
	r.WWCC.OCG = &result
	r.SetWWCCStatus(status, now)
	switch status {
	case WWCCOCGVerified:
		return r.ScheduleCrossCheck(now)
	case WWCCReview:
		r.WWCC.Issues = append(r.WWCC.Issues, "unrecognised OCG result: "+result.ResultStatus)
	default:
		r.WWCC.Issues = append(r.WWCC.Issues, "OCG result: "+result.ResultStatus)
	}
	r.resetCrossCheck(now)
	return false
}

func (r *Record) resetCrossCheck(now time.Time) {
	r.FollowUpPending = false
	if r.CrossCheck.Status == CrossCheckNotStarted {
		return
	}
	r.CrossCheck.Issues = nil
	r.SetCrossCheckStatus(CrossCheckNotStarted, now)
}

func (r *Record) voidOCGClearance(now time.Time) {
	if r.WWCC.Status == WWCCOCGVerified {
		r.WWCC.OCG = nil
		r.SetWWCCStatus(WWCCDocVerified, now)
	}
}
