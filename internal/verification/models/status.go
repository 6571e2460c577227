package models

import (
	"fmt"
)

// IdentityStatus is the state of the identity-document section.
type IdentityStatus string

const (
	IdentityNotStarted IdentityStatus = "not_started"
	IdentityPending    IdentityStatus = "pending"
	IdentityProcessing IdentityStatus = "processing"
	IdentityVerified   IdentityStatus = "verified"
	IdentityReview     IdentityStatus = "review"
	IdentityRejected   IdentityStatus = "rejected"
	IdentityFailed     IdentityStatus = "failed"
)

// AllIdentityStatuses lists every identity status in declaration order.
var AllIdentityStatuses = []IdentityStatus{
	IdentityNotStarted, IdentityPending, IdentityProcessing, IdentityVerified,
	IdentityReview, IdentityRejected, IdentityFailed,
}

// ParseIdentityStatus converts a stored value. Unknown values are an error.
func ParseIdentityStatus(s string) (IdentityStatus, error) {
	for _, v := range AllIdentityStatuses {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown identity status %q", s)
}

// IsAutoInFlight reports whether the automated identity check owns the section.
func (s IdentityStatus) IsAutoInFlight() bool {
	return s == IdentityPending || s == IdentityProcessing
}

// IsFailure reports whether the status warrants a "please act" notification.
func (s IdentityStatus) IsFailure() bool {
	return s == IdentityFailed || s == IdentityRejected
}

func (s IdentityStatus) String() string { return string(s) }

// WWCCStatus is the state of the Working With Children Check section.
type WWCCStatus string

const (
	WWCCNotStarted         WWCCStatus = "not_started"
	WWCCPending            WWCCStatus = "pending"
	WWCCProcessing         WWCCStatus = "processing"
	WWCCDocVerified        WWCCStatus = "doc_verified"
	WWCCReview             WWCCStatus = "review"
	WWCCRejected           WWCCStatus = "rejected"
	WWCCFailed             WWCCStatus = "failed"
	WWCCExpired            WWCCStatus = "expired"
	WWCCOCGNotFound        WWCCStatus = "ocg_not_found"
	WWCCClosed             WWCCStatus = "closed"
	WWCCApplicationPending WWCCStatus = "application_pending"
	WWCCBarred             WWCCStatus = "barred"
	WWCCOCGVerified        WWCCStatus = "ocg_verified"
)

// AllWWCCStatuses lists every WWCC status in declaration order.
var AllWWCCStatuses = []WWCCStatus{
	WWCCNotStarted, WWCCPending, WWCCProcessing, WWCCDocVerified, WWCCReview,
	WWCCRejected, WWCCFailed, WWCCExpired, WWCCOCGNotFound, WWCCClosed,
	WWCCApplicationPending, WWCCBarred, WWCCOCGVerified,
}

// ParseWWCCStatus converts a stored value. Unknown values are an error.
func ParseWWCCStatus(s string) (WWCCStatus, error) {
	for _, v := range AllWWCCStatuses {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown wwcc status %q", s)
}

// IsAutoInFlight reports whether the automated document check owns the section.
// doc_verified is excluded: it waits on the OCG, which can take days.
func (s WWCCStatus) IsAutoInFlight() bool {
	return s == WWCCPending || s == WWCCProcessing
}

// IsFailure reports whether the status warrants a "please act" notification.
func (s WWCCStatus) IsFailure() bool {
	switch s {
	case WWCCFailed, WWCCRejected, WWCCExpired, WWCCOCGNotFound:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s WWCCStatus) IsTerminal() bool {
	return s == WWCCBarred
}

func (s WWCCStatus) String() string { return string(s) }

// CrossCheckStatus is the state of the identity/WWCC comparison.
type CrossCheckStatus string

const (
	CrossCheckNotStarted CrossCheckStatus = "not_started"
	CrossCheckPending    CrossCheckStatus = "pending"
	CrossCheckProcessing CrossCheckStatus = "processing"
	CrossCheckPassed     CrossCheckStatus = "passed"
	CrossCheckReview     CrossCheckStatus = "review"
)

// AllCrossCheckStatuses lists every cross-check status in declaration order.
var AllCrossCheckStatuses = []CrossCheckStatus{
	CrossCheckNotStarted, CrossCheckPending, CrossCheckProcessing, CrossCheckPassed, CrossCheckReview,
}

// ParseCrossCheckStatus converts a stored value. Unknown values are an error.
func ParseCrossCheckStatus(s string) (CrossCheckStatus, error) {
	for _, v := range AllCrossCheckStatuses {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown cross-check status %q", s)
}

func (s CrossCheckStatus) String() string { return string(s) }

// WWCCMethod is how the candidate evidenced their WWCC.
type WWCCMethod string

const (
	WWCCMethodGrantEmail  WWCCMethod = "grant_email"
	WWCCMethodScreenshot  WWCCMethod = "screenshot"
	WWCCMethodManualEntry WWCCMethod = "manual_entry"
)

// ParseWWCCMethod validates a submission method.
func ParseWWCCMethod(s string) (WWCCMethod, error) {
	switch m := WWCCMethod(s); m {
	case WWCCMethodGrantEmail, WWCCMethodScreenshot, WWCCMethodManualEntry:
		return m, nil
	}
	return "", fmt.Errorf("unknown wwcc method %q", s)
}

// RequiresDocuments reports whether the method is evidenced by uploaded files.
func (m WWCCMethod) RequiresDocuments() bool {
	return m != WWCCMethodManualEntry
}

func (m WWCCMethod) String() string { return string(m) }
