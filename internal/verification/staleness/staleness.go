// Package staleness escalates automated checks that have been in flight too
// long. It runs on the read path; there is no background timer.
package staleness

import (
	"time"

	"carecheck/internal/verification/models"
)

// DefaultThreshold is how long a record may sit untouched in an automated check.
const DefaultThreshold = 3 * time.Minute

// Section names an escalated part of the record.
type Section string

const (
	SectionIdentity Section = "identity"
	SectionWWCC     Section = "wwcc"
)

// IsStale reports whether rec has an automated check in flight and has not
// been written for longer than threshold. A barred record is never stale.
func IsStale(rec *models.Record, now time.Time, threshold time.Duration) bool {
	if rec.IsBarred() || now.Sub(rec.UpdatedAt) <= threshold {
		return false
	}
	return rec.Identity.Status.IsAutoInFlight() || rec.WWCC.Status.IsAutoInFlight()
}

// Escalate moves each stale in-flight section to review with a timeout issue
// and returns the sections it touched. Once escalated the record is no longer
// in flight, so a second call is a no-op.
func Escalate(rec *models.Record, now time.Time, threshold time.Duration) []Section {
	if !IsStale(rec, now, threshold) {
		return nil
	}
	var escalated []Section
	if rec.Identity.Status.IsAutoInFlight() {
		rec.Identity.Issues = append(rec.Identity.Issues, models.IssueAutoCheckTimedOut)
		rec.SetIdentityStatus(models.IdentityReview, now)
		escalated = append(escalated, SectionIdentity)
	}
	if rec.WWCC.Status.IsAutoInFlight() {
		rec.WWCC.Issues = append(rec.WWCC.Issues, models.IssueAutoCheckTimedOut)
		rec.SetWWCCStatus(models.WWCCReview, now)
		escalated = append(escalated, SectionWWCC)
	}
	return escalated
}
