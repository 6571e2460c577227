// Package notify sends "please act" notifications to candidates whose checks
// failed, at most once per failure episode.
package notify

import (
	"context"
	"fmt"
	"time"

	"carecheck/internal/verification/models"
	"carecheck/internal/verification/ports"
)

// transitionWindow is how close the record's last write must be to the
// section's status change for the notification to describe that change.
const transitionWindow = 2 * time.Second

// ShouldNotify reports whether the failure currently held in the section for
// typ deserves a notification. Both must hold:
//   - the record was last written within two seconds of the section status
//     changing, so an unrelated later write does not re-announce an old failure;
//   - nothing of that type has been sent since the status changed.
func ShouldNotify(ctx context.Context, rec *models.Record, typ ports.NotificationType, log ports.NotificationLog) (bool, error) {
	statusAt, failing := sectionFailure(rec, typ)
	if !failing {
		return false, nil
	}
	if gap := rec.UpdatedAt.Sub(statusAt).Abs(); gap > transitionWindow {
		return false, nil
	}
	last, err := log.LastSent(ctx, rec.CandidateID, typ)
	if err != nil {
		return false, fmt.Errorf("read notification log: %w", err)
	}
	return last == nil || last.Before(statusAt), nil
}

func sectionFailure(rec *models.Record, typ ports.NotificationType) (time.Time, bool) {
	switch typ {
	case ports.NotificationIdentityCheckFailed:
		return rec.Identity.StatusAt, rec.Identity.Status.IsFailure()
	case ports.NotificationWWCCCheckFailed:
		return rec.WWCC.StatusAt, rec.WWCC.Status.IsFailure()
	default:
		return time.Time{}, false
	}
}

func sectionIssues(rec *models.Record, typ ports.NotificationType) []string {
	if typ == ports.NotificationIdentityCheckFailed {
		return withReason(rec.Identity.Issues, rec.Identity.RejectionReason)
	}
	return withReason(rec.WWCC.Issues, rec.WWCC.RejectionReason)
}

func withReason(issues []string, reason string) []string {
	out := append([]string(nil), issues...)
	if reason != "" {
		out = append(out, reason)
	}
	return out
}
