// Package ports declares the collaborators the verification module consumes.
// Adapters live in sibling packages; services depend only on these interfaces.
package ports

import (
	"context"
	"time"

	"carecheck/internal/verification/models"
	id "carecheck/pkg/domain"
	"carecheck/pkg/platform/audit"
)

// RecordStore persists verification records.
//
// Execute loads the record under a lock (mutex or SELECT ... FOR UPDATE), runs
// validate, and only when it returns nil runs mutate and saves. A validate error
// is returned unchanged and nothing is written.
type RecordStore interface {
	FindByID(ctx context.Context, recordID id.VerificationID) (*models.Record, error)
	FindByCandidate(ctx context.Context, candidateID id.CandidateID) (*models.Record, error)
	FindByWWCCNumber(ctx context.Context, number string) ([]*models.Record, error)
	Upsert(ctx context.Context, candidateID id.CandidateID, build func(existing *models.Record) (*models.Record, error)) (*models.Record, error)
	Execute(ctx context.Context, recordID id.VerificationID, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error)
	ListByIdentityStatus(ctx context.Context, statuses ...models.IdentityStatus) ([]*models.Record, error)
	ListByWWCCStatus(ctx context.Context, statuses ...models.WWCCStatus) ([]*models.Record, error)
	ListFollowUpPending(ctx context.Context) ([]*models.Record, error)
}

// CandidateLevelWriter updates the denormalised verification level held on the candidate.
type CandidateLevelWriter interface {
	SetVerificationLevel(ctx context.Context, candidateID id.CandidateID, level models.OverallStatus) error
}

// NotificationType identifies which failure a notification reports.
type NotificationType string

const (
	NotificationIdentityCheckFailed NotificationType = "identity_check_failed"
	NotificationWWCCCheckFailed     NotificationType = "wwcc_check_failed"
)

// NotificationEntry is one sent notification.
type NotificationEntry struct {
	CandidateID id.CandidateID
	Type        NotificationType
	SentAt      time.Time
}

// NotificationLog records which notifications have gone out.
type NotificationLog interface {
	// LastSent returns the most recent send of the type, or nil when none exists.
	LastSent(ctx context.Context, candidateID id.CandidateID, typ NotificationType) (*time.Time, error)
	Append(ctx context.Context, entry NotificationEntry) error
}

// Notification is a "please act" message to a candidate.
type Notification struct {
	CandidateID    id.CandidateID
	VerificationID id.VerificationID
	Recipient      string
	Type           NotificationType
	Issues         []string
}

// Notifier delivers notifications.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// PhaseLock suppresses duplicate concurrent runs of a phase for one record.
// Release is always safe to call.
type PhaseLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// AuditPublisher records security and compliance relevant actions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
