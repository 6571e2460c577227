package audit

import (
	"context"
	"time"

	id "carecheck/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: manual
	// clearance decisions and authoritative OCG results.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational visibility.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category       EventCategory
	Timestamp      time.Time
	CandidateID    id.CandidateID
	VerificationID id.VerificationID
	Action         string
	Decision       string
	Reason         string
	RequestID      string
	ClientIP       string
	// ActorID tracks who performed the action. Empty for system actions.
	ActorID string
}

type AuditEvent string

const (
	// Admin overrides
	EventIdentityVerifiedByAdmin   AuditEvent = "identity_verified_by_admin"
	EventIdentityRejectedByAdmin   AuditEvent = "identity_rejected_by_admin"
	EventWWCCConfirmedByAdmin      AuditEvent = "wwcc_confirmed_by_admin"
	EventWWCCRejectedByAdmin       AuditEvent = "wwcc_rejected_by_admin"
	EventCrossCheckApprovedByAdmin AuditEvent = "cross_check_approved_by_admin"

	// Authoritative channel
	EventOCGResultApplied AuditEvent = "ocg_result_applied"
	EventOCGEmailRejected AuditEvent = "ocg_email_rejected"

	// Pipeline
	EventIdentitySubmitted  AuditEvent = "identity_submitted"
	EventWWCCSubmitted      AuditEvent = "wwcc_submitted"
	EventPhaseCompleted     AuditEvent = "phase_completed"
	EventStalenessEscalated AuditEvent = "staleness_escalated"
	EventNotificationSent   AuditEvent = "notification_sent"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventIdentityVerifiedByAdmin:   CategoryCompliance,
	EventIdentityRejectedByAdmin:   CategoryCompliance,
	EventWWCCConfirmedByAdmin:      CategoryCompliance,
	EventWWCCRejectedByAdmin:       CategoryCompliance,
	EventCrossCheckApprovedByAdmin: CategoryCompliance,
	EventOCGResultApplied:          CategoryCompliance,
	EventOCGEmailRejected:          CategoryCompliance,

	EventIdentitySubmitted:  CategoryOperations,
	EventWWCCSubmitted:      CategoryOperations,
	EventPhaseCompleted:     CategoryOperations,
	EventStalenessEscalated: CategoryOperations,
	EventNotificationSent:   CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByVerification(ctx context.Context, verificationID id.VerificationID) ([]Event, error)
}
