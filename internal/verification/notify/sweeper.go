package notify

import (
	"context"
	"log/slog"

	"carecheck/internal/verification/metrics"
	"carecheck/internal/verification/models"
	"carecheck/internal/verification/ports"
	"carecheck/pkg/platform/audit"
	"carecheck/pkg/requestcontext"
)

var (
	identityFailures = []models.IdentityStatus{models.IdentityFailed, models.IdentityRejected}
	wwccFailures     = []models.WWCCStatus{models.WWCCFailed, models.WWCCRejected, models.WWCCExpired, models.WWCCOCGNotFound}
)

// Sweeper finds records in a failure status and notifies each candidate once
// per failure episode.
type Sweeper struct {
	store    ports.RecordStore
	log      ports.NotificationLog
	notifier ports.Notifier
	auditor  ports.AuditPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type SweeperOption func(*Sweeper)

func WithAuditor(a ports.AuditPublisher) SweeperOption {
	return func(s *Sweeper) { s.auditor = a }
}

func WithMetrics(m *metrics.Metrics) SweeperOption {
	return func(s *Sweeper) { s.metrics = m }
}

func WithLogger(l *slog.Logger) SweeperOption {
	return func(s *Sweeper) { s.logger = l }
}

func NewSweeper(store ports.RecordStore, log ports.NotificationLog, notifier ports.Notifier, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		store:    store,
		log:      log,
		notifier: notifier,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one sweep and returns how many notifications were sent. A
// failure for one candidate is logged and the sweep moves on.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	identity, err := s.store.ListByIdentityStatus(ctx, identityFailures...)
	if err != nil {
		return 0, err
	}
	wwcc, err := s.store.ListByWWCCStatus(ctx, wwccFailures...)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rec := range identity {
		if s.notifyOne(ctx, rec, ports.NotificationIdentityCheckFailed) {
			sent++
		}
	}
	for _, rec := range wwcc {
		if s.notifyOne(ctx, rec, ports.NotificationWWCCCheckFailed) {
			sent++
		}
	}
	return sent, nil
}

func (s *Sweeper) notifyOne(ctx context.Context, rec *models.Record, typ ports.NotificationType) bool {
	ok, err := ShouldNotify(ctx, rec, typ, s.log)
	if err != nil {
		s.logger.ErrorContext(ctx, "notification check failed",
			"verification_id", rec.ID.String(),
			"type", string(typ),
			"error", err,
		)
		return false
	}
	if !ok {
		return false
	}
	if rec.ContactEmail == "" {
		s.logger.WarnContext(ctx, "no contact address for failure notification",
			"verification_id", rec.ID.String(),
			"type", string(typ),
		)
		return false
	}

	err = s.notifier.Send(ctx, ports.Notification{
		CandidateID:    rec.CandidateID,
		VerificationID: rec.ID,
		Recipient:      rec.ContactEmail,
		Type:           typ,
		Issues:         sectionIssues(rec, typ),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to send notification",
			"verification_id", rec.ID.String(),
			"type", string(typ),
			"error", err,
		)
		return false
	}

	now := requestcontext.Now(ctx)
	if err := s.log.Append(ctx, ports.NotificationEntry{CandidateID: rec.CandidateID, Type: typ, SentAt: now}); err != nil {
		// The candidate may get a duplicate on the next sweep.
		s.logger.ErrorContext(ctx, "failed to record sent notification",
			"verification_id", rec.ID.String(),
			"type", string(typ),
			"error", err,
		)
	}
	s.metrics.IncrementNotification(string(typ))
	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.Event{
			Timestamp:      now,
			CandidateID:    rec.CandidateID,
			VerificationID: rec.ID,
			Action:         string(audit.EventNotificationSent),
			Decision:       string(typ),
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to emit audit event", "error", err)
		}
	}
	return true
}
