// Package service is the verification module's application layer: candidate
// submissions, phase triggers, status reads, admin overrides and OCG ingestion.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"carecheck/internal/verification/metrics"
	"carecheck/internal/verification/models"
	"carecheck/internal/verification/ports"
	"carecheck/internal/verification/staleness"
	id "carecheck/pkg/domain"
	dErrors "carecheck/pkg/domain-errors"
	"carecheck/pkg/platform/audit"
	"carecheck/pkg/platform/sentinel"
	"carecheck/pkg/requestcontext"
)

// PhaseRunner runs the automated phases. *pipeline.Orchestrator satisfies it.
type PhaseRunner interface {
	RunIdentityPhase(ctx context.Context, recordID id.VerificationID) error
	RunWWCCDocPhase(ctx context.Context, recordID id.VerificationID) error
	ScheduleCrossCheck(ctx context.Context, rec *models.Record, completed models.Phase)
}

type Service struct {
	store      ports.RecordStore
	phases     PhaseRunner
	levels     ports.CandidateLevelWriter
	auditor    ports.AuditPublisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	staleAfter time.Duration
}

// Option configures the Service.
type Option func(*Service)

func WithLevelWriter(w ports.CandidateLevelWriter) Option {
	return func(s *Service) { s.levels = w }
}

func WithAuditor(a ports.AuditPublisher) Option {
	return func(s *Service) { s.auditor = a }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithStaleAfter sets how long an automated check may sit before a read
// escalates it to review.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

func New(store ports.RecordStore, phases PhaseRunner, opts ...Option) *Service {
	s := &Service{
		store:      store,
		phases:     phases,
		logger:     slog.Default(),
		staleAfter: staleness.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// translate maps store errors onto domain codes. Coded errors pass through.
func translate(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "verification not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "verification was changed concurrently, retry")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

// emit records an audit event. The publisher stamps request metadata; audit
// failures are logged, never returned.
func (s *Service) emit(ctx context.Context, rec *models.Record, action audit.AuditEvent, decision, reason string) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Emit(ctx, audit.Event{
		Timestamp:      requestcontext.Now(ctx),
		CandidateID:    rec.CandidateID,
		VerificationID: rec.ID,
		Action:         string(action),
		Decision:       decision,
		Reason:         reason,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"verification_id", rec.ID.String(),
			"action", string(action),
			"error", err,
		)
	}
}
