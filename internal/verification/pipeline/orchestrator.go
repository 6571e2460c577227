// Package pipeline runs the automated verification phases: identity document
// check, WWCC document check and the identity/WWCC cross-check.
//
// A phase never returns its own failure. Extraction errors, rejected documents
// and mismatches are written to the record as section status; the returned
// error only reports that the phase could not start or its write could not be
// stored.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"carecheck/internal/verification/events"
	"carecheck/internal/verification/metrics"
	"carecheck/internal/verification/models"
	"carecheck/internal/verification/ports"
	id "carecheck/pkg/domain"
	"carecheck/pkg/platform/audit"
	"carecheck/pkg/platform/sentinel"
	"carecheck/pkg/requestcontext"
)

const defaultPhaseTimeout = 60 * time.Second

// Orchestrator runs pipeline phases against the record store.
type Orchestrator struct {
	store        ports.RecordStore
	extractor    ports.Extractor
	documents    ports.DocumentSource
	events       events.Publisher
	lock         ports.PhaseLock
	auditor      ports.AuditPublisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	tracer       trace.Tracer
	phaseTimeout time.Duration
	lockTTL      time.Duration
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

func WithPhaseLock(l ports.PhaseLock, ttl time.Duration) Option {
	return func(o *Orchestrator) {
		o.lock = l
		o.lockTTL = ttl
	}
}

func WithAuditor(a ports.AuditPublisher) Option {
	return func(o *Orchestrator) { o.auditor = a }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithPhaseTimeout bounds each phase, extraction included.
func WithPhaseTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.phaseTimeout = d
		}
	}
}

func New(store ports.RecordStore, extractor ports.Extractor, documents ports.DocumentSource, bus events.Publisher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:        store,
		extractor:    extractor,
		documents:    documents,
		events:       bus,
		logger:       slog.Default(),
		tracer:       otel.Tracer("carecheck/verification/pipeline"),
		phaseTimeout: defaultPhaseTimeout,
		lockTTL:      90 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// phaseRun is the state carried from a phase's start write to its finish write.
type phaseRun struct {
	phase      models.Phase
	snapshot   *models.Record
	generation int64
	started    time.Time
}

// begin takes the phase lock, runs canStart under the store lock, and marks the
// section processing. skipped is true when another run holds the lock.
func (o *Orchestrator) begin(
	ctx context.Context,
	recordID id.VerificationID,
	phase models.Phase,
	canStart func(*models.Record) error,
	markProcessing func(*models.Record, time.Time),
) (run *phaseRun, release func(), skipped bool, err error) {
	release = func() {}
	if o.lock != nil {
		r, acquired, lockErr := o.lock.Acquire(ctx, string(phase)+":"+recordID.String(), o.lockTTL)
		switch {
		case lockErr != nil:
			// The generation guard still protects the record.
			o.logger.WarnContext(ctx, "phase lock unavailable, running unlocked",
				"verification_id", recordID.String(),
				"phase", string(phase),
				"error", lockErr,
			)
		case !acquired:
			o.metrics.IncrementSkipped(string(phase))
			o.logger.InfoContext(ctx, "phase already running, skipping trigger",
				"verification_id", recordID.String(),
				"phase", string(phase),
			)
			return nil, release, true, nil
		default:
			release = r
		}
	}

	now := requestcontext.Now(ctx)
	rec, err := o.store.Execute(ctx, recordID, canStart, func(r *models.Record) {
		markProcessing(r, now)
	})
	if err != nil {
		release()
		return nil, func() {}, false, err
	}
	return &phaseRun{
		phase:      phase,
		snapshot:   rec,
		generation: rec.PhaseGeneration(phase),
		started:    time.Now(),
	}, release, false, nil
}

// finish writes a phase outcome if the phase's input is still current: the
// phase's generation unchanged and the section still processing. A superseded
// write is logged and dropped.
func (o *Orchestrator) finish(
	ctx context.Context,
	run *phaseRun,
	stillRunning func(*models.Record) bool,
	apply func(*models.Record, time.Time) bool,
) (rec *models.Record, scheduled bool, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		// Leave the section in processing; staleness escalates it on a later read.
		o.logger.WarnContext(ctx, "phase ran out of time, leaving record for staleness repair",
			"verification_id", run.snapshot.ID.String(),
			"phase", string(run.phase),
			"error", ctxErr,
		)
		return nil, false, nil
	}

	// The request clock is pinned at trigger time; move it on by the phase's
	// own running time and never behind a write that landed meanwhile.
	finishedAt := requestcontext.Now(ctx).Add(time.Since(run.started))
	rec, err = o.store.Execute(ctx, run.snapshot.ID,
		func(r *models.Record) error {
			if r.IsBarred() || r.PhaseGeneration(run.phase) != run.generation || !stillRunning(r) {
				return sentinel.ErrConflict
			}
			return nil
		},
		func(r *models.Record) {
			now := finishedAt
			if r.UpdatedAt.After(now) {
				now = r.UpdatedAt
			}
			scheduled = apply(r, now)
		},
	)
	if errors.Is(err, sentinel.ErrConflict) {
		o.metrics.IncrementSuperseded(string(run.phase))
		o.logger.InfoContext(ctx, "phase result superseded, dropping",
			"verification_id", run.snapshot.ID.String(),
			"phase", string(run.phase),
			"generation", run.generation,
		)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store %s phase result: %w", run.phase, err)
	}
	return rec, scheduled, nil
}

// complete records metrics and audit for a written outcome and, when a
// cross-check was scheduled, publishes the event for it.
func (o *Orchestrator) complete(ctx context.Context, run *phaseRun, rec *models.Record, status string, scheduled bool) {
	o.metrics.ObservePhase(string(run.phase), status, time.Since(run.started))
	o.logger.InfoContext(ctx, "phase completed",
		"verification_id", rec.ID.String(),
		"phase", string(run.phase),
		"status", status,
		"overall_status", rec.OverallStatus().Code(),
	)
	o.emitAudit(ctx, rec, run.phase, status)
	if scheduled {
		o.ScheduleCrossCheck(ctx, rec, run.phase)
	}
}

// ScheduleCrossCheck publishes the event that runs the cross-check. A publish
// failure is never returned: it is logged, counted and recorded on the record
// as a pending follow-up for the re-drive sweep.
func (o *Orchestrator) ScheduleCrossCheck(ctx context.Context, rec *models.Record, completed models.Phase) {
	event := events.PhaseCompleted{
		VerificationID: rec.ID,
		CandidateID:    rec.CandidateID,
		Completed:      completed,
		Next:           models.PhaseCrossCheck,
		Generation:     rec.Generation,
		OccurredAt:     requestcontext.Now(ctx),
	}
	err := o.events.Publish(ctx, event)
	if err == nil {
		return
	}

	o.metrics.IncrementFollowUpFailure()
	o.logger.ErrorContext(ctx, "failed to schedule cross-check, marking follow-up",
		"verification_id", rec.ID.String(),
		"error", err,
	)
	markCtx := context.WithoutCancel(ctx)
	_, markErr := o.store.Execute(markCtx, rec.ID,
		func(r *models.Record) error {
			if r.Generation != rec.Generation {
				return sentinel.ErrConflict
			}
			return nil
		},
		func(r *models.Record) { r.FollowUpPending = true },
	)
	if markErr != nil && !errors.Is(markErr, sentinel.ErrConflict) {
		o.logger.ErrorContext(ctx, "failed to mark follow-up pending",
			"verification_id", rec.ID.String(),
			"error", markErr,
		)
	}
}

func (o *Orchestrator) emitAudit(ctx context.Context, rec *models.Record, phase models.Phase, status string) {
	if o.auditor == nil {
		return
	}
	err := o.auditor.Emit(ctx, audit.Event{
		CandidateID:    rec.CandidateID,
		VerificationID: rec.ID,
		Action:         string(audit.EventPhaseCompleted),
		Decision:       status,
		Reason:         string(phase),
	})
	if err != nil {
		o.logger.WarnContext(ctx, "failed to emit phase audit event",
			"verification_id", rec.ID.String(),
			"error", err,
		)
	}
}

func (o *Orchestrator) startSpan(ctx context.Context, phase models.Phase, recordID id.VerificationID) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, "verification.phase."+string(phase),
		trace.WithAttributes(
			attribute.String("verification.id", recordID.String()),
			attribute.String("verification.phase", string(phase)),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// fetchDocuments loads every referenced document.
func (o *Orchestrator) fetchDocuments(ctx context.Context, refs []models.DocumentRef) ([]ports.Document, error) {
	docs := make([]ports.Document, 0, len(refs))
	for _, ref := range refs {
		doc, err := o.documents.Fetch(ctx, ref)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
