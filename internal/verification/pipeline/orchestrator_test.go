package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"carecheck/internal/verification/documents"
	"carecheck/internal/verification/events"
	"carecheck/internal/verification/extraction"
	"carecheck/internal/verification/metrics"
	"carecheck/internal/verification/models"
	"carecheck/internal/verification/phaselock"
	"carecheck/internal/verification/ports"
	"carecheck/internal/verification/store"
	id "carecheck/pkg/domain"
	dErrors "carecheck/pkg/domain-errors"
	"carecheck/pkg/requestcontext"
)

type recordingBus struct {
	mu     sync.Mutex
	events []events.PhaseCompleted
	err    error
}

func (b *recordingBus) Publish(_ context.Context, e events.PhaseCompleted) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, e)
	return nil
}

func (b *recordingBus) published() []events.PhaseCompleted {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.PhaseCompleted(nil), b.events...)
}

type hookExtractor struct {
	fn func(ctx context.Context, req ports.ExtractionRequest) (*ports.ExtractionResult, error)
}

func (h hookExtractor) Extract(ctx context.Context, req ports.ExtractionRequest) (*ports.ExtractionResult, error) {
	return h.fn(ctx, req)
}

type OrchestratorSuite struct {
	suite.Suite
	store     *store.InMemoryStore
	extractor *extraction.Fake
	docs      *documents.MemorySource
	bus       *recordingBus
	metrics   *metrics.Metrics
	orch      *Orchestrator
	ctx       context.Context
	now       time.Time
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.extractor = extraction.NewFake()
	s.docs = documents.NewMemorySource()
	s.bus = &recordingBus{}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.orch = s.newOrchestrator(s.extractor)
}

func (s *OrchestratorSuite) newOrchestrator(extractor ports.Extractor, opts ...Option) *Orchestrator {
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
	}, opts...)
	return New(s.store, extractor, s.docs, s.bus, opts...)
}

func declaredIdentity() models.IdentityDeclared {
	return models.IdentityDeclared{
		Surname:         "Nguyen",
		GivenNames:      "Linh Thi",
		DateOfBirth:     "1994-05-02",
		PassportCountry: "AUS",
	}
}

func manualWWCC() models.WWCCDeclared {
	return models.WWCCDeclared{
		Method:      models.WWCCMethodManualEntry,
		Number:      "WWC1234567E",
		Expiry:      "2028-10-13",
		FamilyName:  "NGUYEN",
		GivenNames:  "Linh",
		DateOfBirth: "02/05/1994",
	}
}

func (s *OrchestratorSuite) submitIdentity() *models.Record {
	candidateID := id.CandidateID(uuid.New())
	rec, err := s.store.Upsert(s.ctx, candidateID, func(*models.Record) (*models.Record, error) {
		rec := models.NewRecord(id.NewVerificationID(), candidateID, s.now)
		rec.ApplyIdentitySubmission(declaredIdentity(), []models.DocumentRef{{Key: "identity/passport.jpg"}}, s.now)
		return rec, nil
	})
	s.Require().NoError(err)
	return rec
}

func (s *OrchestratorSuite) mutate(recordID id.VerificationID, fn func(*models.Record)) {
	_, err := s.store.Execute(s.ctx, recordID, func(*models.Record) error { return nil }, fn)
	s.Require().NoError(err)
}

func (s *OrchestratorSuite) load(recordID id.VerificationID) *models.Record {
	rec, err := s.store.FindByID(s.ctx, recordID)
	s.Require().NoError(err)
	return rec
}

func (s *OrchestratorSuite) TestIdentityPhase_Verified() {
	rec := s.submitIdentity()

	s.Require().NoError(s.orch.RunIdentityPhase(s.ctx, rec.ID))

	got := s.load(rec.ID)
	s.Equal(models.IdentityVerified, got.Identity.Status)
	s.Equal("Nguyen", got.Identity.Extracted[models.FieldSurname])
	s.Equal(models.OverallPendingWWCCAuto, got.OverallStatus())
	s.Empty(s.bus.published(), "no cross-check until the wwcc is favourable")
	s.Equal(1.0, testutil.ToFloat64(s.metrics.PhaseOutcome.WithLabelValues("identity", "verified")))
}

func (s *OrchestratorSuite) TestIdentityPhase_Rejected() {
	rec := s.submitIdentity()
	s.extractor.Returns(ports.KindIdentityDocument, &ports.ExtractionResult{Pass: false})

	s.Require().NoError(s.orch.RunIdentityPhase(s.ctx, rec.ID))

	got := s.load(rec.ID)
	s.Equal(models.IdentityRejected, got.Identity.Status)
	s.Equal([]string{"document failed authenticity checks"}, got.Identity.Issues)
	s.Equal(models.OverallIDRejected, got.OverallStatus())
}

func (s *OrchestratorSuite) TestIdentityPhase_ExtractionErrorIsRecordedNotReturned() {
	rec := s.submitIdentity()
	s.extractor.Fails(ports.KindIdentityDocument, errors.New("upstream 503"))

	err := s.orch.RunIdentityPhase(s.ctx, rec.ID)
	s.NoError(err)

	got := s.load(rec.ID)
	s.Equal(models.IdentityFailed, got.Identity.Status)
	s.Equal([]string{"extraction failed: upstream 503"}, got.Identity.Issues)
	s.Equal(models.OverallIDFailed, got.OverallStatus())
}

func (s *OrchestratorSuite) TestIdentityPhase_MismatchGoesToReview() {
	rec := s.submitIdentity()
	s.extractor.Returns(ports.KindIdentityDocument, &ports.ExtractionResult{
		Pass: true,
		Fields: models.ExtractedFields{
			models.FieldSurname:     "TRAN",
			models.FieldGivenNames:  "LINH",
			models.FieldDateOfBirth: "02/05/1994",
		},
	})

	s.Require().NoError(s.orch.RunIdentityPhase(s.ctx, rec.ID))

	got := s.load(rec.ID)
	s.Equal(models.IdentityReview, got.Identity.Status)
	s.Equal([]string{"surname mismatch between declared details and identity document"}, got.Identity.Issues)
}

func (s *OrchestratorSuite) TestIdentityPhase_FailedCanBeRetried() {
	rec := s.submitIdentity()
	s.extractor.Fails(ports.KindIdentityDocument, errors.New("timeout"))
	s.Require().NoError(s.orch.RunIdentityPhase(s.ctx, rec.ID))
	s.Equal(models.IdentityFailed, s.load(rec.ID).Identity.Status)

	s.extractor.Fails(ports.KindIdentityDocument, nil)
	s.Require().NoError(s.orch.RunIdentityPhase(s.ctx, rec.ID))
	s.Equal(models.IdentityVerified, s.load(rec.ID).Identity.Status)
}

func (s *OrchestratorSuite) TestIdentityPhase_RefusedFromSettledStatus() {
	rec := s.submitIdentity()
	s.Require().NoError(s.orch.RunIdentityPhase(s.ctx, rec.ID))

	err := s.orch.RunIdentityPhase(s.ctx, rec.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *OrchestratorSuite) TestWWCCPhase_ManualEntrySchedulesCrossCheck() {
	rec := s.submitIdentity()
	s.Require().NoError(s.orch.RunIdentityPhase(s.ctx, rec.ID))
	s.mutate(rec.ID, func(r *models.Record) { r.ApplyWWCCSubmission(manualWWCC(), nil, s.now) })

	s.Require().NoError(s.orch.RunWWCCDocPhase(s.ctx, rec.ID))

	got := s.load(rec.ID)
	s.Equal(models.WWCCDocVerified, got.WWCC.Status)
	s.Equal(models.CrossCheckPending, got.CrossCheck.Status)
	s.Equal(models.OverallPendingWWCCAuto, got.OverallStatus())
	s.Equal("WWC1234567E", got.WWCC.Extracted[models.FieldWWCCNumber])

	published := s.bus.published()
	s.Require().Len(published, 1)
	s.Equal(models.PhaseCrossCheck, published[0].Next)
	s.Equal(models.PhaseWWCC, published[0].Completed)
	s.Equal(got.Generation, published[0].Generation)
	s.Len(s.extractor.Calls(), 1, "manual entry does not call the extractor")
}

func (s *OrchestratorSuite) TestWWCCPhase_Expired() {
	rec := s.submitIdentity()
	declared := manualWWCC()
	declared.Expiry = "28/02/2026"
	s.mutate(rec.ID, func(r *models.Record) { r.ApplyWWCCSubmission(declared, nil, s.now) })

	s.Require().NoError(s.orch.RunWWCCDocPhase(s.ctx, rec.ID))

	got := s.load(rec.ID)
	s.Equal(models.WWCCExpired, got.WWCC.Status)
	s.Equal([]string{"wwcc expired on 2026-02-28"}, got.WWCC.Issues)
	s.Equal(models.OverallWWCCExpired, got.OverallStatus())
}

func (s *OrchestratorSuite) TestWWCCPhase_ScreenshotNumberMismatch() {
	rec := s.submitIdentity()
	declared := manualWWCC()
	declared.Method = models.WWCCMethodScreenshot
	s.mutate(rec.ID, func(r *models.Record) {
		r.ApplyWWCCSubmission(declared, []models.DocumentRef{{Key: "wwcc/screen.png"}}, s.now)
	})
	s.extractor.Returns(ports.KindWWCCScreenshot, &ports.ExtractionResult{
		Pass: true,
		Fields: models.ExtractedFields{
			models.FieldWWCCNumber: "WWC7654321E",
			models.FieldExpiryDate: "13/10/2028",
		},
	})

	s.Require().NoError(s.orch.RunWWCCDocPhase(s.ctx, rec.ID))

	got := s.load(rec.ID)
	s.Equal(models.WWCCReview, got.WWCC.Status)
	s.Equal([]string{"wwcc number on document does not match declared number"}, got.WWCC.Issues)
	s.Equal(ports.KindWWCCScreenshot, s.extractor.Calls()[0].Kind)
}

func (s *OrchestratorSuite) TestWWCCPhase_GrantEmailUsesPDFReader() {
	rec := s.submitIdentity()
	declared := manualWWCC()
	declared.Method = models.WWCCMethodGrantEmail
	s.mutate(rec.ID, func(r *models.Record) {
		r.ApplyWWCCSubmission(declared, []models.DocumentRef{{Key: "wwcc/grant.pdf"}}, s.now)
	})

	s.Require().NoError(s.orch.RunWWCCDocPhase(s.ctx, rec.ID))

	s.Equal(models.WWCCDocVerified, s.load(rec.ID).WWCC.Status)
	calls := s.extractor.Calls()
	s.Require().Len(calls, 1)
	s.Equal(ports.KindWWCCGrantPDF, calls[0].Kind)
}

// A resubmission while extraction is in flight must win over the stale result.
func (s *OrchestratorSuite) TestGenerationGuardDropsSupersededResult() {
	rec := s.submitIdentity()
	orch := s.newOrchestrator(hookExtractor{fn: func(_ context.Context, _ ports.ExtractionRequest) (*ports.ExtractionResult, error) {
		s.mutate(rec.ID, func(r *models.Record) {
			declared := declaredIdentity()
			declared.Surname = "Tran"
			r.ApplyIdentitySubmission(declared, []models.DocumentRef{{Key: "identity/new.jpg"}}, s.now)
		})
		return &ports.ExtractionResult{Pass: true, Fields: models.ExtractedFields{models.FieldSurname: "Nguyen"}}, nil
	}})

	s.Require().NoError(orch.RunIdentityPhase(s.ctx, rec.ID))

	got := s.load(rec.ID)
	s.Equal(models.IdentityPending, got.Identity.Status)
	s.Equal("Tran", got.Identity.Declared.Surname)
	s.Nil(got.Identity.Extracted)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.PhaseSuperseded.WithLabelValues("identity")))
}

func (s *OrchestratorSuite) TestIdentityResultSurvivesWWCCSubmissionDuringExtraction() {
	rec := s.submitIdentity()
	orch := s.newOrchestrator(hookExtractor{fn: func(ctx context.Context, req ports.ExtractionRequest) (*ports.ExtractionResult, error) {
		s.mutate(rec.ID, func(r *models.Record) {
			r.ApplyWWCCSubmission(manualWWCC(), nil, s.now.Add(50*time.Second))
		})
		return s.extractor.Extract(ctx, req)
	}})

	s.Require().NoError(orch.RunIdentityPhase(s.ctx, rec.ID))

	got := s.load(rec.ID)
	s.Equal(models.IdentityVerified, got.Identity.Status)
	s.Equal(models.WWCCPending, got.WWCC.Status)
	s.False(got.UpdatedAt.Before(s.now.Add(50*time.Second)), "finish never moves UpdatedAt backwards")
	s.Equal(got.UpdatedAt, got.Identity.StatusAt)
	s.Zero(testutil.ToFloat64(s.metrics.PhaseSuperseded.WithLabelValues("identity")))
}

func (s *OrchestratorSuite) TestWWCCResultSurvivesIdentitySubmissionDuringExtraction() {
	rec := s.submitIdentity()
	declared := manualWWCC()
	declared.Method = models.WWCCMethodGrantEmail
	s.mutate(rec.ID, func(r *models.Record) {
		r.ApplyWWCCSubmission(declared, []models.DocumentRef{{Key: "wwcc/grant.pdf"}}, s.now)
	})
	orch := s.newOrchestrator(hookExtractor{fn: func(ctx context.Context, req ports.ExtractionRequest) (*ports.ExtractionResult, error) {
		s.mutate(rec.ID, func(r *models.Record) {
			r.ApplyIdentitySubmission(declaredIdentity(), []models.DocumentRef{{Key: "identity/retake.jpg"}}, s.now.Add(time.Minute))
		})
		return s.extractor.Extract(ctx, req)
	}})

	s.Require().NoError(orch.RunWWCCDocPhase(s.ctx, rec.ID))

	got := s.load(rec.ID)
	s.Equal(models.WWCCDocVerified, got.WWCC.Status)
	s.Equal(models.IdentityPending, got.Identity.Status)
	s.Empty(s.bus.published(), "identity is pending again, so no cross-check")
}

func (s *OrchestratorSuite) TestPhaseTimeoutLeavesRecordForStaleness() {
	rec := s.submitIdentity()
	orch := s.newOrchestrator(hookExtractor{fn: func(ctx context.Context, _ ports.ExtractionRequest) (*ports.ExtractionResult, error) {
		<-ctx.Done()
		return &ports.ExtractionResult{Pass: true}, nil
	}}, WithPhaseTimeout(20*time.Millisecond))

	s.Require().NoError(orch.RunIdentityPhase(s.ctx, rec.ID))

	s.Equal(models.IdentityProcessing, s.load(rec.ID).Identity.Status)
}

func (s *OrchestratorSuite) TestPhaseLockSkipsDuplicateTrigger() {
	rec := s.submitIdentity()
	lock := phaselock.NewLocalLock()
	release, ok, err := lock.Acquire(s.ctx, "identity:"+rec.ID.String(), time.Minute)
	s.Require().NoError(err)
	s.Require().True(ok)
	defer release()

	orch := s.newOrchestrator(s.extractor, WithPhaseLock(lock, time.Minute))
	s.Require().NoError(orch.RunIdentityPhase(s.ctx, rec.ID))

	s.Empty(s.extractor.Calls())
	s.Equal(models.IdentityPending, s.load(rec.ID).Identity.Status)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.PhaseSkipped.WithLabelValues("identity")))
}

func (s *OrchestratorSuite) TestPublishFailureMarksFollowUpAndRedrives() {
	rec := s.submitIdentity()
	s.Require().NoError(s.orch.RunIdentityPhase(s.ctx, rec.ID))
	s.mutate(rec.ID, func(r *models.Record) { r.ApplyWWCCSubmission(manualWWCC(), nil, s.now) })
	s.bus.err = errors.New("broker down")

	s.Require().NoError(s.orch.RunWWCCDocPhase(s.ctx, rec.ID), "publish failure is never surfaced")

	got := s.load(rec.ID)
	s.True(got.FollowUpPending)
	s.Equal(models.CrossCheckPending, got.CrossCheck.Status)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.FollowUpFailures))

	n, err := s.orch.RedriveFollowUps(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, n)
	s.True(s.load(rec.ID).FollowUpPending)

	s.bus.err = nil
	n, err = s.orch.RedriveFollowUps(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
	s.False(s.load(rec.ID).FollowUpPending)
	s.Len(s.bus.published(), 1)
}

func (s *OrchestratorSuite) TestCrossCheck_PassesWithFormattingDifferences() {
	rec := s.submitIdentity()
	s.Require().NoError(s.orch.RunIdentityPhase(s.ctx, rec.ID))
	s.mutate(rec.ID, func(r *models.Record) { r.ApplyWWCCSubmission(manualWWCC(), nil, s.now) })
	s.Require().NoError(s.orch.RunWWCCDocPhase(s.ctx, rec.ID))

	s.Require().NoError(s.orch.RunCrossCheckPhase(s.ctx, rec.ID))

	got := s.load(rec.ID)
	s.Equal(models.CrossCheckPassed, got.CrossCheck.Status)
	s.Empty(got.CrossCheck.Issues)
	s.Equal(models.OverallProvisionallyVerified, got.OverallStatus())
}

func (s *OrchestratorSuite) TestCrossCheck_MismatchGoesToReview() {
	rec := s.submitIdentity()
	s.Require().NoError(s.orch.RunIdentityPhase(s.ctx, rec.ID))
	declared := manualWWCC()
	declared.DateOfBirth = "1995-05-02"
	s.mutate(rec.ID, func(r *models.Record) { r.ApplyWWCCSubmission(declared, nil, s.now) })
	s.Require().NoError(s.orch.RunWWCCDocPhase(s.ctx, rec.ID))

	s.Require().NoError(s.orch.RunCrossCheckPhase(s.ctx, rec.ID))

	got := s.load(rec.ID)
	s.Equal(models.CrossCheckReview, got.CrossCheck.Status)
	s.Equal([]string{"date of birth mismatch between identity document and wwcc"}, got.CrossCheck.Issues)
	s.Equal(models.OverallProvisionallyVerified, got.OverallStatus())
}

func (s *OrchestratorSuite) TestDispatcher_RunsCrossCheckAndDropsStaleEvents() {
	rec := s.submitIdentity()
	s.Require().NoError(s.orch.RunIdentityPhase(s.ctx, rec.ID))
	s.mutate(rec.ID, func(r *models.Record) { r.ApplyWWCCSubmission(manualWWCC(), nil, s.now) })
	s.Require().NoError(s.orch.RunWWCCDocPhase(s.ctx, rec.ID))
	event := s.bus.published()[0]

	d := NewDispatcher(s.orch, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Require().NoError(d.HandlePhaseCompleted(s.ctx, event))
	s.Equal(models.CrossCheckPassed, s.load(rec.ID).CrossCheck.Status)

	s.NoError(d.HandlePhaseCompleted(s.ctx, event), "redelivery is dropped")

	event.VerificationID = id.NewVerificationID()
	s.NoError(d.HandlePhaseCompleted(s.ctx, event), "unknown record is dropped")
}

func (s *OrchestratorSuite) TestBarredRecordRefusesPhases() {
	rec := s.submitIdentity()
	s.mutate(rec.ID, func(r *models.Record) { r.SetWWCCStatus(models.WWCCBarred, s.now) })

	err := s.orch.RunIdentityPhase(s.ctx, rec.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}
