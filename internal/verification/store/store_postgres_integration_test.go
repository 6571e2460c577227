//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"carecheck/internal/verification/models"
	"carecheck/internal/verification/ports"
	"carecheck/internal/verification/store"
	id "carecheck/pkg/domain"
	"carecheck/pkg/platform/sentinel"
	"carecheck/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	log      *store.PostgresNotificationLog
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.log = store.NewPostgresNotificationLog(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "notification_log", "verifications")
	s.Require().NoError(err)
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) create() *models.Record {
	candidateID := id.CandidateID(uuid.New())
	rec, err := s.store.Upsert(context.Background(), candidateID, func(existing *models.Record) (*models.Record, error) {
		rec := models.NewRecord(id.NewVerificationID(), candidateID, s.now)
		rec.ContactEmail = "candidate@example.com"
		rec.ApplyIdentitySubmission(models.IdentityDeclared{
			Surname:     "Nguyen",
			GivenNames:  "Linh Thi",
			DateOfBirth: "1994-05-02",
		}, []models.DocumentRef{{Key: "identity/passport.jpg", ContentType: "image/jpeg"}}, s.now)
		return rec, nil
	})
	s.Require().NoError(err)
	return rec
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	rec := s.create()

	_, err := s.store.Execute(ctx, rec.ID, func(*models.Record) error { return nil }, func(r *models.Record) {
		r.Identity.Extracted = models.ExtractedFields{models.FieldSurname: "NGUYEN"}
		r.SetIdentityStatus(models.IdentityVerified, s.now)
		r.ApplyWWCCSubmission(models.WWCCDeclared{Method: models.WWCCMethodManualEntry, Number: "wwc 1234567e", Expiry: "2028-10-13"}, nil, s.now)
		r.ApplyOCGResult(models.OCGResult{ResultStatus: "CLEARED", Reference: "WWC1234567E", AppliedAt: s.now}, models.WWCCOCGVerified, s.now)
	})
	s.Require().NoError(err)

	found, err := s.store.FindByID(ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(rec.CandidateID, found.CandidateID)
	s.Equal("candidate@example.com", found.ContactEmail)
	s.Equal(models.IdentityVerified, found.Identity.Status)
	s.Equal("NGUYEN", found.Identity.Extracted[models.FieldSurname])
	s.Equal([]models.DocumentRef{{Key: "identity/passport.jpg", ContentType: "image/jpeg"}}, found.Identity.Documents)
	s.Equal(models.WWCCOCGVerified, found.WWCC.Status)
	s.Require().NotNil(found.WWCC.OCG)
	s.Equal("CLEARED", found.WWCC.OCG.ResultStatus)
	s.Equal(int64(2), found.Generation)
	s.Equal(int64(1), found.Identity.Generation)
	s.Equal(int64(1), found.WWCC.Generation)
	s.True(found.Identity.StatusAt.Equal(s.now))

	matches, err := s.store.FindByWWCCNumber(ctx, "WWC1234567E")
	s.Require().NoError(err)
	s.Len(matches, 1, "stored number is normalised")
}

func (s *PostgresStoreSuite) TestExecuteNotFound() {
	_, err := s.store.Execute(context.Background(), id.NewVerificationID(),
		func(*models.Record) error { return nil }, func(*models.Record) {})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestExecuteGuardRollsBack() {
	ctx := context.Background()
	rec := s.create()
	guard := errors.New("stale generation")

	_, err := s.store.Execute(ctx, rec.ID, func(*models.Record) error { return guard }, func(r *models.Record) {
		r.SetIdentityStatus(models.IdentityVerified, s.now)
	})
	s.ErrorIs(err, guard)

	found, err := s.store.FindByID(ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(models.IdentityPending, found.Identity.Status)
}

// TestConcurrentExecuteIsSerialised verifies FOR UPDATE serialises read-modify-write.
func (s *PostgresStoreSuite) TestConcurrentExecuteIsSerialised() {
	ctx := context.Background()
	rec := s.create()
	const goroutines = 20

	var wg sync.WaitGroup
	var failures atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(ctx, rec.ID, func(*models.Record) error { return nil }, func(r *models.Record) {
				r.Generation++
			})
			if err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(0), failures.Load())
	found, err := s.store.FindByID(ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(rec.Generation+goroutines, found.Generation)
}

func (s *PostgresStoreSuite) TestListings() {
	ctx := context.Background()
	rec := s.create()
	_, err := s.store.Execute(ctx, rec.ID, func(*models.Record) error { return nil }, func(r *models.Record) {
		r.SetIdentityStatus(models.IdentityFailed, s.now)
		r.FollowUpPending = true
	})
	s.Require().NoError(err)

	failed, err := s.store.ListByIdentityStatus(ctx, models.IdentityFailed, models.IdentityRejected)
	s.Require().NoError(err)
	s.Len(failed, 1)

	pending, err := s.store.ListFollowUpPending(ctx)
	s.Require().NoError(err)
	s.Len(pending, 1)

	wwcc, err := s.store.ListByWWCCStatus(ctx, models.WWCCFailed)
	s.Require().NoError(err)
	s.Empty(wwcc)
}

func (s *PostgresStoreSuite) TestNotificationLog() {
	ctx := context.Background()
	candidateID := id.CandidateID(uuid.New())

	last, err := s.log.LastSent(ctx, candidateID, ports.NotificationWWCCCheckFailed)
	s.Require().NoError(err)
	s.Nil(last)

	s.Require().NoError(s.log.Append(ctx, ports.NotificationEntry{CandidateID: candidateID, Type: ports.NotificationWWCCCheckFailed, SentAt: s.now}))
	last, err = s.log.LastSent(ctx, candidateID, ports.NotificationWWCCCheckFailed)
	s.Require().NoError(err)
	s.Require().NotNil(last)
	s.True(last.Equal(s.now))
}
