package staleness

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carecheck/internal/verification/models"
	id "carecheck/pkg/domain"
	"carecheck/pkg/testutil"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func pendingIdentity(at time.Time) *models.Record {
	rec := models.NewRecord(id.NewVerificationID(), id.CandidateID(uuid.New()), at)
	rec.ApplyIdentitySubmission(models.IdentityDeclared{Surname: "Nguyen"}, nil, at)
	return rec
}

func TestEscalate_PendingIdentityAfterFourMinutes(t *testing.T) {
	rec := pendingIdentity(base)
	now := base.Add(4 * time.Minute)

	escalated := Escalate(rec, now, DefaultThreshold)
	require.Equal(t, []Section{SectionIdentity}, escalated)
	assert.Equal(t, models.IdentityReview, rec.Identity.Status)
	assert.Equal(t, []string{models.IssueAutoCheckTimedOut}, rec.Identity.Issues)
	assert.Equal(t, now, rec.UpdatedAt)
	assert.Equal(t, now, rec.Identity.StatusAt)
	assert.Equal(t, models.OverallIDReview, rec.OverallStatus())

	again := Escalate(rec, now, DefaultThreshold)
	assert.Empty(t, again)
	assert.Len(t, rec.Identity.Issues, 1)
}

func TestEscalate_BarredRecordIsLeftAlone(t *testing.T) {
	rec := pendingIdentity(base)
	rec.SetWWCCStatus(models.WWCCBarred, base)

	assert.False(t, IsStale(rec, base.Add(time.Hour), DefaultThreshold))
	assert.Empty(t, Escalate(rec, base.Add(time.Hour), DefaultThreshold))
	assert.Equal(t, models.IdentityPending, rec.Identity.Status)
	assert.Empty(t, rec.Identity.Issues)
}

func TestEscalate_WithinThresholdIsNoop(t *testing.T) {
	rec := pendingIdentity(base)
	assert.Empty(t, Escalate(rec, base.Add(3*time.Minute), DefaultThreshold))
	assert.Equal(t, models.IdentityPending, rec.Identity.Status)
}

func TestEscalate_ProcessingWWCC(t *testing.T) {
	rec := pendingIdentity(base)
	rec.SetIdentityStatus(models.IdentityVerified, base)
	rec.ApplyWWCCSubmission(models.WWCCDeclared{Method: models.WWCCMethodScreenshot}, nil, base)
	rec.SetWWCCStatus(models.WWCCProcessing, base)

	escalated := Escalate(rec, base.Add(10*time.Minute), DefaultThreshold)
	assert.Equal(t, []Section{SectionWWCC}, escalated)
	assert.Equal(t, models.WWCCReview, rec.WWCC.Status)
	assert.Equal(t, models.IdentityVerified, rec.Identity.Status)
}

func TestEscalate_DocVerifiedWaitsForOCG(t *testing.T) {
	rec := pendingIdentity(base)
	rec.SetIdentityStatus(models.IdentityVerified, base)
	rec.SetWWCCStatus(models.WWCCDocVerified, base)

	assert.Empty(t, Escalate(rec, base.Add(72*time.Hour), DefaultThreshold))
	assert.Equal(t, models.WWCCDocVerified, rec.WWCC.Status)
}

func TestEscalate_BothSectionsInFlight(t *testing.T) {
	testutil.Given(t, "identity pending and wwcc processing since 09:00", func(t *testing.T) {
		rec := pendingIdentity(base)
		rec.ApplyWWCCSubmission(models.WWCCDeclared{Method: models.WWCCMethodScreenshot, Number: "WWC1234567E"}, nil, base)
		rec.SetWWCCStatus(models.WWCCProcessing, base)

		testutil.When(t, "the record is read ten minutes later", func(t *testing.T) {
			now := base.Add(10 * time.Minute)
			escalated := Escalate(rec, now, DefaultThreshold)

			testutil.Then(t, "both sections move to review", func(t *testing.T) {
				assert.Equal(t, []Section{SectionIdentity, SectionWWCC}, escalated)
				assert.Equal(t, models.IdentityReview, rec.Identity.Status)
				assert.Equal(t, models.WWCCReview, rec.WWCC.Status)
				assert.Equal(t, models.OverallWWCCReview, rec.OverallStatus())
			})
		})
	})
}
