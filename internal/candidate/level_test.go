package candidate

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carecheck/internal/verification/models"
	id "carecheck/pkg/domain"
	"carecheck/pkg/platform/sentinel"
)

func TestInMemoryLevelStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryLevelStore()
	candidateID := id.CandidateID(uuid.New())

	_, err := s.VerificationLevel(ctx, candidateID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, s.SetVerificationLevel(ctx, candidateID, models.OverallPendingWWCCAuto))
	require.NoError(t, s.SetVerificationLevel(ctx, candidateID, models.OverallProvisionallyVerified))

	level, err := s.VerificationLevel(ctx, candidateID)
	require.NoError(t, err)
	assert.Equal(t, models.OverallProvisionallyVerified, level)
}
