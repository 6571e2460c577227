// Package candidate holds the candidate's denormalised verification level,
// read by parts of the platform that do not load the verification record.
package candidate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"carecheck/internal/verification/models"
	id "carecheck/pkg/domain"
	"carecheck/pkg/platform/sentinel"
)

// InMemoryLevelStore keeps levels in a map.
type InMemoryLevelStore struct {
	mu     sync.RWMutex
	levels map[id.CandidateID]models.OverallStatus
}

func NewInMemoryLevelStore() *InMemoryLevelStore {
	return &InMemoryLevelStore{levels: make(map[id.CandidateID]models.OverallStatus)}
}

func (s *InMemoryLevelStore) SetVerificationLevel(_ context.Context, candidateID id.CandidateID, level models.OverallStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[candidateID] = level
	return nil
}

func (s *InMemoryLevelStore) VerificationLevel(_ context.Context, candidateID id.CandidateID) (models.OverallStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	level, ok := s.levels[candidateID]
	if !ok {
		return models.OverallNotStarted, sentinel.ErrNotFound
	}
	return level, nil
}

// PostgresLevelStore writes candidate_levels.
type PostgresLevelStore struct {
	db *sql.DB
}

func NewPostgresLevelStore(db *sql.DB) *PostgresLevelStore {
	return &PostgresLevelStore{db: db}
}

func (s *PostgresLevelStore) SetVerificationLevel(ctx context.Context, candidateID id.CandidateID, level models.OverallStatus) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO candidate_levels (candidate_id, level, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (candidate_id) DO UPDATE SET
			level = EXCLUDED.level,
			updated_at = EXCLUDED.updated_at
	`, uuid.UUID(candidateID), level.Code(), time.Now())
	if err != nil {
		return fmt.Errorf("set verification level: %w", err)
	}
	return nil
}

func (s *PostgresLevelStore) VerificationLevel(ctx context.Context, candidateID id.CandidateID) (models.OverallStatus, error) {
	var code int
	err := s.db.QueryRowContext(ctx, `SELECT level FROM candidate_levels WHERE candidate_id = $1`,
		uuid.UUID(candidateID)).Scan(&code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.OverallNotStarted, sentinel.ErrNotFound
		}
		return models.OverallNotStarted, fmt.Errorf("get verification level: %w", err)
	}
	return models.OverallStatus(code), nil
}
