// Package store persists verification records and the notification log.
package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"carecheck/internal/verification/models"
	"carecheck/internal/verification/ports"
	id "carecheck/pkg/domain"
	"carecheck/pkg/platform/sentinel"
)

// InMemoryStore holds records in a map guarded by a mutex. Records are cloned
// on the way in and out so callers never share state with the store.
type InMemoryStore struct {
	mu          sync.Mutex
	records     map[id.VerificationID]*models.Record
	byCandidate map[id.CandidateID]id.VerificationID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records:     make(map[id.VerificationID]*models.Record),
		byCandidate: make(map[id.CandidateID]id.VerificationID),
	}
}

func (s *InMemoryStore) FindByID(_ context.Context, recordID id.VerificationID) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *InMemoryStore) FindByCandidate(_ context.Context, candidateID id.CandidateID) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recordID, ok := s.byCandidate[candidateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.records[recordID].Clone(), nil
}

// FindByWWCCNumber matches the declared number ignoring case and spacing.
func (s *InMemoryStore) FindByWWCCNumber(_ context.Context, number string) ([]*models.Record, error) {
	want := models.NormaliseWWCCNumber(number)
	if want == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Record
	for _, rec := range s.records {
		if models.NormaliseWWCCNumber(rec.WWCC.Declared.Number) == want {
			out = append(out, rec.Clone())
		}
	}
	sortByCreated(out)
	return out, nil
}

// Upsert loads the candidate's record (nil when absent), lets build produce the
// new state, and saves it. A build error aborts without writing.
func (s *InMemoryStore) Upsert(_ context.Context, candidateID id.CandidateID, build func(existing *models.Record) (*models.Record, error)) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *models.Record
	if recordID, ok := s.byCandidate[candidateID]; ok {
		existing = s.records[recordID].Clone()
	}
	rec, err := build(existing)
	if err != nil {
		return nil, err
	}
	s.records[rec.ID] = rec.Clone()
	s.byCandidate[candidateID] = rec.ID
	return rec.Clone(), nil
}

// Execute runs validate then mutate while holding the store lock.
func (s *InMemoryStore) Execute(_ context.Context, recordID id.VerificationID, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[recordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	rec := current.Clone()
	if err := validate(rec); err != nil {
		return nil, err
	}
	mutate(rec)
	s.records[recordID] = rec.Clone()
	return rec, nil
}

func (s *InMemoryStore) ListByIdentityStatus(_ context.Context, statuses ...models.IdentityStatus) ([]*models.Record, error) {
	return s.list(func(r *models.Record) bool { return slices.Contains(statuses, r.Identity.Status) }), nil
}

func (s *InMemoryStore) ListByWWCCStatus(_ context.Context, statuses ...models.WWCCStatus) ([]*models.Record, error) {
	return s.list(func(r *models.Record) bool { return slices.Contains(statuses, r.WWCC.Status) }), nil
}

func (s *InMemoryStore) ListFollowUpPending(_ context.Context) ([]*models.Record, error) {
	return s.list(func(r *models.Record) bool { return r.FollowUpPending }), nil
}

func (s *InMemoryStore) list(match func(*models.Record) bool) []*models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Record
	for _, rec := range s.records {
		if match(rec) {
			out = append(out, rec.Clone())
		}
	}
	sortByCreated(out)
	return out
}

func sortByCreated(recs []*models.Record) {
	slices.SortFunc(recs, func(a, b *models.Record) int { return a.CreatedAt.Compare(b.CreatedAt) })
}

// InMemoryNotificationLog records sent notifications.
type InMemoryNotificationLog struct {
	mu      sync.RWMutex
	entries []ports.NotificationEntry
}

func NewInMemoryNotificationLog() *InMemoryNotificationLog {
	return &InMemoryNotificationLog{}
}

func (l *InMemoryNotificationLog) LastSent(_ context.Context, candidateID id.CandidateID, typ ports.NotificationType) (*time.Time, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var last *time.Time
	for _, e := range l.entries {
		if e.CandidateID != candidateID || e.Type != typ {
			continue
		}
		if last == nil || e.SentAt.After(*last) {
			sent := e.SentAt
			last = &sent
		}
	}
	return last, nil
}

func (l *InMemoryNotificationLog) Append(_ context.Context, entry ports.NotificationEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

// Entries returns a copy of everything logged.
func (l *InMemoryNotificationLog) Entries() []ports.NotificationEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.entries)
}
