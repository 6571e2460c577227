package ratelimit

import (
	"context"
	"sync"
	"time"

	"carecheck/pkg/requestcontext"
)

// InMemoryBucketStore keeps windows in process. Limits are per replica.
type InMemoryBucketStore struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
}

func NewInMemoryBucketStore() *InMemoryBucketStore {
	return &InMemoryBucketStore{buckets: make(map[string][]time.Time)}
}

func (s *InMemoryBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	hits := trim(s.buckets[key], now.Add(-window))
	if len(hits) >= limit {
		s.buckets[key] = hits
		resetAt := hits[0].Add(window)
		return &Result{
			Allowed:    false,
			Limit:      limit,
			ResetAt:    resetAt,
			RetryAfter: retryAfter(resetAt, now),
		}, nil
	}
	hits = append(hits, now)
	s.buckets[key] = hits
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(hits),
		ResetAt:   hits[0].Add(window),
	}, nil
}

// trim drops timestamps at or before cutoff. Timestamps are kept in order.
func trim(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}
