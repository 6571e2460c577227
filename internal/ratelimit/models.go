// Package ratelimit throttles the candidate and inbound-mail routes with a
// sliding window per key.
package ratelimit

import (
	"context"
	"time"
)

// Class names a group of routes that share one limit.
type Class string

const (
	ClassCandidate Class = "candidate"
	ClassInbound   Class = "inbound"
)

// Limit is the request budget for one class.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int
}

// BucketStore counts requests per key over a sliding window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

type exceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"error_description"`
	RetryAfter int    `json:"retry_after"`
}

func retryAfter(resetAt, now time.Time) int {
	secs := int(resetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
