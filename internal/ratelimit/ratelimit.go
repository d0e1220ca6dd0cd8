// Package ratelimit throttles the paid endpoints. Payment and edit requests
// trigger settlement transfers and mints, so a misbehaving client gets cut
// off before it can grind the protocol, not after.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int
}

// Store checks and consumes rate limit capacity for a key.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// slidingWindow holds the recent request timestamps for one key.
type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

func (sw *slidingWindow) tryConsume(limit int, now time.Time) (allowed bool, remaining int, resetAt time.Time) {
	sw.dropExpired(now)
	if len(sw.timestamps)+1 > limit {
		return false, 0, sw.timestamps[0].Add(sw.window)
	}
	sw.timestamps = append(sw.timestamps, now)
	return true, limit - len(sw.timestamps), sw.timestamps[0].Add(sw.window)
}

func (sw *slidingWindow) dropExpired(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// MemoryStore is a per-process sliding window store. Suitable for the
// single-process deployment; multi-replica deployments use the redis store.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*slidingWindow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*slidingWindow)}
}

func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.buckets[key]
	if !ok {
		bucket = &slidingWindow{window: window}
		s.buckets[key] = bucket
	}
	allowed, remaining, resetAt := bucket.tryConsume(limit, time.Now())

	return &Result{
		Allowed:    allowed,
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    resetAt,
		RetryAfter: retryAfterSeconds(allowed, resetAt),
	}, nil
}

func retryAfterSeconds(allowed bool, resetAt time.Time) int {
	if allowed {
		return 0
	}
	secs := int(time.Until(resetAt).Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return secs
}
