// Package ratelimit throttles the voice-agent tool routes per client using an
// in-memory sliding window. It is per process; replicas each keep their own
// counters.
package ratelimit

import (
	"sync"
	"time"
)

// Result describes one admission decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until a slot frees up.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// Store keeps one sliding window per key.
type Store struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limit   int
	window  time.Duration
}

func NewStore(limit int, window time.Duration) *Store {
	return &Store{
		windows: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
	}
}

// Allow admits the request at now when fewer than limit requests for key fall
// inside the trailing window.
func (s *Store) Allow(key string, now time.Time) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamps := expire(s.windows[key], now.Add(-s.window))
	if len(stamps) >= s.limit {
		s.windows[key] = stamps
		return Result{Limit: s.limit, ResetAt: stamps[0].Add(s.window)}
	}
	stamps = append(stamps, now)
	s.windows[key] = stamps
	return Result{
		Allowed:   true,
		Limit:     s.limit,
		Remaining: s.limit - len(stamps),
		ResetAt:   stamps[0].Add(s.window),
	}
}

// Sweep drops keys whose windows are empty at now.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.window)
	dropped := 0
	for key, stamps := range s.windows {
		if len(expire(stamps, cutoff)) == 0 {
			delete(s.windows, key)
			dropped++
		}
	}
	return dropped
}

func expire(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	return stamps[i:]
}
