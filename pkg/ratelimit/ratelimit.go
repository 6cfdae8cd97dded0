// Package ratelimit admits or rejects requests per client over a
// sliding time window. State is per-process; nothing survives a
// restart.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter counts admitted requests per client id within a trailing
// window. Rejections do not consume a slot: only admitted requests
// count against the budget.
type Limiter struct {
	mu          sync.Mutex
	window      time.Duration
	maxRequests int
	hits        map[string][]time.Time
	now         func() time.Time
}

func New(maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		window:      window,
		maxRequests: maxRequests,
		hits:        map[string][]time.Time{},
		now:         time.Now,
	}
}

// Allow reports whether clientID may proceed, recording the request
// time when it may. Timestamps older than the window are pruned on
// every call, so an idle client's record shrinks back to nothing.
func (l *Limiter) Allow(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	times := l.hits[clientID]
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.maxRequests {
		l.hits[clientID] = kept
		return false
	}

	l.hits[clientID] = append(kept, now)
	return true
}
