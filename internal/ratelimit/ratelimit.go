package ratelimit

import (
	"sync"
	"time"
)

// Limiter tracks event counts per key within a sliding window. Keys are
// typically client IPs guarding the WebSocket upgrade path.
type Limiter struct {
	mu      sync.Mutex
	seen    map[string][]time.Time
	max     int
	window  time.Duration
	sweeps  int
	sweepAt int
}

// New creates a Limiter allowing max events per key per window.
func New(max int, window time.Duration) *Limiter {
	return &Limiter{
		seen:    make(map[string][]time.Time),
		max:     max,
		window:  window,
		sweepAt: 256,
	}
}

// Allow reports whether key is under its limit, recording the event
// when it is.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)

	recent := l.seen[key][:0]
	for _, ts := range l.seen[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.max {
		l.seen[key] = recent
		return false
	}

	l.seen[key] = append(recent, now)

	l.sweeps++
	if l.sweeps >= l.sweepAt {
		l.sweeps = 0
		l.sweepLocked(cutoff)
	}
	return true
}

// sweepLocked drops keys whose every entry has expired so idle keys do
// not accumulate forever.
func (l *Limiter) sweepLocked(cutoff time.Time) {
	for key, stamps := range l.seen {
		live := false
		for _, ts := range stamps {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.seen, key)
		}
	}
}
