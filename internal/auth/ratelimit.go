package auth

import (
	"sync"
	"time"
)

// Limiter tracks failed attempts per key over a sliding window. A second
// instance guards password-reset confirmations, keyed by email instead of
// source address.
type Limiter interface {
	Allow(key string) bool
	RecordFailure(key string)
	RetryAfter(key string) time.Duration
}

// SlidingWindowLimiter is an in-process Limiter. Its state is best-effort
// and lost on restart; it is an abuse deterrent, not the last line of
// defense.
type SlidingWindowLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	max      int
	window   time.Duration
	now      func() time.Time
}

func NewSlidingWindowLimiter(max int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		failures: make(map[string][]time.Time),
		max:      max,
		window:   window,
		now:      time.Now,
	}
}

// Allow prunes expired failures for key and reports whether another attempt
// is permitted.
func (l *SlidingWindowLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(key)
	return len(recent) < l.max
}

// RecordFailure counts one failed attempt against key. Successful attempts
// are never recorded and never reset the window.
func (l *SlidingWindowLimiter) RecordFailure(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(key)
	l.failures[key] = append(recent, l.now())
}

// RetryAfter returns how long until the oldest counted failure ages out.
// Zero means the key is not currently limited.
func (l *SlidingWindowLimiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(key)
	if len(recent) < l.max {
		return 0
	}

	wait := recent[0].Add(l.window).Sub(l.now())
	if wait < 0 {
		return 0
	}
	return wait
}

// prune must be called with the lock held. It drops timestamps older than
// the window and deletes empty keys so the map does not grow unbounded.
func (l *SlidingWindowLimiter) prune(key string) []time.Time {
	cutoff := l.now().Add(-l.window)
	entries := l.failures[key]

	i := 0
	for i < len(entries) && !entries[i].After(cutoff) {
		i++
	}
	recent := entries[i:]

	if len(recent) == 0 {
		delete(l.failures, key)
	} else if i > 0 {
		l.failures[key] = recent
	}
	return recent
}
