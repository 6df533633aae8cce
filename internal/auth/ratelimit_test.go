package auth

import (
	"sync"
	"testing"
	"time"
)

func TestLimiterAllowsUnderMax(t *testing.T) {
	limiter := NewSlidingWindowLimiter(5, 15*time.Minute)

	for i := 0; i < 4; i++ {
		limiter.RecordFailure("1.2.3.4")
	}

	if !limiter.Allow("1.2.3.4") {
		t.Error("four failures should still be under the limit of five")
	}
}

func TestLimiterBlocksAtMax(t *testing.T) {
	limiter := NewSlidingWindowLimiter(5, 15*time.Minute)

	for i := 0; i < 5; i++ {
		limiter.RecordFailure("1.2.3.4")
	}

	if limiter.Allow("1.2.3.4") {
		t.Error("five failures should block the sixth attempt")
	}
	if !limiter.Allow("5.6.7.8") {
		t.Error("a different key should not be limited")
	}
}

func TestLimiterSlidingWindow(t *testing.T) {
	limiter := NewSlidingWindowLimiter(5, 15*time.Minute)

	current := time.Now()
	limiter.now = func() time.Time { return current }

	// Two old failures, three recent ones.
	limiter.RecordFailure("1.2.3.4")
	limiter.RecordFailure("1.2.3.4")
	current = current.Add(10 * time.Minute)
	limiter.RecordFailure("1.2.3.4")
	limiter.RecordFailure("1.2.3.4")
	limiter.RecordFailure("1.2.3.4")

	if limiter.Allow("1.2.3.4") {
		t.Error("five failures inside the window should block")
	}

	// The first two age out; only three remain.
	current = current.Add(6 * time.Minute)
	if !limiter.Allow("1.2.3.4") {
		t.Error("aged-out failures should no longer count")
	}
}

func TestLimiterRetryAfter(t *testing.T) {
	limiter := NewSlidingWindowLimiter(2, 15*time.Minute)

	current := time.Now()
	limiter.now = func() time.Time { return current }

	limiter.RecordFailure("key")
	current = current.Add(5 * time.Minute)
	limiter.RecordFailure("key")

	if got := limiter.RetryAfter("key"); got != 10*time.Minute {
		t.Errorf("RetryAfter = %v, want %v", got, 10*time.Minute)
	}

	if got := limiter.RetryAfter("other"); got != 0 {
		t.Errorf("RetryAfter for unlimited key = %v, want 0", got)
	}
}

func TestLimiterConcurrentAccess(t *testing.T) {
	limiter := NewSlidingWindowLimiter(500, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				limiter.RecordFailure("shared")
				limiter.Allow("shared")
			}
		}()
	}
	wg.Wait()

	if limiter.Allow("shared") {
		t.Error("500 failures should exceed the limit")
	}
}
