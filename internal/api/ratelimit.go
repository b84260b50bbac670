package api

import (
	"sync"
	"time"
)

// RateLimiter is a fixed-window counter per key. Backtests are expensive, so
// each caller gets at most cap runs per window.
type RateLimiter struct {
	mu     sync.Mutex
	cap    int
	window time.Duration
	counts map[string]*windowCount
	now    func() time.Time
}

type windowCount struct {
	start time.Time
	seen  int
}

func NewRateLimiter(cap int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		cap:    cap,
		window: window,
		counts: make(map[string]*windowCount),
		now:    time.Now,
	}
}

// Allow reports whether key may proceed, counting the attempt if so.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	wc, ok := r.counts[key]
	if !ok || now.Sub(wc.start) >= r.window {
		r.counts[key] = &windowCount{start: now, seen: 1}
		return true
	}
	if wc.seen >= r.cap {
		return false
	}
	wc.seen++
	return true
}
