package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/shule/core"
)

type memoryWindow struct {
	start time.Time
	hits  int
}

// MemoryLimiter is a fixed window limiter for single process deployments and tests.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

var _ core.RateLimiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string]*memoryWindow), now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, max int, window time.Duration) (core.RateLimit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= window {
		w = &memoryWindow{start: now}
		l.windows[key] = w
	}
	if w.hits >= max {
		return core.RateLimit{Limit: max, RetryAfter: w.start.Add(window).Sub(now)}, nil
	}
	w.hits++
	return core.RateLimit{Allowed: true, Limit: max, Remaining: max - w.hits}, nil
}

// Reset forgets every window.
func (l *MemoryLimiter) Reset() {
	l.mu.Lock()
	l.windows = make(map[string]*memoryWindow)
	l.mu.Unlock()
}
