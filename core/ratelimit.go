package core

import (
	"context"
	"time"
)

type (
	// RateLimit is the outcome of a single RateLimiter.Allow call.
	RateLimit struct {
		Allowed    bool
		Limit      int
		Remaining  int
		RetryAfter time.Duration
	}

	RateLimiter interface {
		// Allow records a hit for key and reports whether it fits in max hits per window.
		Allow(ctx context.Context, key string, max int, window time.Duration) (RateLimit, error)
	}
)
