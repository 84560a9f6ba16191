package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_Allow(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "login:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}

	now = now.Add(20 * time.Second)
	res, err := l.Allow(ctx, "login:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 40*time.Second, res.RetryAfter)

	// other keys have their own window
	res, _ = l.Allow(ctx, "login:5.6.7.8", 3, time.Minute)
	assert.True(t, res.Allowed)

	// a new window starts once the previous one elapsed
	now = now.Add(40 * time.Second)
	res, _ = l.Allow(ctx, "login:1.2.3.4", 3, time.Minute)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
}
