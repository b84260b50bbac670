package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"), "third call inside the window must be rejected")

	// Another key has its own budget.
	assert.True(t, rl.Allow("b"))

	// A fresh window resets the count.
	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("a"))
}
