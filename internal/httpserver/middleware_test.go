package httpserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserLimiter_EvictsRefilledBuckets(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newUserLimiter(2)
	l.now = func() time.Time { return now }
	l.lastSweep = now

	assert.True(t, l.allow("alice"))
	assert.True(t, l.allow("alice"))
	assert.False(t, l.allow("alice"))
	assert.True(t, l.allow("bob"))
	assert.Len(t, l.limiters, 2)

	// Thirty seconds refill one token each: nothing is full yet, and no sweep is due.
	now = now.Add(30 * time.Second)
	assert.True(t, l.allow("alice"))
	assert.Len(t, l.limiters, 2)

	// After a full refill period only carol's fresh bucket remains.
	now = now.Add(2 * time.Minute)
	assert.True(t, l.allow("carol"))
	assert.Len(t, l.limiters, 1)
	assert.Contains(t, l.limiters, "carol")

	// An evicted user starts again with a full bucket.
	assert.True(t, l.allow("alice"))
	assert.True(t, l.allow("alice"))
	assert.False(t, l.allow("alice"))
}
