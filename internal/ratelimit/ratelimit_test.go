package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/neverinfamous/mysql-mcp-go/internal/config"
)

func TestTokenBucket_ConsumesAndRefills(t *testing.T) {
	tb := NewTokenBucket(2, 1)
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "bucket should be empty after consuming its full capacity")

	tb.lastRefill = time.Now().Add(-2 * time.Second)
	assert.True(t, tb.Allow(), "after 2s at 1 token/sec the bucket should have refilled")
}

func TestLimiter_PerSubjectIsolation(t *testing.T) {
	l := New(config.RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, CleanupInterval: time.Hour})
	defer l.Stop()

	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"), "alice's single-token bucket should now be empty")
	assert.True(t, l.Allow("bob"), "bob has an independent bucket")
}

func TestLimiter_EmptySubjectFallsBackToUnknownBucket(t *testing.T) {
	l := New(config.RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, CleanupInterval: time.Hour})
	defer l.Stop()

	assert.True(t, l.Allow(""))
	assert.False(t, l.Allow(""))
}

func TestLimiter_CleanupEvictsIdleBuckets(t *testing.T) {
	l := New(config.RateLimitConfig{RequestsPerSecond: 10, BurstSize: 10, CleanupInterval: time.Hour})
	defer l.Stop()

	l.Allow("stale-subject")
	assert.Equal(t, 1, l.Stats().ActiveSubjects)

	l.buckets["stale-subject"].lastRefill = time.Now().Add(-10 * time.Hour)
	l.cleanupOnce()
	assert.Equal(t, 0, l.Stats().ActiveSubjects)
}

func TestLimiter_Stats(t *testing.T) {
	l := New(config.RateLimitConfig{RequestsPerSecond: 5, BurstSize: 10, CleanupInterval: time.Hour})
	defer l.Stop()

	l.Allow("a")
	l.Allow("b")
	stats := l.Stats()
	assert.Equal(t, 2, stats.ActiveSubjects)
	assert.Equal(t, 5.0, stats.RequestsPerSecond)
	assert.Equal(t, 10.0, stats.BurstSize)
}
