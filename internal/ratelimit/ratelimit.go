// Package ratelimit adapts the teacher's server/rate_limiter.go token
// bucket to the adapter's per-caller request shaping: one bucket per
// auth subject (falling back to a shared "unknown" bucket for
// unauthenticated callers, rather than per-client-IP as the teacher did,
// since this layer sits behind the auth middleware, not a raw transport).
package ratelimit

import (
	"sync"
	"time"

	"github.com/neverinfamous/mysql-mcp-go/internal/config"
)

// TokenBucket is a single caller's token bucket.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64
	lastRefill time.Time
}

// NewTokenBucket creates a full bucket of the given capacity/refill rate.
func NewTokenBucket(capacity, refillRate float64) *TokenBucket {
	return &TokenBucket{tokens: capacity, capacity: capacity, refillRate: refillRate, lastRefill: time.Now()}
}

// Allow refills the bucket for elapsed time, then consumes one token if
// available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill
}

// Limiter manages one TokenBucket per subject.
type Limiter struct {
	cfg     config.RateLimitConfig
	mu      sync.RWMutex
	buckets map[string]*TokenBucket
	stopCh  chan struct{}
}

// New builds a Limiter and starts its background cleanup loop.
func New(cfg config.RateLimitConfig) *Limiter {
	l := &Limiter{cfg: cfg, buckets: make(map[string]*TokenBucket), stopCh: make(chan struct{})}
	go l.cleanupLoop()
	return l
}

// Allow checks whether subject may proceed, lazily creating its bucket.
func (l *Limiter) Allow(subject string) bool {
	if subject == "" {
		subject = "unknown"
	}

	l.mu.RLock()
	bucket, ok := l.buckets[subject]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		bucket, ok = l.buckets[subject]
		if !ok {
			bucket = NewTokenBucket(l.cfg.BurstSize, l.cfg.RequestsPerSecond)
			l.buckets[subject] = bucket
		}
		l.mu.Unlock()
	}

	return bucket.Allow()
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanupOnce()
		case <-l.stopCh:
			return
		}
	}
}

func (l *Limiter) cleanupOnce() {
	cutoff := l.cfg.CleanupInterval * 2
	l.mu.Lock()
	defer l.mu.Unlock()
	for subject, bucket := range l.buckets {
		if time.Since(bucket.idleSince()) > cutoff {
			delete(l.buckets, subject)
		}
	}
}

// Stop ends the background cleanup loop.
func (l *Limiter) Stop() { close(l.stopCh) }

// Stats reports the limiter's current load, for the monitoring group.
type Stats struct {
	ActiveSubjects    int
	RequestsPerSecond float64
	BurstSize         float64
}

func (l *Limiter) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Stats{
		ActiveSubjects:    len(l.buckets),
		RequestsPerSecond: l.cfg.RequestsPerSecond,
		BurstSize:         l.cfg.BurstSize,
	}
}
