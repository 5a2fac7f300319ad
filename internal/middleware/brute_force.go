package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	bruteForceMaxAttempts = 5
	bruteForceWindow      = 15 * time.Minute
	bruteForceLockout     = 5 * time.Minute
	bruteForceCleanup     = 60 * time.Second
	bruteForceMaxRecords  = 10000
)

type failureRecord struct {
	attempts  int
	firstFail time.Time
	lockedAt  time.Time
}

func (r *failureRecord) locked(now time.Time) bool {
	return !r.lockedAt.IsZero() && now.Sub(r.lockedAt) < bruteForceLockout
}

func (r *failureRecord) expired(now time.Time) bool {
	if !r.lockedAt.IsZero() {
		return now.Sub(r.lockedAt) >= bruteForceLockout
	}
	return now.Sub(r.firstFail) >= bruteForceWindow
}

// BruteForceGuard locks out API keys after repeated failed authentications
// within a window. Keys are tracked by hash only.
type BruteForceGuard struct {
	mu      sync.Mutex
	records map[string]*failureRecord
	log     *logrus.Logger
}

// NewBruteForceGuard creates a guard whose cleanup goroutine stops when ctx
// is cancelled.
func NewBruteForceGuard(ctx context.Context, log *logrus.Logger) *BruteForceGuard {
	g := &BruteForceGuard{
		records: make(map[string]*failureRecord),
		log:     log,
	}
	go g.cleanupLoop(ctx)
	return g
}

// IsBlocked reports whether apiKey is currently locked out.
func (g *BruteForceGuard) IsBlocked(apiKey string) bool {
	kh := hashKey(apiKey)

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[kh]
	return ok && rec.locked(time.Now())
}

// RecordFailure counts a failed authentication for apiKey.
func (g *BruteForceGuard) RecordFailure(apiKey string) {
	kh := hashKey(apiKey)
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[kh]
	if !ok || now.Sub(rec.firstFail) > bruteForceWindow {
		g.records[kh] = &failureRecord{attempts: 1, firstFail: now}
		return
	}

	rec.attempts++
	if rec.attempts >= bruteForceMaxAttempts && rec.lockedAt.IsZero() {
		rec.lockedAt = now
		g.log.WithField("key_hash", kh[:16]+"...").Warn("api key locked out after repeated auth failures")
	}
}

// ResetKey clears failure tracking for apiKey after a successful auth.
func (g *BruteForceGuard) ResetKey(apiKey string) {
	kh := hashKey(apiKey)

	g.mu.Lock()
	delete(g.records, kh)
	g.mu.Unlock()
}

func (g *BruteForceGuard) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(bruteForceCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			g.mu.Lock()
			for k, rec := range g.records {
				if rec.expired(now) {
					delete(g.records, k)
				}
			}
			if over := len(g.records) - bruteForceMaxRecords; over > 0 {
				g.evictOldest(over)
			}
			g.mu.Unlock()
		}
	}
}

// evictOldest removes the n records with the oldest first failure.
// Caller must hold g.mu.
func (g *BruteForceGuard) evictOldest(n int) {
	for range n {
		var oldestKey string
		var oldest time.Time
		for k, rec := range g.records {
			if oldestKey == "" || rec.firstFail.Before(oldest) {
				oldestKey, oldest = k, rec.firstFail
			}
		}
		delete(g.records, oldestKey)
	}
}

// BruteForceMiddleware rejects requests carrying a locked-out API key before
// any lookup happens.
func BruteForceMiddleware(guard *BruteForceGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey := ExtractBearerToken(c); apiKey != "" && guard.IsBlocked(apiKey) {
			respondError(c, http.StatusTooManyRequests, "rate_limited", "too many failed authentication attempts")
			return
		}

		c.Next()
	}
}
