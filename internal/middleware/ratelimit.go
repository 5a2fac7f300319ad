// Package middleware provides the HTTP middleware chain of the cobuy API.
package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// maxBuckets caps tracked clients to prevent memory exhaustion.
const maxBuckets = 100_000

// KeyFunc picks the identity a request is rate limited under.
type KeyFunc func(c *gin.Context) string

// ByClientIP limits per remote address.
func ByClientIP(c *gin.Context) string {
	// Proxy headers are not trusted (SetTrustedProxies(nil) in the router).
	return "ip:" + c.ClientIP()
}

// ByMerchant limits per authenticated merchant, falling back to the client IP
// when the request is not authenticated.
func ByMerchant(c *gin.Context) string {
	if id := c.GetString(MerchantIDKey); id != "" {
		return "merchant:" + id
	}
	return ByClientIP(c)
}

// RateLimiter is a token bucket limiter keyed by a KeyFunc.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   float64
	key     KeyFunc
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// take refills the bucket for the elapsed time and spends one token.
func (rl *RateLimiter) take(b *bucket, now time.Time) bool {
	b.tokens = min(rl.burst, b.tokens+now.Sub(b.lastSeen).Seconds()*rl.rate)
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--

	return true
}

// NewRateLimiter creates a RateLimiter allowing ratePerSec sustained requests
// and bursts of burst per key. A background goroutine evicts idle buckets
// until ctx is cancelled. A nil key defaults to ByClientIP.
func NewRateLimiter(ctx context.Context, ratePerSec, burst int, key KeyFunc) *RateLimiter {
	if key == nil {
		key = ByClientIP
	}

	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    float64(ratePerSec),
		burst:   float64(burst),
		key:     key,
	}
	go rl.cleanupLoop(ctx)

	return rl
}

func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	const maxIdle = 10 * time.Minute

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for k, b := range rl.buckets {
				if now.Sub(b.lastSeen) > maxIdle {
					delete(rl.buckets, k)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Handler returns Gin middleware enforcing the limit.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		k := rl.key(c)
		now := time.Now()

		rl.mu.Lock()
		b, ok := rl.buckets[k]
		if !ok {
			if len(rl.buckets) >= maxBuckets {
				rl.mu.Unlock()
				respondError(c, http.StatusTooManyRequests, "rate_limited", "too many clients")
				return
			}
			b = &bucket{tokens: rl.burst, lastSeen: now}
			rl.buckets[k] = b
		}
		allowed := rl.take(b, now)
		rl.mu.Unlock()

		if !allowed {
			c.Header("Retry-After", "1")
			respondError(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}

		c.Next()
	}
}
