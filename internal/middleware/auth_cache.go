package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/persistorai/cobuy/internal/domain"
	"github.com/persistorai/cobuy/internal/models"
)

const (
	merchantCacheTTL   = 5 * time.Minute
	negativeCacheTTL   = 30 * time.Second
	maxCacheEntries    = 10000
	cacheCleanupPeriod = 60 * time.Second
)

// negativeSentinel is stored in merchantID to mark an unknown key.
const negativeSentinel = "\x00negative"

type cachedMerchant struct {
	merchantID string
	fetchedAt  time.Time
}

func (cm cachedMerchant) isNegative() bool {
	return cm.merchantID == negativeSentinel
}

func (cm cachedMerchant) ttl() time.Duration {
	if cm.isNegative() {
		return negativeCacheTTL
	}
	return merchantCacheTTL
}

// hashKey returns a hex-encoded SHA-256 hash of the API key so raw keys
// are never stored in memory.
func hashKey(apiKey string) string {
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:])
}

// Compile-time check: *CachedMerchantResolver must satisfy domain.MerchantResolver.
var _ domain.MerchantResolver = (*CachedMerchantResolver)(nil)

// CachedMerchantResolver wraps a MerchantResolver with a bounded in-memory
// cache. Unknown keys are cached for a short time; backend errors are not.
type CachedMerchantResolver struct {
	inner domain.MerchantResolver
	mu    sync.RWMutex
	cache map[string]cachedMerchant
}

// NewCachedMerchantResolver creates a caching wrapper around inner. ctx
// controls the lifetime of the background eviction goroutine.
func NewCachedMerchantResolver(ctx context.Context, inner domain.MerchantResolver) *CachedMerchantResolver {
	c := &CachedMerchantResolver{
		inner: inner,
		cache: make(map[string]cachedMerchant),
	}
	go c.evictLoop(ctx)
	return c
}

func (c *CachedMerchantResolver) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(cacheCleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			c.evictExpiredLocked(time.Now())
			c.mu.Unlock()
		}
	}
}

func (c *CachedMerchantResolver) evictExpiredLocked(now time.Time) {
	for k, v := range c.cache {
		if now.Sub(v.fetchedAt) >= v.ttl() {
			delete(c.cache, k)
		}
	}
}

// GetMerchantByAPIKey returns a cached merchant ID or delegates to the inner
// resolver.
func (c *CachedMerchantResolver) GetMerchantByAPIKey(ctx context.Context, apiKey string) (string, error) {
	hk := hashKey(apiKey)

	c.mu.RLock()
	entry, ok := c.cache[hk]
	if ok && time.Since(entry.fetchedAt) < entry.ttl() {
		c.mu.RUnlock()
		if entry.isNegative() {
			return "", models.ErrMerchantNotFound
		}
		return entry.merchantID, nil
	}
	c.mu.RUnlock()

	merchantID, err := c.inner.GetMerchantByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, models.ErrMerchantNotFound) {
			c.store(hk, negativeSentinel)
		}
		return "", err
	}

	c.store(hk, merchantID)

	return merchantID, nil
}

func (c *CachedMerchantResolver) store(hk, merchantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cache) >= maxCacheEntries {
		c.evictExpiredLocked(time.Now())
		for k := range c.cache {
			if len(c.cache) < maxCacheEntries {
				break
			}
			delete(c.cache, k)
		}
	}
	c.cache[hk] = cachedMerchant{merchantID: merchantID, fetchedAt: time.Now()}
}

// Len reports the number of cached entries.
func (c *CachedMerchantResolver) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.cache)
}
