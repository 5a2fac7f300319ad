package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/cobuy/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// hit sends one GET from remoteAddr, and returns the status.
func hit(r *gin.Engine, remoteAddr string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.RemoteAddr = remoteAddr
	r.ServeHTTP(w, req)
	return w.Code
}

func newLimitedRouter(rl *middleware.RateLimiter, merchant func(*gin.Context) string) *gin.Engine {
	r := gin.New()
	if merchant != nil {
		r.Use(func(c *gin.Context) {
			if id := merchant(c); id != "" {
				c.Set(middleware.MerchantIDKey, id)
			}
		})
	}
	r.Use(rl.Handler())
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimiter_BurstThenBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := newLimitedRouter(middleware.NewRateLimiter(ctx, 1, 2, nil), nil)

	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		if got := hit(r, "1.2.3.4:1234"); got != want {
			t.Fatalf("request %d: got %d, want %d", i, got, want)
		}
	}
}

func TestRateLimiter_IndependentIPs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := newLimitedRouter(middleware.NewRateLimiter(ctx, 1, 1, middleware.ByClientIP), nil)

	hit(r, "1.1.1.1:1000")
	if got := hit(r, "2.2.2.2:1000"); got != http.StatusOK {
		t.Fatalf("different IP should not be limited, got %d", got)
	}
}

func TestRateLimiter_ByMerchant(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Every request comes from the same IP; the merchant alternates.
	calls := 0
	merchant := func(*gin.Context) string {
		calls++
		if calls%2 == 0 {
			return "merchant-b"
		}
		return "merchant-a"
	}
	r := newLimitedRouter(middleware.NewRateLimiter(ctx, 1, 1, middleware.ByMerchant), merchant)

	if got := hit(r, "9.9.9.9:1"); got != http.StatusOK {
		t.Fatalf("merchant a first request: %d", got)
	}
	if got := hit(r, "9.9.9.9:1"); got != http.StatusOK {
		t.Fatalf("merchant b should have its own bucket, got %d", got)
	}
	if got := hit(r, "9.9.9.9:1"); got != http.StatusTooManyRequests {
		t.Fatalf("merchant a second request: got %d, want 429", got)
	}
}

func TestRateLimiter_Refills(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// High rate so even tiny elapsed time refills a token.
	r := newLimitedRouter(middleware.NewRateLimiter(ctx, 1_000_000, 2, nil), nil)

	hit(r, "5.5.5.5:1000")
	hit(r, "5.5.5.5:1000")

	if got := hit(r, "5.5.5.5:1000"); got != http.StatusOK {
		t.Fatalf("expected tokens to refill, got %d", got)
	}
}
