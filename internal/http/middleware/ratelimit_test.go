package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestKeyByClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	if got := KeyByClientIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("key = %q", got)
	}
}

func TestNewRateLimiter_DefaultsAndReuse(t *testing.T) {
	rl := NewRateLimiter(2, 0, nil)
	if rl.burst != 1 {
		t.Fatalf("burst coercion failed, got %d", rl.burst)
	}
	if rl.keyFn == nil {
		t.Fatalf("nil keyFn should default to client IP")
	}
	lim := rl.limiterFor("k1")
	if got := rl.limiterFor("k1"); got != lim {
		t.Fatalf("expected the same bucket for the same key")
	}
	if got := rl.limiterFor("k2"); got == lim {
		t.Fatalf("expected a separate bucket per key")
	}
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.mu.Lock()
	rl.visitors["old"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: now.Add(-time.Hour)}
	rl.visitors["fresh"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: now.Add(-time.Minute)}
	rl.lookups = cleanupEvery - 1
	rl.mu.Unlock()

	_ = rl.limiterFor("new")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["old"]; ok {
		t.Fatalf("idle bucket should be evicted")
	}
	if _, ok := rl.visitors["fresh"]; !ok {
		t.Fatalf("recent bucket should survive")
	}
	if _, ok := rl.visitors["new"]; !ok || rl.lookups != 0 {
		t.Fatalf("new bucket missing or counter not reset (lookups=%d)", rl.lookups)
	}
}

func TestRateLimiter_Handler_AllowThenReject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1, 1, nil)

	r := gin.New()
	r.Use(RequestID(), rl.Handler())
	r.GET("/perf/stats", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/perf/stats", nil))
	if w1.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", w1.Code)
	}

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/perf/stats", nil))
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("Retry-After = %q", got)
	}
	var body map[string]any
	if err := json.Unmarshal(w2.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["code"] != "rate_limited" || body["request_id"] != w2.Header().Get("X-Request-ID") || body["request_id"] == "" {
		t.Fatalf("unexpected body %v (header id %q)", body, w2.Header().Get("X-Request-ID"))
	}

	// Another client has its own bucket.
	w3 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/perf/stats", nil)
	req.RemoteAddr = net.JoinHostPort("198.51.100.7", "1")
	r.ServeHTTP(w3, req)
	if w3.Code != http.StatusOK {
		t.Fatalf("other client should pass, got %d", w3.Code)
	}
}

func TestRateLimiter_RetryAfterForSlowRates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.25, 1, nil)
	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		if i == 1 && (w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "4") {
			t.Fatalf("got %d Retry-After=%q", w.Code, w.Header().Get("Retry-After"))
		}
	}
}
