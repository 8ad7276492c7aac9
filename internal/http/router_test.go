package httpapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-perf-monitor/internal/config"
	"github.com/tbourn/go-perf-monitor/internal/perf"
	"github.com/tbourn/go-perf-monitor/internal/repo"
)

func newTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	cfg := config.Config{
		APIBasePath:    "/api/v1",
		SwaggerEnabled: true,
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
	}
	cfg.Perf.ResetEnabled = true
	return cfg
}

func newTestEngine(t *testing.T, cfg config.Config, db *gorm.DB) (*gin.Engine, *perf.Monitor) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m, err := perf.New(perf.DefaultConfig(), perf.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("perf.New: %v", err)
	}
	deps := Deps{Config: cfg, Monitor: m, DB: db}
	if db != nil {
		deps.Digests = repo.NewDigestStore(db, 0)
	}
	r := gin.New()
	RegisterRoutes(r, deps)
	return r, m
}

func get(r http.Handler, target string, hdr ...string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newTestEngine(t, testConfig(), nil)

	for _, p := range []string{"/health", "/healthz", "/ready"} {
		w := get(r, p)
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s = %d", p, w.Code)
		}
		if w.Header().Get("X-Response-Time") != "" {
			t.Fatalf("GET %s should be excluded from timing", p)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Fatalf("AllowAllOrigins expected '*', got %q", got)
		}
	}

	w := get(r, "/metrics")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "perfmon_requests_total") {
		t.Fatalf("GET /metrics bad: code=%d body=%s", w.Code, w.Body.String())
	}

	if w := get(r, "/nope"); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_StatsTimedAndCounted(t *testing.T) {
	r, m := newTestEngine(t, testConfig(), nil)

	w := get(r, "/api/v1/perf/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("GET stats = %d", w.Code)
	}
	for _, h := range []string{"X-Request-ID", "X-Response-Time"} {
		if w.Header().Get(h) == "" {
			t.Fatalf("missing %s header", h)
		}
	}
	// The stats request itself is in scope.
	if m.Counters().Total != 1 {
		t.Fatalf("total = %d; want 1", m.Counters().Total)
	}

	w = get(r, "/api/v1/perf/stats")
	var s perf.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil {
		t.Fatalf("json: %v", err)
	}
	if s.TotalRequests != 1 {
		t.Fatalf("stats total = %d; want 1 (previous request)", s.TotalRequests)
	}
}

func TestRegisterRoutes_CORSExposesDiagnosticHeaders(t *testing.T) {
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://client.test"}}
	r, _ := newTestEngine(t, cfg, nil)

	w := get(r, "/api/v1/perf/stats", "Origin", "http://client.test")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://client.test" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
	exposed := w.Header().Get("Access-Control-Expose-Headers")
	for _, h := range []string{"X-Request-Id", "X-Response-Time", "X-Memory-Delta"} {
		if !strings.Contains(strings.ToLower(exposed), strings.ToLower(h)) {
			t.Fatalf("Expose-Headers %q missing %s", exposed, h)
		}
	}

	w = get(r, "/api/v1/perf/stats", "Origin", "http://evil.example")
	if w.Code != http.StatusForbidden {
		t.Fatalf("disallowed origin expected 403, got %d", w.Code)
	}
}

func TestRegisterRoutes_GzipKeepsTimingHeaders(t *testing.T) {
	r, _ := newTestEngine(t, testConfig(), nil)

	w := get(r, "/api/v1/perf/stats", "Accept-Encoding", "gzip")
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip response, headers=%v", w.Header())
	}
	if w.Header().Get("X-Response-Time") == "" {
		t.Fatalf("timing header lost under gzip")
	}
	zr, err := gzip.NewReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	body, _ := io.ReadAll(zr)
	if !bytes.Contains(body, []byte(`"total_requests"`)) {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestRegisterRoutes_DigestsAndReset(t *testing.T) {
	db := newTestDB(t, "router_digests")
	r, m := newTestEngine(t, testConfig(), db)

	store := repo.NewDigestStore(db, 0)
	m.Observe(perf.Sample{})
	if err := store.SaveDigest(context.Background(), perf.BuildDigest(perf.Snapshot{Counters: m.Counters()}, perf.DefaultThresholds())); err != nil {
		t.Fatalf("seed digest: %v", err)
	}

	w := get(r, "/api/v1/perf/digests?limit=5")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"limit":5`) {
		t.Fatalf("GET digests = %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/perf/reset", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("POST reset = %d", w.Code)
	}
}

func TestRegisterRoutes_ReadyFailsWhenDBClosed(t *testing.T) {
	db := newTestDB(t, "router_ready")
	r, _ := newTestEngine(t, testConfig(), db)

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	if w := get(r, "/ready"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /ready with closed DB = %d; want 503", w.Code)
	}
}

func TestRegisterRoutes_SwaggerToggle(t *testing.T) {
	r, _ := newTestEngine(t, testConfig(), nil)
	w := get(r, "/swagger/doc.json")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/perf/stats") {
		t.Fatalf("GET /swagger/doc.json = %d", w.Code)
	}

	cfg := testConfig()
	cfg.SwaggerEnabled = false
	r, _ = newTestEngine(t, cfg, nil)
	if w := get(r, "/swagger/doc.json"); w.Code != http.StatusNotFound {
		t.Fatalf("swagger disabled, got %d", w.Code)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := get(r, path)
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

func TestRegisterRoutes_SecurityHeaders(t *testing.T) {
	r, _ := newTestEngine(t, testConfig(), nil)

	w := get(r, "/api/v1/perf/stats")
	h := w.Header()
	if h.Get("Cache-Control") != "no-store" || h.Get("X-Content-Type-Options") != "nosniff" || h.Get("Permissions-Policy") == "" {
		t.Fatalf("API headers = %#v", h)
	}

	w = get(r, "/health")
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("baseline headers missing on /health: %#v", w.Header())
	}
	if w.Header().Get("Cache-Control") != "" {
		t.Fatalf("no-store is scoped to the API group, got %q on /health", w.Header().Get("Cache-Control"))
	}
}

func TestRegisterRoutes_RateLimitsReadAPI(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RPS: 0.001, Burst: 2}
	r, m := newTestEngine(t, cfg, nil)

	for i := 0; i < 2; i++ {
		if w := get(r, "/api/v1/perf/stats"); w.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, w.Code)
		}
	}
	w := get(r, "/api/v1/perf/stats")
	if w.Code != http.StatusTooManyRequests || !strings.Contains(w.Body.String(), `"rate_limited"`) {
		t.Fatalf("third request = %d %s", w.Code, w.Body.String())
	}
	// Rejected requests are still timed.
	if w.Header().Get("X-Response-Time") == "" || m.Counters().Total != 3 {
		t.Fatalf("limited request not monitored: total=%d headers=%#v", m.Counters().Total, w.Header())
	}
	// Probes sit outside the API group.
	if w := get(r, "/health"); w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
}
