// Package httpapi wires the Gin transport to the performance monitor, the
// read API handlers and the cross-cutting middleware (tracing, correlation
// ids, logging, recovery, timing, compression, CORS).
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-perf-monitor/docs" // registers the OpenAPI document
	"github.com/tbourn/go-perf-monitor/internal/config"
	"github.com/tbourn/go-perf-monitor/internal/http/handlers"
	"github.com/tbourn/go-perf-monitor/internal/http/middleware"
	"github.com/tbourn/go-perf-monitor/internal/perf"
)

// Deps are the collaborators RegisterRoutes wires together.
type Deps struct {
	Config  config.Config
	Monitor *perf.Monitor
	// Digests serves the history endpoints; nil disables them.
	Digests handlers.DigestReader
	// DB backs the readiness probe; nil means always ready.
	DB *gorm.DB
}

// exposedHeaders are readable by browser clients.
var exposedHeaders = []string{
	"X-Request-ID",
	middleware.ResponseTimeHeader,
	middleware.MemoryDeltaHeader,
	"Content-Length",
}

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry, so the correlation id can reuse the trace id
//  2. RequestID
//  3. Logger
//  4. Recovery, outside Performance so re-raised panics become JSON 500s
//  5. Performance timing
//  6. gzip
//  7. CORS
//  8. Security headers
//
// The API group adds no-store caching headers and, when RATE_RPS > 0, a
// per-client rate limiter.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	cfg := deps.Config
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.Performance(deps.Monitor))
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	useCORS(r, cfg.CORS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	health := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) }
	r.GET("/health", health)
	r.GET("/healthz", health)
	r.GET("/ready", readiness(deps.DB))

	reg := prometheus.NewRegistry()
	reg.MustRegister(perf.NewCollector(deps.Monitor))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		prometheus.Gatherers{prometheus.DefaultGatherer, reg},
		promhttp.HandlerOpts{},
	)))

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(deps.Monitor, deps.Digests, cfg.Perf.ResetEnabled)
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))
	if cfg.RateLimit.RPS > 0 {
		api.Use(middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, middleware.KeyByClientIP()).Handler())
	}
	{
		api.GET("/perf/stats", h.GetStats)
		api.GET("/perf/digests", h.ListDigests)
		api.GET("/perf/digests/:id", h.GetDigest)
		api.POST("/perf/reset", h.ResetStats)
	}
}

// useCORS installs gin-contrib/cors. With no configured origins every origin
// is allowed.
func useCORS(r *gin.Engine, cc config.CORSConfig) {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    exposedHeaders,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cc.AllowedOrigins) == 0 {
		// Set ACAO even without an Origin header, for simple probes.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		base.AllowAllOrigins = true
	} else {
		base.AllowOrigins = cc.AllowedOrigins
	}
	r.Use(cors.New(base))
}

// readiness answers 503 when the digest database cannot be reached.
func readiness(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				middleware.LoggerFrom(c).Warn().Err(err).Msg("readiness check failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// limitBody caps request bodies at maxBytes.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
