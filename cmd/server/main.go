// Command server runs the HTTP API with the request performance monitor.
//
// @title       Go Perf Monitor API
// @version     1.0
// @description Request performance statistics and digest history.
// @BasePath    /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-perf-monitor/internal/config"
	httpapi "github.com/tbourn/go-perf-monitor/internal/http"
	"github.com/tbourn/go-perf-monitor/internal/observability"
	"github.com/tbourn/go-perf-monitor/internal/perf"
	"github.com/tbourn/go-perf-monitor/internal/repo"
	"github.com/tbourn/go-perf-monitor/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const digestQueueSize = 16

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetupLogger(os.Stdout, cfg.LogPretty)
	sysutil.SetLogLevel(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appVersion := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	shutdownOTel, err := observability.SetupOTel(ctx, cfg, appVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}

	opts := []perf.Option{perf.WithLogger(log.Logger)}
	if cfg.Perf.ResourceProbe {
		opts = append(opts, perf.WithProbe(perf.RuntimeProbe{}))
	}

	deps := httpapi.Deps{Config: cfg}
	// The digest worker outlives the signal context: it is stopped only after
	// the HTTP server has drained in-flight requests.
	queueCtx, stopQueue := context.WithCancel(context.Background())
	defer stopQueue()
	queueDone := make(chan struct{})
	close(queueDone)
	if cfg.Perf.DigestStore {
		db, err := repo.OpenSQLite(cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open sqlite")
		}
		if err := repo.AutoMigrate(db); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
		if cfg.OTEL.Enabled {
			if err := repo.EnableTracing(db); err != nil {
				log.Warn().Err(err).Msg("gorm tracing disabled")
			}
		}
		store := repo.NewDigestStore(db, cfg.Perf.DigestRetention)
		queue := perf.NewDigestQueue(store, digestQueueSize, log.Logger)
		queueDone = make(chan struct{})
		go func() {
			defer close(queueDone)
			queue.Run(queueCtx)
		}()

		opts = append(opts, perf.WithDigestQueue(queue))
		deps.Digests = store
		deps.DB = db
	}

	mon, err := perf.New(cfg.Perf.Monitor(), opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("perf monitor")
	}
	deps.Monitor = mon

	r := gin.New()
	httpapi.RegisterRoutes(r, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", appVersion).
			Dur("slow", cfg.Perf.SlowThreshold).
			Dur("very_slow", cfg.Perf.VerySlowThreshold).
			Dur("critical", cfg.Perf.CriticalThreshold).
			Int("window", cfg.Perf.WindowSize).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	stopQueue()
	select {
	case <-queueDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("digest queue did not drain before shutdown timeout")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}

	final := mon.Stats()
	log.Info().
		Uint64("total_requests", final.TotalRequests).
		Float64("p95_ms", final.P95ResponseTime).
		Bool("p95_target_met", final.P95TargetMet).
		Msg("final performance stats")
}
