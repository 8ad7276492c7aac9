// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the digest database, CORS, observability, and the request
// performance monitor's thresholds and scope.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-perf-monitor/internal/perf"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool          // ENABLE_HSTS
	HSTSMaxAge time.Duration // HSTS_MAX_AGE
}

// RateLimitConfig bounds how often one client may call the read API. Stats
// requests sort the whole window, so polling is capped per client IP.
type RateLimitConfig struct {
	RPS   float64 // RATE_RPS, tokens per second; 0 disables the limiter
	Burst int     // RATE_BURST, bucket size (>= 1)
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-perf-monitor")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// PerfConfig holds the request performance monitor settings.
type PerfConfig struct {
	SlowThreshold          time.Duration // PERF_SLOW_THRESHOLD, also the p95 target
	VerySlowThreshold      time.Duration // PERF_VERY_SLOW_THRESHOLD
	CriticalThreshold      time.Duration // PERF_CRITICAL_THRESHOLD
	WindowSize             int           // PERF_WINDOW_SIZE
	ReportingInterval      int           // PERF_REPORTING_INTERVAL (requests), 0 disables digests
	SlowPercentAlert       float64       // PERF_SLOW_PERCENT_ALERT
	DegradationLogInterval time.Duration // PERF_DEGRADATION_LOG_INTERVAL, 0 = every request

	ExcludedExactPaths     []string // PERF_EXCLUDED_EXACT_PATHS
	ExcludedPathPrefixes   []string // PERF_EXCLUDED_PATH_PREFIXES
	ExcludedPathSubstrings []string // PERF_EXCLUDED_PATH_SUBSTRINGS
	ExcludedPathSuffixes   []string // PERF_EXCLUDED_PATH_SUFFIXES
	IncludedPathPrefixes   []string // PERF_INCLUDED_PATH_PREFIXES
	IncludedMethods        []string // PERF_INCLUDED_METHODS

	ResourceProbe   bool // PERF_RESOURCE_PROBE
	DigestStore     bool // PERF_DIGEST_STORE
	DigestRetention int  // PERF_DIGEST_RETENTION, 0 keeps everything
	ResetEnabled    bool // PERF_RESET_ENABLED
}

// Monitor converts the settings into a perf.Config.
func (p PerfConfig) Monitor() perf.Config {
	return perf.Config{
		Thresholds: perf.Thresholds{
			Slow:     p.SlowThreshold,
			VerySlow: p.VerySlowThreshold,
			Critical: p.CriticalThreshold,
		},
		WindowSize: p.WindowSize,
		Alerts: perf.AlertConfig{
			ReportingInterval:      uint64(p.ReportingInterval),
			DisableDigests:         p.ReportingInterval == 0,
			SlowPercentAlert:       p.SlowPercentAlert,
			DegradationLogInterval: p.DegradationLogInterval,
		},
		Scope: perf.ScopeConfig{
			ExcludedExactPaths:     p.ExcludedExactPaths,
			ExcludedPathPrefixes:   p.ExcludedPathPrefixes,
			ExcludedPathSubstrings: p.ExcludedPathSubstrings,
			ExcludedPathSuffixes:   p.ExcludedPathSuffixes,
			IncludedPathPrefixes:   p.IncludedPathPrefixes,
			IncludedMethods:        p.IncludedMethods,
		},
	}
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	ShutdownTimeout   time.Duration // e.g. 10s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBPath string // SQLite path for digest history

	// Web protection
	CORS      CORSConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig

	// Monitoring
	Perf PerfConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	defScope := perf.DefaultScopeConfig()

	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DBPath: getenv("DB_PATH", "perf.db"),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			RPS:   getfloat("RATE_RPS", 10),
			Burst: getint("RATE_BURST", 20),
		},

		// Monitoring
		Perf: PerfConfig{
			SlowThreshold:          getdur("PERF_SLOW_THRESHOLD", perf.DefaultSlowThreshold),
			VerySlowThreshold:      getdur("PERF_VERY_SLOW_THRESHOLD", perf.DefaultVerySlowThreshold),
			CriticalThreshold:      getdur("PERF_CRITICAL_THRESHOLD", perf.DefaultCriticalThreshold),
			WindowSize:             getint("PERF_WINDOW_SIZE", perf.DefaultWindowSize),
			ReportingInterval:      getint("PERF_REPORTING_INTERVAL", perf.DefaultReportingInterval),
			SlowPercentAlert:       getfloat("PERF_SLOW_PERCENT_ALERT", perf.DefaultSlowPercentAlert),
			DegradationLogInterval: getdur("PERF_DEGRADATION_LOG_INTERVAL", 0),

			ExcludedExactPaths:     getcsv("PERF_EXCLUDED_EXACT_PATHS", defScope.ExcludedExactPaths),
			ExcludedPathPrefixes:   getcsv("PERF_EXCLUDED_PATH_PREFIXES", defScope.ExcludedPathPrefixes),
			ExcludedPathSubstrings: getcsv("PERF_EXCLUDED_PATH_SUBSTRINGS", defScope.ExcludedPathSubstrings),
			ExcludedPathSuffixes:   getcsv("PERF_EXCLUDED_PATH_SUFFIXES", defScope.ExcludedPathSuffixes),
			IncludedPathPrefixes:   getcsv("PERF_INCLUDED_PATH_PREFIXES", nil),
			IncludedMethods:        getcsv("PERF_INCLUDED_METHODS", nil),

			ResourceProbe:   getbool("PERF_RESOURCE_PROBE", true),
			DigestStore:     getbool("PERF_DIGEST_STORE", true),
			DigestRetention: getint("PERF_DIGEST_RETENTION", 1000),
			ResetEnabled:    getbool("PERF_RESET_ENABLED", false),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-perf-monitor"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.RateLimit.RPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateLimit.Burst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Perf.DigestStore && strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty when PERF_DIGEST_STORE is on")
	}
	p := cfg.Perf
	if p.SlowThreshold <= 0 || p.VerySlowThreshold < p.SlowThreshold || p.CriticalThreshold < p.VerySlowThreshold {
		return cfg, errors.New("PERF thresholds must satisfy 0 < SLOW <= VERY_SLOW <= CRITICAL")
	}
	if p.WindowSize < 1 {
		return cfg, errors.New("PERF_WINDOW_SIZE must be >= 1")
	}
	if p.ReportingInterval < 0 {
		return cfg, errors.New("PERF_REPORTING_INTERVAL must be >= 0")
	}
	if p.SlowPercentAlert < 0 || p.SlowPercentAlert > 100 {
		return cfg, errors.New("PERF_SLOW_PERCENT_ALERT must be in [0,100]")
	}
	if p.DegradationLogInterval < 0 {
		return cfg, errors.New("PERF_DEGRADATION_LOG_INTERVAL must be >= 0")
	}
	if p.DigestRetention < 0 {
		return cfg, errors.New("PERF_DIGEST_RETENTION must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

// getdur accepts Go durations ("250ms") and bare integers, read as milliseconds.
func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if ms, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

// getcsv returns def when k is unset; "-" explicitly clears the list.
func getcsv(k string, def []string) []string {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return def
	}
	if strings.TrimSpace(v) == "-" {
		return nil
	}
	return splitCSV(v)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
