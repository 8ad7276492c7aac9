package middleware

// Prometheus instrumentation for monitored HTTP traffic. Observations are
// made by Performance once per request, so excluded paths (health probes,
// /metrics, static assets) never reach these series.
//
// Labels stay bounded: method, route pattern (raw path only for unmatched
// requests), numeric status and latency band.

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of monitored HTTP requests.",
		},
		[]string{"method", "path", "status", "band"},
	)

	// Bucket edges include the default 150ms/500ms/1s band thresholds.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of monitored HTTP requests in seconds.",
			Buckets: []float64{.005, .01, .025, .05, .1, .15, .25, .5, .75, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight monitored HTTP requests.",
		},
	)

	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of monitored HTTP responses in bytes.",
			Buckets: []float64{
				200, 500, 1 << 10, 2 << 10, 5 << 10, // 200B..5KiB
				10 << 10, 25 << 10, 50 << 10, // 10..50KiB
				100 << 10, 250 << 10, 500 << 10, // 100..500KiB
				1 << 20, 2 << 20, 5 << 20, // 1..5MiB
			},
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize)
}

// httpObservation is one finished request as seen by the metrics layer.
type httpObservation struct {
	method  string
	path    string
	status  int
	band    string
	elapsed time.Duration
	size    int // -1 when nothing was written
}

func observeHTTP(o httpObservation) {
	httpReqs.WithLabelValues(o.method, o.path, strconv.Itoa(o.status), o.band).Inc()
	httpLat.WithLabelValues(o.method, o.path).Observe(o.elapsed.Seconds())
	if o.size >= 0 {
		httpRespSize.WithLabelValues(o.method, o.path).Observe(float64(o.size))
	}
}
