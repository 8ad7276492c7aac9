package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-perf-monitor/internal/perf"
)

// Diagnostic response headers set by Performance.
const (
	ResponseTimeHeader = "X-Response-Time"
	MemoryDeltaHeader  = "X-Memory-Delta"
)

// Performance times every in-scope request and feeds it to m.
//
// Diagnostic headers (X-Request-ID, X-Response-Time, X-Memory-Delta) are
// attached just before the response starts, so a streaming handler gets the
// elapsed time up to its first write. Panics are accounted as 500s and
// re-raised unchanged; failures inside the monitor itself are logged and
// never reach the client.
func Performance(m *perf.Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.Skip(c.Request.Method, c.Request.URL.Path) {
			c.Next()
			return
		}

		rid := CorrelationID(c)
		probe := m.Probe()
		start := time.Now()
		before := probe.Snapshot()

		orig := c.Writer
		w := &timingWriter{ResponseWriter: orig}
		w.inject = func() {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error().Interface("panic", rec).Str("request_id", rid).Msg("perfmon header injection failed")
				}
			}()
			setDiagnosticHeaders(orig.Header(), rid, time.Since(start), before.Delta(probe.Snapshot()))
		}
		c.Writer = w

		httpInflight.Inc()
		defer func() {
			rec := recover()
			c.Writer = orig
			httpInflight.Dec()

			finish(c, m, rid, start, before, rec != nil)

			if rec != nil {
				panic(rec)
			}
		}()

		c.Next()
	}
}

// finish measures, records and, when the response has not started yet, sets
// the final diagnostic headers. It never panics.
func finish(c *gin.Context, m *perf.Monitor, rid string, start time.Time, before perf.ResourceSnapshot, panicked bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("request_id", rid).Msg("perfmon interceptor failed")
		}
	}()

	elapsed := time.Since(start)
	delta := before.Delta(m.Probe().Snapshot())

	status := c.Writer.Status()
	if panicked {
		status = http.StatusInternalServerError
	}
	route := routeOf(c)
	band := m.Thresholds().Classify(elapsed)
	c.Set(bandKey, band.String())

	if !c.Writer.Written() {
		setDiagnosticHeaders(c.Writer.Header(), rid, elapsed, delta)
	}

	m.Observe(perf.Sample{
		RequestID: rid,
		Endpoint:  c.Request.Method + " " + route,
		Status:    status,
		Start:     start,
		Elapsed:   elapsed,
		Resources: delta,
		Canceled:  c.Request.Context().Err() != nil,
		Panicked:  panicked,
	})

	observeHTTP(httpObservation{
		method:  c.Request.Method,
		path:    route,
		status:  status,
		band:    band.String(),
		elapsed: elapsed,
		size:    c.Writer.Size(),
	})
}

func setDiagnosticHeaders(h http.Header, rid string, elapsed time.Duration, delta perf.ResourceDelta) {
	h.Set(requestIDHeader, rid)
	h.Set(ResponseTimeHeader, fmt.Sprintf("%dms", elapsed.Milliseconds()))
	if delta.Supported {
		h.Set(MemoryDeltaHeader, fmt.Sprintf("%db", delta.MemoryBytes))
	}
}

// timingWriter runs inject once, right before the status line is sent.
type timingWriter struct {
	gin.ResponseWriter
	inject   func()
	injected bool
}

func (w *timingWriter) beforeSend() {
	if w.injected || w.ResponseWriter.Written() {
		return
	}
	w.injected = true
	w.inject()
}

func (w *timingWriter) WriteHeaderNow() {
	w.beforeSend()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *timingWriter) Write(b []byte) (int, error) {
	w.beforeSend()
	return w.ResponseWriter.Write(b)
}

func (w *timingWriter) WriteString(s string) (int, error) {
	w.beforeSend()
	return w.ResponseWriter.WriteString(s)
}

func (w *timingWriter) Flush() {
	w.beforeSend()
	w.ResponseWriter.Flush()
}
