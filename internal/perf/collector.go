// Package perf implements the in-process request performance monitor.
//
// This file exports the monitor's aggregate view as a Prometheus collector.
package perf

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes the monitor's aggregate state to Prometheus. Each scrape
// takes one snapshot, so all series in a scrape are mutually consistent.
type Collector struct {
	m *Monitor

	total   *prometheus.Desc
	band    *prometheus.Desc
	p95     *prometheus.Desc
	p99     *prometheus.Desc
	average *prometheus.Desc
	target  *prometheus.Desc
}

// NewCollector returns a collector for m. Register it once per registry.
func NewCollector(m *Monitor) *Collector {
	return &Collector{
		m: m,
		total: prometheus.NewDesc("perfmon_requests_total",
			"Requests recorded by the performance monitor.", nil, nil),
		band: prometheus.NewDesc("perfmon_band_requests_total",
			"Requests recorded per latency band.", []string{"band"}, nil),
		p95: prometheus.NewDesc("perfmon_window_p95_seconds",
			"Nearest-rank p95 latency over the sliding window.", nil, nil),
		p99: prometheus.NewDesc("perfmon_window_p99_seconds",
			"Nearest-rank p99 latency over the sliding window.", nil, nil),
		average: prometheus.NewDesc("perfmon_window_average_seconds",
			"Mean latency over the sliding window.", nil, nil),
		target: prometheus.NewDesc("perfmon_p95_target_met",
			"1 when window p95 is within the slow threshold.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.band
	ch <- c.p95
	ch <- c.p99
	ch <- c.average
	ch <- c.target
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.Stats()

	ch <- prometheus.MustNewConstMetric(c.total, prometheus.CounterValue, float64(s.TotalRequests))
	ch <- prometheus.MustNewConstMetric(c.band, prometheus.CounterValue, float64(s.SlowRequestCount), BandSlow.String())
	ch <- prometheus.MustNewConstMetric(c.band, prometheus.CounterValue, float64(s.VerySlowRequestCount), BandVerySlow.String())
	ch <- prometheus.MustNewConstMetric(c.band, prometheus.CounterValue, float64(s.CriticalRequestCount), BandCritical.String())
	ch <- prometheus.MustNewConstMetric(c.p95, prometheus.GaugeValue, s.P95ResponseTime/1000)
	ch <- prometheus.MustNewConstMetric(c.p99, prometheus.GaugeValue, s.P99ResponseTime/1000)
	ch <- prometheus.MustNewConstMetric(c.average, prometheus.GaugeValue, s.AverageResponseTime/1000)

	met := 0.0
	if s.P95TargetMet {
		met = 1
	}
	ch <- prometheus.MustNewConstMetric(c.target, prometheus.GaugeValue, met)
}
