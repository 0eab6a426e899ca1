// Package metrics exposes Prometheus metrics for download runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kobomedia"

// Metrics holds the run collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	// filesTotal counts attachments by outcome: successful, failed, skipped
	filesTotal *prometheus.CounterVec
	// pagesTotal counts fetched data pages
	pagesTotal prometheus.Counter
	// downloadSeconds tracks the duration of successful downloads
	downloadSeconds prometheus.Histogram
	// downloadBytes tracks the size of downloaded files
	downloadBytes prometheus.Histogram
	// runsTotal counts finished runs by status: ok, partial, failed
	runsTotal *prometheus.CounterVec
	// runSeconds tracks whole-run duration
	runSeconds prometheus.Histogram
	// lastRun is the unix time of the last finished run
	lastRun prometheus.Gauge
}

// New creates the collectors and registers them, along with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		filesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_total",
				Help:      "Attachments processed, by outcome.",
			},
			[]string{"outcome"},
		),
		pagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Data pages fetched.",
		}),
		downloadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Duration of successful attachment downloads.",
			Buckets:   prometheus.DefBuckets,
		}),
		downloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_size_bytes",
			Help:      "Size of downloaded attachments.",
			Buckets: []float64{
				1024,      // 1KB
				10240,     // 10KB
				102400,    // 100KB
				1048576,   // 1MB
				10485760,  // 10MB
				104857600, // 100MB
			},
		}),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Finished runs, by status.",
			},
			[]string{"status"},
		),
		runSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of whole runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished run.",
		}),
	}

	m.registry.MustRegister(
		m.filesTotal,
		m.pagesTotal,
		m.downloadSeconds,
		m.downloadBytes,
		m.runsTotal,
		m.runSeconds,
		m.lastRun,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordPage counts one fetched page
func (m *Metrics) RecordPage() {
	m.pagesTotal.Inc()
}

// RecordFile counts one attachment outcome
func (m *Metrics) RecordFile(outcome string) {
	m.filesTotal.WithLabelValues(outcome).Inc()
}

// ObserveDownload records a successful download
func (m *Metrics) ObserveDownload(d time.Duration, bytes int64) {
	m.downloadSeconds.Observe(d.Seconds())
	m.downloadBytes.Observe(float64(bytes))
}

// ObserveRun records a finished run
func (m *Metrics) ObserveRun(status string, d time.Duration) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.runSeconds.Observe(d.Seconds())
	m.lastRun.SetToCurrentTime()
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
