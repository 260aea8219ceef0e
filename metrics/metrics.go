// Package metrics exposes Prometheus instrumentation for monitoring runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Change kinds used as label values on ChangesTotal.
const (
	KindNewPage     = "new_page"
	KindRemovedPage = "removed_page"
	KindText        = "text"
	KindPricing     = "pricing"
	KindVisual      = "visual"
	KindKeyword     = "keyword"
)

// Run status label values.
const (
	RunOK    = "ok"
	RunError = "error"
)

// Metrics holds all Prometheus metrics for the monitor.
type Metrics struct {
	PagesCrawled *prometheus.CounterVec
	FetchErrors  *prometheus.CounterVec
	RunsTotal    *prometheus.CounterVec
	ChangesTotal *prometheus.CounterVec
	RunDuration  prometheus.Histogram
}

// New registers the monitor's metrics with reg. A nil reg falls back to the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		PagesCrawled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_pages_crawled_total",
			Help: "Pages fetched during crawls, by outcome.",
		}, []string{"competitor", "status"}),
		FetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_fetch_errors_total",
			Help: "Page fetches that failed.",
		}, []string{"competitor"}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_runs_total",
			Help: "Monitoring runs, by outcome.",
		}, []string{"status"}),
		ChangesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_changes_total",
			Help: "Detected changes, by kind.",
		}, []string{"competitor", "kind"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_run_duration_seconds",
			Help:    "Wall time of a full monitoring run.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800},
		}),
	}
}

func (m *Metrics) IncPage(competitor, status string) {
	m.PagesCrawled.WithLabelValues(competitor, status).Inc()
}

func (m *Metrics) IncFetchError(competitor string) {
	m.FetchErrors.WithLabelValues(competitor).Inc()
}

func (m *Metrics) IncRun(status string) {
	m.RunsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) AddChanges(competitor, kind string, n int) {
	if n > 0 {
		m.ChangesTotal.WithLabelValues(competitor, kind).Add(float64(n))
	}
}

func (m *Metrics) ObserveRunDuration(d time.Duration) {
	m.RunDuration.Observe(d.Seconds())
}
