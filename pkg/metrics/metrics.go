// Package metrics exposes Prometheus collectors for scrape runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"igsaved/pkg/discovery"
	"igsaved/pkg/profile"
)

const namespace = "igsaved"

// Metrics holds all run metrics
type Metrics struct {
	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram
	ActiveRuns  prometheus.Gauge

	// Feed metrics
	PostsTotal          *prometheus.CounterVec
	DialogCloseFailures prometheus.Counter
	ScrollsTotal        prometheus.Counter
	FeedGrowth          prometheus.Histogram

	// Profile metrics
	ProfilesFetched prometheus.Counter
	FieldLookups    *prometheus.CounterVec
	PacerWait       prometheus.Histogram
}

// New registers the collectors on reg. A nil reg registers nowhere, which
// suits tests that only inspect values.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{}
	initRunMetrics(f, m)
	initFeedMetrics(f, m)
	initProfileMetrics(f, m)
	return m
}

func initRunMetrics(f promauto.Factory, m *Metrics) {
	m.RunsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Scrape runs by outcome (done, exhausted, budget_exceeded or an error type)",
	}, []string{"outcome"})

	m.RunDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of a scrape run",
		Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
	})

	m.ActiveRuns = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_runs",
		Help:      "Scrape runs in progress",
	})
}

func initFeedMetrics(f promauto.Factory, m *Metrics) {
	m.PostsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_posts_total",
		Help:      "Saved feed posts by status (new, known, skipped, failed)",
	}, []string{"status"})

	m.DialogCloseFailures = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_dialog_close_failures_total",
		Help:      "Post dialogs that could not be dismissed",
	})

	m.ScrollsTotal = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_scrolls_total",
		Help:      "Scroll attempts on the saved feed",
	})

	m.FeedGrowth = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "feed_growth_pixels",
		Help:      "Page height gained per scroll",
		Buckets:   []float64{0, 250, 500, 1000, 2000, 4000, 8000},
	})
}

func initProfileMetrics(f promauto.Factory, m *Metrics) {
	m.ProfilesFetched = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "profiles_fetched_total",
		Help:      "Profile pages visited",
	})

	m.FieldLookups = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "profile_field_lookups_total",
		Help:      "Profile field lookups by field and status (found, absent, failed)",
	}, []string{"field", "status"})

	m.PacerWait = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pacer_wait_seconds",
		Help:      "Time spent waiting before a profile visit",
		Buckets:   []float64{0, 0.1, 0.5, 1, 2, 5, 10},
	})
}

// OnPost implements discovery.Observer
func (m *Metrics) OnPost(pr discovery.PostResult) {
	m.PostsTotal.WithLabelValues(string(pr.Status)).Inc()
	if pr.CloseErr != nil {
		m.DialogCloseFailures.Inc()
	}
}

// OnScroll implements discovery.Observer
func (m *Metrics) OnScroll(_ int, before, after int64) {
	m.ScrollsTotal.Inc()
	if grew := after - before; grew > 0 {
		m.FeedGrowth.Observe(float64(grew))
	} else {
		m.FeedGrowth.Observe(0)
	}
}

// ObserveProfile records the field outcomes of one profile visit
func (m *Metrics) ObserveProfile(r profile.Report) {
	m.ProfilesFetched.Inc()
	for field, res := range r.Fields {
		m.FieldLookups.WithLabelValues(field, string(res.Status)).Inc()
	}
}

// ObservePacerWait records how long a profile visit was held back
func (m *Metrics) ObservePacerWait(d time.Duration) {
	m.PacerWait.Observe(d.Seconds())
}

// RunStarted marks a run in progress. The returned func records its outcome
// and must be called exactly once.
func (m *Metrics) RunStarted() func(outcome string) {
	start := time.Now()
	m.ActiveRuns.Inc()
	return func(outcome string) {
		m.ActiveRuns.Dec()
		m.RunsTotal.WithLabelValues(outcome).Inc()
		m.RunDuration.Observe(time.Since(start).Seconds())
	}
}

// Handler serves the collectors gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

var _ discovery.Observer = (*Metrics)(nil)
