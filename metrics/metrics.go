// Package metrics provides Prometheus metrics for the capacity engine.
// Metrics are grouped in a Recorder so tests can use a private registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the process registry exposed on /metrics.
var Registry = prometheus.NewRegistry()

// Default records into Registry.
var Default = NewRecorder(Registry)

// Recorder holds the engine metrics. A nil *Recorder records nothing.
type Recorder struct {
	CacheLookups         *prometheus.CounterVec
	ProfilesCreated      prometheus.Counter
	FeasibilityChecks    *prometheus.CounterVec
	TeamChecks           *prometheus.CounterVec
	AvailabilityDuration prometheus.Histogram
	AvailabilityDays     prometheus.Histogram
}

// NewRecorder registers the engine metrics with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		// =====================================================================
		// CACHE
		// =====================================================================
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "capacity",
			Name:      "profile_cache_lookups_total",
			Help:      "Capacity profile cache lookups by result (hit, miss, stale)",
		}, []string{"result"}),

		ProfilesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "capacity",
			Name:      "profiles_created_total",
			Help:      "Capacity profiles created with defaults on first lookup",
		}),

		// =====================================================================
		// DECISIONS
		// =====================================================================
		FeasibilityChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "capacity",
			Name:      "feasibility_checks_total",
			Help:      "Single-user feasibility checks by verdict",
		}, []string{"verdict"}),

		TeamChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "capacity",
			Name:      "team_checks_total",
			Help:      "Team feasibility checks by strategy and outcome",
		}, []string{"strategy", "outcome"}),

		// =====================================================================
		// LATENCY
		// =====================================================================
		AvailabilityDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "capacity",
			Name:      "availability_duration_seconds",
			Help:      "Time taken to aggregate availability for a date range",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		AvailabilityDays: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "capacity",
			Name:      "availability_range_days",
			Help:      "Number of days per availability query",
			Buckets:   []float64{1, 5, 7, 14, 31, 62, 92, 183, 366},
		}),
	}
}

func (r *Recorder) CacheHit() {
	if r != nil {
		r.CacheLookups.WithLabelValues("hit").Inc()
	}
}

func (r *Recorder) CacheMiss() {
	if r != nil {
		r.CacheLookups.WithLabelValues("miss").Inc()
	}
}

func (r *Recorder) CacheStale() {
	if r != nil {
		r.CacheLookups.WithLabelValues("stale").Inc()
	}
}

func (r *Recorder) ProfileCreated() {
	if r != nil {
		r.ProfilesCreated.Inc()
	}
}

func (r *Recorder) FeasibilityChecked(verdict string) {
	if r != nil {
		r.FeasibilityChecks.WithLabelValues(verdict).Inc()
	}
}

func (r *Recorder) TeamChecked(strategy string, ok bool) {
	if r == nil {
		return
	}
	outcome := "rejected"
	if ok {
		outcome = "assignable"
	}
	r.TeamChecks.WithLabelValues(strategy, outcome).Inc()
}

// ObserveAvailability records one availability aggregation.
func (r *Recorder) ObserveAvailability(took time.Duration, days int) {
	if r != nil {
		r.AvailabilityDuration.Observe(took.Seconds())
		r.AvailabilityDays.Observe(float64(days))
	}
}
