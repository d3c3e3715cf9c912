package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder_Counts(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.CacheHit()
	r.CacheHit()
	r.CacheMiss()
	r.ProfileCreated()
	r.FeasibilityChecked("infeasible")
	r.TeamChecked("equal", true)
	r.ObserveAvailability(3*time.Millisecond, 5)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ProfilesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.FeasibilityChecks.WithLabelValues("infeasible")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.TeamChecks.WithLabelValues("equal", "assignable")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.CacheHit()
		r.CacheMiss()
		r.CacheStale()
		r.ProfileCreated()
		r.FeasibilityChecked("invalid_input")
		r.TeamChecked("equal", false)
		r.ObserveAvailability(time.Second, 1)
	})
}
