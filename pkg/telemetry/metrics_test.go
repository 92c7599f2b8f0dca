package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics_IsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := InitMetrics(reg)

	m.Lookups.WithLabelValues("broadcast", "forward").Inc()
	m.Lookups.WithLabelValues("broadcast", "forward").Inc()
	m.StoreSize.WithLabelValues("broadcast").Set(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Lookups.WithLabelValues("broadcast", "forward")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.StoreSize.WithLabelValues("broadcast")))

	n, err := testutil.GatherAndCount(reg, "timeshift_lookups_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInitMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	InitMetrics(reg)
	assert.Panics(t, func() { InitMetrics(reg) })
}

func TestTimer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := InitMetrics(reg)

	timer := NewTimer()
	time.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, timer.Elapsed(), time.Millisecond)

	timer.Observe(m.LookupDuration.WithLabelValues("broadcast"))
	n, err := testutil.GatherAndCount(reg, "timeshift_lookup_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
