package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for timeshift.
type Metrics struct {
	// Lookup Metrics
	Lookups        *prometheus.CounterVec
	LookupFailures *prometheus.CounterVec
	LookupDuration *prometheus.HistogramVec

	// Store Metrics
	StoreSize   *prometheus.GaugeVec
	Evictions   *prometheus.CounterVec
	Ingested    *prometheus.CounterVec
	ClockOffset prometheus.Gauge

	// Engine Metrics
	EngineOperations *prometheus.CounterVec
	EngineDuration   *prometheus.HistogramVec
}

var (
	defaultMetrics *Metrics
)

// InitMetrics registers the metrics with registry, or the default
// registerer when nil. Call it once per registry.
func InitMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	// 100ns to 1ms: lookups are in-memory scans.
	latencyBuckets := []float64{
		0.0000001, // 100ns
		0.0000002, // 200ns
		0.0000005, // 500ns
		0.000001,  // 1µs
		0.000002,  // 2µs
		0.000005,  // 5µs
		0.00001,   // 10µs
		0.00005,   // 50µs
		0.0001,    // 100µs
		0.001,     // 1ms
	}

	factory := promauto.With(registry)
	m := &Metrics{
		Lookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timeshift_lookups_total",
				Help: "Successful precise corrections by search tier",
			},
			[]string{"store", "tier"},
		),

		LookupFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timeshift_lookup_failures_total",
				Help: "Precise corrections with no usable correction path",
			},
			[]string{"store", "from", "to"},
		),

		LookupDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "timeshift_lookup_duration_seconds",
				Help:    "Time taken to search and apply a correction",
				Buckets: latencyBuckets,
			},
			[]string{"store"},
		),

		StoreSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "timeshift_store_corrections",
				Help: "Current number of corrections held by a store",
			},
			[]string{"store"},
		),

		Evictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timeshift_evictions_total",
				Help: "Corrections removed by outdate operations",
			},
			[]string{"store", "kind"},
		),

		Ingested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timeshift_ingested_total",
				Help: "Correction records decoded from input streams",
			},
			[]string{"store", "status"},
		),

		ClockOffset: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "timeshift_clock_offset_seconds",
				Help: "Last measured offset of the local clock from the reference server",
			},
		),

		EngineOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timeshift_engine_operations_total",
				Help: "Total number of engine operations",
			},
			[]string{"operation", "status"},
		),

		EngineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "timeshift_engine_operation_duration_seconds",
				Help:    "Time taken for engine operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}

	defaultMetrics = m
	return m
}

// Default returns the default metrics instance, registering it with the
// default registerer on first use.
func Default() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics(nil)
	}
	return defaultMetrics
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer starting now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Observe records the elapsed time in seconds to the given histogram.
func (t *Timer) Observe(histogram prometheus.Observer) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Elapsed returns the time elapsed since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
