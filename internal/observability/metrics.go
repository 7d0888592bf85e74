package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// calculation service.
type Metrics struct {
	CalculationsTotal   *prometheus.CounterVec // labels: outcome={completed,error,rejected,stopped}
	CalculationDuration prometheus.Histogram
	CalculationRunning  prometheus.Gauge

	// Extraction metrics.
	ExtractionPoints    prometheus.Histogram
	ResampleRequests    prometheus.Counter
	ToolchainStepErrors prometheus.Counter

	CasesRestored prometheus.Counter
	CasesDeleted  prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		CalculationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "windcfd",
			Name:      "calculations_total",
			Help:      "Calculation runs by outcome.",
		}, []string{"outcome"}),
		CalculationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "windcfd",
			Name:      "calculation_duration_seconds",
			Help:      "Wall-clock duration of a full mesh-solve-extract run.",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 3600},
		}),
		CalculationRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "windcfd",
			Name:      "calculation_running",
			Help:      "1 while a calculation occupies the run slot, 0 otherwise.",
		}),
		ExtractionPoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "windcfd",
			Name:      "extraction_points",
			Help:      "Accepted grid nodes per extracted cut plane.",
			Buckets:   []float64{100, 500, 1000, 2500, 5000, 10000, 25000, 40000},
		}),
		ResampleRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "windcfd",
			Name:      "resample_requests_total",
			Help:      "Total on-demand cut-plane resamples of stored cases.",
		}),
		ToolchainStepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "windcfd",
			Name:      "toolchain_step_errors_total",
			Help:      "External meshing or solver steps that exited abnormally.",
		}),
		CasesRestored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "windcfd",
			Name:      "cases_restored_total",
			Help:      "Completed cases re-registered from disk at startup.",
		}),
		CasesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "windcfd",
			Name:      "cases_deleted_total",
			Help:      "Case directories removed by cleanup requests.",
		}),
	}

	prometheus.MustRegister(
		m.CalculationsTotal,
		m.CalculationDuration,
		m.CalculationRunning,
		m.ExtractionPoints,
		m.ResampleRequests,
		m.ToolchainStepErrors,
		m.CasesRestored,
		m.CasesDeleted,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		CalculationsTotal:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "windcfd", Name: "calculations_total"}, []string{"outcome"}),
		CalculationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "windcfd", Name: "calculation_duration_seconds"}),
		CalculationRunning:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "windcfd", Name: "calculation_running"}),
		ExtractionPoints:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "windcfd", Name: "extraction_points"}),
		ResampleRequests:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "windcfd", Name: "resample_requests_total"}),
		ToolchainStepErrors: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "windcfd", Name: "toolchain_step_errors_total"}),
		CasesRestored:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "windcfd", Name: "cases_restored_total"}),
		CasesDeleted:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "windcfd", Name: "cases_deleted_total"}),
	}
}
