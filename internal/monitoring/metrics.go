package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Simulation metrics
	simulationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_lab_simulations_total",
			Help: "Total number of strategy simulations by outcome",
		},
		[]string{"strategy", "outcome"},
	)

	simulationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backtest_lab_simulation_duration_seconds",
			Help:    "Wall time of a single simulation",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"strategy"},
	)

	// Search and validation metrics
	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backtest_lab_operation_duration_seconds",
			Help:    "Wall time of optimize and validate requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "strategy"},
	)

	skippedFoldsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_lab_skipped_folds_total",
			Help: "Walk-forward folds skipped by the minimum size filter",
		},
		[]string{"reason"},
	)

	bestSharpe = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backtest_lab_best_sharpe_ratio",
			Help: "Sharpe ratio of the most recent optimizer winner",
		},
		[]string{"strategy", "symbol"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_lab_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(simulationsTotal)
	prometheus.MustRegister(simulationDuration)
	prometheus.MustRegister(operationDuration)
	prometheus.MustRegister(skippedFoldsTotal)
	prometheus.MustRegister(bestSharpe)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordSimulation records one simulation run
func RecordSimulation(strategy string, failed bool, duration time.Duration) {
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	simulationsTotal.WithLabelValues(strategy, outcome).Inc()
	simulationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// ObserveOperation records the duration of an optimize or validate request
func ObserveOperation(operation, strategy string, duration time.Duration) {
	operationDuration.WithLabelValues(operation, strategy).Observe(duration.Seconds())
}

// RecordSkippedFold counts a fold dropped by the size filter
func RecordSkippedFold(reason string) {
	skippedFoldsTotal.WithLabelValues(reason).Inc()
}

// UpdateBestSharpe updates the optimizer winner gauge
func UpdateBestSharpe(strategy, symbol string, sharpe float64) {
	bestSharpe.WithLabelValues(strategy, symbol).Set(sharpe)
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
