package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecordSimulation tests the outcome counter and duration histogram
func TestRecordSimulation(t *testing.T) {
	before := testutil.ToFloat64(simulationsTotal.WithLabelValues("ema-crossover", "failed"))

	RecordSimulation("ema-crossover", true, 5*time.Millisecond)
	RecordSimulation("ema-crossover", false, time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(simulationsTotal.WithLabelValues("ema-crossover", "failed")))

	metric := &dto.Metric{}
	hist, ok := simulationDuration.WithLabelValues("ema-crossover").(interface{ Write(*dto.Metric) error })
	require.True(t, ok)
	require.NoError(t, hist.Write(metric))
	assert.GreaterOrEqual(t, metric.GetHistogram().GetSampleCount(), uint64(2))
}

// TestUpdateBestSharpe tests the gauge value
func TestUpdateBestSharpe(t *testing.T) {
	UpdateBestSharpe("sma-crossover", "BTCUSDT", 1.25)
	assert.Equal(t, 1.25, testutil.ToFloat64(bestSharpe.WithLabelValues("sma-crossover", "BTCUSDT")))
}

// TestRecordSkippedFold tests the skipped fold counter
func TestRecordSkippedFold(t *testing.T) {
	before := testutil.ToFloat64(skippedFoldsTotal.WithLabelValues("in_sample_too_short"))
	RecordSkippedFold("in_sample_too_short")
	assert.Equal(t, before+1, testutil.ToFloat64(skippedFoldsTotal.WithLabelValues("in_sample_too_short")))
}

// TestMetricsHandler tests that registered metrics are exposed
func TestMetricsHandler(t *testing.T) {
	RecordError("config")
	ObserveOperation("optimize", "ema-crossover", time.Second)

	rec := httptest.NewRecorder()
	NewMetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "backtest_lab_errors_total"))
	assert.True(t, strings.Contains(body, "backtest_lab_operation_duration_seconds"))
}

// TestHealthChecker tests healthy and failing checks
func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker()
	h.RecordRequest()
	h.Register("store", func(ctx context.Context) error { return nil })

	status := h.Check(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, int64(1), status.Requests)

	h.Register("cache", func(ctx context.Context) error { return errors.New("connection refused") })
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "connection refused")
}
