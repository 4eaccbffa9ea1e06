package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveToolCall("buy", "ok", 20*time.Millisecond)
	m.ObserveToolCall("buy", "ok", 30*time.Millisecond)
	m.ObserveToolCall("sell", "validation_error", time.Millisecond)
	m.ObserveSubmission("accepted")
	m.IncSubmitRetry()
	m.IncFeeFallback()
	m.IncFeeFallback()

	require.Equal(t, 2.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("buy", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("sell", "validation_error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("accepted")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.submitRetries))
	require.Equal(t, 2.0, testutil.ToFloat64(m.feeFallbacks))
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveToolCall("buy", "ok", time.Second)
		m.ObserveSubmission("accepted")
		m.IncSubmitRetry()
		m.IncFeeFallback()
		m.ObserveHTTPRequest("/healthz", http.StatusOK)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveSubmission("rejected")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `xeenon_tools_tx_submissions_total{outcome="rejected"} 1`)
}
