package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recorders(t *testing.T) {
	m := NewMetrics()

	m.RecordEvaluation(OutcomeOK, 10*time.Millisecond)
	m.RecordEvaluation(OutcomeOK, 20*time.Millisecond)
	m.RecordEvaluation(OutcomeTimeout, time.Second)
	m.RecordRestart("reset")
	m.RecordTokenizerCall("swift", nil, time.Millisecond)
	m.RecordTokenizerCall("swift", errors.New("boom"), time.Millisecond)
	m.RecordCacheLookup("hit")
	m.SetCacheSize(3, 120)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues(OutcomeTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RestartsTotal.WithLabelValues("reset")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenizerCallsTotal.WithLabelValues("swift", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CacheEntries))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.CacheBytes))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordEvaluation(OutcomeOK, time.Millisecond)
		m.RecordRestart("crash")
		m.RecordTokenizerCall("go", nil, 0)
		m.RecordCacheLookup("miss")
		m.SetCacheSize(0, 0)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.RecordRestart("timeout")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `scribe_session_restarts_total{reason="timeout"} 1`)
}
