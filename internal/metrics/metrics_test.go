package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveRun(true)
	m.ObserveRun(false)
	m.ObserveStep(true, false, 10*time.Millisecond)
	m.ObserveStep(false, true, 20*time.Millisecond)
	m.ObserveVariable("command")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(StatusSucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(StatusFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepsTotal.WithLabelValues(StatusFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VariablesTotal.WithLabelValues("command")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.StepDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun(true)
		m.ObserveStep(true, true, time.Second)
		m.ObserveVariable("literal")
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRun(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `runbook_runs_total{status="succeeded"} 1`)
}
