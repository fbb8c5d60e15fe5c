package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fusionaimcp4/localboxs/internal/metrics"
)

func TestMetrics_RecordStep(t *testing.T) {
	m := metrics.New()

	m.RecordStep("fetch", metrics.OutcomeOK, 120*time.Millisecond)
	m.RecordStep("fetch", metrics.OutcomeOK, 80*time.Millisecond)
	m.RecordStep("provision-bot", metrics.OutcomeSkipped, 0)

	assert.InDelta(t, 2, testutil.ToFloat64(m.StepTotal.WithLabelValues("fetch", metrics.OutcomeOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.StepTotal.WithLabelValues("provision-bot", metrics.OutcomeSkipped)), 0)
}

func TestMetrics_RecordOnboardAndCompensation(t *testing.T) {
	m := metrics.New()

	m.RecordOnboard(http.StatusOK, true, time.Second)
	m.RecordOnboard(http.StatusBadGateway, false, time.Second)
	m.RecordCompensation("provision-inbox", nil)
	m.RecordCompensation("write-demo-page", errors.New("boom"))

	assert.InDelta(t, 1, testutil.ToFloat64(m.OnboardTotal.WithLabelValues("2xx")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.OnboardTotal.WithLabelValues("5xx")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.BotSetupSkipped), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Compensations.WithLabelValues("write-demo-page", metrics.OutcomeFailed)), 0)
}

func TestMetrics_NilIsNoOp(t *testing.T) {
	var m *metrics.Metrics
	m.RecordStep("fetch", metrics.OutcomeOK, time.Second)
	m.RecordOnboard(http.StatusOK, false, time.Second)
	m.RecordCompensation("x", nil)
	m.RecordReconcile(1, 1)
}

func TestMetrics_Handler(t *testing.T) {
	m := metrics.New()
	m.RecordReconcile(2, 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "localboxs_reconcile_drifted_entries 2")
	assert.Contains(t, rec.Body.String(), "localboxs_reconcile_runs_total 1")
}

func TestMetrics_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.New()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/v1/demos/:slug", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, path := range []string{"/api/v1/demos/a", "/api/v1/demos/b", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, http.NoBody))
	}

	assert.InDelta(t, 2, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/v1/demos/:slug", "404")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "unmatched", "404")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.HTTPInFlight), 0)
}
