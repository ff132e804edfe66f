package http

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/prometheus"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/interfaces/http/handlers"
)

func do(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestNewRouter_MountsHealthAndMetrics(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "apprentissage"}, logging.NewNopLogger())
	require.NoError(t, err)
	metrics := prometheus.NewImportMetrics(collector)
	metrics.WorkerStarted()

	r := NewRouter(RouterConfig{
		Mode:          gin.TestMode,
		HealthHandler: handlers.NewHealthHandler("dev"),
		Metrics:       collector,
		Logger:        logging.NewNopLogger(),
	})

	assert.Equal(t, http.StatusOK, do(t, r, "/healthz").Code)
	assert.Equal(t, http.StatusOK, do(t, r, "/readyz").Code)

	w := do(t, r, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "apprentissage_import_active_workers 1")
}

func TestNewRouter_CustomMetricsPath(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "apprentissage"}, logging.NewNopLogger())
	require.NoError(t, err)

	r := NewRouter(RouterConfig{Mode: gin.TestMode, Metrics: collector, MetricsPath: "/internal/metrics"})

	assert.Equal(t, http.StatusOK, do(t, r, "/internal/metrics").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, "/metrics").Code)
}

func TestNewRouter_NilComponentsAreNotMounted(t *testing.T) {
	r := NewRouter(RouterConfig{Mode: gin.TestMode})
	assert.Equal(t, http.StatusNotFound, do(t, r, "/healthz").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, "/metrics").Code)
}

func TestNewRouter_ReadinessReflectsDependencies(t *testing.T) {
	down := handlers.NamedCheck("postgres", func(context.Context) error { return stderrors.New("down") })
	r := NewRouter(RouterConfig{Mode: gin.TestMode, HealthHandler: handlers.NewHealthHandler("dev", down)})

	assert.Equal(t, http.StatusServiceUnavailable, do(t, r, "/readyz").Code)
	assert.Equal(t, http.StatusOK, do(t, r, "/healthz").Code)
}
