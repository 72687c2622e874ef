package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"contact-service/pkg/pipeline"
)

func TestMetricsStage_CountsByRoute(t *testing.T) {
	// Arrange
	reg := prometheus.NewRegistry()
	m := NewMetrics("contacts", reg)
	router := chi.NewRouter()
	router.Get("/contact/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	chain := pipeline.New(router, m.Stage())

	// Act
	for _, path := range []string{"/contact/1", "/contact/2"} {
		chain.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	// Assert
	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/contact/{id}", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPDuration))
}

func TestMetricsStage_UnhandledFailureCountsAsServerError(t *testing.T) {
	m := NewMetrics("contacts", prometheus.NewRegistry())
	core := pipeline.Handle(func(w http.ResponseWriter, r *http.Request) error {
		return errors.New("boom")
	})

	pipeline.New(core, m.Stage()).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/nowhere", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequests.WithLabelValues("DELETE", "unknown", "500")))
}
