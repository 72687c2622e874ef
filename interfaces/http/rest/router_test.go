package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"contact-service/application/ports"
	"contact-service/application/services"
	"contact-service/domain/core/validators"
	"contact-service/infrastructure/persistence/memory"
	"contact-service/interfaces/http/rest/handlers"
	"contact-service/interfaces/http/rest/middleware"
	"contact-service/pkg/observability"
)

type fixture struct {
	router   *Router
	spans    *tracetest.InMemoryExporter
	logs     *observer.ObservedLogs
	pipeline *observability.Pipeline
}

func newFixture(t *testing.T, cfg Config, repo ports.ContactRepository) *fixture {
	t.Helper()

	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	spans := tracetest.NewInMemoryExporter()
	telemetryCfg := observability.DefaultConfig()
	telemetryCfg.Console = false
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("contacts", reg)
	telemetry, err := observability.New(context.Background(), telemetryCfg, zap.NewNop(),
		observability.WithSinks(observability.Sink{Name: "memory", Exporter: spans}),
		observability.WithMetrics(metrics))
	require.NoError(t, err)
	telemetry.Start()
	t.Cleanup(func() { _ = telemetry.Shutdown(context.Background()) })

	store := memory.NewContactStore()
	if repo == nil {
		repo = store
	}
	service := services.NewContactService(store, store, validators.NewContactValidator(), zap.NewNop())
	router := NewRouter(cfg, handlers.NewContactHandler(service, logger), repo, telemetry, metrics, reg, logger)

	return &fixture{router: router, spans: spans, logs: logs, pipeline: telemetry}
}

func request(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_ContactLifecycle(t *testing.T) {
	f := newFixture(t, Config{RequestTimeout: time.Second}, nil)
	h := f.router.Setup()

	created := request(h, http.MethodPost, "/contact", `{"name":"Ada","email":"ada@example.com"}`)
	fetched := request(h, http.MethodGet, "/contact/1", "")
	deleted := request(h, http.MethodDelete, "/contact/1", "")
	gone := request(h, http.MethodGet, "/contact/1", "")

	assert.Equal(t, http.StatusCreated, created.Code)
	assert.Equal(t, "/contact/1", created.Header().Get("Location"))
	assert.NotEmpty(t, created.Header().Get(middleware.RequestIDHeader))
	assert.NotEmpty(t, created.Header().Get("X-Trace-ID"))
	assert.Equal(t, http.StatusOK, fetched.Code)
	assert.Equal(t, http.StatusNoContent, deleted.Code)
	assert.Equal(t, http.StatusNotFound, gone.Code)
	assert.Empty(t, gone.Body.String())
}

func TestRouter_UnknownRouteIsNotFound(t *testing.T) {
	f := newFixture(t, Config{}, nil)

	rec := request(f.router.Setup(), http.MethodGet, "/nowhere", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"no route for GET /nowhere"}`, rec.Body.String())
}

func TestRouter_FailureIsLoggedOnceAndTraced(t *testing.T) {
	// Arrange
	f := newFixture(t, Config{}, nil)

	// Act
	rec := request(f.router.Setup(), http.MethodGet, "/contact/abc", "")

	// Assert
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errorLogs := f.logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errorLogs, 1)
	assert.Equal(t, "/contact/abc", errorLogs[0].ContextMap()["path"])

	require.NoError(t, f.pipeline.ForceFlush(context.Background()))
	spans := f.spans.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /contact/{id}", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestRouter_HealthAndReady(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	h := f.router.Setup()

	health := request(h, http.MethodGet, "/health", "")
	ready := request(h, http.MethodGet, "/ready", "")

	assert.JSONEq(t, `{"status":"healthy"}`, health.Body.String())
	assert.Equal(t, http.StatusOK, ready.Code)
	assert.JSONEq(t, `{"status":"ready"}`, ready.Body.String())
}

type unreachableStore struct {
	ports.ContactRepository
}

func (unreachableStore) Ping(context.Context) error {
	return errors.New("connection refused")
}

func TestRouter_ReadyFailsWhenStoreUnreachable(t *testing.T) {
	f := newFixture(t, Config{}, unreachableStore{})

	rec := request(f.router.Setup(), http.MethodGet, "/ready", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, rec.Body.String())
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	h := f.router.Setup()
	request(h, http.MethodGet, "/contact", "")

	rec := request(h, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `contacts_http_requests_total{method="GET",route="/contact",status="200"} 1`)
}

func TestRouter_AuthGuardsContacts(t *testing.T) {
	f := newFixture(t, Config{Auth: middleware.AuthConfig{Secret: "s3cret", Public: PublicPaths}}, nil)
	h := f.router.Setup()

	contacts := request(h, http.MethodGet, "/contact", "")
	health := request(h, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusUnauthorized, contacts.Code)
	assert.JSONEq(t, `{"message":"missing authorization token"}`, contacts.Body.String())
	assert.Equal(t, http.StatusOK, health.Code)
}

func TestRouter_MuxServesPipeline(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	mux := f.router.Mux()

	created := request(mux, http.MethodPost, "/contact", `{"name":"Ada","email":"ada@example.com"}`)
	missing := request(mux, http.MethodGet, "/contact/42", "")

	assert.Equal(t, http.StatusCreated, created.Code)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}


func TestRouter_CORS(t *testing.T) {
	tests := []struct {
		name            string
		origins         []string
		origin          string
		wantOrigin      string
		wantCredentials string
	}{
		{
			name:            "pinned origin may send credentials",
			origins:         []string{"https://app.example.com"},
			origin:          "https://app.example.com",
			wantOrigin:      "https://app.example.com",
			wantCredentials: "true",
		},
		{
			name:    "unlisted origin is refused",
			origins: []string{"https://app.example.com"},
			origin:  "https://evil.example.com",
		},
		{
			name:       "no origins allows any origin without credentials",
			origin:     "https://evil.example.com",
			wantOrigin: "*",
		},
		{
			name:       "wildcard never allows credentials",
			origins:    []string{"*"},
			origin:     "https://evil.example.com",
			wantOrigin: "*",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{RequestTimeout: time.Second, CORSOrigins: tt.origins}, nil)
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			f.router.Setup().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCredentials, rec.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}
