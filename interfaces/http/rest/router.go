package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"contact-service/application/ports"
	"contact-service/interfaces/http/rest/handlers"
	"contact-service/interfaces/http/rest/middleware"
	apperrors "contact-service/pkg/errors"
	"contact-service/pkg/observability"
	"contact-service/pkg/pipeline"
)

// Config holds the transport settings of the router.
type Config struct {
	RequestTimeout time.Duration
	CORSOrigins    []string
	Auth           middleware.AuthConfig
}

// Router creates and configures the HTTP request pipeline
type Router struct {
	cfg       Config
	contacts  *handlers.ContactHandler
	store     ports.ContactRepository
	telemetry *observability.Pipeline
	metrics   *observability.Metrics
	gatherer  prometheus.Gatherer
	logger    *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	cfg Config,
	contacts *handlers.ContactHandler,
	store ports.ContactRepository,
	telemetry *observability.Pipeline,
	metrics *observability.Metrics,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *Router {
	return &Router{
		cfg:       cfg,
		contacts:  contacts,
		store:     store,
		telemetry: telemetry,
		metrics:   metrics,
		gatherer:  gatherer,
		logger:    logger,
	}
}

// Setup builds the request pipeline around the route table. Stages run
// outermost first.
func (rt *Router) Setup() *pipeline.Chain {
	stages := []pipeline.Stage{
		middleware.RequestID(),
		rt.telemetry.Stage(),
		rt.metrics.Stage(),
		middleware.AccessLog(rt.logger),
		middleware.NewErrorClassifier(rt.logger).Stage(),
		middleware.Timeout(rt.cfg.RequestTimeout),
	}
	if rt.cfg.Auth.Enabled() {
		stages = append(stages, middleware.Authenticate(rt.cfg.Auth, rt.logger))
	}

	return pipeline.New(rt.Routes(), stages...)
}

// Mux mounts the pipeline on a chi mux, for adapters that need one.
func (rt *Router) Mux() *chi.Mux {
	mux := chi.NewRouter()
	mux.Mount("/", rt.Setup())
	return mux
}

// Routes returns the route table without the pipeline stages.
func (rt *Router) Routes() chi.Router {
	router := chi.NewRouter()

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader, "traceparent"},
		ExposedHeaders:   []string{"Location", middleware.RequestIDHeader, "X-Trace-ID"},
		AllowCredentials: pinnedOrigins(rt.cfg.CORSOrigins),
		MaxAge:           300,
	}))

	// Unknown routes go through the classifier like any other failure
	router.NotFound(pipeline.Handle(func(w http.ResponseWriter, r *http.Request) error {
		return apperrors.NotFound("no route for " + r.Method + " " + r.URL.Path)
	}))
	router.MethodNotAllowed(pipeline.Handle(func(w http.ResponseWriter, r *http.Request) error {
		return apperrors.NotFound("no route for " + r.Method + " " + r.URL.Path)
	}))

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	router.Handle("/metrics", promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))

	// Contact endpoints
	router.Get("/contact", pipeline.Handle(rt.contacts.ListContacts))
	router.Post("/contact", pipeline.Handle(rt.contacts.CreateContact))
	router.Get("/contact/{id}", pipeline.Handle(rt.contacts.GetContact))
	router.Put("/contact/{id}", pipeline.Handle(rt.contacts.UpdateContact))
	router.Delete("/contact/{id}", pipeline.Handle(rt.contacts.DeleteContact))

	return router
}

// PublicPaths are served without authentication.
var PublicPaths = []string{"/health", "/ready", "/metrics"}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, "healthy")
}

// readinessCheck reports whether the store answers
func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := rt.store.Ping(ctx); err != nil {
		rt.logger.Warn("Readiness check failed", zap.Error(err))
		writeStatus(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	writeStatus(w, http.StatusOK, "ready")
}

// pinnedOrigins reports whether origins names explicit hosts. Credentials
// are never allowed for a wildcard or an empty list, which cors treats as "*".
func pinnedOrigins(origins []string) bool {
	if len(origins) == 0 {
		return false
	}
	for _, o := range origins {
		if o == "*" {
			return false
		}
	}
	return true
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
