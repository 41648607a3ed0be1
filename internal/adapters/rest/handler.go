package rest

import (
	"net/http"
	"time"

	"github.com/ewilliams-labs/soundwatch/internal/core/services"
	"github.com/ewilliams-labs/soundwatch/internal/logging"
	"github.com/ewilliams-labs/soundwatch/internal/metrics"
	"github.com/ewilliams-labs/soundwatch/internal/worker"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

const defaultMaxUploadBytes = 25 << 20

// Options carries the optional parts of the HTTP adapter.
type Options struct {
	MaxUploadBytes int64
	Metrics        *metrics.Metrics // nil disables /metrics and request counting
}

// Handler manages the HTTP interface for our application.
type Handler struct {
	pipeline  *services.Pipeline
	incidents *services.IncidentService
	pool      *worker.Pool
	metrics   *metrics.Metrics
	maxUpload int64

	router  *http.ServeMux // Standard library router
	handler http.Handler   // router behind CORS
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(pipeline *services.Pipeline, incidents *services.IncidentService, pool *worker.Pool, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	h := &Handler{
		pipeline:  pipeline,
		incidents: incidents,
		pool:      pool,
		metrics:   opts.Metrics,
		maxUpload: opts.MaxUploadBytes,
		router:    http.NewServeMux(),
	}

	h.routes()

	h.handler = cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(h.router)

	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// routes defines the mapping between URLs and methods.
func (h *Handler) routes() {
	h.handle("GET /{$}", h.Index)
	h.handle("GET /health", h.HealthCheck)
	if h.metrics != nil {
		h.router.Handle("GET /metrics", h.metrics.Handler())
	}

	// Audio classification
	h.handle("POST /classify-audio", h.ClassifyAudio)

	// Incident reports
	h.handle("GET /incidents", h.ListIncidents)
	h.handle("POST /incidents", h.CreateIncident)
	h.handle("GET /incidents/{id}", h.GetIncident)
	h.handle("PUT /incidents/{id}", h.UpdateIncident)

	h.handle("/", h.NotFound)
}

// handle registers fn under pattern with access logging and request counting.
func (h *Handler) handle(pattern string, fn http.HandlerFunc) {
	h.router.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)

		if h.metrics != nil {
			h.metrics.ObserveRequest(pattern, rec.status)
		}
		logging.With(logging.CategoryHTTP, logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"elapsed_ms": time.Since(start).Milliseconds(),
		}).Debug("request served")
	})
}

// Index handles GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Hello, world!"})
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Message: "soundwatch is listening",
		Classes: len(h.pipeline.Classes()),
	})
}

// NotFound answers every unmatched route.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, messageResponse{Message: "Not Found"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
