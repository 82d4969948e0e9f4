// Package httpapi exposes the runner over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ZanzyTHEbar/goalrunner"
	"github.com/ZanzyTHEbar/goalrunner/internal/executor"
)

// DefaultServiceName is reported by the health and index endpoints.
const DefaultServiceName = "goalrunner"

// Runner is the part of goalrunner.Runner the API needs.
type Runner interface {
	Run(ctx context.Context, goal string, userContext map[string]any) (*goalrunner.ExecutionContext, error)
}

// MetricsSource reports step execution statistics.
type MetricsSource interface {
	Metrics() executor.Metrics
}

// Config holds the API's collaborators.
type Config struct {
	Runner      Runner
	Store       goalrunner.Store
	Registry    *goalrunner.Registry
	Metrics     MetricsSource
	ServiceName string
	Version     string
	Logger      *slog.Logger
}

type handlers struct {
	runner   Runner
	store    goalrunner.Store
	registry *goalrunner.Registry
	metrics  MetricsSource
	service  string
	version  string
	logger   *slog.Logger
}

// NewRouter returns the API handler.
func NewRouter(cfg Config) http.Handler {
	h := &handlers{
		runner:   cfg.Runner,
		store:    cfg.Store,
		registry: cfg.Registry,
		metrics:  cfg.Metrics,
		service:  cfg.ServiceName,
		version:  cfg.Version,
		logger:   cfg.Logger,
	}
	if h.service == "" {
		h.service = DefaultServiceName
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/execute", h.handleExecute)
	mux.HandleFunc("GET /api/executions", h.handleListExecutions)
	mux.HandleFunc("GET /api/executions/{execution_id}", h.handleGetExecution)
	mux.HandleFunc("GET /api/tools", h.handleListTools)
	mux.HandleFunc("GET /api/metrics", h.handleMetrics)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /{$}", h.handleIndex)
	return h.logRequests(mux)
}

func (h *handlers) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
