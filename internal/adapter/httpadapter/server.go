package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
	"github.com/couchcryptid/orca-sightings-etl/internal/pipeline"
	"github.com/couchcryptid/orca-sightings-etl/internal/store"
)

// Importer triggers manual cycles and reports the schedule.
type Importer interface {
	ForceRun(ctx context.Context) (domain.ImportRun, error)
	Status() domain.ScheduleStatus
}

// Artifacts reads persisted import artifacts.
type Artifacts interface {
	Runs(ctx context.Context) ([]domain.ImportRun, error)
	LoadMerged(ctx context.Context) (domain.MergedBatch, error)
}

// Server exposes health, readiness, metrics, and the operator API.
type Server struct {
	httpServer *http.Server
	importer   Importer
	artifacts  Artifacts
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /api routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, importer Importer, artifacts Artifacts, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// A forced import answers only after the whole cycle.
			WriteTimeout: 3 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		importer:  importer,
		artifacts: artifacts,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/imports", s.forceImport)
	mux.HandleFunc("GET /api/imports", s.listImports)
	mux.HandleFunc("GET /api/schedule", s.schedule)
	mux.HandleFunc("GET /api/sightings", s.sightings)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) forceImport(w http.ResponseWriter, r *http.Request) {
	// The cycle outlives a disconnected client.
	run, err := s.importer.ForceRun(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, pipeline.ErrCycleInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		s.logger.Error("forced import failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "run": run})
	default:
		writeJSON(w, http.StatusOK, run)
	}
}

func (s *Server) listImports(w http.ResponseWriter, r *http.Request) {
	runs, err := s.artifacts.Runs(r.Context())
	if err != nil {
		s.logger.Error("read import history failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		if n < len(runs) {
			runs = runs[:n]
		}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) schedule(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.importer.Status())
}

func (s *Server) sightings(w http.ResponseWriter, r *http.Request) {
	batch, err := s.artifacts.LoadMerged(r.Context())
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no merged batch has been written yet"})
	case err != nil:
		s.logger.Error("read merged batch failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, batch)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
