// Package http exposes the calculation service's JSON API: submitting
// runs, polling status, fetching and resampling result grids, and managing
// stored cases.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/AzatSkyArchLab/wind-cfd-service/internal/domain"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/observability"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/runner"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// version is reported by /health; clients use it to detect incompatible
// backends after an upgrade.
const version = "4.0"

// Server exposes the calculation API over HTTP.
type Server struct {
	httpServer *http.Server
	calc       *runner.Calculator
	store      *store.Store
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the full calculation API routed.
func NewServer(addr string, calc *runner.Calculator, st *store.Store, metrics *observability.Metrics, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: allowCORS(mux),
			// No WriteTimeout: an on-demand extraction re-runs the
			// sampler, which can exceed any sane response deadline.
			ReadTimeout: 30 * time.Second,
			IdleTimeout: 120 * time.Second,
		},
		calc:    calc,
		store:   st,
		metrics: metrics,
		logger:  logger,
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /result", s.handleResult)
	mux.HandleFunc("GET /result/{angle}", s.handleResult)
	mux.HandleFunc("GET /directions", s.handleDirections)
	mux.HandleFunc("GET /cases", s.handleCases)
	mux.HandleFunc("POST /calculate", s.handleCalculate)
	mux.HandleFunc("POST /cleanup", s.handleCleanup)
	mux.HandleFunc("POST /stop", s.handleStop)
	mux.HandleFunc("POST /resample", s.handleResample)
	mux.HandleFunc("POST /export", s.handleExport)
	mux.HandleFunc("GET /paraview/{direction}", s.handleParaview)
	mux.Handle("GET /metrics", promhttp.Handler())

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

// allowCORS admits the browser frontend from any origin. The service
// binds to localhost in normal deployments.
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.calc.Tracker().Snapshot())
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req domain.CalculationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.calc.Calculate(req); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// handleResult serves the grid for a direction, or for the most recent
// calculation when the path carries no angle. A stored case without a
// cached grid is extracted on demand. Serving a completed run's result
// acknowledges it: the status endpoint reverts to idle.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	angle := r.PathValue("angle")
	if angle == "" {
		cur, ok := s.store.Current()
		if !ok {
			writeError(w, http.StatusNotFound, "no results")
			return
		}
		res, ok := s.store.Result(cur)
		if !ok {
			writeError(w, http.StatusNotFound, "no results")
			return
		}
		s.calc.Tracker().ConsumeCompleted()
		writeJSON(w, http.StatusOK, res)
		return
	}

	d, err := strconv.Atoi(angle)
	if err != nil {
		writeError(w, http.StatusBadRequest, "angle must be an integer degree")
		return
	}
	if res, ok := s.store.Result(d); ok {
		s.calc.Tracker().ConsumeCompleted()
		writeJSON(w, http.StatusOK, res)
		return
	}

	res, err := s.calc.Resample(r.Context(), &d, 0)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleResample(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Direction *int     `json:"direction"`
		Height    *float64 `json:"height"`
		Z         *float64 `json:"z"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	height := 0.0
	if body.Height != nil {
		height = *body.Height
	} else if body.Z != nil {
		height = *body.Z
	}

	res, err := s.calc.Resample(r.Context(), body.Direction, height)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDirections(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"directions": s.store.Directions()})
}

func (s *Server) handleCases(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"cases": s.store.Cases()})
}

func (s *Server) handleCleanup(w http.ResponseWriter, _ *http.Request) {
	deleted := s.store.Cleanup()
	s.calc.Tracker().Reset()
	s.metrics.CasesDeleted.Add(float64(deleted))
	s.logger.Info("cases cleaned up", "deleted", deleted)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "deleted": deleted})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.calc.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Direction *int `json:"direction"`
	}
	// An empty body means "export the current case".
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.writeParaviewInfo(w, body.Direction)
}

func (s *Server) handleParaview(w http.ResponseWriter, r *http.Request) {
	d, err := strconv.Atoi(r.PathValue("direction"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "direction must be an integer degree")
		return
	}
	s.writeParaviewInfo(w, &d)
}

// writeParaviewInfo drops an empty case.foam marker into the case
// directory (all ParaView needs to open an OpenFOAM case) and returns the
// paths to reach it, including a UNC path for ParaView on the Windows host
// when the service runs under WSL.
func (s *Server) writeParaviewInfo(w http.ResponseWriter, direction *int) {
	var d int
	if direction != nil {
		d = *direction
	} else {
		cur, ok := s.store.Current()
		if !ok {
			writeError(w, http.StatusNotFound, "no case found")
			return
		}
		d = cur
	}

	caseDir, ok := s.store.CaseDir(d)
	if !ok {
		writeError(w, http.StatusNotFound, "no case found")
		return
	}
	if _, err := os.Stat(caseDir); err != nil {
		writeError(w, http.StatusNotFound, "case directory not found")
		return
	}

	foamPath := filepath.Join(caseDir, "case.foam")
	if err := os.WriteFile(foamPath, nil, 0o644); err != nil {
		s.logger.Error("paraview marker write failed", "path", foamPath, "error", err)
		writeError(w, http.StatusInternalServerError, "could not write case.foam")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"wind_direction": d,
		"case_name":      filepath.Base(caseDir),
		"case_dir":       caseDir,
		"foam_file":      "case.foam",
		"wsl_path":       strings.Replace(caseDir, "/home/", `\\wsl$\Ubuntu\home\`, 1),
		"message":        "Open " + foamPath + " in ParaView",
	})
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
