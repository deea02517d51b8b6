package ui

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"stratforge/domain/core"
	"stratforge/domain/run"
	"stratforge/internal"
	"stratforge/internal/report"
	"stratforge/ports"
)

// App is the run status API. It is a read-only surface over persisted run
// summaries; pipeline execution happens in the CLI, never here.
type App struct {
	router *chi.Mux
	runs   ports.RunRepository
	logger *internal.Logger
}

// Config holds API server configuration
type Config struct {
	Port string
}

// NewApp creates the status API over a run repository
func NewApp(runs ports.RunRepository, logger *internal.Logger) *App {
	a := &App{
		router: chi.NewRouter(),
		runs:   runs,
		logger: logger,
	}
	a.setupMiddleware()
	a.setupRoutes()
	return a
}

func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

func (a *App) setupRoutes() {
	a.router.Get("/health", a.handleHealth)

	a.router.Get("/api/runs", a.handleListRuns)
	a.router.Get("/api/runs/{id}", a.handleGetRun)
	a.router.Get("/api/runs/{id}/warnings", a.handleRunWarnings)
	a.router.Get("/api/runs/{id}/report", a.handleRunReport)
}

// Start starts the HTTP server
func (a *App) Start(cfg Config) error {
	addr := ":" + cfg.Port
	a.logger.Info("[API] Starting status server on %s", addr)
	return http.ListenAndServe(addr, a.router)
}

// Handler exposes the router for tests
func (a *App) Handler() http.Handler {
	return a.router
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	summaries, err := a.runs.ListSummaries(r.Context(), limit)
	if err != nil {
		a.logger.Error("[API] Failed to list runs: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": summaries})
}

func (a *App) handleGetRun(w http.ResponseWriter, r *http.Request) {
	summary, ok := a.loadSummary(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *App) handleRunWarnings(w http.ResponseWriter, r *http.Request) {
	summary, ok := a.loadSummary(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":   summary.RunID,
		"warnings": summary.Warnings,
	})
}

func (a *App) handleRunReport(w http.ResponseWriter, r *http.Request) {
	summary, ok := a.loadSummary(w, r)
	if !ok {
		return
	}
	md := report.BuildMarkdown(*summary)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(report.RenderHTML(md))
}

// loadSummary resolves the {id} path param; on failure it writes the error
// response and returns ok=false.
func (a *App) loadSummary(w http.ResponseWriter, r *http.Request) (*run.Summary, bool) {
	runID, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return nil, false
	}

	summary, err := a.runs.GetSummary(r.Context(), runID)
	if err != nil {
		if core.IsNotFoundError(err) {
			writeError(w, http.StatusNotFound, "run not found")
			return nil, false
		}
		a.logger.Error("[API] Failed to load run %s: %v", runID, err)
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return nil, false
	}
	return summary, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
