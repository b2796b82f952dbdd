// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"expvar"
	"fmt"
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"github.com/zhupanlab/datadocs/internal/common"
	"github.com/zhupanlab/datadocs/internal/data/orchestrator"
)

// Server exposes the dataset catalog over HTTP: registrations, lineage
// queries, rendered manifests, and refresh runs. The chart/report renderer
// resolves its data dependencies through these endpoints.
type Server struct {
	router chi.Router
	orch   *orchestrator.Orchestrator
}

// NewServer builds the API server around an orchestrator.
func NewServer(orch *orchestrator.Orchestrator) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator required")
	}
	srv := &Server{router: chi.NewRouter(), orch: orch}
	srv.routes()
	common.Logger().Info("api: server ready", "dataframes", len(orch.Graph().Dataframes()))
	return srv, nil
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.router.Handle("/debug/vars", expvar.Handler())

	s.router.Get("/v1/dataframes", s.handleListDataframes)
	s.router.Post("/v1/dataframes", s.handleRegisterDataframe)
	s.router.Get("/v1/dataframes/{id}", s.handleResolveDataframe)
	s.router.Delete("/v1/dataframes/{id}", s.handleRetireDataframe)
	s.router.Get("/v1/dataframes/{id}/manifest", s.handleManifest)
	s.router.Get("/v1/dataframes/{id}/history", s.handleHistory)
	s.router.Get("/v1/dataframes/{id}/audit", s.handleAudit)

	s.router.Get("/v1/pipelines", s.handleListPipelines)
	s.router.Post("/v1/pipelines", s.handleRegisterPipeline)
	s.router.Get("/v1/pipelines/{id}", s.handleGetPipeline)

	s.router.Get("/v1/charts", s.handleListCharts)
	s.router.Post("/v1/charts", s.handleRegisterChart)
	s.router.Get("/v1/charts/{id}", s.handleGetChart)

	s.router.Post("/v1/links/pipeline", s.handleLinkPipeline)
	s.router.Post("/v1/links/chart", s.handleLinkChart)

	s.router.Post("/v1/refresh", s.handleRefresh)
	s.router.Get("/v1/archive", s.handleArchiveListing)
	s.router.Get("/v1/logs", s.handleLogs)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": common.LogEntries()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("api: request failed", "status", status, "error", err)
	} else {
		logger.Warn("api: request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
