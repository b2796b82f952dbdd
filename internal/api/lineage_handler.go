// File path: internal/api/lineage_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/zhupanlab/datadocs/internal/common"
	"github.com/zhupanlab/datadocs/internal/lineage"
	"github.com/zhupanlab/datadocs/internal/pipespec"
)

func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"pipelines": s.orch.Graph().Pipelines()})
}

func (s *Server) handleRegisterPipeline(w http.ResponseWriter, r *http.Request) {
	var record lineage.PipelineRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode pipeline record: %w", err))
		return
	}
	if err := s.orch.RegisterPipeline(r.Context(), record); err != nil {
		writeError(w, graphErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"registered": record.ID})
}

func (s *Server) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	record, ok := s.orch.Graph().Pipeline(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("pipeline %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleListCharts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"charts": s.orch.Graph().Charts()})
}

func (s *Server) handleRegisterChart(w http.ResponseWriter, r *http.Request) {
	var record lineage.ChartRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode chart record: %w", err))
		return
	}
	if err := s.orch.RegisterChart(r.Context(), record); err != nil {
		writeError(w, graphErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"registered": record.ID})
}

func (s *Server) handleGetChart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	record, ok := s.orch.Graph().Chart(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("chart %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type linkRequest struct {
	PipelineID  string `json:"pipeline_id,omitempty"`
	ChartID     string `json:"chart_id,omitempty"`
	DataframeID string `json:"dataframe_id"`
}

func (s *Server) handleLinkPipeline(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode link request: %w", err))
		return
	}
	if err := s.orch.LinkPipeline(r.Context(), req.PipelineID, req.DataframeID); err != nil {
		writeError(w, graphErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pipeline": req.PipelineID, "dataframe": req.DataframeID})
}

func (s *Server) handleLinkChart(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode link request: %w", err))
		return
	}
	if err := s.orch.LinkChart(r.Context(), req.ChartID, req.DataframeID); err != nil {
		writeError(w, graphErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"chart": req.ChartID, "dataframe": req.DataframeID})
}

func (s *Server) handleArchiveListing(w http.ResponseWriter, r *http.Request) {
	infos, err := s.orch.Archive().Pipelines(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pipelines": infos})
}

type refreshRequest struct {
	SpecPath string `json:"spec_path"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode refresh request: %w", err))
		return
	}
	if strings.TrimSpace(req.SpecPath) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("spec_path required"))
		return
	}
	spec, err := pipespec.Load(req.SpecPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	common.Logger().Info("api: refresh requested", "pipeline", spec.Pipeline.ID, "spec", req.SpecPath)
	report, err := s.orch.Refresh(r.Context(), spec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
