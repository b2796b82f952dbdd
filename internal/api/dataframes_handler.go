// File path: internal/api/dataframes_handler.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/zhupanlab/datadocs/internal/common"
	"github.com/zhupanlab/datadocs/internal/lineage"
	"github.com/zhupanlab/datadocs/internal/snapshot"
)

func (s *Server) handleListDataframes(w http.ResponseWriter, r *http.Request) {
	dataframes := s.orch.Graph().Dataframes()
	writeJSON(w, http.StatusOK, map[string]interface{}{"dataframes": dataframes})
}

func (s *Server) handleRegisterDataframe(w http.ResponseWriter, r *http.Request) {
	var record lineage.DataframeRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode dataframe record: %w", err))
		return
	}
	if err := s.orch.RegisterDataframe(r.Context(), record); err != nil {
		writeError(w, graphErrorStatus(err), err)
		return
	}
	common.Logger().Info("api: dataframe registered", "dataframe", record.ID, "pipeline", record.PipelineID)
	writeJSON(w, http.StatusOK, map[string]string{"registered": record.ID})
}

func (s *Server) handleResolveDataframe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := s.orch.Graph().Resolve(id)
	if err != nil {
		writeError(w, graphErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRetireDataframe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.orch.Retire(r.Context(), id); err != nil {
		writeError(w, graphErrorStatus(err), err)
		return
	}
	common.Logger().Info("api: dataframe retired", "dataframe", id)
	writeJSON(w, http.StatusOK, map[string]string{"retired": id})
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.orch.Manifest(id)
	if err != nil {
		writeError(w, graphErrorStatus(err), err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := s.orch.Graph().Resolve(id)
	if err != nil {
		writeError(w, graphErrorStatus(err), err)
		return
	}
	entries, err := s.orch.Archive().History(r.Context(), res.Record.PipelineID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = parsed
	}
	events, err := s.orch.Catalog().AuditTrail(r.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"audit": events})
}

// graphErrorStatus maps the lineage error taxonomy onto HTTP statuses.
func graphErrorStatus(err error) int {
	var unknown *lineage.UnknownDataframeError
	if errors.As(err, &unknown) {
		return http.StatusNotFound
	}
	var conflict *lineage.OwnershipConflictError
	if errors.As(err, &conflict) {
		return http.StatusConflict
	}
	var invalid *lineage.ValidationError
	if errors.As(err, &invalid) {
		return http.StatusBadRequest
	}
	var inference *snapshot.SchemaInferenceError
	if errors.As(err, &inference) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
