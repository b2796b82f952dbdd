// File path: internal/api/server_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zhupanlab/datadocs/internal/data/orchestrator"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := orchestrator.Config{
		ArchivePath: filepath.Join(dir, "archive"),
		CatalogPath: filepath.Join(dir, "catalog.db"),
		DataDir:     dir,
	}
	orch, err := orchestrator.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	t.Cleanup(func() { orch.Close() })
	srv, err := NewServer(orch)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, dir
}

func writeSpecFile(t *testing.T, dir string) string {
	t.Helper()
	csv := "permno,date,ret\n10001,2022-01-03,0.0125\n10002,2022-01-04,-0.003\n"
	if err := os.WriteFile(filepath.Join(dir, "crsp_daily.csv"), []byte(csv), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	spec := `pipeline:
  id: P5
  title: CRSP daily pull
  developer: dylan
dataframes:
  - id: crsp_daily
    name: CRSP Daily Stock File
    source: crsp.dsf
    provider: wrds
    timestamp_column: date
    pull:
      kind: csv
      path: crsp_daily.csv
charts:
  - id: P5.crsp_returns
    title: CRSP Daily Returns
    dataframes: [crsp_daily]
`
	path := filepath.Join(dir, "pipeline.yaml")
	if err := os.WriteFile(path, []byte(spec), 0o644); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return path
}

func doJSON(t *testing.T, handler http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRefreshEndpointProducesManifest(t *testing.T) {
	srv, dir := testServer(t)
	specPath := writeSpecFile(t, dir)

	rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/refresh", map[string]string{"spec_path": specPath})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status %d: %s", rec.Code, rec.Body.String())
	}
	var report struct {
		Failures int `json:"failures"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Failures != 0 {
		t.Fatalf("refresh reported failures: %s", rec.Body.String())
	}

	rec = doJSON(t, srv.Router(), http.MethodGet, "/v1/dataframes/crsp_daily/manifest", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("manifest status %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Fatalf("unexpected content type %q", ct)
	}
	for _, want := range []string{"## Glimpse", "CRSP Daily Returns"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Fatalf("manifest missing %q:\n%s", want, rec.Body.String())
		}
	}
}

func TestResolveUnknownDataframeReturns404(t *testing.T) {
	srv, _ := testServer(t)
	rec := doJSON(t, srv.Router(), http.MethodGet, "/v1/dataframes/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterDataframeConflictReturns409(t *testing.T) {
	srv, _ := testServer(t)
	record := map[string]interface{}{"id": "crsp_daily", "pipeline_id": "P5", "source": "crsp.dsf", "provider": "wrds"}
	if rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/dataframes", record); rec.Code != http.StatusOK {
		t.Fatalf("register status %d: %s", rec.Code, rec.Body.String())
	}
	record["pipeline_id"] = "P7"
	rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/dataframes", record)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLinkAndRetireFlow(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.Router()

	df := map[string]interface{}{"id": "crsp_daily", "pipeline_id": "P5", "source": "crsp.dsf", "provider": "wrds"}
	if rec := doJSON(t, router, http.MethodPost, "/v1/dataframes", df); rec.Code != http.StatusOK {
		t.Fatalf("register dataframe: %d %s", rec.Code, rec.Body.String())
	}
	pipeline := map[string]interface{}{"id": "P7", "title": "Factor build", "dataframes": []string{"crsp_daily"}}
	if rec := doJSON(t, router, http.MethodPost, "/v1/pipelines", pipeline); rec.Code != http.StatusOK {
		t.Fatalf("register pipeline: %d %s", rec.Code, rec.Body.String())
	}
	chart := map[string]interface{}{"id": "P7.cumret", "title": "Cumulative returns", "dataframes": []string{"crsp_daily"}}
	if rec := doJSON(t, router, http.MethodPost, "/v1/charts", chart); rec.Code != http.StatusOK {
		t.Fatalf("register chart: %d %s", rec.Code, rec.Body.String())
	}

	rec := doJSON(t, router, http.MethodGet, "/v1/dataframes/crsp_daily", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve: %d %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Pipelines []string `json:"pipelines"`
		Charts    []string `json:"charts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode resolution: %v", err)
	}
	if len(res.Pipelines) != 2 || len(res.Charts) != 1 {
		t.Fatalf("unexpected resolution: %+v", res)
	}

	if rec := doJSON(t, router, http.MethodDelete, "/v1/dataframes/crsp_daily", nil); rec.Code != http.StatusOK {
		t.Fatalf("retire: %d %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, router, http.MethodGet, "/v1/dataframes/crsp_daily", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after retire, got %d", rec.Code)
	}
	// Pipeline and chart records survive retirement without the reference.
	rec = doJSON(t, router, http.MethodGet, "/v1/pipelines/P7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pipeline lookup after retire: %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "crsp_daily") {
		t.Fatalf("retired dataframe still referenced: %s", rec.Body.String())
	}
}

func TestLinkUnknownDataframeReturns404(t *testing.T) {
	srv, _ := testServer(t)
	body := map[string]string{"pipeline_id": "P5", "dataframe_id": "ghost"}
	rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/links/pipeline", body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthAndLogsEndpoints(t *testing.T) {
	srv, _ := testServer(t)
	rec := doJSON(t, srv.Router(), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	rec = doJSON(t, srv.Router(), http.MethodGet, "/v1/logs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logs: %d", rec.Code)
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode logs: %v", err)
	}
	if _, ok := payload["logs"]; !ok {
		t.Fatalf("logs payload missing: %s", rec.Body.String())
	}
}

func TestAuditEndpointRejectsBadLimit(t *testing.T) {
	srv, _ := testServer(t)
	for _, limit := range []string{"zero", "-1", "0"} {
		target := fmt.Sprintf("/v1/dataframes/crsp_daily/audit?limit=%s", limit)
		if rec := doJSON(t, srv.Router(), http.MethodGet, target, nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("limit %q: expected 400, got %d", limit, rec.Code)
		}
	}
}
