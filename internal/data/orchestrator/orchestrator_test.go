// File path: internal/data/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zhupanlab/datadocs/internal/dataset"
	"github.com/zhupanlab/datadocs/internal/lineage"
	"github.com/zhupanlab/datadocs/internal/pipespec"
	"github.com/zhupanlab/datadocs/internal/provenance"
	"github.com/zhupanlab/datadocs/internal/pull"
)

func testOrchestrator(t *testing.T, opts ...Option) *Orchestrator {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{
		ArchivePath: filepath.Join(dir, "archive"),
		CatalogPath: filepath.Join(dir, "catalog.db"),
		DataDir:     dir,
	}
	clock := func() time.Time { return time.Date(2022, time.March, 2, 11, 58, 0, 0, time.UTC) }
	opts = append([]Option{WithRecorder(provenance.NewRecorder(provenance.WithClock(clock)))}, opts...)
	orch, err := New(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	t.Cleanup(func() { orch.Close() })
	return orch
}

func crspSpec(t *testing.T, dataDir string) pipespec.Spec {
	t.Helper()
	csv := "permno,date,ret,prc\n10001,2022-01-03,0.0125,182.01\n10002,2022-01-03,-0.003,45.77\n"
	if err := os.WriteFile(filepath.Join(dataDir, "crsp_daily.csv"), []byte(csv), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return pipespec.Spec{
		Pipeline: pipespec.Pipeline{
			ID:           "P5",
			Title:        "CRSP daily pull",
			Developer:    "dylan",
			Contributors: []string{"zhu", "pan"},
			OSTags:       []string{"nix"},
		},
		Dataframes: []pipespec.Dataframe{{
			ID:              "crsp_daily",
			Name:            "CRSP Daily Stock File",
			Source:          "crsp.dsf",
			Provider:        "wrds",
			AccessMethod:    "raw SQL over the wrds python client",
			TimestampColumn: "date",
			StoragePath:     "_data/crsp_daily.parquet",
			Pull:            pipespec.Pull{Kind: "csv", Path: "crsp_daily.csv"},
		}},
		Charts: []pipespec.Chart{{
			ID:         "P5.crsp_returns",
			Title:      "CRSP Daily Returns",
			Dataframes: []string{"crsp_daily"},
		}},
	}
}

func TestRefreshBuildsCompleteManifest(t *testing.T) {
	orch := testOrchestrator(t)
	spec := crspSpec(t, orch.cfg.DataDir)

	report, err := orch.Refresh(context.Background(), spec)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if report.Failures != 0 {
		t.Fatalf("unexpected failures: %+v", report)
	}
	if len(report.Results) != 1 || report.Results[0].Status != "refreshed" {
		t.Fatalf("unexpected results: %+v", report.Results)
	}

	res, err := orch.Graph().Resolve("crsp_daily")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Record.RowCount != 2 || len(res.Record.Columns) != 4 {
		t.Fatalf("unexpected record: %+v", res.Record)
	}
	if res.Record.Coverage == nil || !res.Record.Coverage.Min.Equal(res.Record.Coverage.Max) {
		t.Fatalf("unexpected coverage: %+v", res.Record.Coverage)
	}
	if len(res.Pipelines) != 1 || res.Pipelines[0] != "P5" {
		t.Fatalf("unexpected pipelines: %v", res.Pipelines)
	}
	if len(res.Charts) != 1 || res.Charts[0] != "P5.crsp_returns" {
		t.Fatalf("unexpected charts: %v", res.Charts)
	}

	doc, err := orch.Manifest("crsp_daily")
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	for _, want := range []string{"## Glimpse", "| Lead developer | dylan |", "- [CRSP Daily Returns](P5.crsp_returns)"} {
		if !strings.Contains(doc, want) {
			t.Fatalf("manifest missing %q:\n%s", want, doc)
		}
	}

	history, err := orch.Archive().History(context.Background(), "P5", "crsp_daily")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Manifest != doc {
		t.Fatalf("archived manifest mismatch (%d entries)", len(history))
	}
}

func TestRefreshFailureDoesNotBlockOtherDataframes(t *testing.T) {
	orch := testOrchestrator(t)
	spec := crspSpec(t, orch.cfg.DataDir)
	spec.Dataframes = append([]pipespec.Dataframe{{
		ID:       "taq_minute",
		Source:   "taq.nbbo",
		Provider: "wrds",
		Pull:     pipespec.Pull{Kind: "csv", Path: "missing.csv"},
	}}, spec.Dataframes...)

	report, err := orch.Refresh(context.Background(), spec)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if report.Failures != 1 {
		t.Fatalf("expected 1 failure, got %d", report.Failures)
	}
	if report.Results[0].Status != "failed" || report.Results[1].Status != "refreshed" {
		t.Fatalf("unexpected results: %+v", report.Results)
	}
	// The failed dataframe must leave no trace: no record, no manifest.
	var unknown *lineage.UnknownDataframeError
	if _, err := orch.Graph().Resolve("taq_minute"); !errors.As(err, &unknown) {
		t.Fatalf("expected unknown dataframe, got %v", err)
	}
	history, err := orch.Archive().History(context.Background(), "P5", "taq_minute")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("partial manifest archived for failed dataframe")
	}
}

func TestRefreshSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		ArchivePath: filepath.Join(dir, "archive"),
		CatalogPath: filepath.Join(dir, "catalog.db"),
		DataDir:     dir,
	}
	ctx := context.Background()

	orch, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	spec := crspSpec(t, dir)
	if _, err := orch.Refresh(ctx, spec); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := orch.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	restarted, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer restarted.Close()
	res, err := restarted.Graph().Resolve("crsp_daily")
	if err != nil {
		t.Fatalf("resolve after restart: %v", err)
	}
	if len(res.Charts) != 1 {
		t.Fatalf("chart edges lost across restart: %v", res.Charts)
	}
}

func TestBareChartLinkSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		ArchivePath: filepath.Join(dir, "archive"),
		CatalogPath: filepath.Join(dir, "catalog.db"),
		DataDir:     dir,
	}
	ctx := context.Background()

	orch, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	spec := crspSpec(t, dir)
	spec.Charts = nil
	if _, err := orch.Refresh(ctx, spec); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	// Link a chart that has no registered record of its own.
	if err := orch.LinkChart(ctx, "P9.drawdown", "crsp_daily"); err != nil {
		t.Fatalf("link chart: %v", err)
	}
	if err := orch.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	restarted, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer restarted.Close()
	res, err := restarted.Graph().Resolve("crsp_daily")
	if err != nil {
		t.Fatalf("resolve after restart: %v", err)
	}
	if len(res.Charts) != 1 || res.Charts[0] != "P9.drawdown" {
		t.Fatalf("chart edge lost across restart: %v", res.Charts)
	}
}

func TestRefreshReportStampedWhenArchiveFails(t *testing.T) {
	orch := testOrchestrator(t)
	spec := crspSpec(t, orch.cfg.DataDir)

	// Replace the archive root with a plain file so the append cannot
	// create the pipeline history file.
	root := orch.Archive().Root()
	if err := os.RemoveAll(root); err != nil {
		t.Fatalf("remove archive root: %v", err)
	}
	if err := os.WriteFile(root, []byte("blocked"), 0o644); err != nil {
		t.Fatalf("block archive root: %v", err)
	}

	report, err := orch.Refresh(context.Background(), spec)
	if err == nil {
		t.Fatal("expected archive append failure")
	}
	if report.FinishedAt.IsZero() {
		t.Fatal("report not stamped on archive failure")
	}
	if len(report.Results) != 1 || report.Results[0].Status != "refreshed" {
		t.Fatalf("per-dataframe results lost: %+v", report.Results)
	}
}

func TestRetireRemovesRecordAndCatalogRow(t *testing.T) {
	orch := testOrchestrator(t)
	spec := crspSpec(t, orch.cfg.DataDir)
	ctx := context.Background()
	if _, err := orch.Refresh(ctx, spec); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := orch.Retire(ctx, "crsp_daily"); err != nil {
		t.Fatalf("retire: %v", err)
	}
	var unknown *lineage.UnknownDataframeError
	if _, err := orch.Graph().Resolve("crsp_daily"); !errors.As(err, &unknown) {
		t.Fatalf("expected unknown dataframe after retire, got %v", err)
	}
	graph, err := orch.Catalog().LoadGraph(ctx)
	if err != nil {
		t.Fatalf("load graph: %v", err)
	}
	if _, err := graph.Resolve("crsp_daily"); !errors.As(err, &unknown) {
		t.Fatal("catalog still holds retired dataframe")
	}
}

func TestRefreshWithStaticPullerHandlesProvenanceFailure(t *testing.T) {
	handle, err := dataset.NewMemoryHandle([]string{"x"}, []dataset.Type{dataset.TypeInteger}, nil)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	registry := pull.NewRegistry()
	registry.Register("static", pull.StaticPuller{Handle: handle})
	orch := testOrchestrator(t, WithPullRegistry(registry))

	spec := pipespec.Spec{
		Pipeline: pipespec.Pipeline{ID: "P9"},
		Dataframes: []pipespec.Dataframe{{
			ID:     "no_provider",
			Source: "somewhere",
			// Provider left empty: provenance must reject the record.
			Pull: pipespec.Pull{Kind: "static"},
		}},
	}
	report, err := orch.Refresh(context.Background(), spec)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if report.Failures != 1 || report.Results[0].Status != "failed" {
		t.Fatalf("expected provenance failure, got %+v", report)
	}
	if !strings.Contains(report.Results[0].Error, "provider") {
		t.Fatalf("unexpected error detail: %s", report.Results[0].Error)
	}
}
