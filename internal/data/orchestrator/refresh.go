// File path: internal/data/orchestrator/refresh.go
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zhupanlab/datadocs/internal/archive"
	"github.com/zhupanlab/datadocs/internal/common"
	"github.com/zhupanlab/datadocs/internal/common/telemetry"
	"github.com/zhupanlab/datadocs/internal/lineage"
	"github.com/zhupanlab/datadocs/internal/pipespec"
	"github.com/zhupanlab/datadocs/internal/snapshot"
)

// RefreshResult reports the outcome for one dataframe in a refresh run.
type RefreshResult struct {
	DataframeID string        `json:"dataframe_id"`
	Status      string        `json:"status"`
	Error       string        `json:"error,omitempty"`
	RowCount    int           `json:"row_count,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// RefreshReport summarises one refresh run over a pipeline spec.
type RefreshReport struct {
	RunID      string          `json:"run_id"`
	PipelineID string          `json:"pipeline_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Results    []RefreshResult `json:"results"`
	Failures   int             `json:"failures"`
}

const (
	statusRefreshed = "refreshed"
	statusFailed    = "failed"
)

// Refresh executes the manifest build for every dataframe a pipeline spec
// declares: pull, snapshot, provenance, registration, render, archive. A
// failure for one dataframe is recorded and does not block the others, and a
// dataframe either gets a complete manifest or none.
func (o *Orchestrator) Refresh(ctx context.Context, spec pipespec.Spec) (RefreshReport, error) {
	ctx, done := telemetry.StartSpan(ctx, "orchestrator.refresh")
	logger := common.Logger()
	report := RefreshReport{
		RunID:      uuid.NewString(),
		PipelineID: spec.Pipeline.ID,
		StartedAt:  o.recorder.Now(),
	}
	logger.Info("orchestrator: refresh started", "run", report.RunID, "pipeline", spec.Pipeline.ID, "dataframes", len(spec.Dataframes))

	refreshed := make(map[string]struct{}, len(spec.Dataframes))
	for _, df := range spec.Dataframes {
		result := o.refreshDataframe(ctx, report.RunID, spec.Pipeline.ID, df)
		if result.Status == statusRefreshed {
			refreshed[df.ID] = struct{}{}
		} else {
			report.Failures++
		}
		report.Results = append(report.Results, result)
	}

	// The pipeline record only claims dataframes that refreshed in this or
	// an earlier run; claiming a failed one would dangle.
	produced := make([]string, 0, len(spec.Dataframes))
	for _, df := range spec.Dataframes {
		if _, ok := refreshed[df.ID]; ok {
			produced = append(produced, df.ID)
			continue
		}
		if _, err := o.graph.Resolve(df.ID); err == nil {
			produced = append(produced, df.ID)
		}
	}
	pipelineRecord := lineage.PipelineRecord{
		ID:           spec.Pipeline.ID,
		Title:        spec.Pipeline.Title,
		Developer:    spec.Pipeline.Developer,
		Contributors: spec.Pipeline.Contributors,
		RepoURL:      spec.Pipeline.RepoURL,
		OSTags:       spec.Pipeline.OSTags,
		LastUpdated:  o.recorder.Now(),
		Dataframes:   produced,
	}
	if err := o.RegisterPipeline(ctx, pipelineRecord); err != nil {
		logger.Error("orchestrator: pipeline registration failed", "run", report.RunID, "pipeline", spec.Pipeline.ID, "error", err)
		report.Failures++
	}

	for _, chart := range spec.Charts {
		record := lineage.ChartRecord{ID: chart.ID, Title: chart.Title, Dataframes: chart.Dataframes}
		if err := o.RegisterChart(ctx, record); err != nil {
			logger.Warn("orchestrator: chart registration failed", "run", report.RunID, "chart", chart.ID, "error", err)
			report.Failures++
		}
	}

	// Render and archive only after links are in place so each archived
	// manifest reflects the run's final lineage.
	var entries []archive.Entry
	for _, df := range spec.Dataframes {
		if _, ok := refreshed[df.ID]; !ok {
			continue
		}
		id := df.ID
		res, err := o.graph.Resolve(id)
		if err != nil {
			logger.Error("orchestrator: resolve after refresh failed", "run", report.RunID, "dataframe", id, "error", err)
			report.Failures++
			continue
		}
		start := time.Now()
		doc := renderResolution(o.graph, res)
		telemetry.RecordRender(time.Since(start))
		entries = append(entries, archive.Entry{
			RunID:       report.RunID,
			PipelineID:  spec.Pipeline.ID,
			DataframeID: id,
			RenderedAt:  o.recorder.Now(),
			Manifest:    doc,
			Record:      res.Record,
		})
	}
	appendErr := o.archiveStore.Append(ctx, spec.Pipeline.ID, entries)

	report.FinishedAt = o.recorder.Now()
	telemetry.RecordRefreshRun(report.Failures)
	done("failures", report.Failures)
	if appendErr != nil {
		logger.Error("orchestrator: manifest archive failed", "run", report.RunID, "pipeline", spec.Pipeline.ID, "error", appendErr)
		return report, fmt.Errorf("archive manifests: %w", appendErr)
	}
	logger.Info("orchestrator: refresh finished", "run", report.RunID, "pipeline", spec.Pipeline.ID, "failures", report.Failures)
	return report, nil
}

func (o *Orchestrator) refreshDataframe(ctx context.Context, runID, pipelineID string, df pipespec.Dataframe) RefreshResult {
	logger := common.Logger()
	start := time.Now()
	fail := func(err error) RefreshResult {
		logger.Error("orchestrator: dataframe refresh failed", "run", runID, "dataframe", df.ID, "error", err)
		if auditErr := o.catalogStore.RecordAudit(ctx, runID, df.ID, "refresh_failed", err.Error()); auditErr != nil {
			logger.Warn("orchestrator: audit write failed", "dataframe", df.ID, "error", auditErr)
		}
		return RefreshResult{DataframeID: df.ID, Status: statusFailed, Error: err.Error(), Duration: time.Since(start)}
	}

	handle, err := o.pullers.Pull(ctx, df)
	if err != nil {
		return fail(err)
	}
	schema, err := snapshot.Take(ctx, handle)
	if err != nil {
		return fail(err)
	}
	prov, err := o.recorder.Record(ctx, df.Source, df.Provider, df.AccessMethod, df.TimestampColumn, handle)
	if err != nil {
		return fail(err)
	}

	record := lineage.DataframeRecord{
		ID:           df.ID,
		PipelineID:   pipelineID,
		Name:         df.Name,
		Description:  df.Description,
		Columns:      schema.Columns,
		RowCount:     schema.RowCount,
		StoragePath:  df.StoragePath,
		Source:       prov.Source,
		Provider:     prov.Provider,
		AccessMethod: prov.AccessMethod,
		Coverage:     prov.Coverage,
		LastUpdated:  prov.PulledAt,
	}
	if err := o.RegisterDataframe(ctx, record); err != nil {
		return fail(err)
	}
	if err := o.catalogStore.RecordAudit(ctx, runID, df.ID, "refresh", fmt.Sprintf("%d rows", schema.RowCount)); err != nil {
		logger.Warn("orchestrator: audit write failed", "dataframe", df.ID, "error", err)
	}
	return RefreshResult{DataframeID: df.ID, Status: statusRefreshed, RowCount: schema.RowCount, Duration: time.Since(start)}
}
