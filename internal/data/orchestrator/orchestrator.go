// File path: internal/data/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/zhupanlab/datadocs/internal/archive"
	"github.com/zhupanlab/datadocs/internal/catalog"
	"github.com/zhupanlab/datadocs/internal/common"
	"github.com/zhupanlab/datadocs/internal/lineage"
	"github.com/zhupanlab/datadocs/internal/manifest"
	"github.com/zhupanlab/datadocs/internal/provenance"
	"github.com/zhupanlab/datadocs/internal/pull"
)

type closer interface {
	Close() error
}

// Orchestrator wires the catalog, lineage graph, manifest archive, and pull
// registry together, and keeps graph mutations and catalog rows in sync. The
// API layer and the refresh runs both go through it.
type Orchestrator struct {
	cfg Config

	catalogStore *catalog.Store
	archiveStore *archive.Store
	graph        *lineage.Graph
	pullers      *pull.Registry
	recorder     *provenance.Recorder

	closers []closer
}

// New constructs an orchestrator from the provided configuration and optional
// overrides. The lineage graph is restored from the catalog so registrations
// survive restarts.
func New(ctx context.Context, cfg Config, opts ...Option) (*Orchestrator, error) {
	cfg = applyDefaults(cfg)
	settings := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	archiveStore, err := archive.NewStore(cfg.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("init archive store: %w", err)
	}
	catalogStore, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("init catalog store: %w", err)
	}
	graph, err := catalogStore.LoadGraph(ctx)
	if err != nil {
		catalogStore.Close()
		return nil, fmt.Errorf("restore lineage graph: %w", err)
	}

	pullers := settings.pullers
	if pullers == nil {
		pullers = pull.NewRegistry()
		pullers.Register("csv", pull.CSVPuller{BaseDir: cfg.DataDir})
	}
	recorder := settings.recorder
	if recorder == nil {
		recorder = provenance.NewRecorder()
	}

	orch := &Orchestrator{
		cfg:          cfg,
		catalogStore: catalogStore,
		archiveStore: archiveStore,
		graph:        graph,
		pullers:      pullers,
		recorder:     recorder,
	}
	orch.closers = append(orch.closers, catalogStore)
	common.Logger().Info("orchestrator: ready",
		"catalog", cfg.CatalogPath,
		"archive", cfg.ArchivePath,
		"dataframes", len(graph.Dataframes()))
	return orch, nil
}

// Graph exposes the shared lineage graph.
func (o *Orchestrator) Graph() *lineage.Graph {
	if o == nil {
		return nil
	}
	return o.graph
}

// Catalog exposes the SQLite catalog store.
func (o *Orchestrator) Catalog() *catalog.Store {
	if o == nil {
		return nil
	}
	return o.catalogStore
}

// Archive exposes the manifest history store.
func (o *Orchestrator) Archive() *archive.Store {
	if o == nil {
		return nil
	}
	return o.archiveStore
}

// Close releases resources held by the orchestrator's stores.
func (o *Orchestrator) Close() error {
	if o == nil {
		return nil
	}
	var errs []error
	for _, c := range o.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RegisterDataframe registers or refreshes a dataframe in the graph and
// persists it to the catalog.
func (o *Orchestrator) RegisterDataframe(ctx context.Context, record lineage.DataframeRecord) error {
	if err := o.graph.RegisterDataframe(record); err != nil {
		return err
	}
	if err := o.catalogStore.SaveDataframe(ctx, record); err != nil {
		return fmt.Errorf("persist dataframe %s: %w", record.ID, err)
	}
	return nil
}

// RegisterPipeline registers a pipeline record and persists it.
func (o *Orchestrator) RegisterPipeline(ctx context.Context, record lineage.PipelineRecord) error {
	if err := o.graph.RegisterPipeline(record); err != nil {
		return err
	}
	if err := o.catalogStore.SavePipeline(ctx, record); err != nil {
		return fmt.Errorf("persist pipeline %s: %w", record.ID, err)
	}
	return nil
}

// RegisterChart registers a chart record and persists it.
func (o *Orchestrator) RegisterChart(ctx context.Context, record lineage.ChartRecord) error {
	if err := o.graph.RegisterChart(record); err != nil {
		return err
	}
	if err := o.catalogStore.SaveChart(ctx, record); err != nil {
		return fmt.Errorf("persist chart %s: %w", record.ID, err)
	}
	return nil
}

// LinkPipeline links a pipeline to a dataframe in the graph and the catalog.
func (o *Orchestrator) LinkPipeline(ctx context.Context, pipelineID, dataframeID string) error {
	if err := o.graph.LinkPipelineToDataframe(pipelineID, dataframeID); err != nil {
		return err
	}
	if err := o.catalogStore.LinkPipeline(ctx, pipelineID, dataframeID); err != nil {
		return fmt.Errorf("persist pipeline link: %w", err)
	}
	return nil
}

// LinkChart links a chart to a dataframe in the graph and the catalog.
func (o *Orchestrator) LinkChart(ctx context.Context, chartID, dataframeID string) error {
	if err := o.graph.LinkChartToDataframe(chartID, dataframeID); err != nil {
		return err
	}
	if err := o.catalogStore.LinkChart(ctx, chartID, dataframeID); err != nil {
		return fmt.Errorf("persist chart link: %w", err)
	}
	return nil
}

// Retire removes a dataframe and its edges from the graph and the catalog.
func (o *Orchestrator) Retire(ctx context.Context, dataframeID string) error {
	if err := o.graph.RetireDataframe(dataframeID); err != nil {
		return err
	}
	if err := o.catalogStore.DeleteDataframe(ctx, dataframeID); err != nil {
		return fmt.Errorf("persist retirement of %s: %w", dataframeID, err)
	}
	if err := o.catalogStore.RecordAudit(ctx, "", dataframeID, "retire", ""); err != nil {
		common.Logger().Warn("orchestrator: audit write failed", "dataframe", dataframeID, "error", err)
	}
	return nil
}

// Manifest resolves a dataframe and renders its manifest document.
func (o *Orchestrator) Manifest(dataframeID string) (string, error) {
	res, err := o.graph.Resolve(dataframeID)
	if err != nil {
		return "", err
	}
	return renderResolution(o.graph, res), nil
}

func renderResolution(graph *lineage.Graph, res lineage.Resolution) string {
	in := manifest.Input{Record: res.Record}
	// Prefer the owning pipeline's record; fall back to any registered
	// producer so the section stays populated for shared dataframes.
	pipelineIDs := append([]string{res.Record.PipelineID}, res.Pipelines...)
	sort.Strings(pipelineIDs[1:])
	for _, id := range pipelineIDs {
		if record, ok := graph.Pipeline(id); ok {
			in.Pipeline = &record
			break
		}
	}
	for _, id := range res.Charts {
		if record, ok := graph.Chart(id); ok {
			in.Charts = append(in.Charts, record)
		} else {
			in.Charts = append(in.Charts, lineage.ChartRecord{ID: id})
		}
	}
	return manifest.Render(in)
}
