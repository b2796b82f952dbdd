// File path: internal/lineage/graph.go
package lineage

import (
	"sort"
	"strings"
	"sync"

	"github.com/zhupanlab/datadocs/internal/common"
	"github.com/zhupanlab/datadocs/internal/common/telemetry"
)

// Graph maintains the bidirectional links between dataframes, the pipelines
// that produce them, and the charts that consume them. Every edge is stored
// in both directions and every mutation either applies fully or leaves the
// graph unchanged, so a reader can never observe a dangling reference.
//
// A Graph instance is passed explicitly to the pipeline runs that share it;
// there is deliberately no package-level registry, so independent runs can be
// tested in isolation. All methods are safe for concurrent use.
type Graph struct {
	mu sync.RWMutex

	dataframes map[string]DataframeRecord
	pipelines  map[string]PipelineRecord
	charts     map[string]ChartRecord

	producers map[string]map[string]struct{} // dataframe -> pipelines
	produced  map[string]map[string]struct{} // pipeline  -> dataframes
	consumers map[string]map[string]struct{} // dataframe -> charts
	consumed  map[string]map[string]struct{} // chart     -> dataframes
}

// NewGraph constructs an empty lineage graph.
func NewGraph() *Graph {
	return &Graph{
		dataframes: make(map[string]DataframeRecord),
		pipelines:  make(map[string]PipelineRecord),
		charts:     make(map[string]ChartRecord),
		producers:  make(map[string]map[string]struct{}),
		produced:   make(map[string]map[string]struct{}),
		consumers:  make(map[string]map[string]struct{}),
		consumed:   make(map[string]map[string]struct{}),
	}
}

// RegisterDataframe inserts a new dataframe record or refreshes an existing
// one. Refreshing keeps the record's lineage edges. Registering an existing
// ID under a different owning pipeline fails with OwnershipConflictError.
func (g *Graph) RegisterDataframe(record DataframeRecord) error {
	if err := validateDataframe(record); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.dataframes[record.ID]; ok && existing.PipelineID != record.PipelineID {
		return &OwnershipConflictError{ID: record.ID, Owner: existing.PipelineID, Claimed: record.PipelineID}
	}
	g.dataframes[record.ID] = record.clone()
	addEdge(g.producers, g.produced, record.ID, record.PipelineID)
	telemetry.RecordGraphOp("register_dataframe")
	return nil
}

// RegisterPipeline inserts or updates a pipeline record. Every dataframe ID
// the record claims to produce must already be registered; on success a
// producer edge is ensured for each.
func (g *Graph) RegisterPipeline(record PipelineRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return &ValidationError{Field: "pipeline id", Reason: "must not be empty"}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, df := range record.Dataframes {
		if _, ok := g.dataframes[df]; !ok {
			return &UnknownDataframeError{ID: df}
		}
	}
	g.pipelines[record.ID] = record.clone()
	for _, df := range record.Dataframes {
		addEdge(g.producers, g.produced, df, record.ID)
	}
	telemetry.RecordGraphOp("register_pipeline")
	return nil
}

// RegisterChart inserts or updates a chart record. Every dataframe ID the
// chart consumes must already be registered. A chart with no dependencies is
// permitted but flagged, since it usually means a broken manifest page.
func (g *Graph) RegisterChart(record ChartRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return &ValidationError{Field: "chart id", Reason: "must not be empty"}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, df := range record.Dataframes {
		if _, ok := g.dataframes[df]; !ok {
			return &UnknownDataframeError{ID: df}
		}
	}
	if len(record.Dataframes) == 0 {
		common.Logger().Warn("lineage: chart registered without dataframe dependencies", "chart", record.ID)
	}
	g.charts[record.ID] = record.clone()
	for _, df := range record.Dataframes {
		addEdge(g.consumers, g.consumed, df, record.ID)
	}
	telemetry.RecordGraphOp("register_chart")
	return nil
}

// LinkPipelineToDataframe records that a pipeline produces a dataframe. The
// dataframe must be registered; the pipeline record itself may be registered
// later by its owning code path.
func (g *Graph) LinkPipelineToDataframe(pipelineID, dataframeID string) error {
	if strings.TrimSpace(pipelineID) == "" {
		return &ValidationError{Field: "pipeline id", Reason: "must not be empty"}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.dataframes[dataframeID]; !ok {
		return &UnknownDataframeError{ID: dataframeID}
	}
	addEdge(g.producers, g.produced, dataframeID, pipelineID)
	telemetry.RecordGraphOp("link_pipeline")
	return nil
}

// LinkChartToDataframe records that a chart consumes a dataframe. Charts and
// dataframes are many-to-many.
func (g *Graph) LinkChartToDataframe(chartID, dataframeID string) error {
	if strings.TrimSpace(chartID) == "" {
		return &ValidationError{Field: "chart id", Reason: "must not be empty"}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.dataframes[dataframeID]; !ok {
		return &UnknownDataframeError{ID: dataframeID}
	}
	addEdge(g.consumers, g.consumed, dataframeID, chartID)
	telemetry.RecordGraphOp("link_chart")
	return nil
}

// RetireDataframe removes a dataframe and every incident edge in one step.
// After retirement no pipeline or chart references the ID. Records are never
// silently deleted; retirement is the only removal path.
func (g *Graph) RetireDataframe(dataframeID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.dataframes[dataframeID]; !ok {
		return &UnknownDataframeError{ID: dataframeID}
	}
	delete(g.dataframes, dataframeID)
	for pipelineID := range g.producers[dataframeID] {
		removeEdge(g.produced, pipelineID, dataframeID)
	}
	delete(g.producers, dataframeID)
	for chartID := range g.consumers[dataframeID] {
		removeEdge(g.consumed, chartID, dataframeID)
		if chart, ok := g.charts[chartID]; ok {
			chart.Dataframes = removeString(chart.Dataframes, dataframeID)
			g.charts[chartID] = chart
		}
	}
	delete(g.consumers, dataframeID)
	for pipelineID, pipeline := range g.pipelines {
		if containsString(pipeline.Dataframes, dataframeID) {
			pipeline.Dataframes = removeString(pipeline.Dataframes, dataframeID)
			g.pipelines[pipelineID] = pipeline
		}
	}
	telemetry.RecordGraphOp("retire_dataframe")
	return nil
}

// Resolve returns a copy of the dataframe record together with its producing
// pipeline IDs and consuming chart IDs. The copy is consistent: it reflects a
// single point in time and later mutations do not leak into it.
func (g *Graph) Resolve(dataframeID string) (Resolution, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	record, ok := g.dataframes[dataframeID]
	if !ok {
		return Resolution{}, &UnknownDataframeError{ID: dataframeID}
	}
	telemetry.RecordGraphOp("resolve")
	return Resolution{
		Record:    record.clone(),
		Pipelines: sortedKeys(g.producers[dataframeID]),
		Charts:    sortedKeys(g.consumers[dataframeID]),
	}, nil
}

// Dataframes lists all registered dataframe records sorted by ID.
func (g *Graph) Dataframes() []DataframeRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]DataframeRecord, 0, len(g.dataframes))
	for _, record := range g.dataframes {
		out = append(out, record.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Pipeline returns a copy of the named pipeline record.
func (g *Graph) Pipeline(id string) (PipelineRecord, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	record, ok := g.pipelines[id]
	if !ok {
		return PipelineRecord{}, false
	}
	record = record.clone()
	record.Dataframes = sortedKeys(g.produced[id])
	return record, true
}

// Pipelines lists all registered pipeline records sorted by ID.
func (g *Graph) Pipelines() []PipelineRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]PipelineRecord, 0, len(g.pipelines))
	for id, record := range g.pipelines {
		record = record.clone()
		record.Dataframes = sortedKeys(g.produced[id])
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Chart returns a copy of the named chart record.
func (g *Graph) Chart(id string) (ChartRecord, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	record, ok := g.charts[id]
	if !ok {
		return ChartRecord{}, false
	}
	record = record.clone()
	record.Dataframes = sortedKeys(g.consumed[id])
	return record, true
}

// Charts lists all registered chart records sorted by ID.
func (g *Graph) Charts() []ChartRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]ChartRecord, 0, len(g.charts))
	for id, record := range g.charts {
		record = record.clone()
		record.Dataframes = sortedKeys(g.consumed[id])
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func validateDataframe(record DataframeRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return &ValidationError{Field: "dataframe id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(record.PipelineID) == "" {
		return &ValidationError{Field: "pipeline id", Reason: "must not be empty"}
	}
	if record.RowCount < 0 {
		return &ValidationError{Field: "row count", Reason: "must not be negative"}
	}
	if record.Coverage != nil && record.Coverage.Max.Before(record.Coverage.Min) {
		return &ValidationError{Field: "coverage", Reason: "min must not exceed max"}
	}
	return nil
}

func addEdge(forward, reverse map[string]map[string]struct{}, from, to string) {
	if forward[from] == nil {
		forward[from] = make(map[string]struct{})
	}
	forward[from][to] = struct{}{}
	if reverse[to] == nil {
		reverse[to] = make(map[string]struct{})
	}
	reverse[to][from] = struct{}{}
}

func removeEdge(edges map[string]map[string]struct{}, from, to string) {
	if set, ok := edges[from]; ok {
		delete(set, to)
		if len(set) == 0 {
			delete(edges, from)
		}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func removeString(values []string, target string) []string {
	out := values[:0]
	for _, v := range values {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
