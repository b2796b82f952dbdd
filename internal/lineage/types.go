// File path: internal/lineage/types.go
package lineage

import (
	"time"

	"github.com/zhupanlab/datadocs/internal/provenance"
	"github.com/zhupanlab/datadocs/internal/snapshot"
)

// DataframeRecord describes one registered dataset: its schema snapshot,
// provenance, and storage location. The ID is unique within the owning
// pipeline's namespace; PipelineID names that owner.
type DataframeRecord struct {
	ID          string `json:"id"`
	PipelineID  string `json:"pipeline_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Columns  []snapshot.Column `json:"columns"`
	RowCount int               `json:"row_count"`

	StoragePath  string               `json:"storage_path,omitempty"`
	Source       string               `json:"source"`
	Provider     string               `json:"provider"`
	AccessMethod string               `json:"access_method,omitempty"`
	Coverage     *provenance.Interval `json:"coverage,omitempty"`
	LastUpdated  time.Time            `json:"last_updated"`
}

// PipelineRecord describes the pipeline that produces one or more dataframes.
type PipelineRecord struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Developer    string    `json:"developer,omitempty"`
	Contributors []string  `json:"contributors,omitempty"`
	RepoURL      string    `json:"repo_url,omitempty"`
	OSTags       []string  `json:"os_tags,omitempty"`
	LastUpdated  time.Time `json:"last_updated"`
	// Dataframes lists the dataframe IDs this pipeline produces. Every entry
	// must already be registered when the pipeline record is registered.
	Dataframes []string `json:"dataframes,omitempty"`
}

// ChartRecord describes a chart that consumes one or more dataframes.
type ChartRecord struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// Dataframes lists the dataframe IDs this chart consumes. Every entry
	// must already be registered when the chart record is registered.
	Dataframes []string `json:"dataframes,omitempty"`
}

// Resolution is the result of resolving a dataframe: the record plus the IDs
// of its producing pipelines and consuming charts, both sorted.
type Resolution struct {
	Record    DataframeRecord `json:"record"`
	Pipelines []string        `json:"pipelines"`
	Charts    []string        `json:"charts"`
}

func (r DataframeRecord) clone() DataframeRecord {
	out := r
	out.Columns = append([]snapshot.Column(nil), r.Columns...)
	if r.Coverage != nil {
		cov := *r.Coverage
		out.Coverage = &cov
	}
	return out
}

func (p PipelineRecord) clone() PipelineRecord {
	out := p
	out.Contributors = append([]string(nil), p.Contributors...)
	out.OSTags = append([]string(nil), p.OSTags...)
	out.Dataframes = append([]string(nil), p.Dataframes...)
	return out
}

func (c ChartRecord) clone() ChartRecord {
	out := c
	out.Dataframes = append([]string(nil), c.Dataframes...)
	return out
}
