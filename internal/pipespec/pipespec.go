// File path: internal/pipespec/pipespec.go
package pipespec

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Spec is a pipeline definition file: the pipeline's identity, the dataframes
// it produces, and the charts that consume them. One file describes one
// pipeline; the refresh run walks the dataframe list in order.
type Spec struct {
	Pipeline   Pipeline    `yaml:"pipeline"`
	Dataframes []Dataframe `yaml:"dataframes"`
	Charts     []Chart     `yaml:"charts"`
}

// Pipeline identifies the producing pipeline and its maintainers.
type Pipeline struct {
	ID           string   `yaml:"id"`
	Title        string   `yaml:"title"`
	Developer    string   `yaml:"developer"`
	Contributors []string `yaml:"contributors"`
	RepoURL      string   `yaml:"repo_url"`
	OSTags       []string `yaml:"os_tags"`
}

// Dataframe declares one dataset the pipeline produces and how to pull it.
type Dataframe struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	Source          string `yaml:"source"`
	Provider        string `yaml:"provider"`
	AccessMethod    string `yaml:"access_method"`
	TimestampColumn string `yaml:"timestamp_column"`
	StoragePath     string `yaml:"storage_path"`
	Pull            Pull   `yaml:"pull"`
}

// Pull names the pull source for a dataframe. Kind selects the puller
// implementation; Path is interpreted by that puller.
type Pull struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

// Chart declares a chart and the dataframes it consumes.
type Chart struct {
	ID         string   `yaml:"id"`
	Title      string   `yaml:"title"`
	Dataframes []string `yaml:"dataframes"`
}

// Load reads and validates a pipeline definition file.
func Load(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("read pipeline spec: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a pipeline definition.
func Parse(data []byte) (Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return Spec{}, fmt.Errorf("parse pipeline spec: %w", err)
	}
	if err := spec.validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

func (s Spec) validate() error {
	if strings.TrimSpace(s.Pipeline.ID) == "" {
		return fmt.Errorf("pipeline spec: pipeline.id is required")
	}
	seen := make(map[string]struct{}, len(s.Dataframes))
	for i, df := range s.Dataframes {
		id := strings.TrimSpace(df.ID)
		if id == "" {
			return fmt.Errorf("pipeline spec: dataframes[%d].id is required", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("pipeline spec: duplicate dataframe id %q", id)
		}
		seen[id] = struct{}{}
		if strings.TrimSpace(df.Source) == "" {
			return fmt.Errorf("pipeline spec: dataframe %q: source is required", id)
		}
		if strings.TrimSpace(df.Provider) == "" {
			return fmt.Errorf("pipeline spec: dataframe %q: provider is required", id)
		}
	}
	chartIDs := make(map[string]struct{}, len(s.Charts))
	for i, chart := range s.Charts {
		id := strings.TrimSpace(chart.ID)
		if id == "" {
			return fmt.Errorf("pipeline spec: charts[%d].id is required", i)
		}
		if _, dup := chartIDs[id]; dup {
			return fmt.Errorf("pipeline spec: duplicate chart id %q", id)
		}
		chartIDs[id] = struct{}{}
		for _, df := range chart.Dataframes {
			if _, ok := seen[df]; !ok {
				return fmt.Errorf("pipeline spec: chart %q references undeclared dataframe %q", id, df)
			}
		}
	}
	return nil
}
