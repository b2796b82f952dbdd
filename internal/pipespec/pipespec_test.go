// File path: internal/pipespec/pipespec_test.go
package pipespec

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleSpec = `
pipeline:
  id: P5
  title: CRSP daily pull
  developer: dylan
  contributors: [zhu, pan]
  repo_url: https://example.com/p5
  os_tags: [nix, windows]
dataframes:
  - id: crsp_daily
    name: CRSP Daily Stock File
    description: Daily returns and prices pulled from CRSP.
    source: crsp.dsf
    provider: wrds
    access_method: raw SQL over the wrds python client
    timestamp_column: date
    storage_path: _data/crsp_daily.parquet
    pull:
      kind: csv
      path: _data/crsp_daily.csv
charts:
  - id: P5.crsp_returns
    title: CRSP Daily Returns
    dataframes: [crsp_daily]
`

func TestLoadParsesFullSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p5.yaml")
	if err := os.WriteFile(path, []byte(sampleSpec), 0o644); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	spec, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if spec.Pipeline.ID != "P5" || spec.Pipeline.Developer != "dylan" {
		t.Fatalf("unexpected pipeline: %+v", spec.Pipeline)
	}
	if len(spec.Pipeline.Contributors) != 2 {
		t.Fatalf("unexpected contributors: %v", spec.Pipeline.Contributors)
	}
	if len(spec.Dataframes) != 1 {
		t.Fatalf("expected 1 dataframe, got %d", len(spec.Dataframes))
	}
	df := spec.Dataframes[0]
	if df.TimestampColumn != "date" || df.Pull.Kind != "csv" {
		t.Fatalf("unexpected dataframe: %+v", df)
	}
	if len(spec.Charts) != 1 || spec.Charts[0].Dataframes[0] != "crsp_daily" {
		t.Fatalf("unexpected charts: %+v", spec.Charts)
	}
}

func TestParseRejectsMissingProvider(t *testing.T) {
	broken := strings.Replace(sampleSpec, "provider: wrds", "provider: \"\"", 1)
	_, err := Parse([]byte(broken))
	if err == nil || !strings.Contains(err.Error(), "provider is required") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestParseRejectsChartWithUndeclaredDataframe(t *testing.T) {
	broken := strings.Replace(sampleSpec, "dataframes: [crsp_daily]", "dataframes: [taq_minute]", 1)
	_, err := Parse([]byte(broken))
	if err == nil || !strings.Contains(err.Error(), "undeclared dataframe") {
		t.Fatalf("expected undeclared dataframe error, got %v", err)
	}
}

func TestParseRejectsDuplicateDataframeIDs(t *testing.T) {
	dup := `
pipeline:
  id: P5
dataframes:
  - id: crsp_daily
    source: crsp.dsf
    provider: wrds
  - id: crsp_daily
    source: crsp.dsf
    provider: wrds
`
	_, err := Parse([]byte(dup))
	if err == nil || !strings.Contains(err.Error(), "duplicate dataframe id") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}
