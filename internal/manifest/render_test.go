// File path: internal/manifest/render_test.go
package manifest

import (
	"strings"
	"testing"
	"time"

	"github.com/zhupanlab/datadocs/internal/dataset"
	"github.com/zhupanlab/datadocs/internal/lineage"
	"github.com/zhupanlab/datadocs/internal/provenance"
	"github.com/zhupanlab/datadocs/internal/snapshot"
)

func sampleInput() Input {
	day := time.Date(2022, time.January, 3, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2022, time.March, 2, 11, 58, 0, 0, time.UTC)
	return Input{
		Record: lineage.DataframeRecord{
			ID:          "crsp_daily",
			PipelineID:  "P5",
			Name:        "CRSP Daily Stock File",
			Description: "Daily returns and prices pulled from CRSP.",
			Columns: []snapshot.Column{
				{Name: "permno", Type: dataset.TypeInteger, Sample: "10001"},
				{Name: "date", Type: dataset.TypeTimestamp, Sample: "2022-01-03"},
				{Name: "ret", Type: dataset.TypeFloat, Sample: "0.0125"},
				{Name: "prc", Type: dataset.TypeFloat, Sample: "182.01"},
			},
			RowCount:     5000,
			StoragePath:  "_data/crsp_daily.parquet",
			Source:       "crsp.dsf",
			Provider:     "wrds",
			AccessMethod: "raw SQL over the wrds python client",
			Coverage:     &provenance.Interval{Min: day, Max: day},
			LastUpdated:  updated,
		},
		Pipeline: &lineage.PipelineRecord{
			ID:           "P5",
			Title:        "CRSP daily pull",
			Developer:    "dylan",
			Contributors: []string{"zhu", "pan"},
			RepoURL:      "https://example.com/p5",
			OSTags:       []string{"nix", "windows"},
			LastUpdated:  updated,
		},
		Charts: []lineage.ChartRecord{
			{ID: "P5.crsp_returns", Title: "CRSP Daily Returns"},
		},
	}
}

func TestRenderContainsAllFourSectionsInOrder(t *testing.T) {
	doc := Render(sampleInput())
	sections := []string{"## Glimpse", "## Dataframe Manifest", "## Pipeline Manifest", "## Linked Charts"}
	last := -1
	for _, section := range sections {
		idx := strings.Index(doc, section)
		if idx < 0 {
			t.Fatalf("section %q missing from document:\n%s", section, doc)
		}
		if idx < last {
			t.Fatalf("section %q out of order", section)
		}
		last = idx
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	in := sampleInput()
	first := Render(in)
	second := Render(in)
	if first != second {
		t.Fatal("rendering the same input twice produced different output")
	}
}

func TestRenderGlimpseAndManifestValues(t *testing.T) {
	doc := Render(sampleInput())
	for _, want := range []string{
		"Rows: 5000, Columns: 4",
		"| permno | integer | 10001 |",
		"| Data available from | 2022-01-03 |",
		"| Data available to | 2022-01-03 |",
		"| Storage path | _data/crsp_daily.parquet |",
		"| Lead developer | dylan |",
		"| Contributors | zhu, pan |",
		"| OS compatibility | nix, windows |",
		"- [CRSP Daily Returns](P5.crsp_returns)",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("document missing %q:\n%s", want, doc)
		}
	}
}

func TestRenderAbsentFieldsUseUnsetMarker(t *testing.T) {
	in := sampleInput()
	in.Record.Coverage = nil
	in.Record.StoragePath = ""
	in.Record.AccessMethod = ""
	in.Pipeline = nil
	in.Charts = nil

	doc := Render(in)
	for _, want := range []string{
		"| Data available from | (unset) |",
		"| Data available to | (unset) |",
		"| Storage path | (unset) |",
		"| Access method | (unset) |",
		"| Pipeline ID | (unset) |",
		"| Lead developer | (unset) |",
		"No charts consume this dataframe.",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("document missing %q:\n%s", want, doc)
		}
	}
	// The pipeline section must render even with no pipeline registered.
	if !strings.Contains(doc, "## Pipeline Manifest") {
		t.Fatal("pipeline section omitted for absent pipeline")
	}
}

func TestRenderSortsLinkedCharts(t *testing.T) {
	in := sampleInput()
	in.Charts = []lineage.ChartRecord{
		{ID: "P5.z_chart", Title: "Z"},
		{ID: "P5.a_chart", Title: "A"},
	}
	doc := Render(in)
	if strings.Index(doc, "P5.a_chart") > strings.Index(doc, "P5.z_chart") {
		t.Fatal("charts not sorted by id")
	}
}
