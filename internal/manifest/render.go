// File path: internal/manifest/render.go
package manifest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zhupanlab/datadocs/internal/lineage"
)

// unsetMarker renders in place of optional fields that carry no value, so the
// document shape is identical across datasets.
const unsetMarker = "(unset)"

// Input bundles everything the renderer needs: the resolved dataframe record,
// the producing pipeline (nil when not yet registered), and the consuming
// charts.
type Input struct {
	Record   lineage.DataframeRecord
	Pipeline *lineage.PipelineRecord
	Charts   []lineage.ChartRecord
}

// Render produces the markdown manifest document for a dataframe. It is pure
// and total: no I/O, every field rendered even when absent, and byte-identical
// output for identical input.
func Render(in Input) string {
	var b strings.Builder

	title := strings.TrimSpace(in.Record.Name)
	if title == "" {
		title = in.Record.ID
	}
	fmt.Fprintf(&b, "# %s\n", title)
	if desc := strings.TrimSpace(in.Record.Description); desc != "" {
		fmt.Fprintf(&b, "\n%s\n", desc)
	}

	writeGlimpse(&b, in.Record)
	writeDataframeManifest(&b, in.Record)
	writePipelineManifest(&b, in.Pipeline)
	writeLinkedCharts(&b, in.Charts)

	return b.String()
}

func writeGlimpse(b *strings.Builder, record lineage.DataframeRecord) {
	b.WriteString("\n## Glimpse\n\n")
	fmt.Fprintf(b, "Rows: %d, Columns: %d\n\n", record.RowCount, len(record.Columns))
	if len(record.Columns) == 0 {
		b.WriteString("No columns recorded.\n")
		return
	}
	b.WriteString("| Column | Type | Sample |\n")
	b.WriteString("| --- | --- | --- |\n")
	for _, col := range record.Columns {
		fmt.Fprintf(b, "| %s | %s | %s |\n", cell(col.Name), cell(string(col.Type)), cell(col.Sample))
	}
}

func writeDataframeManifest(b *strings.Builder, record lineage.DataframeRecord) {
	b.WriteString("\n## Dataframe Manifest\n\n")
	b.WriteString("| Field | Value |\n")
	b.WriteString("| --- | --- |\n")
	coverageMin, coverageMax := unsetMarker, unsetMarker
	if record.Coverage != nil {
		coverageMin = formatDay(record.Coverage.Min)
		coverageMax = formatDay(record.Coverage.Max)
	}
	rows := []struct {
		field string
		value string
	}{
		{"Dataframe ID", cell(record.ID)},
		{"Display name", cell(record.Name)},
		{"Description", cell(record.Description)},
		{"Data source", cell(record.Source)},
		{"Provider", cell(record.Provider)},
		{"Access method", cell(record.AccessMethod)},
		{"Data available from", coverageMin},
		{"Data available to", coverageMax},
		{"Row count", fmt.Sprintf("%d", record.RowCount)},
		{"Storage path", cell(record.StoragePath)},
		{"Last updated", formatStamp(record.LastUpdated)},
	}
	for _, row := range rows {
		fmt.Fprintf(b, "| %s | %s |\n", row.field, row.value)
	}
}

func writePipelineManifest(b *strings.Builder, pipeline *lineage.PipelineRecord) {
	b.WriteString("\n## Pipeline Manifest\n\n")
	b.WriteString("| Field | Value |\n")
	b.WriteString("| --- | --- |\n")
	var record lineage.PipelineRecord
	if pipeline != nil {
		record = *pipeline
	}
	rows := []struct {
		field string
		value string
	}{
		{"Pipeline ID", cell(record.ID)},
		{"Title", cell(record.Title)},
		{"Lead developer", cell(record.Developer)},
		{"Contributors", cellList(record.Contributors)},
		{"Repository", cell(record.RepoURL)},
		{"Last updated", formatStamp(record.LastUpdated)},
		{"OS compatibility", cellList(record.OSTags)},
	}
	for _, row := range rows {
		fmt.Fprintf(b, "| %s | %s |\n", row.field, row.value)
	}
}

func writeLinkedCharts(b *strings.Builder, charts []lineage.ChartRecord) {
	b.WriteString("\n## Linked Charts\n\n")
	if len(charts) == 0 {
		b.WriteString("No charts consume this dataframe.\n")
		return
	}
	sorted := append([]lineage.ChartRecord(nil), charts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, chart := range sorted {
		title := strings.TrimSpace(chart.Title)
		if title == "" {
			title = chart.ID
		}
		fmt.Fprintf(b, "- [%s](%s)\n", title, chart.ID)
	}
}

func cell(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return unsetMarker
	}
	return strings.ReplaceAll(trimmed, "|", "\\|")
}

func cellList(values []string) string {
	var kept []string
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	if len(kept) == 0 {
		return unsetMarker
	}
	return cell(strings.Join(kept, ", "))
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return unsetMarker
	}
	return t.UTC().Format("2006-01-02")
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return unsetMarker
	}
	return t.UTC().Format("2006-01-02 15:04:05") + " UTC"
}
