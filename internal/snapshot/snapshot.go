// File path: internal/snapshot/snapshot.go
package snapshot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/zhupanlab/datadocs/internal/common/telemetry"
	"github.com/zhupanlab/datadocs/internal/dataset"
)

// Column captures one column of a snapshotted schema: its name, semantic
// type, and a representative value rendered as text.
type Column struct {
	Name   string       `json:"name"`
	Type   dataset.Type `json:"type"`
	Sample string       `json:"sample"`
}

// Schema is the result of snapshotting a dataset handle.
type Schema struct {
	Columns  []Column `json:"columns"`
	RowCount int      `json:"row_count"`
}

// SchemaInferenceError reports a schema that cannot be snapshotted, such as
// duplicate column names.
type SchemaInferenceError struct {
	Column string
	Reason string
}

func (e *SchemaInferenceError) Error() string {
	return fmt.Sprintf("schema inference failed for column %q: %s", e.Column, e.Reason)
}

// Take snapshots the schema of the provided handle. It is deterministic for a
// given handle state and never mutates the source: the sample pass opens its
// own iterator and stops once every column has a representative value. An
// empty dataset yields an empty column list and row count 0.
func Take(ctx context.Context, handle dataset.Handle) (Schema, error) {
	_, done := telemetry.StartSpan(ctx, "snapshot.take")
	names := handle.Columns()
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			done("error", "duplicate_column")
			return Schema{}, &SchemaInferenceError{Column: name, Reason: "duplicate column name"}
		}
		seen[name] = struct{}{}
	}

	columns := make([]Column, len(names))
	for i, name := range names {
		colType, ok := handle.ColumnType(name)
		if !ok {
			done("error", "missing_type")
			return Schema{}, &SchemaInferenceError{Column: name, Reason: "no type reported"}
		}
		columns[i] = Column{Name: name, Type: colType}
	}

	if len(names) > 0 && handle.RowCount() > 0 {
		if err := fillSamples(ctx, handle, columns); err != nil {
			done("error", "sample_scan")
			return Schema{}, err
		}
	}

	schema := Schema{Columns: columns, RowCount: handle.RowCount()}
	telemetry.RecordSnapshot(len(columns))
	done("columns", len(columns), "rows", schema.RowCount)
	return schema, nil
}

// fillSamples takes the first non-nil value per column, scanning rows in
// order so repeated snapshots of the same handle agree.
func fillSamples(ctx context.Context, handle dataset.Handle, columns []Column) error {
	it, err := handle.Rows(ctx)
	if err != nil {
		return err
	}
	defer it.Close()

	remaining := len(columns)
	filled := make([]bool, len(columns))
	for remaining > 0 && it.Next() {
		row := it.Row()
		for i := range columns {
			if filled[i] || i >= len(row) || row[i] == nil {
				continue
			}
			columns[i].Sample = renderValue(row[i])
			filled[i] = true
			remaining--
		}
	}
	return it.Err()
}

func renderValue(v interface{}) string {
	switch value := v.(type) {
	case string:
		return value
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case float64:
		return strconv.FormatFloat(value, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	case time.Time:
		if value.Hour() == 0 && value.Minute() == 0 && value.Second() == 0 && value.Nanosecond() == 0 {
			return value.Format("2006-01-02")
		}
		return value.Format(time.RFC3339)
	default:
		return fmt.Sprint(value)
	}
}
