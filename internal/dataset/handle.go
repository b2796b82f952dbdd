// File path: internal/dataset/handle.go
package dataset

import (
	"context"
	"time"
)

// Type tags the semantic type of a column as reported by the vendor layer or
// inferred from the raw values.
type Type string

const (
	TypeInteger   Type = "integer"
	TypeFloat     Type = "float"
	TypeString    Type = "string"
	TypeBoolean   Type = "boolean"
	TypeTimestamp Type = "timestamp"
	TypeOther     Type = "other"
)

// Handle is the minimal capability a pulled dataset must expose to the
// snapshot and provenance layers: ordered column names, per-column types,
// a row count, and a row iterator. Implementations must not be mutated by
// reads; Rows may be called any number of times and always starts from the
// first row.
type Handle interface {
	// Columns returns the ordered column names.
	Columns() []string
	// ColumnType reports the type of the named column. The second return
	// value is false when the column does not exist.
	ColumnType(name string) (Type, bool)
	// RowCount returns the number of rows in the dataset.
	RowCount() int
	// Rows opens a fresh iterator over the dataset.
	Rows(ctx context.Context) (RowIterator, error)
}

// RowIterator walks dataset rows in order. Values are positional and aligned
// with Handle.Columns.
type RowIterator interface {
	// Next advances to the next row, returning false at end of data.
	Next() bool
	// Row returns the current row. Only valid after Next returns true.
	Row() []interface{}
	// Err reports any error encountered during iteration.
	Err() error
	// Close releases iterator resources.
	Close() error
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// AsTime coerces a cell value to a timestamp. Vendor layers hand back either
// native time.Time values or date strings depending on the access path, so
// both are accepted.
func AsTime(v interface{}) (time.Time, bool) {
	switch value := v.(type) {
	case time.Time:
		return value, true
	case *time.Time:
		if value == nil {
			return time.Time{}, false
		}
		return *value, true
	case string:
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, value); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}
