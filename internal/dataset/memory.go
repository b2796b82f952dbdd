// File path: internal/dataset/memory.go
package dataset

import (
	"context"
	"fmt"
)

// MemoryHandle is an in-memory Handle implementation. It backs unit tests and
// small synthetic datasets registered without an upstream pull.
type MemoryHandle struct {
	columns []string
	types   []Type
	rows    [][]interface{}
}

// NewMemoryHandle builds a handle from ordered columns, their types, and
// positional rows. Each row must have one value per column.
func NewMemoryHandle(columns []string, types []Type, rows [][]interface{}) (*MemoryHandle, error) {
	if len(columns) != len(types) {
		return nil, fmt.Errorf("dataset: %d columns but %d types", len(columns), len(types))
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("dataset: row %d has %d values, want %d", i, len(row), len(columns))
		}
	}
	return &MemoryHandle{
		columns: append([]string(nil), columns...),
		types:   append([]Type(nil), types...),
		rows:    rows,
	}, nil
}

func (h *MemoryHandle) Columns() []string {
	return append([]string(nil), h.columns...)
}

func (h *MemoryHandle) ColumnType(name string) (Type, bool) {
	for i, col := range h.columns {
		if col == name {
			return h.types[i], true
		}
	}
	return "", false
}

func (h *MemoryHandle) RowCount() int { return len(h.rows) }

func (h *MemoryHandle) Rows(ctx context.Context) (RowIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryIterator{rows: h.rows, pos: -1}, nil
}

type memoryIterator struct {
	rows [][]interface{}
	pos  int
}

func (it *memoryIterator) Next() bool {
	if it.pos+1 >= len(it.rows) {
		return false
	}
	it.pos++
	return true
}

func (it *memoryIterator) Row() []interface{} { return it.rows[it.pos] }

func (it *memoryIterator) Err() error { return nil }

func (it *memoryIterator) Close() error { return nil }
