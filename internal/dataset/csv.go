// File path: internal/dataset/csv.go
package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// OpenCSV materializes a Handle from a CSV file with a header row. Column
// types are inferred from the values: a column is tagged integer, float,
// boolean, or timestamp only when every non-empty cell parses as that type,
// and string otherwise. The file is read once and held in memory; manifest
// generation works on bounded research extracts, not production volumes.
func OpenCSV(path string) (*MemoryHandle, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &DataUnavailableError{Source: path, Err: err}
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return NewMemoryHandle(nil, nil, nil)
		}
		return nil, &DataUnavailableError{Source: path, Err: err}
	}
	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.TrimSpace(name)
	}

	var raw [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &DataUnavailableError{Source: path, Err: err}
		}
		if len(record) != len(columns) {
			return nil, &DataUnavailableError{
				Source: path,
				Err:    fmt.Errorf("row %d has %d fields, want %d", len(raw)+2, len(record), len(columns)),
			}
		}
		raw = append(raw, record)
	}

	types := make([]Type, len(columns))
	for i := range columns {
		types[i] = inferColumnType(raw, i)
	}
	rows := make([][]interface{}, len(raw))
	for r, record := range raw {
		row := make([]interface{}, len(columns))
		for c, cell := range record {
			row[c] = coerceCell(cell, types[c])
		}
		rows[r] = row
	}
	return NewMemoryHandle(columns, types, rows)
}

// OpenCSVContext is OpenCSV with cancellation support for callers running
// inside a pipeline step.
func OpenCSVContext(ctx context.Context, path string) (*MemoryHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &DataUnavailableError{Source: path, Err: err}
	}
	return OpenCSV(path)
}

func inferColumnType(rows [][]string, col int) Type {
	seen := false
	isInt, isFloat, isBool, isTime := true, true, true, true
	for _, row := range rows {
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		seen = true
		if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			isFloat = false
		}
		if _, err := strconv.ParseBool(cell); err != nil {
			isBool = false
		}
		if _, ok := AsTime(cell); !ok {
			isTime = false
		}
		if !isInt && !isFloat && !isBool && !isTime {
			return TypeString
		}
	}
	if !seen {
		return TypeString
	}
	switch {
	case isInt:
		return TypeInteger
	case isFloat:
		return TypeFloat
	case isBool:
		return TypeBoolean
	case isTime:
		return TypeTimestamp
	}
	return TypeString
}

func coerceCell(cell string, t Type) interface{} {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil
	}
	switch t {
	case TypeInteger:
		if v, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return v
		}
	case TypeFloat:
		if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return v
		}
	case TypeBoolean:
		if v, err := strconv.ParseBool(trimmed); err == nil {
			return v
		}
	case TypeTimestamp:
		if v, ok := AsTime(trimmed); ok {
			return v
		}
	}
	return trimmed
}
