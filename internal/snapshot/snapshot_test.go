// File path: internal/snapshot/snapshot_test.go
package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zhupanlab/datadocs/internal/dataset"
)

func crspHandle(t *testing.T) dataset.Handle {
	t.Helper()
	date := time.Date(2022, time.January, 3, 0, 0, 0, 0, time.UTC)
	handle, err := dataset.NewMemoryHandle(
		[]string{"permno", "date", "ret", "prc"},
		[]dataset.Type{dataset.TypeInteger, dataset.TypeTimestamp, dataset.TypeFloat, dataset.TypeFloat},
		[][]interface{}{
			{int64(10001), date, 0.0125, 182.01},
			{int64(10002), date, nil, 45.77},
		},
	)
	if err != nil {
		t.Fatalf("build handle: %v", err)
	}
	return handle
}

func TestTakeSnapshotsColumnsInOrder(t *testing.T) {
	schema, err := Take(context.Background(), crspHandle(t))
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if schema.RowCount != 2 {
		t.Fatalf("expected row count 2, got %d", schema.RowCount)
	}
	if len(schema.Columns) != 4 {
		t.Fatalf("expected 4 columns, got %d", len(schema.Columns))
	}
	wantNames := []string{"permno", "date", "ret", "prc"}
	for i, want := range wantNames {
		if schema.Columns[i].Name != want {
			t.Fatalf("column %d: expected %s, got %s", i, want, schema.Columns[i].Name)
		}
	}
	if schema.Columns[0].Sample != "10001" {
		t.Fatalf("unexpected integer sample: %q", schema.Columns[0].Sample)
	}
	if schema.Columns[1].Sample != "2022-01-03" {
		t.Fatalf("unexpected timestamp sample: %q", schema.Columns[1].Sample)
	}
	if schema.Columns[2].Sample != "0.0125" {
		t.Fatalf("unexpected float sample: %q", schema.Columns[2].Sample)
	}
}

func TestTakeSkipsNilCellsWhenSampling(t *testing.T) {
	handle, err := dataset.NewMemoryHandle(
		[]string{"ret"},
		[]dataset.Type{dataset.TypeFloat},
		[][]interface{}{{nil}, {-0.003}},
	)
	if err != nil {
		t.Fatalf("build handle: %v", err)
	}
	schema, err := Take(context.Background(), handle)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if schema.Columns[0].Sample != "-0.003" {
		t.Fatalf("expected sample from second row, got %q", schema.Columns[0].Sample)
	}
}

func TestTakeIsDeterministic(t *testing.T) {
	handle := crspHandle(t)
	first, err := Take(context.Background(), handle)
	if err != nil {
		t.Fatalf("first take: %v", err)
	}
	second, err := Take(context.Background(), handle)
	if err != nil {
		t.Fatalf("second take: %v", err)
	}
	if len(first.Columns) != len(second.Columns) {
		t.Fatalf("column count changed between takes")
	}
	for i := range first.Columns {
		if first.Columns[i] != second.Columns[i] {
			t.Fatalf("column %d differs: %+v vs %+v", i, first.Columns[i], second.Columns[i])
		}
	}
}

func TestTakeEmptyDatasetIsNotAnError(t *testing.T) {
	handle, err := dataset.NewMemoryHandle(nil, nil, nil)
	if err != nil {
		t.Fatalf("build handle: %v", err)
	}
	schema, err := Take(context.Background(), handle)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if len(schema.Columns) != 0 || schema.RowCount != 0 {
		t.Fatalf("expected empty schema, got %+v", schema)
	}
}

func TestTakeRejectsDuplicateColumnNames(t *testing.T) {
	handle, err := dataset.NewMemoryHandle(
		[]string{"ret", "ret"},
		[]dataset.Type{dataset.TypeFloat, dataset.TypeFloat},
		nil,
	)
	if err != nil {
		t.Fatalf("build handle: %v", err)
	}
	_, err = Take(context.Background(), handle)
	if err == nil {
		t.Fatal("expected duplicate column error")
	}
	var inference *SchemaInferenceError
	if !errors.As(err, &inference) {
		t.Fatalf("expected SchemaInferenceError, got %T", err)
	}
	if inference.Column != "ret" {
		t.Fatalf("unexpected column in error: %s", inference.Column)
	}
}
