// File path: internal/provenance/provenance.go
package provenance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zhupanlab/datadocs/internal/common/telemetry"
	"github.com/zhupanlab/datadocs/internal/dataset"
)

// Interval is the [Min, Max] timestamp range observed in a dataset's temporal
// column. A single-point interval (Min == Max) is valid; tiny sample pulls
// routinely cover one trading day.
type Interval struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// Provenance records where a dataset came from and when it was pulled.
// Coverage is nil when the dataset has no usable timestamp column; an unknown
// range is never fabricated.
type Provenance struct {
	Source       string    `json:"source"`
	Provider     string    `json:"provider"`
	AccessMethod string    `json:"access_method"`
	Coverage     *Interval `json:"coverage,omitempty"`
	PulledAt     time.Time `json:"pulled_at"`
}

// ProvenanceError reports a missing mandatory audit field.
type ProvenanceError struct {
	Field string
}

func (e *ProvenanceError) Error() string {
	return fmt.Sprintf("provenance field %q is required", e.Field)
}

// Recorder stamps pull provenance. The clock is injectable for tests.
type Recorder struct {
	now func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock overrides the wall clock used for the pull timestamp.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder constructs a Recorder using the system clock unless overridden.
func NewRecorder(opts ...Option) *Recorder {
	rec := &Recorder{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(rec)
		}
	}
	return rec
}

// Now returns the recorder's current wall-clock reading.
func (r *Recorder) Now() time.Time {
	return r.now().UTC()
}

// Record captures provenance for a pulled dataset. Source and provider are
// mandatory for audit; timestampColumn may be empty when the dataset has no
// temporal column, in which case coverage is left unknown.
func (r *Recorder) Record(ctx context.Context, source, provider, accessMethod, timestampColumn string, handle dataset.Handle) (Provenance, error) {
	_, done := telemetry.StartSpan(ctx, "provenance.record")
	defer done()

	if strings.TrimSpace(source) == "" {
		return Provenance{}, &ProvenanceError{Field: "source"}
	}
	if strings.TrimSpace(provider) == "" {
		return Provenance{}, &ProvenanceError{Field: "provider"}
	}

	prov := Provenance{
		Source:       strings.TrimSpace(source),
		Provider:     strings.TrimSpace(provider),
		AccessMethod: strings.TrimSpace(accessMethod),
		PulledAt:     r.now().UTC(),
	}

	column := strings.TrimSpace(timestampColumn)
	if column == "" || handle == nil {
		return prov, nil
	}
	if _, ok := handle.ColumnType(column); !ok {
		return prov, nil
	}
	coverage, err := scanCoverage(ctx, handle, column)
	if err != nil {
		return Provenance{}, err
	}
	prov.Coverage = coverage
	return prov, nil
}

func scanCoverage(ctx context.Context, handle dataset.Handle, column string) (*Interval, error) {
	idx := -1
	for i, name := range handle.Columns() {
		if name == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}
	it, err := handle.Rows(ctx)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var interval *Interval
	for it.Next() {
		row := it.Row()
		if idx >= len(row) {
			continue
		}
		ts, ok := dataset.AsTime(row[idx])
		if !ok {
			continue
		}
		if interval == nil {
			interval = &Interval{Min: ts, Max: ts}
			continue
		}
		if ts.Before(interval.Min) {
			interval.Min = ts
		}
		if ts.After(interval.Max) {
			interval.Max = ts
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return interval, nil
}
