// File path: internal/pull/pull.go
package pull

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zhupanlab/datadocs/internal/common/telemetry"
	"github.com/zhupanlab/datadocs/internal/dataset"
	"github.com/zhupanlab/datadocs/internal/pipespec"
)

// Puller materializes a dataset handle for one dataframe declaration. The
// vendor data-access layer sits behind this seam; the core never retries a
// failed pull.
type Puller interface {
	Pull(ctx context.Context, df pipespec.Dataframe) (dataset.Handle, error)
}

// Registry routes a dataframe's declared pull kind to a registered Puller.
type Registry struct {
	mu      sync.RWMutex
	pullers map[string]Puller
}

// NewRegistry returns a registry with the built-in CSV puller installed.
func NewRegistry() *Registry {
	reg := &Registry{pullers: make(map[string]Puller)}
	reg.Register("csv", CSVPuller{})
	return reg
}

// Register installs a puller for a pull kind, replacing any existing one.
func (r *Registry) Register(kind string, p Puller) {
	key := strings.ToLower(strings.TrimSpace(kind))
	if key == "" || p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pullers[key] = p
}

// Pull dispatches to the puller registered for the dataframe's pull kind.
// An unknown kind surfaces as DataUnavailableError, the same failure mode the
// caller sees for an unreachable vendor.
func (r *Registry) Pull(ctx context.Context, df pipespec.Dataframe) (dataset.Handle, error) {
	kind := strings.ToLower(strings.TrimSpace(df.Pull.Kind))
	if kind == "" {
		kind = "csv"
	}
	r.mu.RLock()
	puller, ok := r.pullers[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, &dataset.DataUnavailableError{
			Source: df.Source,
			Err:    fmt.Errorf("no puller registered for kind %q", kind),
		}
	}
	start := time.Now()
	handle, err := puller.Pull(ctx, df)
	if err != nil {
		return nil, err
	}
	telemetry.RecordPull(kind, time.Since(start))
	return handle, nil
}

// CSVPuller reads a dataset extract from a local CSV file. BaseDir, when set,
// anchors relative paths.
type CSVPuller struct {
	BaseDir string
}

func (p CSVPuller) Pull(ctx context.Context, df pipespec.Dataframe) (dataset.Handle, error) {
	path := strings.TrimSpace(df.Pull.Path)
	if path == "" {
		return nil, &dataset.DataUnavailableError{
			Source: df.Source,
			Err:    fmt.Errorf("dataframe %s declares no pull path", df.ID),
		}
	}
	if p.BaseDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(p.BaseDir, path)
	}
	return dataset.OpenCSVContext(ctx, path)
}

// StaticPuller always returns the same handle. It backs tests and synthetic
// registrations.
type StaticPuller struct {
	Handle dataset.Handle
	Err    error
}

func (p StaticPuller) Pull(ctx context.Context, df pipespec.Dataframe) (dataset.Handle, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Handle, nil
}
