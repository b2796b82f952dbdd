// File path: internal/data/orchestrator/options.go
package orchestrator

import (
	"github.com/zhupanlab/datadocs/internal/provenance"
	"github.com/zhupanlab/datadocs/internal/pull"
)

type Option func(*options)

type options struct {
	pullers  *pull.Registry
	recorder *provenance.Recorder
}

// WithPullRegistry injects a puller registry, replacing the default CSV-only
// one. Primarily used to add vendor-specific pullers or fakes in tests.
func WithPullRegistry(registry *pull.Registry) Option {
	return func(o *options) {
		o.pullers = registry
	}
}

// WithRecorder injects a provenance recorder, letting tests pin the pull
// clock.
func WithRecorder(recorder *provenance.Recorder) Option {
	return func(o *options) {
		o.recorder = recorder
	}
}
