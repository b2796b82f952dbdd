// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"context"
	"expvar"
	"strings"
	"sync"
	"time"

	"github.com/zhupanlab/datadocs/internal/common"
)

type spanKey struct{}

type span struct {
	name  string
	start time.Time
}

var (
	initOnce sync.Once

	pullTotal     *expvar.Map
	pullLatencyMS *expvar.Map

	snapshotTotal   *expvar.Int
	snapshotColumns *expvar.Int

	graphOpTotal *expvar.Map

	renderTotal     *expvar.Int
	renderLatencyMS *expvar.Int

	refreshRunTotal    *expvar.Int
	refreshRunFailures *expvar.Int
)

func ensureInit() {
	initOnce.Do(func() {
		pullTotal = expvar.NewMap("datadocs_pull_total")
		pullLatencyMS = expvar.NewMap("datadocs_pull_latency_ms")

		snapshotTotal = expvar.NewInt("datadocs_snapshot_total")
		snapshotColumns = expvar.NewInt("datadocs_snapshot_columns_total")

		graphOpTotal = expvar.NewMap("datadocs_graph_op_total")

		renderTotal = expvar.NewInt("datadocs_render_total")
		renderLatencyMS = expvar.NewInt("datadocs_render_latency_ms")

		refreshRunTotal = expvar.NewInt("datadocs_refresh_runs_total")
		refreshRunFailures = expvar.NewInt("datadocs_refresh_run_failures_total")
	})
}

// StartSpan records a debug-level trace span around a pipeline step. The
// returned func closes the span and accepts extra attrs for the end event.
func StartSpan(ctx context.Context, name string) (context.Context, func(attrs ...interface{})) {
	ensureInit()
	sp := &span{name: name, start: time.Now()}
	ctx = context.WithValue(ctx, spanKey{}, sp)
	logger := common.Logger()
	logger.Debug("trace: start", "span", name)
	return ctx, func(attrs ...interface{}) {
		duration := time.Since(sp.start)
		logger.Debug("trace: end", append([]interface{}{"span", name, "dur", duration}, attrs...)...)
	}
}

// RecordPull counts an upstream dataset pull by source kind.
func RecordPull(source string, duration time.Duration) {
	ensureInit()
	key := strings.TrimSpace(strings.ToLower(source))
	if key == "" {
		key = "unknown"
	}
	pullTotal.Add(key, 1)
	if duration > 0 {
		pullLatencyMS.Add(key, duration.Milliseconds())
	}
}

// RecordSnapshot counts a completed schema snapshot.
func RecordSnapshot(columns int) {
	ensureInit()
	snapshotTotal.Add(1)
	if columns > 0 {
		snapshotColumns.Add(int64(columns))
	}
}

// RecordGraphOp counts a lineage graph mutation or lookup by kind.
func RecordGraphOp(kind string) {
	ensureInit()
	key := strings.TrimSpace(strings.ToLower(kind))
	if key == "" {
		key = "unknown"
	}
	graphOpTotal.Add(key, 1)
}

// RecordRender counts a manifest render.
func RecordRender(duration time.Duration) {
	ensureInit()
	renderTotal.Add(1)
	if duration > 0 {
		renderLatencyMS.Add(duration.Milliseconds())
	}
}

// RecordRefreshRun counts a refresh run and its failed dataframes.
func RecordRefreshRun(failures int) {
	ensureInit()
	refreshRunTotal.Add(1)
	if failures > 0 {
		refreshRunFailures.Add(int64(failures))
	}
}
