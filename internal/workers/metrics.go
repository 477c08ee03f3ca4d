package workers

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Dicklesworthstone/agentmail/internal/mcp"
)

var (
	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentmail",
		Name:      "tool_calls_total",
		Help:      "Total tools/call invocations observed at the last metrics snapshot, per verb.",
	}, []string{"tool"})

	toolErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentmail",
		Name:      "tool_errors_total",
		Help:      "Total tools/call invocations that bubbled up as infrastructure errors, per verb.",
	}, []string{"tool"})
)

// MetricsSnapshot periodically republishes the Tool Registry's call/error
// counters as Prometheus counters, so resource://tooling/metrics and
// /metrics agree on the same underlying numbers. The registry's own
// counters are monotonic, so each snapshot adds the delta since the last
// run rather than re-adding the running total.
type MetricsSnapshot struct {
	Registry *mcp.Registry
	Logger   *slog.Logger

	seenCalls  map[string]int64
	seenErrors map[string]int64
}

func (w *MetricsSnapshot) Name() string { return "metrics_snapshot" }

func (w *MetricsSnapshot) Run(_ context.Context) error {
	if w.seenCalls == nil {
		w.seenCalls = make(map[string]int64)
		w.seenErrors = make(map[string]int64)
	}
	for _, stat := range w.Registry.Stats() {
		if delta := stat.Calls - w.seenCalls[stat.Name]; delta > 0 {
			toolCallsTotal.WithLabelValues(stat.Name).Add(float64(delta))
		}
		if delta := stat.Errors - w.seenErrors[stat.Name]; delta > 0 {
			toolErrorsTotal.WithLabelValues(stat.Name).Add(float64(delta))
		}
		w.seenCalls[stat.Name] = stat.Calls
		w.seenErrors[stat.Name] = stat.Errors
	}
	return nil
}
