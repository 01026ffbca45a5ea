// Package metrics registers the Prometheus instruments on the default
// registry; the HTTP server exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsTotal counts completed turns by outcome: ok, degraded, error.
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bancoagil",
		Name:      "turns_total",
		Help:      "Completed conversation turns by outcome.",
	}, []string{"outcome"})

	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bancoagil",
		Name:      "turn_duration_seconds",
		Help:      "Wall time of a full turn, oracle calls included.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	// ToolCallsTotal counts tool executions by tool name and status
	// (ok or failed).
	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bancoagil",
		Name:      "tool_calls_total",
		Help:      "Tool executions by tool and status.",
	}, []string{"tool", "status"})

	// OracleFallbacksTotal counts oracle calls that exhausted their
	// retries and fell back to a default answer or apology.
	OracleFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bancoagil",
		Name:      "oracle_fallbacks_total",
		Help:      "Oracle calls degraded after retry exhaustion, by role.",
	}, []string{"role"})

	// RoutingLoopAbortsTotal counts turns cut off by the hop limit.
	RoutingLoopAbortsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bancoagil",
		Name:      "routing_loop_aborts_total",
		Help:      "Turns aborted because the routing hop limit was reached.",
	})
)
