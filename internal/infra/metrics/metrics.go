// Package metrics declares the Prometheus instruments for the chat pipeline.
// All collectors register themselves on the default registry via promauto
// and are served from the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChatRequests counts processed chat requests by final outcome
	// (ok, no_rule, provider_error, rate_limited).
	ChatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clarion",
		Name:      "chat_requests_total",
		Help:      "Processed chat requests by outcome.",
	}, []string{"outcome"})

	// ChatDuration observes end-to-end pipeline latency in seconds.
	ChatDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "clarion",
		Name:      "chat_duration_seconds",
		Help:      "End-to-end chat pipeline latency.",
		Buckets:   prometheus.DefBuckets,
	})

	// RetrievalQueries counts collection queries by service and tier
	// (match, partial, none, error).
	RetrievalQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clarion",
		Name:      "retrieval_queries_total",
		Help:      "Knowledge collection queries by service and result tier.",
	}, []string{"service", "result"})

	// LLMCalls counts upstream model calls by connection and phase
	// (topic, intent, embed, generate).
	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clarion",
		Name:      "llm_calls_total",
		Help:      "Upstream model calls by connection and pipeline phase.",
	}, []string{"connection", "phase"})

	// ToolExecutions counts tool invocations by tool name and status
	// (ok, error).
	ToolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clarion",
		Name:      "tool_executions_total",
		Help:      "Tool invocations during response generation.",
	}, []string{"tool", "status"})

	// ToolLoopIterations observes how many tool iterations a generation used.
	ToolLoopIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "clarion",
		Name:      "tool_loop_iterations",
		Help:      "Tool loop iterations per generation.",
		Buckets:   []float64{0, 1, 2, 3, 4, 6, 8},
	})
)
