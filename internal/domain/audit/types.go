// Package audit persists an append-only trail of processed chat requests.
package audit

import "time"

// Outcomes recorded for a chat event.
const (
	OutcomeOK          = "ok"
	OutcomeNoRule      = "no_rule"
	OutcomeProviderErr = "provider_error"
	OutcomeRateLimited = "rate_limited"
)

// ChatEvent is one processed chat request. Written once, never updated.
type ChatEvent struct {
	ID          string
	TraceID     string
	Topic       string
	TopicStatus string
	RAGResult   string
	Intent      string
	Service     string
	Collection  string
	RuleIndex   int
	Connection  string
	Model       string
	ToolCalls   int
	LatencyMS   int64
	Outcome     string
	Error       string
	CreatedAt   time.Time
}
