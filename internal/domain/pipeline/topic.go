package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clarion-chat/clarion/internal/infra/llm"
	"github.com/clarion-chat/clarion/internal/infra/metrics"
)

// Topic statuses.
const (
	TopicContinuation = "continuation"
	TopicNewTopic     = "new_topic"
)

const (
	// historyWindow bounds how many prior turns feed the topic prompt.
	historyWindow = 6
	// compressThreshold is the length above which an assistant turn is
	// replaced with a placeholder referencing the prior topic.
	compressThreshold = 400
	// topicMaxFallbackLen truncates the raw message when used as a topic.
	topicMaxFallbackLen = 40
)

// degenerateTopics are summaries too generic to be useful.
var degenerateTopics = map[string]struct{}{
	"":             {},
	"general":      {},
	"conversation": {},
	"chat":         {},
	"unknown":      {},
	"n/a":          {},
}

// TopicResult is the outcome of topic identification.
type TopicResult struct {
	Topic  string
	Status string // TopicContinuation or TopicNewTopic
}

// TopicTracker decides whether the conversation topic continues or changes.
// It never fails: every degraded path falls back to a usable topic.
type TopicTracker struct {
	providers *llm.Registry
	log       *zap.Logger
}

// NewTopicTracker creates a TopicTracker backed by the provider registry.
func NewTopicTracker(providers *llm.Registry, log *zap.Logger) *TopicTracker {
	return &TopicTracker{providers: providers, log: log}
}

type topicReply struct {
	Status string `json:"status"`
	Topic  string `json:"topic"`
}

// Identify resolves the current conversation topic. The very first turn of a
// conversation always yields status new_topic regardless of model output.
func (t *TopicTracker) Identify(ctx context.Context, userMessage string, history []Turn, currentTopic, connection string) TopicResult {
	firstTurn := len(history) == 0

	provider, err := t.providers.Get(connection)
	if err != nil {
		t.log.Warn("topic: connection unavailable, falling back to raw message",
			zap.String("connection", connection), zap.Error(err))
		return TopicResult{Topic: strings.TrimSpace(userMessage), Status: TopicNewTopic}
	}

	prompt := buildTopicPrompt(userMessage, history, currentTopic)
	metrics.LLMCalls.WithLabelValues(connection, "topic").Inc()
	resp, err := provider.ChatCompletion(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: topicSystemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens: 120,
	})
	if err != nil {
		t.log.Warn("topic: model call failed, falling back to raw message", zap.Error(err))
		return TopicResult{Topic: strings.TrimSpace(userMessage), Status: TopicNewTopic}
	}

	result := parseTopicReply(resp.Content, userMessage, currentTopic)
	if firstTurn {
		result.Status = TopicNewTopic
	}
	return result
}

const topicSystemPrompt = `You track the topic of a conversation. Given the latest user message and recent history, answer with a single JSON object:
{"status": "continuation" or "new_topic", "topic": "short noun phrase, at most 8 words"}
Answer with the JSON object only.`

// buildTopicPrompt assembles a bounded context window. Assistant turns longer
// than compressThreshold are replaced with a placeholder so the reasoning
// input stays small.
func buildTopicPrompt(userMessage string, history []Turn, currentTopic string) string {
	var b strings.Builder
	if currentTopic != "" {
		fmt.Fprintf(&b, "Current topic: %s\n", currentTopic)
	}

	window := history
	if len(window) > historyWindow {
		window = window[len(window)-historyWindow:]
	}
	if len(window) > 0 {
		b.WriteString("Recent turns:\n")
		for _, turn := range window {
			text := turn.Text
			if turn.Role == TurnBot && len(text) > compressThreshold {
				text = fmt.Sprintf("[assistant reply about %q omitted]", currentTopic)
			}
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, text)
		}
	}
	fmt.Fprintf(&b, "Latest user message: %s", userMessage)
	return b.String()
}

// parseTopicReply extracts the structured answer from free-form model output.
// On any parse failure the raw output is treated as the topic summary with
// status continuation.
func parseTopicReply(content, userMessage, currentTopic string) TopicResult {
	status := TopicContinuation
	topic := strings.TrimSpace(content)

	if raw, ok := ExtractJSON(content); ok {
		var reply topicReply
		if err := json.Unmarshal(raw, &reply); err == nil {
			if reply.Status == TopicNewTopic {
				status = TopicNewTopic
			}
			topic = strings.TrimSpace(reply.Topic)
		}
	}

	if _, degenerate := degenerateTopics[strings.ToLower(topic)]; degenerate {
		topic = fallbackTopic(userMessage, currentTopic)
	}
	return TopicResult{Topic: topic, Status: status}
}

// fallbackTopic prefers the previous topic, then the raw message truncated.
// Truncation counts runes so multi-byte text is never cut mid-character.
func fallbackTopic(userMessage, currentTopic string) string {
	if currentTopic != "" {
		return currentTopic
	}
	msg := strings.TrimSpace(userMessage)
	if runes := []rune(msg); len(runes) > topicMaxFallbackLen {
		msg = string(runes[:topicMaxFallbackLen])
	}
	return msg
}
