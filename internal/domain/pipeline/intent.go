package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/clarion-chat/clarion/internal/infra/config"
	"github.com/clarion-chat/clarion/internal/infra/llm"
	"github.com/clarion-chat/clarion/internal/infra/metrics"
)

// intentOther is the implicit catch-all category.
const intentOther = "other"

// Classifier decides the categorical intent of a request.
// An empty result means undefined intent; classification never hard-fails
// because intent is optional context downstream.
type Classifier struct {
	providers *llm.Registry
	log       *zap.Logger
}

// NewClassifier creates a Classifier backed by the provider registry.
func NewClassifier(providers *llm.Registry, log *zap.Logger) *Classifier {
	return &Classifier{providers: providers, log: log}
}

// Classify resolves the intent for a request. Fast path: a confident
// retrieval match yields "{service}/{collection}" with no model call.
// Otherwise one classification prompt runs over the configured categories
// plus every partial-match collection plus "other"; an "other" answer is
// refined to the closest partial match when one exists.
func (c *Classifier) Classify(ctx context.Context, topic string, env Envelope, cfg config.IntentConfig) string {
	if env.Result == ResultMatch {
		return env.Match.Identifier()
	}

	categories := buildCategories(cfg, env.Partials)
	if len(categories) == 0 {
		return refineOther(env.Partials)
	}

	provider, err := c.providers.Get(cfg.Connection)
	if err != nil {
		c.log.Warn("intent: connection unavailable", zap.String("connection", cfg.Connection), zap.Error(err))
		return refineOther(env.Partials)
	}

	metrics.LLMCalls.WithLabelValues(cfg.Connection, "intent").Inc()
	resp, err := provider.ChatCompletion(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: buildIntentPrompt(categories)},
			{Role: llm.RoleUser, Content: topic},
		},
		MaxTokens: 40,
	})
	if err != nil {
		c.log.Warn("intent: model call failed", zap.Error(err))
		return refineOther(env.Partials)
	}

	answer := strings.ToLower(strings.TrimSpace(resp.Content))
	answer = strings.Trim(answer, `"'.`)
	for _, cat := range categories {
		if answer == strings.ToLower(cat.name) {
			if cat.name == intentOther {
				return refineOther(env.Partials)
			}
			return cat.name
		}
	}

	c.log.Debug("intent: unrecognized answer", zap.String("answer", answer))
	return refineOther(env.Partials)
}

type category struct {
	name        string
	description string
}

// buildCategories merges the configured intents, the partial-match
// collections as ad-hoc categories, and the implicit "other".
func buildCategories(cfg config.IntentConfig, partials []RetrievalItem) []category {
	if len(cfg.Categories) == 0 && len(partials) == 0 {
		return nil
	}

	names := make([]string, 0, len(cfg.Categories))
	for name := range cfg.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]category, 0, len(names)+len(partials)+1)
	for _, name := range names {
		out = append(out, category{name: name, description: cfg.Categories[name]})
	}
	for _, p := range partials {
		out = append(out, category{name: p.Identifier(), description: p.Description})
	}
	out = append(out, category{name: intentOther, description: "none of the above"})
	return out
}

func buildIntentPrompt(categories []category) string {
	var b strings.Builder
	b.WriteString("Classify the user's topic into exactly one of these categories. Answer with the category name only.\n")
	for _, cat := range categories {
		fmt.Fprintf(&b, "- %s: %s\n", cat.name, cat.description)
	}
	return b.String()
}

// refineOther promotes the closest partial match instead of accepting a
// generic miss. With no partials the intent stays undefined.
func refineOther(partials []RetrievalItem) string {
	if len(partials) == 0 {
		return ""
	}
	closest := partials[0]
	for _, p := range partials[1:] {
		if p.Distance < closest.Distance {
			closest = p
		}
	}
	return closest.Identifier()
}
