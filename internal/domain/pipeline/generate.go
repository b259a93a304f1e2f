package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/clarion-chat/clarion/internal/infra/llm"
	"github.com/clarion-chat/clarion/internal/infra/metrics"
)

// defaultMaxIterations caps the tool loop when a rule enables tools but
// does not configure its own limit.
const defaultMaxIterations = 4

// ToolRunner is the slice of the tool registry the generator needs.
type ToolRunner interface {
	Specs() []llm.ToolSpec
	Execute(ctx context.Context, name string, params map[string]any) (string, error)
}

// ToolCallRecord captures one tool invocation for response metadata.
// Not persisted.
type ToolCallRecord struct {
	ToolName  string         `json:"tool_name"`
	Params    map[string]any `json:"params"`
	Result    string         `json:"result"`
	Iteration int            `json:"iteration"`
}

// GenerateResult is the outcome of the generation phase.
type GenerateResult struct {
	Content              string
	Connection           string
	Model                string
	ToolCalls            []ToolCallRecord
	MaxIterationsReached bool
}

// Generator renders the winning rule's prompt and invokes the model,
// optionally looping through tool calls up to the iteration cap.
type Generator struct {
	providers *llm.Registry
	tools     ToolRunner // nil disables the tool path entirely
	log       *zap.Logger
}

// NewGenerator creates a Generator. tools may be nil.
func NewGenerator(providers *llm.Registry, tools ToolRunner, log *zap.Logger) *Generator {
	return &Generator{providers: providers, tools: tools, log: log}
}

// Generate produces the final reply for a matched rule. Model call failures
// propagate to the caller; no fallback content is invented.
func (g *Generator) Generate(ctx context.Context, p Profile, rule *Rule, userMessage string, history []Turn) (*GenerateResult, error) {
	provider, err := g.providers.Get(rule.Connection)
	if err != nil {
		return nil, err
	}

	messages := buildMessages(RenderPrompt(rule.Prompt, p), history, userMessage)
	req := llm.ChatRequest{
		Model:       rule.Model,
		Messages:    messages,
		MaxTokens:   rule.MaxTokens,
		Temperature: rule.Temperature,
	}

	if rule.Tools && g.tools != nil {
		if specs := g.tools.Specs(); len(specs) > 0 {
			req.Tools = specs
			return g.toolLoop(ctx, provider, rule, req)
		}
	}

	metrics.LLMCalls.WithLabelValues(rule.Connection, "generate").Inc()
	resp, err := provider.ChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	return &GenerateResult{
		Content:    resp.Content,
		Connection: rule.Connection,
		Model:      rule.Model,
	}, nil
}

// buildMessages assembles the conversation: rendered prompt as the system
// message, prior turns as alternating user/assistant messages, the current
// user message last.
func buildMessages(systemPrompt string, history []Turn, userMessage string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	for _, turn := range history {
		role := llm.RoleUser
		if turn.Role == TurnBot {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Text})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: userMessage})
}

// toolLoop iterates model calls, executing requested tools between them,
// until the model returns a terminal answer or the iteration cap is hit.
// The cap makes termination unconditional; on exhaustion the last available
// content is returned with MaxIterationsReached set instead of failing.
func (g *Generator) toolLoop(ctx context.Context, provider llm.Provider, rule *Rule, req llm.ChatRequest) (*GenerateResult, error) {
	maxIterations := rule.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	result := &GenerateResult{Connection: rule.Connection, Model: rule.Model}
	iterations := 0

	for iterations < maxIterations {
		iterations++
		metrics.LLMCalls.WithLabelValues(rule.Connection, "generate").Inc()
		resp, err := provider.ChatCompletion(ctx, req)
		if err != nil {
			return nil, err
		}
		result.Content = resp.Content

		if len(resp.ToolCalls) == 0 || resp.FinishReason != llm.FinishToolCalls {
			metrics.ToolLoopIterations.Observe(float64(iterations))
			return result, nil
		}

		// Echo the assistant's tool request, then append one result
		// message per call.
		req.Messages = append(req.Messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			record := g.executeTool(ctx, tc, iterations)
			result.ToolCalls = append(result.ToolCalls, record)
			req.Messages = append(req.Messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    record.Result,
				ToolCallID: tc.ID,
			})
		}
	}

	g.log.Warn("generation: tool loop hit iteration cap",
		zap.String("connection", rule.Connection), zap.Int("max_iterations", maxIterations))
	metrics.ToolLoopIterations.Observe(float64(iterations))
	result.MaxIterationsReached = true
	return result, nil
}

// executeTool runs one requested tool. Malformed argument payloads degrade
// to empty parameters; execution failures surface as the tool result string
// so the loop keeps going.
func (g *Generator) executeTool(ctx context.Context, tc llm.ToolCall, iteration int) ToolCallRecord {
	params := map[string]any{}
	if len(tc.Arguments) > 0 {
		if err := json.Unmarshal(tc.Arguments, &params); err != nil {
			g.log.Warn("generation: malformed tool arguments, using empty params",
				zap.String("tool", tc.Name), zap.Error(err))
			params = map[string]any{}
		}
	}

	result, err := g.tools.Execute(ctx, tc.Name, params)
	if err != nil {
		metrics.ToolExecutions.WithLabelValues(tc.Name, "error").Inc()
		result = fmt.Sprintf("tool %q failed: %v", tc.Name, err)
	} else {
		metrics.ToolExecutions.WithLabelValues(tc.Name, "ok").Inc()
	}
	return ToolCallRecord{
		ToolName:  tc.Name,
		Params:    params,
		Result:    result,
		Iteration: iteration,
	}
}
