package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clarion-chat/clarion/internal/infra/llm"
)

// stubTools implements ToolRunner.
type stubTools struct {
	executeFn func(ctx context.Context, name string, params map[string]any) (string, error)
	calls     []string
}

func (s *stubTools) Specs() []llm.ToolSpec {
	return []llm.ToolSpec{{Name: "current_time", InputSchema: json.RawMessage(`{"type":"object"}`)}}
}

func (s *stubTools) Execute(ctx context.Context, name string, params map[string]any) (string, error) {
	s.calls = append(s.calls, name)
	if s.executeFn == nil {
		return "result", nil
	}
	return s.executeFn(ctx, name, params)
}

func newGenerator(p llm.Provider, tools ToolRunner) *Generator {
	return NewGenerator(llm.NewRegistry(map[string]llm.Provider{"conn": p}), tools, zap.NewNop())
}

func basicRule() *Rule {
	return &Rule{Connection: "conn", Model: "m", Prompt: "You answer about {{intent}}.", MaxTokens: 100}
}

func TestGenerateStandardPath(t *testing.T) {
	var got llm.ChatRequest
	provider := &stubProvider{
		chatFn: func(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			got = req
			return &llm.ChatResponse{Content: "answer", FinishReason: llm.FinishStop}, nil
		},
	}
	g := newGenerator(provider, nil)

	history := []Turn{{Role: TurnUser, Text: "earlier"}, {Role: TurnBot, Text: "reply"}}
	res, err := g.Generate(context.Background(), Profile{Intent: "soups"}, basicRule(), "current question", history)
	require.NoError(t, err)
	assert.Equal(t, "answer", res.Content)
	assert.Equal(t, "conn", res.Connection)
	assert.Equal(t, "m", res.Model)
	assert.False(t, res.MaxIterationsReached)

	require.Len(t, got.Messages, 4)
	assert.Equal(t, llm.RoleSystem, got.Messages[0].Role)
	assert.Equal(t, "You answer about soups.", got.Messages[0].Content)
	assert.Equal(t, llm.RoleUser, got.Messages[1].Role)
	assert.Equal(t, llm.RoleAssistant, got.Messages[2].Role)
	assert.Equal(t, "current question", got.Messages[3].Content)
	assert.Empty(t, got.Tools)
}

func TestGenerateErrorPropagates(t *testing.T) {
	provider := &stubProvider{
		chatFn: func(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
			return nil, errors.New("upstream down")
		},
	}
	g := newGenerator(provider, nil)

	_, err := g.Generate(context.Background(), Profile{}, basicRule(), "q", nil)
	assert.Error(t, err)
}

func TestGenerateToolLoopExecutesAndFinishes(t *testing.T) {
	call := 0
	provider := &stubProvider{
		chatFn: func(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			call++
			if call == 1 {
				return &llm.ChatResponse{
					FinishReason: llm.FinishToolCalls,
					ToolCalls:    []llm.ToolCall{{ID: "1", Name: "current_time", Arguments: json.RawMessage(`{}`)}},
				}, nil
			}
			// The tool result must have been appended to the conversation.
			last := req.Messages[len(req.Messages)-1]
			if last.Role != llm.RoleTool {
				return nil, errors.New("missing tool result message")
			}
			return &llm.ChatResponse{Content: "final answer", FinishReason: llm.FinishStop}, nil
		},
	}
	tools := &stubTools{}
	rule := basicRule()
	rule.Tools = true

	g := newGenerator(provider, tools)
	res, err := g.Generate(context.Background(), Profile{}, rule, "what time is it?", nil)
	require.NoError(t, err)
	assert.Equal(t, "final answer", res.Content)
	assert.False(t, res.MaxIterationsReached)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "current_time", res.ToolCalls[0].ToolName)
	assert.Equal(t, 1, res.ToolCalls[0].Iteration)
	assert.Equal(t, []string{"current_time"}, tools.calls)
}

func TestGenerateToolLoopHitsIterationCap(t *testing.T) {
	provider := &stubProvider{
		chatFn: func(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
			return &llm.ChatResponse{
				Content:      "still working",
				FinishReason: llm.FinishToolCalls,
				ToolCalls:    []llm.ToolCall{{ID: "1", Name: "current_time"}},
			}, nil
		},
	}
	rule := basicRule()
	rule.Tools = true
	rule.MaxIterations = 3

	g := newGenerator(provider, &stubTools{})
	res, err := g.Generate(context.Background(), Profile{}, rule, "q", nil)
	require.NoError(t, err)
	assert.True(t, res.MaxIterationsReached)
	assert.Equal(t, "still working", res.Content)
	assert.Equal(t, 3, provider.chatCalls)
	assert.Len(t, res.ToolCalls, 3)
}

func TestGenerateToolLoopDefaultCap(t *testing.T) {
	provider := &stubProvider{
		chatFn: func(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
			return &llm.ChatResponse{
				FinishReason: llm.FinishToolCalls,
				ToolCalls:    []llm.ToolCall{{ID: "1", Name: "current_time"}},
			}, nil
		},
	}
	rule := basicRule()
	rule.Tools = true

	g := newGenerator(provider, &stubTools{})
	res, err := g.Generate(context.Background(), Profile{}, rule, "q", nil)
	require.NoError(t, err)
	assert.True(t, res.MaxIterationsReached)
	assert.Equal(t, defaultMaxIterations, provider.chatCalls)
}

func TestGenerateMalformedToolArgumentsFallBackToEmpty(t *testing.T) {
	call := 0
	provider := &stubProvider{
		chatFn: func(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
			call++
			if call == 1 {
				return &llm.ChatResponse{
					FinishReason: llm.FinishToolCalls,
					ToolCalls:    []llm.ToolCall{{ID: "1", Name: "current_time", Arguments: json.RawMessage(`not json`)}},
				}, nil
			}
			return &llm.ChatResponse{Content: "done", FinishReason: llm.FinishStop}, nil
		},
	}
	var gotParams map[string]any
	tools := &stubTools{
		executeFn: func(_ context.Context, _ string, params map[string]any) (string, error) {
			gotParams = params
			return "r", nil
		},
	}
	rule := basicRule()
	rule.Tools = true

	g := newGenerator(provider, tools)
	res, err := g.Generate(context.Background(), Profile{}, rule, "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "done", res.Content)
	assert.NotNil(t, gotParams)
	assert.Empty(t, gotParams)
}

func TestGenerateToolFailureSurfacesAsResult(t *testing.T) {
	call := 0
	provider := &stubProvider{
		chatFn: func(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			call++
			if call == 1 {
				return &llm.ChatResponse{
					FinishReason: llm.FinishToolCalls,
					ToolCalls:    []llm.ToolCall{{ID: "1", Name: "current_time"}},
				}, nil
			}
			return &llm.ChatResponse{Content: "done", FinishReason: llm.FinishStop}, nil
		},
	}
	tools := &stubTools{
		executeFn: func(context.Context, string, map[string]any) (string, error) {
			return "", errors.New("clock broken")
		},
	}
	rule := basicRule()
	rule.Tools = true

	g := newGenerator(provider, tools)
	res, err := g.Generate(context.Background(), Profile{}, rule, "q", nil)
	require.NoError(t, err)
	require.Len(t, res.ToolCalls, 1)
	assert.Contains(t, res.ToolCalls[0].Result, "clock broken")
}

func TestGenerateToolsDisabledWithoutRegistry(t *testing.T) {
	provider := &stubProvider{
		chatFn: func(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			if len(req.Tools) > 0 {
				return nil, errors.New("tools should not be advertised")
			}
			return &llm.ChatResponse{Content: "plain", FinishReason: llm.FinishStop}, nil
		},
	}
	rule := basicRule()
	rule.Tools = true

	g := newGenerator(provider, nil)
	res, err := g.Generate(context.Background(), Profile{}, rule, "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", res.Content)
}
