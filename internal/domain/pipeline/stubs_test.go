package pipeline

import (
	"context"

	"github.com/clarion-chat/clarion/internal/infra/knowledge"
	"github.com/clarion-chat/clarion/internal/infra/llm"
)

// stubProvider implements llm.Provider with pluggable behavior.
type stubProvider struct {
	chatFn  func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
	embedFn func(ctx context.Context, req llm.EmbedRequest) (*llm.EmbedResponse, error)

	chatCalls  int
	embedCalls int
}

func (s *stubProvider) ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	s.chatCalls++
	if s.chatFn == nil {
		return &llm.ChatResponse{Content: "ok", FinishReason: llm.FinishStop}, nil
	}
	return s.chatFn(ctx, req)
}

func (s *stubProvider) Embed(ctx context.Context, req llm.EmbedRequest) (*llm.EmbedResponse, error) {
	s.embedCalls++
	if s.embedFn == nil {
		return &llm.EmbedResponse{Embeddings: [][]float32{{0.1, 0.2}}}, nil
	}
	return s.embedFn(ctx, req)
}

func (s *stubProvider) HealthCheck(context.Context) error { return nil }

// stubRetriever implements knowledge.Retriever with pluggable behavior.
type stubRetriever struct {
	queryFn func(ctx context.Context, req knowledge.QueryRequest) (*knowledge.QueryResponse, error)

	queried []string // collection names, in call order
}

func (s *stubRetriever) Query(ctx context.Context, req knowledge.QueryRequest) (*knowledge.QueryResponse, error) {
	s.queried = append(s.queried, req.Collection)
	return s.queryFn(ctx, req)
}

func (s *stubRetriever) HealthCheck(context.Context) error { return nil }

// fixedResponse builds a single-result query response at the given distance.
func fixedResponse(text string, distance float64) *knowledge.QueryResponse {
	return &knowledge.QueryResponse{
		Results: []knowledge.QueryResult{{Text: text, Distance: distance}},
	}
}
