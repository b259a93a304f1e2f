// Ollama HTTP adapter. Calls the local Ollama REST API using stdlib net/http.
// Endpoints used:
//   - POST /api/chat        non-streaming chat completion (with tools)
//   - POST /api/embeddings  single text embedding
//   - GET  /api/tags        health check (lists available models)
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaProvider implements Provider against a running Ollama instance.
type OllamaProvider struct {
	baseURL    string
	model      string
	embedModel string
	httpClient *http.Client
}

// NewOllamaProvider creates an OllamaProvider with a 60s default timeout.
func NewOllamaProvider(baseURL, model, embedModel string) *OllamaProvider {
	return &OllamaProvider{
		baseURL:    baseURL,
		model:      model,
		embedModel: embedModel,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// ─── internal Ollama JSON types ──────────────────────────────────────────────

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"` // JSON object, not a string
	} `json:"function"`
}

type ollamaChatMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Tools    []openAITool        `json:"tools,omitempty"` // Ollama accepts the OpenAI tool shape
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message    ollamaChatMessage `json:"message"`
	DoneReason string            `json:"done_reason"`
	Done       bool              `json:"done"`
	EvalCount  int               `json:"eval_count"`
}

// ─── Provider implementation ─────────────────────────────────────────────────

// ChatCompletion performs a non-streaming chat via POST /api/chat.
func (p *OllamaProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	msgs := make([]ollamaChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		om := ollamaChatMessage{Role: m.Role, Content: m.Content}
		for _, tc := range m.ToolCalls {
			var otc ollamaToolCall
			otc.Function.Name = tc.Name
			otc.Function.Arguments = tc.Arguments
			om.ToolCalls = append(om.ToolCalls, otc)
		}
		msgs[i] = om
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model:    model,
		Messages: msgs,
		Stream:   false,
		Tools:    toOpenAITools(req.Tools),
		Options:  buildChatOptions(req),
	})
	if err != nil {
		return nil, err
	}

	respBody, postErr := p.doPost(ctx, "/api/chat", body)
	if postErr != nil {
		return nil, postErr
	}
	defer respBody.Close()

	var out ollamaChatResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&out); decodeErr != nil {
		return nil, fmt.Errorf("ollama: decode chat response: %w", decodeErr)
	}

	resp := &ChatResponse{
		Content:      out.Message.Content,
		FinishReason: out.DoneReason,
		Tokens:       out.EvalCount,
	}
	for i, otc := range out.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        fmt.Sprintf("call_%d", i),
			Name:      otc.Function.Name,
			Arguments: otc.Function.Arguments,
		})
	}
	// Ollama reports done_reason "stop" even when the model requested tools.
	if len(resp.ToolCalls) > 0 {
		resp.FinishReason = FinishToolCalls
	}
	if resp.FinishReason == "" {
		resp.FinishReason = FinishStop
	}
	return resp, nil
}

// buildChatOptions converts ChatRequest fields into the Ollama options map.
func buildChatOptions(req ChatRequest) map[string]any {
	opts := map[string]any{}
	if req.Temperature != 0 {
		opts["temperature"] = req.Temperature
	}
	if req.MaxTokens != 0 {
		opts["num_predict"] = req.MaxTokens
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

// Embed computes embeddings for each text via POST /api/embeddings (one call
// per text). Ollama does not support batch embeddings in a single call.
func (p *OllamaProvider) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	if len(req.Texts) == 0 {
		return &EmbedResponse{Embeddings: [][]float32{}}, nil
	}

	model := req.Model
	if model == "" {
		model = p.embedModel
	}

	embeddings := make([][]float32, 0, len(req.Texts))
	for _, text := range req.Texts {
		vec, err := p.embedOne(ctx, model, text)
		if err != nil {
			return nil, fmt.Errorf("ollama embed: %w", err)
		}
		embeddings = append(embeddings, vec)
	}
	return &EmbedResponse{Embeddings: embeddings}, nil
}

// embedOne sends a single /api/embeddings call and returns the vector.
func (p *OllamaProvider) embedOne(ctx context.Context, model, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: model, Prompt: text})
	if err != nil {
		return nil, err
	}

	respBody, postErr := p.doPost(ctx, "/api/embeddings", body)
	if postErr != nil {
		return nil, postErr
	}
	defer respBody.Close()

	var out ollamaEmbedResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&out); decodeErr != nil {
		return nil, fmt.Errorf("decode embed response: %w", decodeErr)
	}
	return out.Embedding, nil
}

// HealthCheck calls GET /api/tags and returns nil if Ollama is reachable.
func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	url := p.baseURL + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("ollama healthcheck: build request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama healthcheck: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama healthcheck: status %d", resp.StatusCode)
	}
	return nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// doPost sends a POST request to baseURL+path and returns the response body.
// Non-2xx answers become *ProviderError. Caller closes the ReadCloser.
func (p *OllamaProvider) doPost(ctx context.Context, path string, body []byte) (io.ReadCloser, error) {
	url := p.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama post %s: build request: %w", path, err)
	}
	req.Header.Set(headerContentType, mimeJSON)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama post %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close() //nolint:errcheck
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ProviderError{
			Provider:   "ollama",
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    string(msg),
		}
	}
	return resp.Body, nil
}
