// OpenAI-compatible HTTP adapter. Works against any backend exposing the
// /chat/completions and /embeddings endpoints (OpenAI, vLLM, LM Studio,
// OpenRouter, ...) using stdlib net/http.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	mimeJSON          = "application/json"
	headerContentType = "Content-Type"
)

// OpenAIProvider implements Provider against an OpenAI-compatible API.
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	httpClient *http.Client
}

// NewOpenAIProvider creates an adapter with a 60s default timeout.
// model and embedModel are the connection defaults; requests may override.
func NewOpenAIProvider(baseURL, apiKey, model, embedModel string) *OpenAIProvider {
	return &OpenAIProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		embedModel: embedModel,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// ─── internal OpenAI JSON types ──────────────────────────────────────────────

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string         `json:"id,omitempty"`
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON object encoded as a string
}

type openAITool struct {
	Type     string           `json:"type"`
	Function openAIToolSchema `json:"function"`
}

type openAIToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float32         `json:"temperature,omitempty"`
	Tools       []openAITool    `json:"tools,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// ─── Provider implementation ─────────────────────────────────────────────────

// ChatCompletion performs a non-streaming chat via POST /chat/completions.
func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	payload := openAIChatRequest{
		Model:       model,
		Messages:    toOpenAIMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Tools:       toOpenAITools(req.Tools),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	respBody, postErr := p.doPost(ctx, "/chat/completions", body)
	if postErr != nil {
		return nil, postErr
	}
	defer respBody.Close()

	var out openAIChatResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&out); decodeErr != nil {
		return nil, fmt.Errorf("openai: decode chat response: %w", decodeErr)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("openai: chat response has no choices")
	}

	choice := out.Choices[0]
	resp := &ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		ToolCalls:    fromOpenAIToolCalls(choice.Message.ToolCalls),
		Tokens:       out.Usage.TotalTokens,
	}
	if resp.FinishReason == "" {
		resp.FinishReason = FinishStop
	}
	return resp, nil
}

// Embed computes embeddings for a batch of texts via POST /embeddings.
func (p *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	if len(req.Texts) == 0 {
		return &EmbedResponse{Embeddings: [][]float32{}}, nil
	}

	model := req.Model
	if model == "" {
		model = p.embedModel
	}

	body, err := json.Marshal(openAIEmbedRequest{Model: model, Input: req.Texts})
	if err != nil {
		return nil, err
	}

	respBody, postErr := p.doPost(ctx, "/embeddings", body)
	if postErr != nil {
		return nil, postErr
	}
	defer respBody.Close()

	var out openAIEmbedResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&out); decodeErr != nil {
		return nil, fmt.Errorf("openai: decode embed response: %w", decodeErr)
	}

	embeddings := make([][]float32, 0, len(out.Data))
	for _, d := range out.Data {
		embeddings = append(embeddings, d.Embedding)
	}
	return &EmbedResponse{Embeddings: embeddings, Tokens: out.Usage.TotalTokens}, nil
}

// HealthCheck calls GET /models and returns nil if the backend is reachable.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("openai healthcheck: build request: %w", err)
	}
	p.authorize(req)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openai healthcheck: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai healthcheck: status %d", resp.StatusCode)
	}
	return nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func toOpenAIMessages(msgs []Message) []openAIMessage {
	out := make([]openAIMessage, len(msgs))
	for i, m := range msgs {
		om := openAIMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openAIToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: openAIFunction{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out[i] = om
	}
	return out
}

func toOpenAITools(specs []ToolSpec) []openAITool {
	if len(specs) == 0 {
		return nil
	}
	out := make([]openAITool, len(specs))
	for i, s := range specs {
		out[i] = openAITool{
			Type: "function",
			Function: openAIToolSchema{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.InputSchema,
			},
		}
	}
	return out
}

func fromOpenAIToolCalls(calls []openAIToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, len(calls))
	for i, c := range calls {
		out[i] = ToolCall{
			ID:        c.ID,
			Name:      c.Function.Name,
			Arguments: json.RawMessage(c.Function.Arguments),
		}
	}
	return out
}

// doPost sends a POST request to baseURL+path and returns the response body.
// Non-2xx answers become *ProviderError with the upstream status; 429 parses
// the Retry-After header into a retry hint. Caller closes the ReadCloser.
func (p *OpenAIProvider) doPost(ctx context.Context, path string, body []byte) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai post %s: build request: %w", path, err)
	}
	req.Header.Set(headerContentType, mimeJSON)
	p.authorize(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai post %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close() //nolint:errcheck
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ProviderError{
			Provider:   "openai",
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    string(msg),
		}
	}
	return resp.Body, nil
}

func (p *OpenAIProvider) authorize(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
