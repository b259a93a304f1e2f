package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Provider is the model-agnostic interface for LLM operations.
// Adapters (OpenAI-compatible, Ollama) implement this interface so the
// pipeline is never coupled to a specific vendor.
type Provider interface {
	// ChatCompletion performs a non-streaming chat completion.
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Embed computes dense vector representations for a batch of texts.
	Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error)

	// HealthCheck returns nil if the provider is reachable and operational.
	HealthCheck(ctx context.Context) error
}

// ProviderError carries the upstream HTTP status so callers can map it onto
// their own error surface (429 → retry hint, 5xx → unavailable).
type ProviderError struct {
	Provider   string
	StatusCode int
	RetryAfter time.Duration // non-zero only for rate-limit answers
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// RateLimited reports whether the upstream rejected the call for quota.
func (e *ProviderError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// AsProviderError unwraps err into a *ProviderError if one is present.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
