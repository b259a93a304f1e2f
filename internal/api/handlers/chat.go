package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/clarion-chat/clarion/internal/domain/pipeline"
	"github.com/clarion-chat/clarion/internal/infra/llm"
)

// ChatService is the slice of the pipeline the handler needs.
type ChatService interface {
	Respond(ctx context.Context, in pipeline.ChatInput) (*pipeline.ChatOutput, error)
}

// ChatHandler serves POST /api/v1/chat. defaults holds the configured
// collection selections used when a request names none.
type ChatHandler struct {
	service  ChatService
	defaults []pipeline.Selection
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(service ChatService, defaults []pipeline.Selection) *ChatHandler {
	return &ChatHandler{service: service, defaults: defaults}
}

type chatMessage struct {
	Type string `json:"type"` // "user" or "bot"
	Text string `json:"text"`
}

type chatCollection struct {
	Service             string `json:"service"`
	Name                string `json:"name"`
	EmbeddingConnection string `json:"embedding_connection,omitempty"`
	EmbeddingModel      string `json:"embedding_model,omitempty"`
}

type chatRequest struct {
	Prompt              string           `json:"prompt"`
	PreviousMessages    []chatMessage    `json:"previousMessages,omitempty"`
	SelectedCollections []chatCollection `json:"selectedCollections,omitempty"`
	Topic               string           `json:"topic,omitempty"`
}

type chatResponse struct {
	Response             string                    `json:"response"`
	Topic                string                    `json:"topic"`
	TopicStatus          string                    `json:"topicStatus"`
	Intent               string                    `json:"intent,omitempty"`
	Service              string                    `json:"service"`
	Model                string                    `json:"model"`
	ToolCalls            []pipeline.ToolCallRecord `json:"toolCalls,omitempty"`
	MaxIterationsReached bool                      `json:"maxIterationsReached,omitempty"`
}

// Chat decodes the request, runs the pipeline and maps errors onto the
// public error envelope.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	out, err := h.service.Respond(r.Context(), h.buildChatInput(req))
	if err != nil {
		writeChatError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, chatResponse{
		Response:             out.Response,
		Topic:                out.Topic,
		TopicStatus:          out.TopicStatus,
		Intent:               out.Intent,
		Service:              out.Service,
		Model:                out.Model,
		ToolCalls:            out.ToolCalls,
		MaxIterationsReached: out.MaxIterationsReached,
	})
}

func (h *ChatHandler) buildChatInput(req chatRequest) pipeline.ChatInput {
	history := make([]pipeline.Turn, len(req.PreviousMessages))
	for i, m := range req.PreviousMessages {
		history[i] = pipeline.Turn{Role: m.Type, Text: m.Text}
	}
	selections := h.defaults
	if len(req.SelectedCollections) > 0 {
		selections = make([]pipeline.Selection, len(req.SelectedCollections))
		for i, c := range req.SelectedCollections {
			selections[i] = pipeline.Selection{
				Service:             c.Service,
				Name:                c.Name,
				EmbeddingConnection: c.EmbeddingConnection,
				EmbeddingModel:      c.EmbeddingModel,
			}
		}
	}
	return pipeline.ChatInput{
		Prompt:     req.Prompt,
		History:    history,
		Selections: selections,
		Topic:      req.Topic,
	}
}

// writeChatError maps pipeline failures onto HTTP statuses: rate limits are
// surfaced with a retry hint, other upstream failures become 502, a missing
// rule match is a server-side configuration defect.
func writeChatError(w http.ResponseWriter, err error) {
	if pe, ok := llm.AsProviderError(err); ok {
		if pe.RateLimited() {
			writeRateLimited(w, int(pe.RetryAfter.Seconds()))
			return
		}
		writeError(w, http.StatusBadGateway, "upstream model request failed")
		return
	}
	if errors.Is(err, pipeline.ErrNoRuleMatched) {
		writeError(w, http.StatusInternalServerError, "no response rule matched")
		return
	}
	writeError(w, http.StatusInternalServerError, "chat failed")
}
