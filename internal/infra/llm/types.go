// Package llm defines the model-agnostic LLM provider abstraction.
// All types here are shared between the provider interface and adapters.
package llm

import "encoding/json"

// Roles used in a conversation.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Finish reasons reported by a chat completion.
const (
	FinishStop      = "stop"
	FinishLength    = "length"
	FinishToolCalls = "tool_calls"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message represents a single turn in a conversation.
// Assistant turns that request tools carry ToolCalls; tool-result turns use
// RoleTool with the matching ToolCallID.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolSpec advertises one callable tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema json.RawMessage // JSON Schema for the parameters object
}

// ChatRequest is the input for a non-streaming chat completion.
type ChatRequest struct {
	// Model overrides the connection default when non-empty.
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
	Tools       []ToolSpec
}

// ChatResponse is the output from a non-streaming chat completion.
type ChatResponse struct {
	Content      string
	FinishReason string // FinishStop | FinishLength | FinishToolCalls
	ToolCalls    []ToolCall
	Tokens       int // total tokens consumed (prompt + completion), 0 if unknown
}

// EmbedRequest is the input for a batch embedding call.
type EmbedRequest struct {
	// Model overrides the connection default when non-empty.
	Model string
	Texts []string
}

// EmbedResponse is the output from a batch embedding call.
// Embeddings[i] corresponds to Texts[i] in the request.
type EmbedResponse struct {
	Embeddings [][]float32
	Tokens     int
}
