// Package tool holds the in-memory registry of tools the generator may call
// during a response. Definitions carry a minimal JSON Schema that arguments
// are validated against before execution.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/clarion-chat/clarion/internal/infra/llm"
)

var (
	ErrToolAlreadyRegistered = errors.New("tool already registered")
	ErrToolNotRegistered     = errors.New("tool not registered")
	ErrParamsValidation      = errors.New("tool params validation failed")
)

// Executor runs one tool invocation and returns its textual result.
type Executor interface {
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, params map[string]any) (string, error)

func (f ExecutorFunc) Execute(ctx context.Context, params map[string]any) (string, error) {
	return f(ctx, params)
}

// Definition describes one registered tool.
type Definition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Registry maps tool names to their definitions and executors. Populated at
// startup, read-only afterwards.
type Registry struct {
	definitions map[string]Definition
	executors   map[string]Executor
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		definitions: make(map[string]Definition),
		executors:   make(map[string]Executor),
	}
}

// Register adds a tool under def.Name. An empty input schema defaults to an
// object schema accepting no properties.
func (r *Registry) Register(def Definition, executor Executor) error {
	name := strings.TrimSpace(def.Name)
	if name == "" || executor == nil {
		return ErrToolNotRegistered
	}
	if _, exists := r.executors[name]; exists {
		return ErrToolAlreadyRegistered
	}

	if len(def.InputSchema) == 0 {
		def.InputSchema = json.RawMessage(`{"type":"object","additionalProperties":false,"properties":{}}`)
	}
	if !json.Valid(def.InputSchema) {
		return fmt.Errorf("tool %q: input schema must be valid json", name)
	}

	def.Name = name
	r.definitions[name] = def
	r.executors[name] = executor
	return nil
}

// Len reports how many tools are registered.
func (r *Registry) Len() int {
	return len(r.executors)
}

// Specs returns the registered tools as model-facing specs, sorted by name.
func (r *Registry) Specs() []llm.ToolSpec {
	names := make([]string, 0, len(r.definitions))
	for name := range r.definitions {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]llm.ToolSpec, 0, len(names))
	for _, name := range names {
		def := r.definitions[name]
		out = append(out, llm.ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		})
	}
	return out
}

// Execute validates params against the tool's schema and runs the executor.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (string, error) {
	executor, ok := r.executors[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrToolNotRegistered, name)
	}
	if params == nil {
		params = map[string]any{}
	}

	var schema map[string]any
	if err := json.Unmarshal(r.definitions[name].InputSchema, &schema); err != nil {
		return "", fmt.Errorf("%w: invalid registered schema", ErrParamsValidation)
	}
	if err := validateAgainstMinimalSchema(params, schema); err != nil {
		return "", err
	}

	return executor.Execute(ctx, params)
}

// validateAgainstMinimalSchema enforces the subset of JSON Schema the
// registry understands: required keys and additionalProperties.
func validateAgainstMinimalSchema(input, schema map[string]any) error {
	for _, key := range extractStringSlice(schema["required"]) {
		if _, ok := input[key]; !ok {
			return fmt.Errorf("%w: missing required field %q", ErrParamsValidation, key)
		}
	}

	allowAdditional := true
	if v, ok := schema["additionalProperties"].(bool); ok {
		allowAdditional = v
	}
	if allowAdditional {
		return nil
	}

	allowedProps := map[string]struct{}{}
	if props, ok := schema["properties"].(map[string]any); ok {
		for key := range props {
			allowedProps[key] = struct{}{}
		}
	}
	for key := range input {
		if _, ok := allowedProps[key]; !ok {
			return fmt.Errorf("%w: unknown field %q", ErrParamsValidation, key)
		}
	}
	return nil
}

func extractStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
