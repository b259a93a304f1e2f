package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/clarion-chat/clarion/internal/infra/knowledge"
)

// RegisterBuiltins adds the built-in tools to the registry. retrievers may
// be nil, in which case only current_time is registered.
func RegisterBuiltins(r *Registry, retrievers *knowledge.Registry) error {
	if err := r.Register(Definition{
		Name:        "current_time",
		Description: "Returns the current date and time in UTC.",
		InputSchema: json.RawMessage(`{"type":"object","additionalProperties":false,"properties":{}}`),
	}, ExecutorFunc(currentTime)); err != nil {
		return err
	}

	if retrievers == nil {
		return nil
	}
	return r.Register(Definition{
		Name:        "knowledge_lookup",
		Description: "Searches a knowledge collection for documents related to a query.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"additionalProperties": false,
			"required": ["service", "collection", "query"],
			"properties": {
				"service":    {"type": "string", "description": "Knowledge service name"},
				"collection": {"type": "string", "description": "Collection name"},
				"query":      {"type": "string", "description": "Search query text"}
			}
		}`),
	}, &knowledgeLookup{retrievers: retrievers})
}

func currentTime(_ context.Context, _ map[string]any) (string, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

type knowledgeLookup struct {
	retrievers *knowledge.Registry
}

func (t *knowledgeLookup) Execute(ctx context.Context, params map[string]any) (string, error) {
	service, _ := params["service"].(string)
	collection, _ := params["collection"].(string)
	query, _ := params["query"].(string)
	if service == "" || collection == "" || query == "" {
		return "", fmt.Errorf("%w: service, collection and query must be non-empty strings", ErrParamsValidation)
	}

	retriever, err := t.retrievers.Get(service)
	if err != nil {
		return "", err
	}
	resp, err := retriever.Query(ctx, knowledge.QueryRequest{
		Text:       query,
		Collection: collection,
		TopK:       3,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "no documents found", nil
	}

	texts := make([]string, len(resp.Results))
	for i, res := range resp.Results {
		texts[i] = res.Text
	}
	return strings.Join(texts, "\n"), nil
}
