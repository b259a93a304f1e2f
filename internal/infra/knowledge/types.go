// Package knowledge defines the retrieval abstraction over external vector
// search services. A Retriever answers similarity queries against named
// collections; the HTTP client speaks the collection query API.
package knowledge

import "context"

// QueryRequest is a similarity query against one collection.
type QueryRequest struct {
	// Text is the query text. Services that embed server-side use it
	// directly; otherwise QueryEmbedding carries the precomputed vector.
	Text           string    `json:"text,omitempty"`
	Collection     string    `json:"-"`
	TopK           int       `json:"top_k,omitempty"`
	QueryEmbedding []float32 `json:"query_embedding,omitempty"`
}

// QueryResult is one retrieved document with its similarity distance.
// Lower distance means closer.
type QueryResult struct {
	Text     string            `json:"text"`
	Title    string            `json:"title,omitempty"`
	Source   string            `json:"source,omitempty"`
	Distance float64           `json:"distance"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CollectionMetadata is per-collection configuration reported by the service.
// Threshold fields override the service-level defaults when present.
type CollectionMetadata struct {
	Description      string   `json:"description,omitempty"`
	MatchThreshold   *float64 `json:"match_threshold,omitempty"`
	PartialThreshold *float64 `json:"partial_threshold,omitempty"`
}

// QueryResponse is the full answer to a collection query.
type QueryResponse struct {
	Results  []QueryResult      `json:"results"`
	Metadata CollectionMetadata `json:"collection_metadata"`
}

// Retriever is the interface the pipeline depends on for retrieval.
type Retriever interface {
	// Query runs a similarity search against the named collection.
	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)

	// HealthCheck returns nil if the service is reachable.
	HealthCheck(ctx context.Context) error
}
