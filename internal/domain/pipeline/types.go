// Package pipeline implements the multi-phase chat request pipeline:
// topic tracking, retrieval collection, intent classification, profile
// assembly, ordered rule matching and response generation.
package pipeline

// Turn is one prior conversation turn as supplied by the caller.
type Turn struct {
	Role string // "user" or "bot"
	Text string
}

// Turn roles.
const (
	TurnUser = "user"
	TurnBot  = "bot"
)

// Selection identifies one knowledge collection to query, with the optional
// embedding configuration used to vectorize the query client-side.
type Selection struct {
	Service             string
	Name                string
	EmbeddingConnection string
	EmbeddingModel      string
}

// Document is one unit of retrieved context. Owned by the retrieval phase,
// consumed read-only downstream.
type Document struct {
	Text       string
	Title      string
	Source     string
	Metadata   map[string]string
	Collection string
}

// RetrievalItem is the outcome of querying one collection: its documents and
// the minimum distance across them.
type RetrievalItem struct {
	Service     string
	Collection  string
	Documents   []Document
	Distance    float64
	Description string
}

// Identifier returns the "{service}/{collection}" form used as an ad-hoc
// intent category.
func (it RetrievalItem) Identifier() string {
	return it.Service + "/" + it.Collection
}

// EnvelopeResult is the three-tier confidence classification of a retrieval
// round.
type EnvelopeResult string

const (
	ResultMatch   EnvelopeResult = "match"
	ResultPartial EnvelopeResult = "partial"
	ResultNone    EnvelopeResult = "none"
)

// Envelope is the normalized outcome of the retrieval phase. At most one of
// Match and Partials is populated: a confident match short-circuits the
// collection loop, so a request can never produce both.
type Envelope struct {
	Result   EnvelopeResult
	Match    *RetrievalItem
	Partials []RetrievalItem
}

// Profile is the canonical per-request context object. Built once after the
// retrieval and intent phases, immutable thereafter.
type Profile struct {
	RAGResults EnvelopeResult
	Intent     string // empty when classification yielded nothing
	Service    string
	Collection string
	Documents  []Document
}
