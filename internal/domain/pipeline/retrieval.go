package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/clarion-chat/clarion/internal/infra/config"
	"github.com/clarion-chat/clarion/internal/infra/knowledge"
	"github.com/clarion-chat/clarion/internal/infra/llm"
	"github.com/clarion-chat/clarion/internal/infra/metrics"
)

// Collector queries the selected knowledge collections in order and
// classifies each result by distance into match, partial or none.
type Collector struct {
	retrievers *knowledge.Registry
	providers  *llm.Registry
	services   map[string]config.KnowledgeService
	log        *zap.Logger
}

// NewCollector creates a Collector. services carries the per-service
// thresholds and top-k settings from configuration.
func NewCollector(retrievers *knowledge.Registry, providers *llm.Registry, services map[string]config.KnowledgeService, log *zap.Logger) *Collector {
	return &Collector{
		retrievers: retrievers,
		providers:  providers,
		services:   services,
		log:        log,
	}
}

// Collect runs the retrieval round. On the very first turn (no prior topic)
// the raw user message is the query text; afterwards the tracked topic is
// used, avoiding re-embedding accumulated context noise on a fresh
// conversation. Selections are queried sequentially: the first confident
// match short-circuits the loop, partials accumulate, errors skip the
// collection. An embedding cache scoped to this call avoids recomputing an
// identical query vector for collections sharing a connection/model pair.
func (c *Collector) Collect(ctx context.Context, userMessage, topic, priorTopic string, selections []Selection) Envelope {
	queryText := topic
	if priorTopic == "" {
		queryText = userMessage
	}

	embedCache := map[string][]float32{}
	var partials []RetrievalItem

	for _, sel := range selections {
		svc, ok := c.services[sel.Service]
		if !ok {
			c.log.Warn("retrieval: unknown service, skipping collection",
				zap.String("service", sel.Service), zap.String("collection", sel.Name))
			continue
		}

		retriever, err := c.retrievers.Get(sel.Service)
		if err != nil {
			c.log.Warn("retrieval: service unavailable, skipping collection",
				zap.String("collection", sel.Name), zap.Error(err))
			continue
		}

		req := knowledge.QueryRequest{
			Text:       queryText,
			Collection: sel.Name,
			TopK:       svc.TopK,
		}
		if sel.EmbeddingConnection != "" {
			vec, embedErr := c.queryEmbedding(ctx, embedCache, sel, queryText)
			if embedErr != nil {
				c.log.Warn("retrieval: embedding failed, skipping collection",
					zap.String("collection", sel.Name), zap.Error(embedErr))
				metrics.RetrievalQueries.WithLabelValues(sel.Service, "error").Inc()
				continue
			}
			req.QueryEmbedding = vec
		}

		resp, err := retriever.Query(ctx, req)
		if err != nil {
			c.log.Warn("retrieval: query failed, skipping collection",
				zap.String("service", sel.Service), zap.String("collection", sel.Name), zap.Error(err))
			metrics.RetrievalQueries.WithLabelValues(sel.Service, "error").Inc()
			continue
		}
		if len(resp.Results) == 0 {
			metrics.RetrievalQueries.WithLabelValues(sel.Service, "none").Inc()
			continue
		}

		item := buildItem(sel, resp)
		tier := classify(item.Distance, svc, resp.Metadata)
		metrics.RetrievalQueries.WithLabelValues(sel.Service, string(tier)).Inc()

		switch tier {
		case ResultMatch:
			// First confident match wins; later collections are never queried.
			return Envelope{Result: ResultMatch, Match: &item}
		case ResultPartial:
			partials = append(partials, item)
		}
	}

	if len(partials) > 0 {
		return Envelope{Result: ResultPartial, Partials: partials}
	}
	return Envelope{Result: ResultNone}
}

// queryEmbedding resolves the query vector for a selection, caching by
// connection/model pair for the duration of one Collect call.
func (c *Collector) queryEmbedding(ctx context.Context, cache map[string][]float32, sel Selection, text string) ([]float32, error) {
	key := sel.EmbeddingConnection + "/" + sel.EmbeddingModel
	if vec, ok := cache[key]; ok {
		return vec, nil
	}

	provider, err := c.providers.Get(sel.EmbeddingConnection)
	if err != nil {
		return nil, err
	}
	metrics.LLMCalls.WithLabelValues(sel.EmbeddingConnection, "embed").Inc()
	resp, err := provider.Embed(ctx, llm.EmbedRequest{Model: sel.EmbeddingModel, Texts: []string{text}})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, errEmptyEmbedding
	}

	cache[key] = resp.Embeddings[0]
	return resp.Embeddings[0], nil
}

var errEmptyEmbedding = errors.New("empty embedding response")

// buildItem converts a query response into a RetrievalItem, computing the
// minimum distance across the returned documents.
func buildItem(sel Selection, resp *knowledge.QueryResponse) RetrievalItem {
	docs := make([]Document, len(resp.Results))
	minDistance := resp.Results[0].Distance
	for i, r := range resp.Results {
		docs[i] = Document{
			Text:       r.Text,
			Title:      r.Title,
			Source:     r.Source,
			Metadata:   r.Metadata,
			Collection: sel.Name,
		}
		if r.Distance < minDistance {
			minDistance = r.Distance
		}
	}
	return RetrievalItem{
		Service:     sel.Service,
		Collection:  sel.Name,
		Documents:   docs,
		Distance:    minDistance,
		Description: resp.Metadata.Description,
	}
}

// classify maps a distance onto the three confidence tiers. Per-collection
// metadata thresholds take precedence over the service-level values.
func classify(distance float64, svc config.KnowledgeService, meta knowledge.CollectionMetadata) EnvelopeResult {
	matchThreshold := svc.MatchThreshold
	if meta.MatchThreshold != nil {
		matchThreshold = *meta.MatchThreshold
	}
	if distance < matchThreshold {
		return ResultMatch
	}

	partialThreshold := svc.PartialThreshold
	if meta.PartialThreshold != nil {
		partialThreshold = meta.PartialThreshold
	}
	if partialThreshold != nil && distance < *partialThreshold {
		return ResultPartial
	}
	return ResultNone
}
