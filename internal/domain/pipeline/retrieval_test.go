package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clarion-chat/clarion/internal/infra/config"
	"github.com/clarion-chat/clarion/internal/infra/knowledge"
	"github.com/clarion-chat/clarion/internal/infra/llm"
)

func floatPtr(f float64) *float64 { return &f }

func newCollector(retrievers map[string]knowledge.Retriever, providers map[string]llm.Provider, services map[string]config.KnowledgeService) *Collector {
	return NewCollector(
		knowledge.NewRegistry(retrievers),
		llm.NewRegistry(providers),
		services,
		zap.NewNop(),
	)
}

func recipesService() map[string]config.KnowledgeService {
	return map[string]config.KnowledgeService{
		"recipes": {MatchThreshold: 0.25, PartialThreshold: floatPtr(0.45), TopK: 5},
	}
}

func TestCollectClassifiesByDistance(t *testing.T) {
	cases := []struct {
		name     string
		distance float64
		want     EnvelopeResult
	}{
		{"below match threshold", 0.15, ResultMatch},
		{"between thresholds", 0.35, ResultPartial},
		{"at partial threshold", 0.45, ResultNone},
		{"above partial threshold", 0.9, ResultNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			retriever := &stubRetriever{
				queryFn: func(context.Context, knowledge.QueryRequest) (*knowledge.QueryResponse, error) {
					return fixedResponse("doc", tc.distance), nil
				},
			}
			c := newCollector(map[string]knowledge.Retriever{"recipes": retriever}, nil, recipesService())

			env := c.Collect(context.Background(), "msg", "topic", "prior", []Selection{{Service: "recipes", Name: "soups"}})
			assert.Equal(t, tc.want, env.Result)
		})
	}
}

func TestCollectPerCollectionThresholdOverride(t *testing.T) {
	retriever := &stubRetriever{
		queryFn: func(context.Context, knowledge.QueryRequest) (*knowledge.QueryResponse, error) {
			resp := fixedResponse("doc", 0.30)
			// Collection metadata loosens the service-level 0.25.
			resp.Metadata = knowledge.CollectionMetadata{MatchThreshold: floatPtr(0.35)}
			return resp, nil
		},
	}
	c := newCollector(map[string]knowledge.Retriever{"recipes": retriever}, nil, recipesService())

	env := c.Collect(context.Background(), "msg", "topic", "prior", []Selection{{Service: "recipes", Name: "soups"}})
	assert.Equal(t, ResultMatch, env.Result)
}

func TestCollectShortCircuitsOnFirstMatch(t *testing.T) {
	retriever := &stubRetriever{
		queryFn: func(_ context.Context, req knowledge.QueryRequest) (*knowledge.QueryResponse, error) {
			if req.Collection == "a" {
				return fixedResponse("hit", 0.10), nil
			}
			return fixedResponse("miss", 0.90), nil
		},
	}
	c := newCollector(map[string]knowledge.Retriever{"recipes": retriever}, nil, recipesService())

	env := c.Collect(context.Background(), "msg", "topic", "prior", []Selection{
		{Service: "recipes", Name: "a"},
		{Service: "recipes", Name: "b"},
	})
	require.Equal(t, ResultMatch, env.Result)
	require.NotNil(t, env.Match)
	assert.Equal(t, "a", env.Match.Collection)
	assert.Equal(t, []string{"a"}, retriever.queried)
}

func TestCollectAccumulatesPartials(t *testing.T) {
	retriever := &stubRetriever{
		queryFn: func(_ context.Context, req knowledge.QueryRequest) (*knowledge.QueryResponse, error) {
			if req.Collection == "a" {
				return fixedResponse("a-doc", 0.35), nil
			}
			return fixedResponse("b-doc", 0.40), nil
		},
	}
	c := newCollector(map[string]knowledge.Retriever{"recipes": retriever}, nil, recipesService())

	env := c.Collect(context.Background(), "msg", "topic", "prior", []Selection{
		{Service: "recipes", Name: "a"},
		{Service: "recipes", Name: "b"},
	})
	require.Equal(t, ResultPartial, env.Result)
	require.Len(t, env.Partials, 2)
	assert.Equal(t, 0.35, env.Partials[0].Distance)
	assert.Equal(t, 0.40, env.Partials[1].Distance)
}

func TestCollectSkipsFailingCollection(t *testing.T) {
	retriever := &stubRetriever{
		queryFn: func(_ context.Context, req knowledge.QueryRequest) (*knowledge.QueryResponse, error) {
			if req.Collection == "broken" {
				return nil, errors.New("boom")
			}
			return fixedResponse("doc", 0.10), nil
		},
	}
	c := newCollector(map[string]knowledge.Retriever{"recipes": retriever}, nil, recipesService())

	env := c.Collect(context.Background(), "msg", "topic", "prior", []Selection{
		{Service: "recipes", Name: "broken"},
		{Service: "recipes", Name: "good"},
	})
	assert.Equal(t, ResultMatch, env.Result)
	assert.Equal(t, []string{"broken", "good"}, retriever.queried)
}

func TestCollectUsesRawMessageOnFirstTurn(t *testing.T) {
	var gotText string
	retriever := &stubRetriever{
		queryFn: func(_ context.Context, req knowledge.QueryRequest) (*knowledge.QueryResponse, error) {
			gotText = req.Text
			return &knowledge.QueryResponse{}, nil
		},
	}
	c := newCollector(map[string]knowledge.Retriever{"recipes": retriever}, nil, recipesService())

	c.Collect(context.Background(), "raw message", "tracked topic", "", []Selection{{Service: "recipes", Name: "a"}})
	assert.Equal(t, "raw message", gotText)

	c.Collect(context.Background(), "raw message", "tracked topic", "earlier topic", []Selection{{Service: "recipes", Name: "a"}})
	assert.Equal(t, "tracked topic", gotText)
}

func TestCollectCachesEmbeddingsPerConnectionModel(t *testing.T) {
	provider := &stubProvider{}
	retriever := &stubRetriever{
		queryFn: func(context.Context, knowledge.QueryRequest) (*knowledge.QueryResponse, error) {
			return fixedResponse("doc", 0.90), nil
		},
	}
	c := newCollector(
		map[string]knowledge.Retriever{"recipes": retriever},
		map[string]llm.Provider{"embedder": provider},
		recipesService(),
	)

	c.Collect(context.Background(), "msg", "topic", "prior", []Selection{
		{Service: "recipes", Name: "a", EmbeddingConnection: "embedder", EmbeddingModel: "m"},
		{Service: "recipes", Name: "b", EmbeddingConnection: "embedder", EmbeddingModel: "m"},
		{Service: "recipes", Name: "c", EmbeddingConnection: "embedder", EmbeddingModel: "other"},
	})
	assert.Equal(t, 2, provider.embedCalls)
}

func TestCollectEmptyResultsSkipCollection(t *testing.T) {
	retriever := &stubRetriever{
		queryFn: func(context.Context, knowledge.QueryRequest) (*knowledge.QueryResponse, error) {
			return &knowledge.QueryResponse{}, nil
		},
	}
	c := newCollector(map[string]knowledge.Retriever{"recipes": retriever}, nil, recipesService())

	env := c.Collect(context.Background(), "msg", "topic", "prior", []Selection{{Service: "recipes", Name: "a"}})
	assert.Equal(t, ResultNone, env.Result)
	assert.Nil(t, env.Match)
	assert.Empty(t, env.Partials)
}
