package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoria-dev/memoria/model"
)

// stubClassifier returns a fixed classification, or an error when set
type stubClassifier struct {
	classification *model.QueryClassification
	strategy       model.Strategy
	err            error
}

func (s *stubClassifier) ClassifyQuery(ctx context.Context, query string) (*model.QueryClassification, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.classification, nil
}

func (s *stubClassifier) SelectStrategy(classification *model.QueryClassification) model.Strategy {
	return s.strategy
}

func TestRouterGetQueryRouting(t *testing.T) {
	_, router, _, _ := initRetrieval(t)
	ctx := context.Background()

	t.Run("No classifier routes to vector only", func(t *testing.T) {
		routing := router.GetQueryRouting(ctx, "what do we use for the frontend?")
		assert.Equal(t, model.StrategyVectorOnly, routing.Strategy)
		assert.False(t, routing.ShouldUseKG)
		assert.Zero(t, routing.Classification.Confidence)
	})

	t.Run("Failing classifier routes to vector only", func(t *testing.T) {
		router.SetClassifier(&stubClassifier{err: errors.New("model down")})

		routing := router.GetQueryRouting(ctx, "anything")
		assert.Equal(t, model.StrategyVectorOnly, routing.Strategy)
		assert.False(t, routing.ShouldUseKG)
	})

	t.Run("Graph strategies enable the knowledge graph", func(t *testing.T) {
		for _, strategy := range []model.Strategy{model.StrategyKGFirst, model.StrategyKGOnly, model.StrategyHybrid} {
			router.SetClassifier(&stubClassifier{
				classification: &model.QueryClassification{Intent: "entity_lookup", Confidence: 0.9},
				strategy:       strategy,
			})

			routing := router.GetQueryRouting(ctx, "who works on the billing service?")
			assert.Equal(t, strategy, routing.Strategy)
			assert.True(t, routing.ShouldUseKG, "Expected %s to use the knowledge graph", strategy)
		}
	})

	t.Run("Vector only disables the knowledge graph", func(t *testing.T) {
		router.SetClassifier(&stubClassifier{
			classification: &model.QueryClassification{Intent: "general", Confidence: 0.7},
			strategy:       model.StrategyVectorOnly,
		})

		routing := router.GetQueryRouting(ctx, "summarize the notes")
		assert.False(t, routing.ShouldUseKG)
	})
}

func TestRouterApplyKGBoost(t *testing.T) {
	_, router, _, _ := initRetrieval(t)

	t.Run("Boost is additive per matched entity", func(t *testing.T) {
		results := []*model.RetrievalResult{
			{Chunk: &model.Chunk{ID: "c1"}, Score: 0.5},
			{Chunk: &model.Chunk{ID: "c2"}, Score: 0.7},
		}
		kgChunks := map[string][]string{
			"c1": {"React", "TypeScript"},
		}

		router.ApplyKGBoost(results, kgChunks, 0.15)

		assert.InDelta(t, 0.8, results[0].Score, 0.0001, "Expected 0.5 + 0.15 * 2")
		assert.InDelta(t, 0.3, results[0].KGBoost, 0.0001)
		assert.Equal(t, []string{"React", "TypeScript"}, results[0].MatchedEntities)

		assert.Equal(t, 0.7, results[1].Score, "Expected unmatched result to keep its score")
		assert.Zero(t, results[1].KGBoost)
	})

	t.Run("Boost caps at three matched entities", func(t *testing.T) {
		results := []*model.RetrievalResult{
			{Chunk: &model.Chunk{ID: "c1"}, Score: 0.5},
		}
		kgChunks := map[string][]string{
			"c1": {"a", "b", "c", "d", "e"},
		}

		router.ApplyKGBoost(results, kgChunks, 0.15)

		assert.InDelta(t, 0.45, results[0].KGBoost, 0.0001, "Expected the boost capped at 3 entities")
		assert.Len(t, results[0].MatchedEntities, 5, "Expected all matched entities to be reported")
	})

	t.Run("Boost never lowers a score", func(t *testing.T) {
		results := []*model.RetrievalResult{
			{Chunk: &model.Chunk{ID: "c1"}, Score: 0.5},
		}

		router.ApplyKGBoost(results, map[string][]string{}, 0.15)
		assert.Equal(t, 0.5, results[0].Score)
	})
}

func TestRouterResolveKGChunks(t *testing.T) {
	_, router, chunks, entities := initRetrieval(t)
	ctx := context.Background()

	insertTestChunk(t, chunks, "res-1", []float32{1, 0, 0, 0}, "React powers the dashboard.")
	insertTestChunk(t, chunks, "res-2", []float32{0, 1, 0, 0}, "The API uses PostgreSQL.")

	react, err := entities.UpsertEntity("React", model.EntityTypeTechnology, 0.8, model.SourceTypeInferred)
	require.NoError(t, err)
	postgres, err := entities.UpsertEntity("PostgreSQL", model.EntityTypeTechnology, 0.8, model.SourceTypeInferred)
	require.NoError(t, err)

	mention := func(chunkID string, entity *model.Entity) {
		err := entities.InsertMention(&model.EntityMention{
			ChunkID:     chunkID,
			EntityID:    entity.ID,
			MentionText: entity.Name,
			EndOffset:   len(entity.Name),
		})
		require.NoError(t, err)
	}
	mention("res-1", react)
	mention("res-2", postgres)

	t.Run("Exact canonical match resolves chunks", func(t *testing.T) {
		kgChunks := router.ResolveKGChunks(ctx, []string{"react"}, 0.5, 5)
		require.Contains(t, kgChunks, "res-1")
		assert.Equal(t, []string{"React"}, kgChunks["res-1"])
		assert.NotContains(t, kgChunks, "res-2")
	})

	t.Run("Fuzzy match resolves similar names", func(t *testing.T) {
		kgChunks := router.ResolveKGChunks(ctx, []string{"postgres"}, 0.5, 5)
		assert.Contains(t, kgChunks, "res-2", "Expected a fuzzy match on PostgreSQL")
	})

	t.Run("Unknown names resolve nothing", func(t *testing.T) {
		kgChunks := router.ResolveKGChunks(ctx, []string{"unheard-of"}, 0.5, 5)
		assert.Empty(t, kgChunks)
	})

	t.Run("MaxEntities truncates the name list", func(t *testing.T) {
		kgChunks := router.ResolveKGChunks(ctx, []string{"unknown", "react"}, 0.5, 1)
		assert.Empty(t, kgChunks, "Expected only the first name to be resolved")
	})
}

func TestRouterSearchWithRouting(t *testing.T) {
	_, router, chunks, entities := initRetrieval(t)
	ctx := context.Background()

	insertTestChunk(t, chunks, "route-react", []float32{0, 1, 0, 0}, "React powers the dashboard frontend.")
	insertTestChunk(t, chunks, "route-close", []float32{1, 0, 0, 0}, "Closest note by embedding, about nothing in particular.")

	react, err := entities.UpsertEntity("React", model.EntityTypeTechnology, 0.8, model.SourceTypeInferred)
	require.NoError(t, err)
	err = entities.InsertMention(&model.EntityMention{
		ChunkID:     "route-react",
		EntityID:    react.ID,
		MentionText: "React",
		EndOffset:   5,
	})
	require.NoError(t, err)

	query := []float32{1, 0.1, 0, 0}

	t.Run("Routing boosts graph linked chunks above closer ones", func(t *testing.T) {
		router.SetClassifier(&stubClassifier{
			classification: &model.QueryClassification{
				Intent:            "entity_lookup",
				Confidence:        0.9,
				ExtractedEntities: []string{"React"},
			},
			strategy: model.StrategyKGFirst,
		})

		config := model.DefaultQueryConfig()
		config.BoostFactor = 1.0

		routed, err := router.SearchVectorWithRouting(ctx, "what uses React?", query, config)
		require.NoError(t, err, "Expected SearchVectorWithRouting to not return an error")
		require.Len(t, routed.Results, 2)

		assert.Equal(t, "entity_lookup", routed.Intent)
		assert.Equal(t, model.StrategyKGFirst, routed.Strategy)
		assert.Equal(t, 0.9, routed.Confidence)

		assert.Equal(t, "route-react", routed.Results[0].Chunk.ID, "Expected the boosted chunk to rank first")
		assert.InDelta(t, 1.0, routed.Results[0].KGBoost, 0.0001)
		assert.Equal(t, []string{"React"}, routed.Results[0].MatchedEntities)
	})

	t.Run("Disabled routing skips the boost", func(t *testing.T) {
		config := model.DefaultQueryConfig()
		config.RoutingEnabled = false

		routed, err := router.SearchVectorWithRouting(ctx, "what uses React?", query, config)
		require.NoError(t, err)
		require.Len(t, routed.Results, 2)

		assert.Equal(t, "route-close", routed.Results[0].Chunk.ID, "Expected the pure vector order")
		assert.Zero(t, routed.Results[0].KGBoost)
	})

	t.Run("Vector only strategy skips the boost", func(t *testing.T) {
		router.SetClassifier(&stubClassifier{
			classification: &model.QueryClassification{
				Intent:            "general",
				Confidence:        0.6,
				ExtractedEntities: []string{"React"},
			},
			strategy: model.StrategyVectorOnly,
		})

		routed, err := router.SearchVectorWithRouting(ctx, "anything", query, model.DefaultQueryConfig())
		require.NoError(t, err)
		assert.Equal(t, "route-close", routed.Results[0].Chunk.ID)
	})

	t.Run("Keyword search with routing", func(t *testing.T) {
		router.SetClassifier(&stubClassifier{
			classification: &model.QueryClassification{
				Intent:            "entity_lookup",
				Confidence:        0.8,
				ExtractedEntities: []string{"React"},
			},
			strategy: model.StrategyHybrid,
		})

		routed, err := router.SearchKeywordWithRouting(ctx, "dashboard frontend", model.DefaultQueryConfig())
		require.NoError(t, err)
		require.NotEmpty(t, routed.Results)

		assert.Equal(t, "route-react", routed.Results[0].Chunk.ID)
		assert.Positive(t, routed.Results[0].KGBoost, "Expected the graph boost on top of the text score")
	})
}
