package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoria-dev/memoria/model"
)

func TestExtractorExtract(t *testing.T) {
	extractor, _, _ := initExtractor(t)
	ctx := context.Background()

	t.Run("Short text yields empty result", func(t *testing.T) {
		result := extractor.Extract(ctx, "Hi", nil)
		assert.Empty(t, result.Entities)
		assert.Empty(t, result.Relations)
	})

	t.Run("Pattern extraction without options", func(t *testing.T) {
		result := extractor.Extract(ctx, "We use TypeScript and React for the frontend.", nil)
		assert.NotEmpty(t, result.Entities, "Expected pattern extraction to find entities")
	})

	t.Run("LLM extraction takes precedence when requested", func(t *testing.T) {
		extractor.SetLLMExtractor(func(ctx context.Context, text string) (*ExtractionResult, error) {
			return &ExtractionResult{
				Entities: []model.EntityCandidate{
					{Name: "Custom Entity", Type: model.EntityTypeConcept, Confidence: 0.95},
				},
			}, nil
		})

		result := extractor.Extract(ctx, "We use TypeScript and React for the frontend.", &Options{UseLLM: true})
		require.Len(t, result.Entities, 1)
		assert.Equal(t, "Custom Entity", result.Entities[0].Name)
	})

	t.Run("LLM failure falls back to patterns silently", func(t *testing.T) {
		extractor.SetLLMExtractor(func(ctx context.Context, text string) (*ExtractionResult, error) {
			return nil, errors.New("model unavailable")
		})

		result := extractor.Extract(ctx, "We use TypeScript and React for the frontend.", &Options{UseLLM: true})
		assert.NotNil(t, findCandidate(result.Entities, "TypeScript"), "Expected the pattern fallback to run")
	})

	t.Run("LLM is skipped without UseLLM", func(t *testing.T) {
		extractor.SetLLMExtractor(func(ctx context.Context, text string) (*ExtractionResult, error) {
			t.Fatal("LLM extractor should not be called")
			return nil, nil
		})

		result := extractor.Extract(ctx, "We use TypeScript and React for the frontend.", nil)
		assert.NotEmpty(t, result.Entities)

		extractor.SetLLMExtractor(nil)
	})
}

func TestExtractorPersistEntities(t *testing.T) {
	extractor, entities, _ := initExtractor(t)

	candidates := []model.EntityCandidate{
		{Name: "TypeScript", Type: model.EntityTypeTechnology, Confidence: 0.8, StartOffset: 7, EndOffset: 17},
		{Name: "React", Type: model.EntityTypeTechnology, Confidence: 0.8, StartOffset: 22, EndOffset: 27},
	}

	t.Run("Persist creates entities and mentions", func(t *testing.T) {
		persisted, err := extractor.PersistEntities(candidates, "persist-chunk", model.SourceTypeUserStated, nil)
		require.NoError(t, err, "Expected PersistEntities to not return an error")
		require.Len(t, persisted, 2)

		assert.Equal(t, 0.9, persisted[0].TrustScore, "Expected the user stated default trust")

		mentions, err := entities.SelectMentionsByChunk("persist-chunk")
		require.NoError(t, err)
		assert.Len(t, mentions, 2, "Expected one mention per candidate")
	})

	t.Run("Persisting again merges instead of duplicating", func(t *testing.T) {
		persisted, err := extractor.PersistEntities(candidates, "persist-chunk-2", model.SourceTypeInferred, nil)
		require.NoError(t, err)
		require.Len(t, persisted, 2)

		stored, err := entities.SelectEntityByName("TypeScript")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, persisted[0].ID, stored.ID, "Expected the same entity to be reused")

		chunkIDs, err := entities.SelectChunkIDsByEntity(stored.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"persist-chunk", "persist-chunk-2"}, chunkIDs)
	})

	t.Run("Explicit trust score overrides the default", func(t *testing.T) {
		score := 0.42
		persisted, err := extractor.PersistEntities(
			[]model.EntityCandidate{{Name: "Svelte", Type: model.EntityTypeTechnology, Confidence: 0.8}},
			"persist-chunk-3", model.SourceTypeInferred, &score,
		)
		require.NoError(t, err)
		require.Len(t, persisted, 1)
		assert.Equal(t, 0.42, persisted[0].TrustScore)
	})
}

func TestExtractorPersistRelations(t *testing.T) {
	extractor, _, relations := initExtractor(t)

	_, err := extractor.PersistEntities([]model.EntityCandidate{
		{Name: "React", Type: model.EntityTypeTechnology, Confidence: 0.8},
		{Name: "JavaScript", Type: model.EntityTypeTechnology, Confidence: 0.8},
	}, "rel-persist-chunk", model.SourceTypeInferred, nil)
	require.NoError(t, err)

	t.Run("Persist relation between existing entities", func(t *testing.T) {
		persisted, err := extractor.PersistRelations([]model.RelationCandidate{
			{SourceName: "React", TargetName: "JavaScript", RelationType: model.RelationTypeUses, Confidence: 0.6},
		}, "rel-persist-chunk", model.SourceTypeInferred)
		require.NoError(t, err, "Expected PersistRelations to not return an error")
		require.Len(t, persisted, 1)
		assert.Equal(t, model.RelationTypeUses, persisted[0].RelationType)
		assert.Equal(t, 0.6, persisted[0].Confidence)
	})

	t.Run("Relations with unknown endpoints are skipped silently", func(t *testing.T) {
		persisted, err := extractor.PersistRelations([]model.RelationCandidate{
			{SourceName: "React", TargetName: "Nobody Knows This", RelationType: model.RelationTypeUses, Confidence: 0.6},
			{SourceName: "Ghost", TargetName: "JavaScript", RelationType: model.RelationTypeUses, Confidence: 0.6},
		}, "rel-persist-chunk", model.SourceTypeInferred)
		assert.NoError(t, err, "Expected dangling candidates to be skipped, not to fail")
		assert.Empty(t, persisted, "Expected no relation to be created")
	})

	t.Run("Zero confidence defaults to 0.5", func(t *testing.T) {
		persisted, err := extractor.PersistRelations([]model.RelationCandidate{
			{SourceName: "JavaScript", TargetName: "React", RelationType: model.RelationTypeRelatedTo},
		}, "rel-persist-chunk", model.SourceTypeInferred)
		require.NoError(t, err)
		require.Len(t, persisted, 1)
		assert.Equal(t, 0.5, persisted[0].Confidence)

		stored, err := relations.SelectRelation(persisted[0].ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, 0.5, stored.Confidence)
	})
}

func TestExtractorExtractAndPersist(t *testing.T) {
	extractor, entities, _ := initExtractor(t)
	ctx := context.Background()

	t.Run("End to end extraction into the graph", func(t *testing.T) {
		result, err := extractor.ExtractAndPersist(ctx, "e2e-chunk", "The dashboard is nice. React uses JavaScript under the hood.", nil)
		require.NoError(t, err, "Expected ExtractAndPersist to not return an error")
		assert.NotEmpty(t, result.Entities)
		assert.NotEmpty(t, result.Relations)

		mentions, err := entities.SelectMentionsByChunk("e2e-chunk")
		require.NoError(t, err)
		assert.Len(t, mentions, len(result.Entities), "Expected one mention per extracted entity")

		react, err := entities.SelectEntityByName("React")
		require.NoError(t, err)
		require.NotNil(t, react, "Expected React to be persisted")
	})
}
