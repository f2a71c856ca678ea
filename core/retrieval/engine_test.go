package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoria-dev/memoria/model"
)

func TestEngineSearchVector(t *testing.T) {
	engine, _, chunks, _ := initRetrieval(t)
	ctx := context.Background()

	insertTestChunk(t, chunks, "vec-1", []float32{1, 0, 0, 0}, "First note about databases.")
	insertTestChunk(t, chunks, "vec-2", []float32{0.9, 0.1, 0, 0}, "Second note about databases.")
	insertTestChunk(t, chunks, "vec-3", []float32{0, 0, 1, 0}, "Unrelated note about cooking.")

	query := []float32{1, 0, 0, 0}

	t.Run("Indexed search returns ranked results", func(t *testing.T) {
		config := model.DefaultQueryConfig()
		config.VectorMode = model.VectorSearchIndexed
		config.TopK = 3

		results, err := engine.SearchVector(ctx, query, config)
		require.NoError(t, err, "Expected SearchVector to not return an error")
		require.Len(t, results, 3)

		assert.Equal(t, "vec-1", results[0].Chunk.ID, "Expected identical vector to rank first")
		assert.InDelta(t, 1.0, results[0].Score, 0.001)
		assert.Equal(t, results[0].Score, results[0].SimilarityScore)
		assert.Equal(t, "vector", results[0].RetrievalMethod)
		assert.NotEmpty(t, results[0].Snippet)
	})

	t.Run("Brute force search matches the indexed ranking", func(t *testing.T) {
		config := model.DefaultQueryConfig()
		config.VectorMode = model.VectorSearchBruteForce
		config.TopK = 3

		results, err := engine.SearchVector(ctx, query, config)
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, "vec-1", results[0].Chunk.ID)
		assert.InDelta(t, 1.0, results[0].Score, 0.001)
		assert.Equal(t, "vec-2", results[1].Chunk.ID)
		assert.Greater(t, results[1].Score, results[2].Score)
	})

	t.Run("Auto mode picks a working path", func(t *testing.T) {
		config := model.DefaultQueryConfig()
		config.TopK = 2

		results, err := engine.SearchVector(ctx, query, config)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "vec-1", results[0].Chunk.ID)
	})

	t.Run("Auto mode works without a vector index", func(t *testing.T) {
		err := chunks.DropVectorIndex(ctx)
		require.NoError(t, err)
		defer func() {
			err := chunks.ChangeIndexType(ctx, "hnsw", nil)
			require.NoError(t, err)
		}()

		config := model.DefaultQueryConfig()
		config.TopK = 2

		results, err := engine.SearchVector(ctx, query, config)
		require.NoError(t, err, "Expected the brute force fallback to run")
		require.Len(t, results, 2)
		assert.Equal(t, "vec-1", results[0].Chunk.ID)
	})

	t.Run("TopK limits the result count", func(t *testing.T) {
		config := model.DefaultQueryConfig()
		config.VectorMode = model.VectorSearchBruteForce
		config.TopK = 1

		results, err := engine.SearchVector(ctx, query, config)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("Snippet is truncated to the configured length", func(t *testing.T) {
		long := strings.Repeat("databases and more ", 50)
		insertTestChunk(t, chunks, "vec-long", []float32{1, 0, 0, 0.01}, long)

		config := model.DefaultQueryConfig()
		config.VectorMode = model.VectorSearchBruteForce
		config.SnippetMaxLen = 40
		config.TopK = 10

		results, err := engine.SearchVector(ctx, query, config)
		require.NoError(t, err)

		for _, result := range results {
			assert.LessOrEqual(t, len(result.Snippet), 40, "Expected snippets to be truncated")
		}
	})
}

func TestEngineSearchKeyword(t *testing.T) {
	engine, _, chunks, _ := initRetrieval(t)
	ctx := context.Background()

	insertTestChunk(t, chunks, "kw-1", []float32{1, 0, 0, 0}, "PostgreSQL full text search ranks documents by relevance.")
	insertTestChunk(t, chunks, "kw-2", []float32{0, 1, 0, 0}, "The weather today is sunny with light wind.")

	t.Run("Keyword search normalizes the rank", func(t *testing.T) {
		results, err := engine.SearchKeyword(ctx, "postgresql search", model.DefaultQueryConfig())
		require.NoError(t, err, "Expected SearchKeyword to not return an error")
		require.Len(t, results, 1)

		result := results[0]
		assert.Equal(t, "kw-1", result.Chunk.ID)
		assert.Equal(t, "keyword", result.RetrievalMethod)
		assert.Greater(t, result.TextScore, 0.0)
		assert.Less(t, result.TextScore, 1.0, "Expected rank / (rank + 1) to stay below 1")
		assert.Equal(t, result.Score, result.TextScore)
	})

	t.Run("Empty query returns no results without error", func(t *testing.T) {
		results, err := engine.SearchKeyword(ctx, "   ", model.DefaultQueryConfig())
		assert.NoError(t, err, "Expected an empty query to not be an error")
		assert.Empty(t, results)
	})

	t.Run("Unmatched terms return nothing", func(t *testing.T) {
		results, err := engine.SearchKeyword(ctx, "quantum entanglement", model.DefaultQueryConfig())
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}
