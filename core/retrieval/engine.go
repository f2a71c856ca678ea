package retrieval

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/memoria-dev/memoria/database"
	"github.com/memoria-dev/memoria/helper"
	"github.com/memoria-dev/memoria/model"
)

// Engine runs vector and keyword searches over the chunk store and
// shapes the rows into retrieval results.
type Engine struct {
	chunks *database.ChunksDBHandler
	log    *slog.Logger
}

// NewEngine creates a new retrieval engine over the chunks handler
func NewEngine(chunks *database.ChunksDBHandler, logger *slog.Logger) *Engine {
	return &Engine{
		chunks: chunks,
		log:    logger,
	}
}

// SearchVector retrieves the chunks most similar to the query embedding.
// In auto mode it probes for a usable vector index and falls back to
// brute force cosine similarity in memory; a failing indexed search also
// falls back instead of erroring. Results are sorted by similarity,
// descending, and truncated to config.TopK.
func (e *Engine) SearchVector(ctx context.Context, embedding []float32, config *model.QueryConfig) ([]*model.RetrievalResult, error) {
	if config == nil {
		config = model.DefaultQueryConfig()
	}

	useIndex := false
	switch config.VectorMode {
	case model.VectorSearchIndexed:
		useIndex = true
	case model.VectorSearchBruteForce:
		useIndex = false
	default:
		hasIndex, err := e.chunks.HasVectorIndex()
		if err != nil {
			e.log.Debug("Vector index probe failed, using brute force search", slog.String("error", err.Error()))
		}
		useIndex = err == nil && hasIndex
	}

	if useIndex {
		scored, err := e.chunks.SelectChunksBySimilarity(embedding, config.TopK, config.Source, config.Model)
		if err == nil {
			return e.toResults(scored, config, "vector", setSimilarityScore), nil
		}
		e.log.Warn("Indexed vector search failed, falling back to brute force", slog.String("error", err.Error()))
	}

	scored, err := e.bruteForceSimilarity(embedding, config)
	if err != nil {
		return nil, err
	}

	return e.toResults(scored, config, "vector", setSimilarityScore), nil
}

// bruteForceSimilarity loads all candidate chunks and ranks them by
// cosine similarity in memory. Chunks with a different embedding
// dimension and non finite scores are skipped.
func (e *Engine) bruteForceSimilarity(embedding []float32, config *model.QueryConfig) ([]*database.ScoredChunk, error) {
	chunks, err := e.chunks.SelectChunksByFilter(config.Source, config.Model)
	if err != nil {
		return nil, helper.NewError("select chunks", err)
	}

	scored := make([]*database.ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) != len(embedding) {
			continue
		}
		similarity := CosineSimilarity(embedding, chunk.Embedding)
		if math.IsNaN(similarity) || math.IsInf(similarity, 0) {
			continue
		}
		scored = append(scored, &database.ScoredChunk{Chunk: chunk, Score: similarity})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if config.TopK > 0 && len(scored) > config.TopK {
		scored = scored[:config.TopK]
	}

	return scored, nil
}

// SearchKeyword retrieves chunks by full text search. The raw ts_rank is
// normalized to (0, 1) via rank / (rank + 1). An empty query returns no
// results without touching the database.
func (e *Engine) SearchKeyword(ctx context.Context, query string, config *model.QueryConfig) ([]*model.RetrievalResult, error) {
	if config == nil {
		config = model.DefaultQueryConfig()
	}
	if strings.TrimSpace(query) == "" {
		return []*model.RetrievalResult{}, nil
	}

	scored, err := e.chunks.SelectChunksByKeyword(query, config.TopK, config.Source, config.Model)
	if err != nil {
		return nil, helper.NewError("keyword search", err)
	}

	for _, s := range scored {
		s.Score = s.Score / (s.Score + 1.0)
	}

	return e.toResults(scored, config, "keyword", setTextScore), nil
}

func setSimilarityScore(result *model.RetrievalResult, score float64) {
	result.SimilarityScore = score
}

func setTextScore(result *model.RetrievalResult, score float64) {
	result.TextScore = score
}

func (e *Engine) toResults(scored []*database.ScoredChunk, config *model.QueryConfig, method string, setScore func(*model.RetrievalResult, float64)) []*model.RetrievalResult {
	results := make([]*model.RetrievalResult, 0, len(scored))
	for _, s := range scored {
		result := &model.RetrievalResult{
			Chunk:           s.Chunk,
			Score:           s.Score,
			Snippet:         TruncateUTF16(s.Chunk.Content, config.SnippetMaxLen),
			RetrievalMethod: method,
		}
		setScore(result, s.Score)
		results = append(results, result)
	}
	return results
}

// CosineSimilarity computes the cosine similarity of two equal length
// vectors. Returns 0 for zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
