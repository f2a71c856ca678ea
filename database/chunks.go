package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/memoria-dev/memoria/helper"
	"github.com/memoria-dev/memoria/model"
	loadSql "github.com/memoria-dev/memoria/sql"
)

// ScoredChunk pairs a chunk with the raw score of the query that
// returned it (cosine similarity or full text rank).
type ScoredChunk struct {
	Chunk *model.Chunk
	Score float64
}

// ChunksDBHandlerFunctions defines the interface for Chunks database operations.
type ChunksDBHandlerFunctions interface {
	InsertChunk(chunk *model.Chunk) error
	DeleteChunk(id string) error
	SelectChunk(id string) (*model.Chunk, error)
	SelectChunksByFilter(source string, embeddingModel string) ([]*model.Chunk, error)
	SelectChunksBySimilarity(embedding []float32, limit int, source string, embeddingModel string) ([]*ScoredChunk, error)
	SelectChunksByKeyword(query string, limit int, source string, embeddingModel string) ([]*ScoredChunk, error)
	HasVectorIndex() (bool, error)
}

// ChunksDBHandler handles chunk-related database operations
type ChunksDBHandler struct {
	db *helper.Database
}

// NewChunksDBHandler creates a new chunks database handler.
// It initializes the database connection and loads chunk-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewChunksDBHandler(db *helper.Database, embeddingDim int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	chunksDbHandler := &ChunksDBHandler{
		db: db,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler")

	return chunksDbHandler, nil
}

// CreateTable creates the 'chunks' table in the database.
// If the table already exists, it does not create it again.
// It also creates the full text and vector indexes.
func (h *ChunksDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing chunks table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

// InsertChunk inserts a new chunk
func (h *ChunksDBHandler) InsertChunk(chunk *model.Chunk) error {
	embeddingVector := pgvector.NewVector(chunk.Embedding)
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_chunk($1, $2, $3, $4, $5, $6, $7, $8)`,
		chunk.ID,
		chunk.Path,
		chunk.StartLine,
		chunk.EndLine,
		chunk.Content,
		embeddingVector,
		chunk.Source,
		chunk.Model,
	)

	var embedding pgvector.Vector
	err := row.Scan(
		&chunk.ID,
		&chunk.Path,
		&chunk.StartLine,
		&chunk.EndLine,
		&chunk.Content,
		&embedding,
		&chunk.Source,
		&chunk.Model,
		&chunk.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}
	chunk.Embedding = embedding.Slice()

	return nil
}

// DeleteChunk deletes a chunk by ID
func (h *ChunksDBHandler) DeleteChunk(id string) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_chunk($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectChunk retrieves a chunk by ID
func (h *ChunksDBHandler) SelectChunk(id string) (*model.Chunk, error) {
	chunk := &model.Chunk{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_chunk($1)`,
		id,
	)

	var embedding pgvector.Vector
	err := row.Scan(
		&chunk.ID,
		&chunk.Path,
		&chunk.StartLine,
		&chunk.EndLine,
		&chunk.Content,
		&embedding,
		&chunk.Source,
		&chunk.Model,
		&chunk.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}
	chunk.Embedding = embedding.Slice()

	return chunk, nil
}

// SelectChunksByFilter retrieves all chunks matching the optional source
// and embedding model filters. Empty filters match everything. This is
// the candidate load for the brute force vector search fallback.
func (h *ChunksDBHandler) SelectChunksByFilter(source string, embeddingModel string) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_chunks_by_filter($1, $2)`,
		source,
		embeddingModel,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var chunks []*model.Chunk
	for rows.Next() {
		chunk := &model.Chunk{}
		var embedding pgvector.Vector
		err := rows.Scan(
			&chunk.ID,
			&chunk.Path,
			&chunk.StartLine,
			&chunk.EndLine,
			&chunk.Content,
			&embedding,
			&chunk.Source,
			&chunk.Model,
			&chunk.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		chunk.Embedding = embedding.Slice()

		chunks = append(chunks, chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}

// SelectChunksBySimilarity performs vector similarity search through the
// pgvector index. The returned score is 1 - cosine distance.
func (h *ChunksDBHandler) SelectChunksBySimilarity(embedding []float32, limit int, source string, embeddingModel string) ([]*ScoredChunk, error) {
	embeddingVector := pgvector.NewVector(embedding)

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_chunks_by_similarity($1, $2, $3, $4)`,
		embeddingVector,
		limit,
		source,
		embeddingModel,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []*ScoredChunk
	for rows.Next() {
		chunk := &model.Chunk{}
		var chunkEmbedding pgvector.Vector
		var similarity float64
		err := rows.Scan(
			&chunk.ID,
			&chunk.Path,
			&chunk.StartLine,
			&chunk.EndLine,
			&chunk.Content,
			&chunkEmbedding,
			&chunk.Source,
			&chunk.Model,
			&chunk.CreatedAt,
			&similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		chunk.Embedding = chunkEmbedding.Slice()

		results = append(results, &ScoredChunk{Chunk: chunk, Score: similarity})
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

// SelectChunksByKeyword performs ranked full text search. The returned
// score is the raw ts_rank value; normalization happens in the retrieval
// engine.
func (h *ChunksDBHandler) SelectChunksByKeyword(query string, limit int, source string, embeddingModel string) ([]*ScoredChunk, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_chunks_by_keyword($1, $2, $3, $4)`,
		query,
		limit,
		source,
		embeddingModel,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []*ScoredChunk
	for rows.Next() {
		chunk := &model.Chunk{}
		var chunkEmbedding pgvector.Vector
		var rank float32
		err := rows.Scan(
			&chunk.ID,
			&chunk.Path,
			&chunk.StartLine,
			&chunk.EndLine,
			&chunk.Content,
			&chunkEmbedding,
			&chunk.Source,
			&chunk.Model,
			&chunk.CreatedAt,
			&rank,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		chunk.Embedding = chunkEmbedding.Slice()

		results = append(results, &ScoredChunk{Chunk: chunk, Score: float64(rank)})
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

// HasVectorIndex reports whether the cosine distance index on the
// embedding column exists. The retrieval engine probes this to pick
// between the indexed and brute force search paths.
func (h *ChunksDBHandler) HasVectorIndex() (bool, error) {
	var exists bool
	err := h.db.Instance.QueryRow(`SELECT has_vector_index()`).Scan(&exists)
	if err != nil {
		return false, helper.NewError("scan", err)
	}
	return exists, nil
}
