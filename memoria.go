package memoria

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/memoria-dev/memoria/core/extraction"
	"github.com/memoria-dev/memoria/core/retrieval"
	"github.com/memoria-dev/memoria/core/trust"
	"github.com/memoria-dev/memoria/database"
	"github.com/memoria-dev/memoria/helper"
	"github.com/memoria-dev/memoria/model"
	loadSql "github.com/memoria-dev/memoria/sql"
)

// Memoria provides a unified interface to the provenance ledger, the
// knowledge graph and trust aware retrieval.
type Memoria struct {
	DB         *helper.Database
	Chunks     *database.ChunksDBHandler
	Provenance *database.ProvenanceDBHandler
	Entities   *database.EntitiesDBHandler
	Relations  *database.RelationsDBHandler
	Extractor  *extraction.Extractor
	Trust      *trust.Scorer
	Engine     *retrieval.Engine
	Router     *retrieval.Router
	// Optional embedding collaborator for Search
	embed extraction.EmbedFunc
	// Logging
	log *slog.Logger
}

// NewMemoria creates a new Memoria instance with all handlers initialized
func NewMemoria(config *helper.DatabaseConfiguration, embeddingDim int) (*Memoria, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Initialize database
	db := helper.NewDatabase("memoria", config, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Create all handlers in the correct order (entities before relations,
	// relations reference them). force=false to not reload if functions
	// already exist.
	provenance, err := database.NewProvenanceDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create provenance handler", err)
	}

	entities, err := database.NewEntitiesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	relations, err := database.NewRelationsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create relations handler", err)
	}

	chunks, err := database.NewChunksDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create chunks handler", err)
	}

	extractor := extraction.NewExtractor(entities, relations, logger)
	scorer := trust.NewScorer(provenance, logger)
	engine := retrieval.NewEngine(chunks, logger)
	router := retrieval.NewRouter(engine, entities, logger)

	return &Memoria{
		DB:         db,
		Chunks:     chunks,
		Provenance: provenance,
		Entities:   entities,
		Relations:  relations,
		Extractor:  extractor,
		Trust:      scorer,
		Engine:     engine,
		Router:     router,
		log:        logger,
	}, nil
}

// Close closes the database connection
func (m *Memoria) Close() error {
	if m.DB != nil && m.DB.Instance != nil {
		return m.DB.Instance.Close()
	}
	return nil
}

// SetEmbedder sets the embedding function used by Search
func (m *Memoria) SetEmbedder(embed extraction.EmbedFunc) {
	m.embed = embed
}

// SetClassifier sets the query classifier used for routing
func (m *Memoria) SetClassifier(classifier retrieval.QueryClassifier) {
	m.Router.SetClassifier(classifier)
}

// SetLLMExtractor sets the optional LLM based entity extraction strategy
func (m *Memoria) SetLLMExtractor(llm extraction.LLMExtractFunc) {
	m.Extractor.SetLLMExtractor(llm)
}

// RecordProvenance writes the provenance record for a chunk, replacing
// any existing record. A nil trustScore uses the source type default.
func (m *Memoria) RecordProvenance(chunkID string, sourceType model.SourceType, sourceURI *string, trustScore *float64) (*model.ProvenanceRecord, error) {
	return m.Provenance.RecordProvenance(chunkID, sourceType, sourceURI, trustScore)
}

// GetProvenance retrieves the provenance record for a chunk, nil when none exists
func (m *Memoria) GetProvenance(chunkID string) (*model.ProvenanceRecord, error) {
	return m.Provenance.SelectProvenance(chunkID)
}

// VerifyChunk marks a chunk as user verified, raising its trust score by
// trustBoost capped at 1.0. Returns false for unknown chunks.
func (m *Memoria) VerifyChunk(chunkID string, trustBoost float64) (bool, error) {
	return m.Provenance.VerifyChunk(chunkID, trustBoost)
}

// RecordContradiction notes a contradiction against a chunk, lowering its
// trust score by penalty floored at 0.1. Returns false for unknown chunks.
func (m *Memoria) RecordContradiction(chunkID string, penalty float64) (bool, error) {
	return m.Provenance.RecordContradiction(chunkID, penalty)
}

// GetContradictionCount returns the contradiction count for a chunk, 0 when unknown
func (m *Memoria) GetContradictionCount(chunkID string) (int, error) {
	return m.Provenance.ContradictionCount(chunkID)
}

// UpdateTrustScore overwrites a chunk's trust score directly, clamped to [0, 1]
func (m *Memoria) UpdateTrustScore(chunkID string, trustScore float64) (bool, error) {
	return m.Provenance.UpdateTrustScore(chunkID, trustScore)
}

// EffectiveTrustScore computes the current trust score for a chunk
func (m *Memoria) EffectiveTrustScore(chunkID string) float64 {
	return m.Trust.EffectiveTrustScore(chunkID)
}

// ProcessChunk extracts entities and relations from the chunk content
// and persists them into the knowledge graph.
func (m *Memoria) ProcessChunk(ctx context.Context, chunk *model.Chunk, opts *extraction.Options) (*extraction.ExtractionResult, error) {
	if chunk == nil {
		return nil, helper.NewError("process chunk", fmt.Errorf("chunk is nil"))
	}
	return m.Extractor.ExtractAndPersist(ctx, chunk.ID, chunk.Content, opts)
}

// Search embeds the query and runs a routed vector search. An embedder
// must be set first.
func (m *Memoria) Search(ctx context.Context, query string, config *model.QueryConfig) (*model.RoutedResults, error) {
	if m.embed == nil {
		return nil, helper.NewError("search", fmt.Errorf("embedder not set, use SetEmbedder() first"))
	}

	embedding, err := m.embed(query)
	if err != nil {
		return nil, helper.NewError("embed query", err)
	}

	return m.Router.SearchVectorWithRouting(ctx, query, embedding, config)
}

// SearchText runs a routed full text search, no embedder required
func (m *Memoria) SearchText(ctx context.Context, query string, config *model.QueryConfig) (*model.RoutedResults, error) {
	return m.Router.SearchKeywordWithRouting(ctx, query, config)
}

// TrustWeightedRerank blends relevance with effective trust and re-sorts
func (m *Memoria) TrustWeightedRerank(results []*model.RetrievalResult, trustWeight float64) []*model.RetrievalResult {
	return m.Trust.TrustWeightedRerank(results, trustWeight)
}

// FilterByTrust drops results below the given effective trust score
func (m *Memoria) FilterByTrust(results []*model.RetrievalResult, minTrust float64) []*model.RetrievalResult {
	return m.Trust.FilterByTrust(results, minTrust)
}

// ChunksForEntity returns the chunks mentioning the named entity
// (case-insensitive canonical match).
func (m *Memoria) ChunksForEntity(name string) ([]*model.Chunk, error) {
	entity, err := m.Entities.SelectEntityByName(name)
	if err != nil {
		return nil, helper.NewError("select entity", err)
	}
	if entity == nil {
		return nil, nil
	}

	return m.chunksForEntityID(entity.ID)
}

func (m *Memoria) chunksForEntityID(entityID uuid.UUID) ([]*model.Chunk, error) {
	chunkIDs, err := m.Entities.SelectChunkIDsByEntity(entityID)
	if err != nil {
		return nil, helper.NewError("select chunk ids", err)
	}

	var chunks []*model.Chunk
	for _, chunkID := range chunkIDs {
		chunk, err := m.Chunks.SelectChunk(chunkID)
		if err != nil {
			return nil, helper.NewError("select chunk", err)
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

// ChangeIndexType changes the vector index type ("hnsw" or "ivfflat")
func (m *Memoria) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	return m.Chunks.ChangeIndexType(ctx, indexType, params)
}
