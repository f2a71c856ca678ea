package extraction

import (
	"context"
	"log/slog"
	"strings"

	"github.com/memoria-dev/memoria/database"
	"github.com/memoria-dev/memoria/model"
)

// MinExtractionLength is the minimum text length considered for
// extraction; shorter strings yield empty results.
const MinExtractionLength = 10

// EmbedFunc is a function that generates embeddings for text.
// The embedding provider is an external collaborator; this library only
// consumes the vectors.
type EmbedFunc func(text string) ([]float32, error)

// LLMExtractFunc extracts entities and relations from text using an
// external language model. It may fail for any reason (network, parse,
// missing credentials); the extractor falls back to pattern extraction
// and never surfaces the failure.
type LLMExtractFunc func(ctx context.Context, text string) (*ExtractionResult, error)

// ExtractionResult holds the entities and relations extracted from a chunk
type ExtractionResult struct {
	Entities  []model.EntityCandidate
	Relations []model.RelationCandidate
}

// Options configures a single extraction call
type Options struct {
	SourceType model.SourceType
	TrustScore *float64 // nil means the source type default
	UseLLM     bool
}

// Extractor turns chunk text into knowledge graph entities, mentions
// and relations and persists them with merge semantics.
type Extractor struct {
	entities  *database.EntitiesDBHandler
	relations *database.RelationsDBHandler
	llm       LLMExtractFunc
	log       *slog.Logger
}

// NewExtractor creates a new extractor over the given handlers
func NewExtractor(entities *database.EntitiesDBHandler, relations *database.RelationsDBHandler, logger *slog.Logger) *Extractor {
	return &Extractor{
		entities:  entities,
		relations: relations,
		log:       logger,
	}
}

// SetLLMExtractor sets the optional LLM extraction strategy.
// When set and requested via Options.UseLLM it takes precedence over
// pattern extraction, with a silent fallback on any failure.
func (e *Extractor) SetLLMExtractor(llm LLMExtractFunc) {
	e.llm = llm
}

// Extract extracts entities and relations from chunk text. Text shorter
// than MinExtractionLength yields empty results. The heuristic pattern
// path is always available; LLM failures are never returned to the
// caller.
func (e *Extractor) Extract(ctx context.Context, text string, opts *Options) *ExtractionResult {
	if len(strings.TrimSpace(text)) < MinExtractionLength {
		return &ExtractionResult{}
	}

	if opts != nil && opts.UseLLM && e.llm != nil {
		result, err := e.llm(ctx, text)
		if err == nil && result != nil {
			return result
		}
		if err != nil {
			e.log.Debug("LLM extraction failed, falling back to patterns", slog.String("error", err.Error()))
		}
	}

	return ExtractWithPatterns(text)
}
