package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/memoria-dev/memoria/database"
	"github.com/memoria-dev/memoria/model"
)

// FuzzyMatchLimit caps fuzzy entity matches per extracted query entity
const FuzzyMatchLimit = 2

// MaxBoostEntities caps how many matched entities count towards the boost
const MaxBoostEntities = 3

// QueryClassifier decides what a query is about and which retrieval
// strategy fits it. Implementations typically call an external model;
// the router treats any failure as a signal to fall back to plain
// vector search.
type QueryClassifier interface {
	ClassifyQuery(ctx context.Context, query string) (*model.QueryClassification, error)
	SelectStrategy(classification *model.QueryClassification) model.Strategy
}

// Router augments base retrieval with knowledge graph boosting driven by
// query classification.
type Router struct {
	engine     *Engine
	entities   *database.EntitiesDBHandler
	classifier QueryClassifier
	log        *slog.Logger
}

// NewRouter creates a new query router
func NewRouter(engine *Engine, entities *database.EntitiesDBHandler, logger *slog.Logger) *Router {
	return &Router{
		engine:   engine,
		entities: entities,
		log:      logger,
	}
}

// SetClassifier sets the query classifier. Without one every query
// routes to plain vector search.
func (r *Router) SetClassifier(classifier QueryClassifier) {
	r.classifier = classifier
}

// GetQueryRouting classifies the query and derives the routing decision.
// A missing or failing classifier yields the vector only strategy with
// zero confidence, never an error.
func (r *Router) GetQueryRouting(ctx context.Context, query string) *model.QueryRouting {
	fallback := &model.QueryRouting{
		Classification: &model.QueryClassification{Intent: "unknown", Confidence: 0},
		Strategy:       model.StrategyVectorOnly,
		ShouldUseKG:    false,
	}

	if r.classifier == nil {
		return fallback
	}

	classification, err := r.classifier.ClassifyQuery(ctx, query)
	if err != nil || classification == nil {
		if err != nil {
			r.log.Debug("Query classification failed, routing to vector only", slog.String("error", err.Error()))
		}
		return fallback
	}

	strategy := r.classifier.SelectStrategy(classification)

	return &model.QueryRouting{
		Classification: classification,
		Strategy:       strategy,
		ShouldUseKG:    strategy.UsesKG(),
	}
}

// ResolveKGChunks maps the extracted query entities to the chunks that
// mention them. Each name is resolved by exact canonical match first,
// then by fuzzy search over names with at least minTrust. The result
// maps chunk id to the entity names it matched, deduplicated. At most
// maxEntities names are resolved.
func (r *Router) ResolveKGChunks(ctx context.Context, names []string, minTrust float64, maxEntities int) map[string][]string {
	if maxEntities > 0 && len(names) > maxEntities {
		names = names[:maxEntities]
	}

	kgChunks := map[string][]string{}

	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}

		var matched []*model.Entity

		entity, err := r.entities.SelectEntityByName(name)
		if err != nil {
			r.log.Debug("Entity lookup failed", slog.String("name", name), slog.String("error", err.Error()))
			continue
		}
		if entity != nil {
			matched = append(matched, entity)
		} else {
			fuzzy, err := r.entities.SearchEntities(name, minTrust, FuzzyMatchLimit)
			if err != nil {
				r.log.Debug("Entity search failed", slog.String("name", name), slog.String("error", err.Error()))
				continue
			}
			matched = fuzzy
		}

		for _, entity := range matched {
			chunkIDs, err := r.entities.SelectChunkIDsByEntity(entity.ID)
			if err != nil {
				r.log.Debug("Chunk lookup failed", slog.String("entityId", entity.ID.String()), slog.String("error", err.Error()))
				continue
			}

			for _, chunkID := range chunkIDs {
				if !containsName(kgChunks[chunkID], entity.Name) {
					kgChunks[chunkID] = append(kgChunks[chunkID], entity.Name)
				}
			}
		}
	}

	return kgChunks
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// ApplyKGBoost raises the score of results whose chunk matched query
// entities. The boost is boostFactor times the number of matched
// entities, capped at MaxBoostEntities. It is strictly additive, a
// result never loses score here.
func (r *Router) ApplyKGBoost(results []*model.RetrievalResult, kgChunks map[string][]string, boostFactor float64) {
	for _, result := range results {
		matched := kgChunks[result.Chunk.ID]
		if len(matched) == 0 {
			continue
		}

		count := len(matched)
		if count > MaxBoostEntities {
			count = MaxBoostEntities
		}

		result.KGBoost = boostFactor * float64(count)
		result.MatchedEntities = matched
		result.Score += result.KGBoost
	}
}

// SearchVectorWithRouting runs a vector search and, when the routing
// decision calls for it, boosts results whose chunks the knowledge graph
// links to the query entities. The base search always runs; routing only
// ever adds score on top.
func (r *Router) SearchVectorWithRouting(ctx context.Context, query string, embedding []float32, config *model.QueryConfig) (*model.RoutedResults, error) {
	if config == nil {
		config = model.DefaultQueryConfig()
	}

	routing := r.GetQueryRouting(ctx, query)

	results, err := r.engine.SearchVector(ctx, embedding, config)
	if err != nil {
		return nil, err
	}

	r.boostAndSort(ctx, results, routing, config)

	return &model.RoutedResults{
		Results:    results,
		Intent:     routing.Classification.Intent,
		Strategy:   routing.Strategy,
		Confidence: routing.Classification.Confidence,
	}, nil
}

// SearchKeywordWithRouting is SearchVectorWithRouting for full text search
func (r *Router) SearchKeywordWithRouting(ctx context.Context, query string, config *model.QueryConfig) (*model.RoutedResults, error) {
	if config == nil {
		config = model.DefaultQueryConfig()
	}

	routing := r.GetQueryRouting(ctx, query)

	results, err := r.engine.SearchKeyword(ctx, query, config)
	if err != nil {
		return nil, err
	}

	r.boostAndSort(ctx, results, routing, config)

	return &model.RoutedResults{
		Results:    results,
		Intent:     routing.Classification.Intent,
		Strategy:   routing.Strategy,
		Confidence: routing.Classification.Confidence,
	}, nil
}

func (r *Router) boostAndSort(ctx context.Context, results []*model.RetrievalResult, routing *model.QueryRouting, config *model.QueryConfig) {
	if !config.RoutingEnabled || !routing.ShouldUseKG {
		return
	}
	if len(routing.Classification.ExtractedEntities) == 0 {
		return
	}

	kgChunks := r.ResolveKGChunks(ctx, routing.Classification.ExtractedEntities, config.MinTrustScore, config.MaxEntities)
	if len(kgChunks) == 0 {
		return
	}

	r.ApplyKGBoost(results, kgChunks, config.BoostFactor)

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
