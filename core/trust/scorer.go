package trust

import (
	"log/slog"
	"sort"
	"time"

	"github.com/memoria-dev/memoria/database"
	"github.com/memoria-dev/memoria/model"
)

const (
	// CorroborationMinTrust is the trust a chunk needs to count as evidence
	CorroborationMinTrust = 0.7
	// CorroborationMinChunks is how many other chunks must share an entity
	CorroborationMinChunks = 2
)

// Scorer computes effective trust scores for chunks from their
// provenance records and the knowledge graph around them.
type Scorer struct {
	provenance *database.ProvenanceDBHandler
	log        *slog.Logger
}

// NewScorer creates a new trust scorer over the provenance ledger
func NewScorer(provenance *database.ProvenanceDBHandler, logger *slog.Logger) *Scorer {
	return &Scorer{
		provenance: provenance,
		log:        logger,
	}
}

// EffectiveTrustScore computes the current trust score for a chunk from
// its provenance record, corroborating evidence and age. Chunks without
// a provenance record, and chunks whose record cannot be read, score the
// minimum instead of failing the caller.
func (s *Scorer) EffectiveTrustScore(chunkID string) float64 {
	record, err := s.provenance.SelectProvenance(chunkID)
	if err != nil {
		s.log.Debug("Failed to read provenance, scoring minimum trust", slog.String("chunkId", chunkID), slog.String("error", err.Error()))
		return MinTrustScore
	}
	if record == nil {
		return MinTrustScore
	}

	ageInDays := float64(time.Now().UnixMilli()-record.CreatedAt) / float64(24*time.Hour/time.Millisecond)

	return CalculateTrustScore(TrustFactors{
		SourceType:           record.SourceType,
		IsVerified:           record.VerifiedByUser,
		HasHighTrustEvidence: s.HasCorroboratingEvidence(chunkID),
		ContradictionCount:   record.ContradictionCount,
		AgeInDays:            ageInDays,
	})
}

// HasCorroboratingEvidence reports whether the chunk shares at least one
// entity with CorroborationMinChunks other chunks of trust score
// CorroborationMinTrust or higher. Lookup failures count as no evidence.
func (s *Scorer) HasCorroboratingEvidence(chunkID string) bool {
	count, err := s.provenance.CorroboratingEntityCount(chunkID, CorroborationMinTrust, CorroborationMinChunks)
	if err != nil {
		s.log.Debug("Failed to count corroborating entities", slog.String("chunkId", chunkID), slog.String("error", err.Error()))
		return false
	}
	return count > 0
}

// TrustWeightedRerank blends each result's relevance score with its
// effective trust score and re-sorts by the combined score, descending.
// trustWeight is the share of the combined score taken from trust; 0
// keeps the relevance order, 1 sorts purely by trust.
func (s *Scorer) TrustWeightedRerank(results []*model.RetrievalResult, trustWeight float64) []*model.RetrievalResult {
	for _, result := range results {
		result.TrustScore = s.EffectiveTrustScore(result.Chunk.ID)
		result.CombinedScore = result.Score*(1.0-trustWeight) + result.TrustScore*trustWeight
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CombinedScore > results[j].CombinedScore
	})

	return results
}

// FilterByTrust drops results whose effective trust score is below
// minTrust. Results that were not reranked get their trust score
// computed here.
func (s *Scorer) FilterByTrust(results []*model.RetrievalResult, minTrust float64) []*model.RetrievalResult {
	filtered := make([]*model.RetrievalResult, 0, len(results))
	for _, result := range results {
		if result.TrustScore == 0 {
			result.TrustScore = s.EffectiveTrustScore(result.Chunk.ID)
		}
		if result.TrustScore >= minTrust {
			filtered = append(filtered, result)
		}
	}
	return filtered
}
