package trust

import (
	"math"

	"github.com/memoria-dev/memoria/model"
)

const (
	// MinTrustScore is the floor for computed trust scores
	MinTrustScore = 0.1
	// MaxTrustScore is the cap for trust scores
	MaxTrustScore = 1.0

	// VerificationBoost is added when the user verified a chunk
	VerificationBoost = 0.3
	// CorroborationBoost is added when other trusted chunks share entities
	CorroborationBoost = 0.1
	// ContradictionPenalty is subtracted per recorded contradiction
	ContradictionPenalty = 0.1

	// DecayGraceDays is the age in days below which no decay applies
	DecayGraceDays = 30.0
	// DecayPerDay is the multiplier lost per day past the grace period
	DecayPerDay = 0.01
	// DecayFloor is the lowest multiplier decay can reach
	DecayFloor = 0.5
)

// TrustFactors are the inputs to the trust score calculation
type TrustFactors struct {
	SourceType           model.SourceType
	IsVerified           bool
	HasHighTrustEvidence bool
	ContradictionCount   int
	AgeInDays            float64
}

// CalculateTrustScore computes a trust score from the given factors.
// The adjustments apply in a fixed order: source type default, then the
// verification boost (capped at 1.0), then the corroboration boost
// (capped at 1.0), then contradiction penalties (floored at 0.1), then
// age decay. Decay only applies to unverified chunks older than the
// grace period and never pushes the multiplier below DecayFloor. The
// result is rounded to two decimals.
func CalculateTrustScore(factors TrustFactors) float64 {
	score := factors.SourceType.DefaultTrustScore()

	if factors.IsVerified {
		score = math.Min(MaxTrustScore, score+VerificationBoost)
	}

	if factors.HasHighTrustEvidence {
		score = math.Min(MaxTrustScore, score+CorroborationBoost)
	}

	if factors.ContradictionCount > 0 {
		score = math.Max(MinTrustScore, score-ContradictionPenalty*float64(factors.ContradictionCount))
	}

	if !factors.IsVerified && factors.AgeInDays > DecayGraceDays {
		decay := math.Max(DecayFloor, 1.0-(factors.AgeInDays-DecayGraceDays)*DecayPerDay)
		score = score * decay
	}

	return math.Round(score*100) / 100
}
