package model

// Strategy is the routing decision selecting how much the knowledge graph
// participates in a query.
type Strategy string

const (
	StrategyVectorOnly Strategy = "vector_only"
	StrategyKGFirst    Strategy = "kg_first"
	StrategyKGOnly     Strategy = "kg_only"
	StrategyHybrid     Strategy = "hybrid"
)

// UsesKG reports whether the strategy calls for knowledge graph routing.
func (s Strategy) UsesKG() bool {
	return s == StrategyKGFirst || s == StrategyKGOnly || s == StrategyHybrid
}

// QueryClassification is the output of the external query classifier.
type QueryClassification struct {
	Intent            string   `json:"intent"`
	Confidence        float64  `json:"confidence"`
	ExtractedEntities []string `json:"extracted_entities,omitempty"`
}

// QueryRouting describes how a query was routed.
type QueryRouting struct {
	Classification *QueryClassification `json:"classification"`
	Strategy       Strategy             `json:"strategy"`
	ShouldUseKG    bool                 `json:"should_use_kg"`
}
