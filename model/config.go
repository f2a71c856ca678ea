package model

// VectorSearchMode selects how vector search executes. Auto probes for a
// usable pgvector index and falls back to brute-force cosine; the other
// two force a branch, which keeps both paths testable.
type VectorSearchMode string

const (
	VectorSearchAuto       VectorSearchMode = "auto"
	VectorSearchIndexed    VectorSearchMode = "indexed"
	VectorSearchBruteForce VectorSearchMode = "brute_force"
)

// QueryConfig represents configuration for a retrieval query
type QueryConfig struct {
	// Base search parameters
	TopK          int              `json:"top_k"`
	Source        string           `json:"source,omitempty"` // Filter by chunk source tag
	Model         string           `json:"model,omitempty"`  // Filter by embedding model
	SnippetMaxLen int              `json:"snippet_max_len"`  // Max snippet length in UTF-16 code units
	VectorMode    VectorSearchMode `json:"vector_mode"`

	// Knowledge graph routing parameters
	RoutingEnabled bool    `json:"routing_enabled"`
	MaxEntities    int     `json:"max_entities"`    // Cap on query entities resolved against the graph
	MinTrustScore  float64 `json:"min_trust_score"` // Floor for fuzzy entity matches
	BoostFactor    float64 `json:"boost_factor"`    // Additive boost per matched entity

	// Trust parameters
	TrustWeight float64 `json:"trust_weight"` // Relevance weight is 1 - TrustWeight
}

// DefaultQueryConfig returns a sensible default configuration
func DefaultQueryConfig() *QueryConfig {
	return &QueryConfig{
		TopK:           5,
		SnippetMaxLen:  300,
		VectorMode:     VectorSearchAuto,
		RoutingEnabled: true,
		MaxEntities:    5,
		MinTrustScore:  0.5,
		BoostFactor:    0.15,
		TrustWeight:    0.3,
	}
}
