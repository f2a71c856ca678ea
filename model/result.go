package model

// RetrievalResult represents a chunk retrieved by a query
type RetrievalResult struct {
	Chunk           *Chunk   `json:"chunk"`
	Score           float64  `json:"score"`                      // Combined score after boosting
	SimilarityScore float64  `json:"similarity_score,omitempty"` // Cosine similarity score
	TextScore       float64  `json:"text_score,omitempty"`       // Normalized keyword rank score
	TrustScore      float64  `json:"trust_score,omitempty"`      // Effective trust, set by reranking
	KGBoost         float64  `json:"kg_boost,omitempty"`         // Additive knowledge graph boost
	MatchedEntities []string `json:"matched_entities,omitempty"` // Entity names that matched the query
	CombinedScore   float64  `json:"combined_score,omitempty"`   // Relevance blended with trust, set by reranking
	Snippet         string   `json:"snippet"`
	RetrievalMethod string   `json:"retrieval_method"` // How it was retrieved (vector, keyword, entity)
}

// RoutedResults carries retrieval results together with the routing
// metadata of the query that produced them.
type RoutedResults struct {
	Results    []*RetrievalResult `json:"results"`
	Intent     string             `json:"intent"`
	Strategy   Strategy           `json:"strategy"`
	Confidence float64            `json:"confidence"`
}
