package model

// SourceType describes where a chunk's content came from.
type SourceType string

const (
	SourceTypeUserStated  SourceType = "user_stated"
	SourceTypeInferred    SourceType = "inferred"
	SourceTypeExternalDoc SourceType = "external_doc"
	SourceTypeToolResult  SourceType = "tool_result"
)

// DefaultTrustScore returns the initial trust score for a source type.
// External documents are capped at 0.3 and must never exceed this by
// default; unknown source types fall back to 0.5.
func (s SourceType) DefaultTrustScore() float64 {
	switch s {
	case SourceTypeUserStated:
		return 0.9
	case SourceTypeInferred:
		return 0.5
	case SourceTypeToolResult:
		return 0.4
	case SourceTypeExternalDoc:
		return 0.3
	default:
		return 0.5
	}
}

// ProvenanceRecord holds per-chunk trust metadata, 1:1 with a chunk.
// Timestamps are epoch milliseconds.
type ProvenanceRecord struct {
	ChunkID               string     `json:"chunk_id"`
	SourceType            SourceType `json:"source_type"`
	SourceURI             *string    `json:"source_uri,omitempty"`
	TrustScore            float64    `json:"trust_score"`
	VerifiedByUser        bool       `json:"verified_by_user"`
	VerificationTimestamp *int64     `json:"verification_timestamp,omitempty"`
	ContradictionCount    int        `json:"contradiction_count"`
	CreatedAt             int64      `json:"created_at"`
}
