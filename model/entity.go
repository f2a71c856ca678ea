package model

import (
	"time"

	"github.com/google/uuid"
)

// EntityType classifies a knowledge graph entity.
type EntityType string

const (
	EntityTypePerson       EntityType = "person"
	EntityTypeOrganization EntityType = "organization"
	EntityTypeProject      EntityType = "project"
	EntityTypeTechnology   EntityType = "technology"
	EntityTypeConcept      EntityType = "concept"
	EntityTypeFile         EntityType = "file"
)

// Entity represents a named thing referenced across chunks.
// CanonicalName is the lower-cased name and the dedup key; re-extraction
// of a known entity with a different surface form grows Aliases instead
// of creating a second row.
type Entity struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	CanonicalName string     `json:"canonical_name"`
	Type          EntityType `json:"entity_type"`
	Aliases       StringSet  `json:"aliases,omitempty"`
	TrustScore    float64    `json:"trust_score"`
	SourceType    SourceType `json:"source_type"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// EntityMention links an entity occurrence to a chunk with its span.
type EntityMention struct {
	ID          uuid.UUID `json:"id"`
	ChunkID     string    `json:"chunk_id"`
	EntityID    uuid.UUID `json:"entity_id"`
	MentionText string    `json:"mention_text"`
	StartOffset int       `json:"start_offset"`
	EndOffset   int       `json:"end_offset"`
	CreatedAt   time.Time `json:"created_at"`
}

// EntityCandidate is an extracted entity before persistence.
type EntityCandidate struct {
	Name        string     `json:"name"`
	Type        EntityType `json:"entity_type"`
	Confidence  float64    `json:"confidence"`
	StartOffset int        `json:"start_offset"`
	EndOffset   int        `json:"end_offset"`
}

// RelationCandidate is an extracted relation before persistence,
// referencing its endpoints by surface name.
type RelationCandidate struct {
	SourceName   string       `json:"source_name"`
	TargetName   string       `json:"target_name"`
	RelationType RelationType `json:"relation_type"`
	Confidence   float64      `json:"confidence"`
}
