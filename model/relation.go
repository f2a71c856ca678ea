package model

import (
	"time"

	"github.com/google/uuid"
)

// RelationType represents the type of a directed edge between entities.
type RelationType string

const (
	RelationTypeUses      RelationType = "uses"
	RelationTypeWorksOn   RelationType = "works_on"
	RelationTypeRelatedTo RelationType = "related_to"
)

// Relation is a directed, typed edge between two entities. Both endpoints
// must already exist; re-extraction of the same (source, target, type)
// triple overwrites Confidence with the latest value.
type Relation struct {
	ID             uuid.UUID    `json:"id"`
	SourceEntityID uuid.UUID    `json:"source_entity_id"`
	TargetEntityID uuid.UUID    `json:"target_entity_id"`
	RelationType   RelationType `json:"relation_type"`
	Confidence     float64      `json:"confidence"`
	ChunkID        string       `json:"chunk_id"`
	SourceType     SourceType   `json:"source_type"`
	CreatedAt      time.Time    `json:"created_at"`
}
