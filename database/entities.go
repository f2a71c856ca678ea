package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/memoria-dev/memoria/helper"
	"github.com/memoria-dev/memoria/model"
	loadSql "github.com/memoria-dev/memoria/sql"
)

// EntitiesDBHandlerFunctions defines the interface for Entities database operations.
type EntitiesDBHandlerFunctions interface {
	UpsertEntity(name string, entityType model.EntityType, trustScore float64, sourceType model.SourceType) (*model.Entity, error)
	DeleteEntity(id uuid.UUID) error
	SelectEntity(id uuid.UUID) (*model.Entity, error)
	SelectEntityByName(name string) (*model.Entity, error)
	SearchEntities(term string, minTrust float64, limit int) ([]*model.Entity, error)
	InsertMention(mention *model.EntityMention) error
	SelectMentionsByChunk(chunkID string) ([]*model.EntityMention, error)
	SelectChunkIDsByEntity(entityID uuid.UUID) ([]string, error)
}

// EntitiesDBHandler handles entity and mention database operations
type EntitiesDBHandler struct {
	db *helper.Database
}

// NewEntitiesDBHandler creates a new entities database handler.
// It initializes the database connection and loads entity-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
	}

	err := loadSql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the 'entities' and 'entity_mentions' tables in the
// database. If the tables already exist, it does not create them again.
// It also creates the unique canonical name index.
func (h *EntitiesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities();`)
	if err != nil {
		log.Panicf("error initializing entities tables: %#v", err)
	}

	h.db.Logger.Info("Checked/created tables entities and entity_mentions")

	return nil
}

// UpsertEntity inserts a new entity or, when an entity with the same
// canonical name already exists (case-insensitive), merges the surface
// form into its aliases and returns the existing row.
func (h *EntitiesDBHandler) UpsertEntity(name string, entityType model.EntityType, trustScore float64, sourceType model.SourceType) (*model.Entity, error) {
	entity := &model.Entity{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_entity($1, $2, $3, $4)`,
		name,
		string(entityType),
		trustScore,
		string(sourceType),
	)

	err := scanEntity(row, entity)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// DeleteEntity deletes an entity by ID, cascading to its mentions and relations
func (h *EntitiesDBHandler) DeleteEntity(id uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_entity($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectEntity retrieves an entity by ID.
// Returns nil (without error) when no entity exists.
func (h *EntitiesDBHandler) SelectEntity(id uuid.UUID) (*model.Entity, error) {
	entity := &model.Entity{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_entity($1)`,
		id,
	)

	err := scanEntity(row, entity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SelectEntityByName retrieves an entity by its canonical name
// (case-insensitive exact match). Returns nil when no entity exists.
func (h *EntitiesDBHandler) SelectEntityByName(name string) (*model.Entity, error) {
	entity := &model.Entity{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_entity_by_canonical_name($1)`,
		name,
	)

	err := scanEntity(row, entity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SearchEntities performs a fuzzy search over canonical names, keeping
// only entities with a trust score of at least minTrust.
func (h *EntitiesDBHandler) SearchEntities(term string, minTrust float64, limit int) ([]*model.Entity, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM search_entities($1, $2, $3)`,
		term,
		minTrust,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		entity := &model.Entity{}
		err := scanEntity(rows, entity)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}

// InsertMention inserts a new entity mention linking a chunk to an entity
func (h *EntitiesDBHandler) InsertMention(mention *model.EntityMention) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_mention($1, $2, $3, $4, $5)`,
		mention.ChunkID,
		mention.EntityID,
		mention.MentionText,
		mention.StartOffset,
		mention.EndOffset,
	)

	err := row.Scan(
		&mention.ID,
		&mention.ChunkID,
		&mention.EntityID,
		&mention.MentionText,
		&mention.StartOffset,
		&mention.EndOffset,
		&mention.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectMentionsByChunk retrieves all entity mentions within a chunk
func (h *EntitiesDBHandler) SelectMentionsByChunk(chunkID string) ([]*model.EntityMention, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_mentions_by_chunk($1)`,
		chunkID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var mentions []*model.EntityMention
	for rows.Next() {
		mention := &model.EntityMention{}
		err := rows.Scan(
			&mention.ID,
			&mention.ChunkID,
			&mention.EntityID,
			&mention.MentionText,
			&mention.StartOffset,
			&mention.EndOffset,
			&mention.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		mentions = append(mentions, mention)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return mentions, nil
}

// SelectChunkIDsByEntity retrieves the distinct ids of chunks mentioning an entity
func (h *EntitiesDBHandler) SelectChunkIDsByEntity(entityID uuid.UUID) ([]string, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_chunk_ids_by_entity($1)`,
		entityID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var chunkIDs []string
	for rows.Next() {
		var chunkID string
		err := rows.Scan(&chunkID)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		chunkIDs = append(chunkIDs, chunkID)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunkIDs, nil
}

func scanEntity(row scanner, entity *model.Entity) error {
	return row.Scan(
		&entity.ID,
		&entity.Name,
		&entity.CanonicalName,
		&entity.Type,
		&entity.Aliases,
		&entity.TrustScore,
		&entity.SourceType,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
}
