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

// RelationsDBHandlerFunctions defines the interface for Relations database operations.
type RelationsDBHandlerFunctions interface {
	UpsertRelation(relation *model.Relation) error
	DeleteRelation(id uuid.UUID) error
	SelectRelation(id uuid.UUID) (*model.Relation, error)
	SelectRelationsByEntity(entityID uuid.UUID) ([]*model.Relation, error)
}

// RelationsDBHandler handles relation-related database operations
type RelationsDBHandler struct {
	db *helper.Database
}

// NewRelationsDBHandler creates a new relations database handler.
// It initializes the database connection and loads relation-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
// The entities tables must exist first, relations reference them.
func NewRelationsDBHandler(db *helper.Database, force bool) (*RelationsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	relationsDbHandler := &RelationsDBHandler{
		db: db,
	}

	err := loadSql.LoadRelationsSql(relationsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load relations sql", err)
	}

	err = relationsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RelationsDBHandler")

	return relationsDbHandler, nil
}

// CreateTable creates the 'relations' table in the database.
// If the table already exists, it does not create it again.
func (h *RelationsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_relations();`)
	if err != nil {
		log.Panicf("error initializing relations table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table relations")

	return nil
}

// UpsertRelation inserts a new relation or, when the (source, target,
// type) triple already exists, overwrites its confidence with the
// latest value.
func (h *RelationsDBHandler) UpsertRelation(relation *model.Relation) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_relation($1, $2, $3, $4, $5, $6)`,
		relation.SourceEntityID,
		relation.TargetEntityID,
		string(relation.RelationType),
		relation.Confidence,
		relation.ChunkID,
		string(relation.SourceType),
	)

	err := scanRelation(row, relation)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// DeleteRelation deletes a relation by ID
func (h *RelationsDBHandler) DeleteRelation(id uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_relation($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectRelation retrieves a relation by ID.
// Returns nil (without error) when no relation exists.
func (h *RelationsDBHandler) SelectRelation(id uuid.UUID) (*model.Relation, error) {
	relation := &model.Relation{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_relation($1)`,
		id,
	)

	err := scanRelation(row, relation)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return relation, nil
}

// SelectRelationsByEntity retrieves all relations where the entity is
// the source or the target.
func (h *RelationsDBHandler) SelectRelationsByEntity(entityID uuid.UUID) ([]*model.Relation, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_relations_by_entity($1)`,
		entityID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var relations []*model.Relation
	for rows.Next() {
		relation := &model.Relation{}
		err := scanRelation(rows, relation)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		relations = append(relations, relation)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return relations, nil
}

func scanRelation(row scanner, relation *model.Relation) error {
	return row.Scan(
		&relation.ID,
		&relation.SourceEntityID,
		&relation.TargetEntityID,
		&relation.RelationType,
		&relation.Confidence,
		&relation.ChunkID,
		&relation.SourceType,
		&relation.CreatedAt,
	)
}
