package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/memoria-dev/memoria/helper"
	"github.com/memoria-dev/memoria/model"
	loadSql "github.com/memoria-dev/memoria/sql"
)

// ProvenanceDBHandlerFunctions defines the interface for the provenance ledger.
type ProvenanceDBHandlerFunctions interface {
	RecordProvenance(chunkID string, sourceType model.SourceType, sourceURI *string, trustScore *float64) (*model.ProvenanceRecord, error)
	SelectProvenance(chunkID string) (*model.ProvenanceRecord, error)
	VerifyChunk(chunkID string, trustBoost float64) (bool, error)
	RecordContradiction(chunkID string, penalty float64) (bool, error)
	ContradictionCount(chunkID string) (int, error)
	UpdateTrustScore(chunkID string, trustScore float64) (bool, error)
	CorroboratingEntityCount(chunkID string, minTrust float64, minChunks int) (int, error)
}

// ProvenanceDBHandler is the provenance ledger: it records, reads and
// mutates per chunk trust metadata. Mutators on unknown chunks are no-ops
// returning false, they never fail.
type ProvenanceDBHandler struct {
	db *helper.Database
}

// NewProvenanceDBHandler creates a new provenance database handler.
// It initializes the database connection and loads provenance-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewProvenanceDBHandler(db *helper.Database, force bool) (*ProvenanceDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	provenanceDbHandler := &ProvenanceDBHandler{
		db: db,
	}

	err := loadSql.LoadProvenanceSql(provenanceDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load provenance sql", err)
	}

	err = provenanceDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ProvenanceDBHandler")

	return provenanceDbHandler, nil
}

// CreateTable creates the 'chunk_provenance' table in the database.
// If the table already exists, it does not create it again.
func (h *ProvenanceDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_provenance();`)
	if err != nil {
		log.Panicf("error initializing chunk_provenance table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table chunk_provenance")

	return nil
}

// RecordProvenance writes the provenance record for a chunk, replacing
// any existing record wholesale. When trustScore is nil the default for
// the source type is used; verified_by_user always starts false.
func (h *ProvenanceDBHandler) RecordProvenance(chunkID string, sourceType model.SourceType, sourceURI *string, trustScore *float64) (*model.ProvenanceRecord, error) {
	score := sourceType.DefaultTrustScore()
	if trustScore != nil {
		score = *trustScore
	}

	record := &model.ProvenanceRecord{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM record_provenance($1, $2, $3, $4, $5)`,
		chunkID,
		string(sourceType),
		sourceURI,
		score,
		time.Now().UnixMilli(),
	)

	err := scanProvenance(row, record)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return record, nil
}

// SelectProvenance retrieves the provenance record for a chunk.
// Returns nil (without error) when no record exists.
func (h *ProvenanceDBHandler) SelectProvenance(chunkID string) (*model.ProvenanceRecord, error) {
	record := &model.ProvenanceRecord{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_provenance($1)`,
		chunkID,
	)

	err := scanProvenance(row, record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return record, nil
}

// VerifyChunk marks the chunk as user verified and raises its trust
// score by trustBoost, capped at 1.0. Returns false when the chunk has
// no provenance record.
func (h *ProvenanceDBHandler) VerifyChunk(chunkID string, trustBoost float64) (bool, error) {
	var verified bool
	err := h.db.Instance.QueryRow(
		`SELECT verify_chunk($1, $2, $3)`,
		chunkID,
		trustBoost,
		time.Now().UnixMilli(),
	).Scan(&verified)
	if err != nil {
		return false, helper.NewError("scan", err)
	}
	return verified, nil
}

// RecordContradiction increments the contradiction count and lowers the
// trust score by penalty, floored at 0.1. Returns false when the chunk
// has no provenance record.
func (h *ProvenanceDBHandler) RecordContradiction(chunkID string, penalty float64) (bool, error) {
	var recorded bool
	err := h.db.Instance.QueryRow(
		`SELECT record_contradiction($1, $2)`,
		chunkID,
		penalty,
	).Scan(&recorded)
	if err != nil {
		return false, helper.NewError("scan", err)
	}
	return recorded, nil
}

// ContradictionCount returns the contradiction count for a chunk,
// defaulting to 0 for unknown chunks.
func (h *ProvenanceDBHandler) ContradictionCount(chunkID string) (int, error) {
	var count int
	err := h.db.Instance.QueryRow(
		`SELECT contradiction_count($1)`,
		chunkID,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return count, nil
}

// UpdateTrustScore overwrites the trust score directly, clamped to
// [0, 1]. This is the administrative override path: unlike the other
// mutators it can set scores below the 0.1 floor.
func (h *ProvenanceDBHandler) UpdateTrustScore(chunkID string, trustScore float64) (bool, error) {
	var updated bool
	err := h.db.Instance.QueryRow(
		`SELECT update_trust_score($1, $2)`,
		chunkID,
		trustScore,
	).Scan(&updated)
	if err != nil {
		return false, helper.NewError("scan", err)
	}
	return updated, nil
}

// CorroboratingEntityCount counts entities mentioned in this chunk that
// are also mentioned by at least minChunks other chunks whose trust
// score is >= minTrust.
func (h *ProvenanceDBHandler) CorroboratingEntityCount(chunkID string, minTrust float64, minChunks int) (int, error) {
	var count int
	err := h.db.Instance.QueryRow(
		`SELECT corroborating_entity_count($1, $2, $3)`,
		chunkID,
		minTrust,
		minChunks,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return count, nil
}

// scanner abstracts over sql.Row and sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProvenance(row scanner, record *model.ProvenanceRecord) error {
	return row.Scan(
		&record.ChunkID,
		&record.SourceType,
		&record.SourceURI,
		&record.TrustScore,
		&record.VerifiedByUser,
		&record.VerificationTimestamp,
		&record.ContradictionCount,
		&record.CreatedAt,
	)
}
