package extraction

import (
	"context"
	"log/slog"

	"github.com/memoria-dev/memoria/helper"
	"github.com/memoria-dev/memoria/model"
)

// PersistEntities upserts the candidate entities and records one mention
// per candidate for the given chunk. Candidates whose canonical name
// already exists merge into the existing entity instead of creating a
// duplicate. When trustScore is nil the default for the source type is
// used.
func (e *Extractor) PersistEntities(candidates []model.EntityCandidate, chunkID string, sourceType model.SourceType, trustScore *float64) ([]*model.Entity, error) {
	score := sourceType.DefaultTrustScore()
	if trustScore != nil {
		score = *trustScore
	}

	var entities []*model.Entity
	for _, candidate := range candidates {
		entity, err := e.entities.UpsertEntity(candidate.Name, candidate.Type, score, sourceType)
		if err != nil {
			return entities, helper.NewError("upsert entity", err)
		}

		mention := &model.EntityMention{
			ChunkID:     chunkID,
			EntityID:    entity.ID,
			MentionText: candidate.Name,
			StartOffset: candidate.StartOffset,
			EndOffset:   candidate.EndOffset,
		}
		err = e.entities.InsertMention(mention)
		if err != nil {
			return entities, helper.NewError("insert mention", err)
		}

		entities = append(entities, entity)
	}

	return entities, nil
}

// PersistRelations upserts the candidate relations. Both endpoints are
// resolved by canonical name; candidates with an unresolvable endpoint
// are skipped silently so that a relation never dangles.
func (e *Extractor) PersistRelations(candidates []model.RelationCandidate, chunkID string, sourceType model.SourceType) ([]*model.Relation, error) {
	var relations []*model.Relation
	for _, candidate := range candidates {
		source, err := e.entities.SelectEntityByName(candidate.SourceName)
		if err != nil {
			return relations, helper.NewError("resolve source entity", err)
		}
		target, err := e.entities.SelectEntityByName(candidate.TargetName)
		if err != nil {
			return relations, helper.NewError("resolve target entity", err)
		}
		if source == nil || target == nil {
			e.log.Debug(
				"Skipping relation with unresolved endpoint",
				slog.String("source", candidate.SourceName),
				slog.String("target", candidate.TargetName),
			)
			continue
		}

		confidence := candidate.Confidence
		if confidence == 0 {
			confidence = 0.5
		}

		relation := &model.Relation{
			SourceEntityID: source.ID,
			TargetEntityID: target.ID,
			RelationType:   candidate.RelationType,
			Confidence:     confidence,
			ChunkID:        chunkID,
			SourceType:     sourceType,
		}
		err = e.relations.UpsertRelation(relation)
		if err != nil {
			return relations, helper.NewError("upsert relation", err)
		}

		relations = append(relations, relation)
	}

	return relations, nil
}

// ExtractAndPersist runs extraction over the chunk text and persists the
// resulting entities, mentions and relations in one pass.
func (e *Extractor) ExtractAndPersist(ctx context.Context, chunkID string, text string, opts *Options) (*ExtractionResult, error) {
	sourceType := model.SourceTypeInferred
	var trustScore *float64
	if opts != nil {
		if opts.SourceType != "" {
			sourceType = opts.SourceType
		}
		trustScore = opts.TrustScore
	}

	result := e.Extract(ctx, text, opts)

	_, err := e.PersistEntities(result.Entities, chunkID, sourceType, trustScore)
	if err != nil {
		return result, err
	}

	_, err = e.PersistRelations(result.Relations, chunkID, sourceType)
	if err != nil {
		return result, err
	}

	e.log.Debug(
		"Extracted and persisted chunk graph",
		slog.String("chunkId", chunkID),
		slog.Int("entities", len(result.Entities)),
		slog.Int("relations", len(result.Relations)),
	)

	return result, nil
}
