package trust

import (
	"context"
	"log"
	"log/slog"
	"os"
	"testing"

	"github.com/memoria-dev/memoria/database"
	"github.com/memoria-dev/memoria/helper"
	loadSql "github.com/memoria-dev/memoria/sql"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

var dbPort string

func TestMain(m *testing.M) {
	var teardown func(ctx context.Context, opts ...testcontainers.TerminateOption) error
	var err error
	teardown, dbPort, err = helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("error starting postgres container: %v", err)
	}

	m.Run()

	if teardown != nil && teardown(context.Background()) != nil {
		log.Fatalf("error tearing down postgres container: %v", err)
	}
}

func initScorer(t *testing.T) (*Scorer, *database.ProvenanceDBHandler, *database.EntitiesDBHandler) {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")
	db := helper.NewTestDatabase(dbConfig)

	err = loadSql.Init(db.Instance)
	require.NoError(t, err)

	provenance, err := database.NewProvenanceDBHandler(db, true)
	require.NoError(t, err, "Expected NewProvenanceDBHandler to not return an error")

	entities, err := database.NewEntitiesDBHandler(db, true)
	require.NoError(t, err, "Expected NewEntitiesDBHandler to not return an error")

	_, err = db.Instance.Exec(`TRUNCATE TABLE entity_mentions, entities, chunk_provenance;`)
	require.NoError(t, err, "failed to truncate tables")

	logger := slog.New(helper.NewPrettyHandler(os.Stdout, helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{Level: slog.LevelDebug},
	}))

	return NewScorer(provenance, logger), provenance, entities
}
