package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"math"

	memoria "github.com/memoria-dev/memoria"
	"github.com/memoria-dev/memoria/core/extraction"
	"github.com/memoria-dev/memoria/helper"
	"github.com/memoria-dev/memoria/model"
)

const embeddingDim = 64

// hashEmbedder is a deterministic stand-in for a real embedding model.
// Replace it with a call to your embedding provider in production.
func hashEmbedder(text string) ([]float32, error) {
	embedding := make([]float32, embeddingDim)
	hash := fnv.New64a()
	_, _ = hash.Write([]byte(text))
	seed := hash.Sum64()

	var norm float64
	for i := range embedding {
		seed = seed*6364136223846793005 + 1442695040888963407
		value := float32(int64(seed>>32))/float32(math.MaxInt32) - 0.5
		embedding[i] = value
		norm += float64(value) * float64(value)
	}
	norm = math.Sqrt(norm)
	for i := range embedding {
		embedding[i] = float32(float64(embedding[i]) / norm)
	}

	return embedding, nil
}

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	m, err := memoria.NewMemoria(dbConfig, embeddingDim)
	if err != nil {
		log.Fatalf("Failed to create memoria: %v", err)
	}
	defer m.Close()

	m.SetEmbedder(hashEmbedder)

	ctx := context.Background()

	// Ingest a few chunks with provenance
	chunks := []struct {
		chunk      *model.Chunk
		sourceType model.SourceType
	}{
		{
			chunk: &model.Chunk{
				ID:      "note-1",
				Path:    "notes/stack.md",
				Content: "We use TypeScript and React for the frontend. The backend relies on Postgres.",
			},
			sourceType: model.SourceTypeUserStated,
		},
		{
			chunk: &model.Chunk{
				ID:      "note-2",
				Path:    "notes/infra.md",
				Content: "Deployment runs on Kubernetes with Docker images built in CI.",
			},
			sourceType: model.SourceTypeInferred,
		},
		{
			chunk: &model.Chunk{
				ID:      "note-3",
				Path:    "docs/external.md",
				Content: "According to the vendor docs, Redis should be configured with maxmemory-policy allkeys-lru.",
			},
			sourceType: model.SourceTypeExternalDoc,
		},
	}

	fmt.Println("=== Ingesting Chunks ===")
	for _, c := range chunks {
		embedding, err := hashEmbedder(c.chunk.Content)
		if err != nil {
			log.Fatalf("Failed to embed chunk: %v", err)
		}
		c.chunk.Embedding = embedding

		if err := m.Chunks.InsertChunk(c.chunk); err != nil {
			log.Fatalf("Failed to insert chunk: %v", err)
		}

		record, err := m.RecordProvenance(c.chunk.ID, c.sourceType, nil, nil)
		if err != nil {
			log.Fatalf("Failed to record provenance: %v", err)
		}

		result, err := m.ProcessChunk(ctx, c.chunk, &extraction.Options{SourceType: c.sourceType})
		if err != nil {
			log.Fatalf("Failed to process chunk: %v", err)
		}

		fmt.Printf("Chunk %s: trust %.2f, %d entities, %d relations\n",
			c.chunk.ID, record.TrustScore, len(result.Entities), len(result.Relations))
	}

	// Verify the first chunk, raising its trust
	verified, err := m.VerifyChunk("note-1", 0.3)
	if err != nil {
		log.Fatalf("Failed to verify chunk: %v", err)
	}
	fmt.Printf("\nVerified note-1: %v, effective trust now %.2f\n", verified, m.EffectiveTrustScore("note-1"))

	// Search
	fmt.Println("\n=== Search ===")
	config := model.DefaultQueryConfig()
	config.TopK = 3

	results, err := m.Search(ctx, "What do we use for the frontend?", config)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}

	reranked := m.TrustWeightedRerank(results.Results, config.TrustWeight)
	for i, result := range reranked {
		fmt.Printf("%d. %s (score %.3f, trust %.2f, combined %.3f)\n   %s\n",
			i+1, result.Chunk.ID, result.Score, result.TrustScore, result.CombinedScore, result.Snippet)
	}

	// Single hop through the knowledge graph
	fmt.Println("\n=== Chunks mentioning React ===")
	linked, err := m.ChunksForEntity("React")
	if err != nil {
		log.Fatalf("Entity lookup failed: %v", err)
	}
	for _, chunk := range linked {
		fmt.Printf("- %s (%s)\n", chunk.ID, chunk.Path)
	}
}
