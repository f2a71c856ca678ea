package model

import (
	"time"
)

// Chunk represents a stored span of source text, the unit of retrieval.
// Chunks are written during ingestion (outside this library) and are
// immutable afterwards; the ID is a stable caller-supplied key.
type Chunk struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	StartLine int       `json:"start_line"`
	EndLine   int       `json:"end_line"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding,omitempty"`
	Source    string    `json:"source"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}
