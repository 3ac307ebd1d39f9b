package store

import "context"

// VectorMatch is one nearest-neighbor search hit.
type VectorMatch struct {
	// KBID identifies the knowledge base entry the vector belongs to.
	KBID string
	// UseCase is the indexed text, carried back for display and re-ranking.
	UseCase string
	// Similarity is cosine similarity clamped to [0, 1].
	Similarity float32
}

// VectorIndex is the semantic index over knowledge base use cases. Entries
// are keyed by kb id; Upsert replaces an existing vector with the same key.
type VectorIndex interface {
	Upsert(ctx context.Context, kbID, useCase string, embedding []float32) error
	Delete(ctx context.Context, kbID string) error
	Search(ctx context.Context, embedding []float32, topK int) ([]*VectorMatch, error)
	// ListIDs returns the kb ids currently present in the index.
	ListIDs(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int64, error)
	Close(ctx context.Context) error
}
