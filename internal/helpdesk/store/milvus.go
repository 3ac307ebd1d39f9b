package store

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/helpdesk-x/pkg/component/milvus"
)

// MilvusIndex implements VectorIndex on a Milvus collection.
type MilvusIndex struct {
	client     *milvus.Client
	collection string
}

// NewMilvusIndex creates the collection if needed and returns the index.
func NewMilvusIndex(ctx context.Context, client *milvus.Client, collection string, dimension int) (*MilvusIndex, error) {
	schema := &milvus.CollectionSchema{
		Name:        collection,
		Description: "helpdesk knowledge base use cases",
		Dimension:   dimension,
		PrimaryKey:  milvus.MetaField{Name: "kb_id", DataType: entity.FieldTypeVarChar, MaxLen: 64},
		MetaFields: []milvus.MetaField{
			{Name: "use_case", DataType: entity.FieldTypeVarChar, MaxLen: 2048},
		},
	}
	if err := client.CreateCollection(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to prepare milvus collection: %w", err)
	}
	return &MilvusIndex{client: client, collection: collection}, nil
}

// Upsert writes one use case vector keyed by kb id.
func (m *MilvusIndex) Upsert(ctx context.Context, kbID, useCase string, embedding []float32) error {
	return m.client.Upsert(ctx, m.collection, &milvus.UpsertData{
		IDField:    "kb_id",
		IDs:        []string{kbID},
		Embeddings: [][]float32{embedding},
		Metadata:   map[string][]string{"use_case": {useCase}},
	})
}

// Delete removes the vector for kb id. Deleting an absent id is a no-op.
func (m *MilvusIndex) Delete(ctx context.Context, kbID string) error {
	return m.client.DeleteByIDs(ctx, m.collection, "kb_id", []string{kbID})
}

// Search returns the topK most similar entries. Milvus is configured with
// the COSINE metric, negative scores are clamped to zero.
func (m *MilvusIndex) Search(ctx context.Context, embedding []float32, topK int) ([]*VectorMatch, error) {
	results, err := m.client.Search(ctx, m.collection, embedding, topK, []string{"kb_id", "use_case"})
	if err != nil {
		return nil, err
	}

	matches := make([]*VectorMatch, 0, len(results))
	for _, r := range results {
		sim := r.Score
		if sim < 0 {
			sim = 0
		}
		match := &VectorMatch{KBID: r.ID, Similarity: sim}
		if match.KBID == "" {
			if v, ok := r.Metadata["kb_id"].(string); ok {
				match.KBID = v
			}
		}
		if v, ok := r.Metadata["use_case"].(string); ok {
			match.UseCase = v
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// ListIDs returns every kb id in the collection.
func (m *MilvusIndex) ListIDs(ctx context.Context) ([]string, error) {
	return m.client.ListField(ctx, m.collection, "kb_id")
}

// Count returns the number of vectors in the collection.
func (m *MilvusIndex) Count(ctx context.Context) (int64, error) {
	return m.client.GetCollectionStats(ctx, m.collection)
}

// Close closes the underlying client.
func (m *MilvusIndex) Close(ctx context.Context) error {
	return m.client.Close(ctx)
}

var _ VectorIndex = (*MilvusIndex)(nil)
