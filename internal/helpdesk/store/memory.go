package store

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an in-process VectorIndex. It keeps full vectors and scans
// them on search, which is fine for knowledge bases of a few thousand
// entries and removes the Milvus dependency for development and tests.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	seq     uint64
}

type memoryEntry struct {
	useCase   string
	embedding []float32
	// seq breaks similarity ties, newer entries win.
	seq uint64
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]*memoryEntry)}
}

// Upsert stores or replaces the vector for kb id.
func (m *MemoryIndex) Upsert(ctx context.Context, kbID, useCase string, embedding []float32) error {
	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.entries[kbID] = &memoryEntry{useCase: useCase, embedding: vec, seq: m.seq}
	return nil
}

// Delete removes the vector for kb id. Absent ids are a no-op.
func (m *MemoryIndex) Delete(ctx context.Context, kbID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, kbID)
	return nil
}

// Search scans all entries and returns the topK by cosine similarity,
// clamped to [0, 1]. Ties go to the most recently upserted entry.
func (m *MemoryIndex) Search(ctx context.Context, embedding []float32, topK int) ([]*VectorMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		match *VectorMatch
		seq   uint64
	}
	results := make([]scored, 0, len(m.entries))
	for kbID, e := range m.entries {
		sim := cosineSimilarity(embedding, e.embedding)
		if sim < 0 {
			sim = 0
		}
		results = append(results, scored{
			match: &VectorMatch{KBID: kbID, UseCase: e.useCase, Similarity: sim},
			seq:   e.seq,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].match.Similarity != results[j].match.Similarity {
			return results[i].match.Similarity > results[j].match.Similarity
		}
		return results[i].seq > results[j].seq
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	matches := make([]*VectorMatch, len(results))
	for i, r := range results {
		matches[i] = r.match
	}
	return matches, nil
}

// ListIDs returns every kb id in the index.
func (m *MemoryIndex) ListIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.entries))
	for kbID := range m.entries {
		ids = append(ids, kbID)
	}
	sort.Strings(ids)
	return ids, nil
}

// Count returns the number of vectors held.
func (m *MemoryIndex) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.entries)), nil
}

// Close is a no-op.
func (m *MemoryIndex) Close(ctx context.Context) error {
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

var _ VectorIndex = (*MemoryIndex)(nil)
