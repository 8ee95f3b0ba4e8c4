package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// vectorEntry is one indexed embedding.
type vectorEntry struct {
	documentID string
	meta       domain.FilterMetadata
	embedding  []float32
	norm       float64
}

// VectorIndex is an in-memory brute-force cosine similarity index.
// Exact search keeps ranking deterministic; corpus sizes here are
// bounded by what one service instance indexes.
type VectorIndex struct {
	mu      sync.RWMutex
	entries map[string]*vectorEntry
}

// NewVectorIndex creates an empty vector index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{entries: make(map[string]*vectorEntry)}
}

// Add inserts or replaces a chunk's embedding.
func (v *VectorIndex) Add(ctx context.Context, chunk domain.IndexChunk) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries[chunk.ID] = &vectorEntry{
		documentID: chunk.DocumentID,
		meta:       chunk.Meta,
		embedding:  chunk.Embedding,
		norm:       norm(chunk.Embedding),
	}
	return nil
}

// DeleteDocument removes every chunk owned by the document.
func (v *VectorIndex) DeleteDocument(ctx context.Context, documentID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, e := range v.entries {
		if e.documentID == documentID {
			delete(v.entries, id)
		}
	}
	return nil
}

// Search returns the k most similar chunks within the filtered set.
// Cosine similarity is mapped from [-1,1] into [0,1].
func (v *VectorIndex) Search(ctx context.Context, embedding []float32, k int, filter domain.QueryFilter) ([]driven.VectorHit, error) {
	if len(embedding) == 0 || k <= 0 {
		return nil, nil
	}
	queryNorm := norm(embedding)
	if queryNorm == 0 {
		return nil, nil
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	hits := make([]driven.VectorHit, 0, len(v.entries))
	for id, e := range v.entries {
		if !filter.IsZero() && !filter.Matches(e.meta) {
			continue
		}
		if len(e.embedding) != len(embedding) || e.norm == 0 {
			continue
		}
		var dot float64
		for i := range embedding {
			dot += float64(embedding[i]) * float64(e.embedding[i])
		}
		cosine := dot / (queryNorm * e.norm)
		hits = append(hits, driven.VectorHit{ChunkID: id, Similarity: (cosine + 1) / 2})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Close releases resources.
func (v *VectorIndex) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries = make(map[string]*vectorEntry)
	return nil
}

func norm(vec []float32) float64 {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
