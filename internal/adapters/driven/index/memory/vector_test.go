package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clauselens/clauselens/internal/core/domain"
)

func addVector(t *testing.T, v *VectorIndex, id, documentID string, embedding []float32, meta domain.FilterMetadata) {
	t.Helper()
	require.NoError(t, v.Add(context.Background(), domain.IndexChunk{
		ID:         id,
		DocumentID: documentID,
		Embedding:  embedding,
		Meta:       meta,
	}))
}

func TestVectorIndex_Search_RanksByCosineSimilarity(t *testing.T) {
	v := NewVectorIndex()
	addVector(t, v, "chunk-same", "doc-1", []float32{1, 0, 0}, domain.FilterMetadata{})
	addVector(t, v, "chunk-orthogonal", "doc-2", []float32{0, 1, 0}, domain.FilterMetadata{})
	addVector(t, v, "chunk-opposite", "doc-3", []float32{-1, 0, 0}, domain.FilterMetadata{})

	hits, err := v.Search(context.Background(), []float32{1, 0, 0}, 10, domain.QueryFilter{})
	require.NoError(t, err)

	require.Len(t, hits, 3)
	// Cosine is mapped from [-1,1] into [0,1].
	assert.Equal(t, "chunk-same", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.Equal(t, "chunk-orthogonal", hits[1].ChunkID)
	assert.InDelta(t, 0.5, hits[1].Similarity, 1e-6)
	assert.Equal(t, "chunk-opposite", hits[2].ChunkID)
	assert.InDelta(t, 0.0, hits[2].Similarity, 1e-6)
}

func TestVectorIndex_Search_FilterRestrictsCandidates(t *testing.T) {
	v := NewVectorIndex()
	addVector(t, v, "chunk-1", "doc-1", []float32{1, 0}, domain.FilterMetadata{Contractor: "Acme"})
	addVector(t, v, "chunk-2", "doc-2", []float32{1, 0}, domain.FilterMetadata{Contractor: "Globex"})

	hits, err := v.Search(context.Background(), []float32{1, 0}, 10,
		domain.QueryFilter{Contractor: "Globex"})
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "chunk-2", hits[0].ChunkID)
}

func TestVectorIndex_Search_SkipsDimensionMismatch(t *testing.T) {
	v := NewVectorIndex()
	addVector(t, v, "chunk-3d", "doc-1", []float32{1, 0, 0}, domain.FilterMetadata{})
	addVector(t, v, "chunk-2d", "doc-2", []float32{1, 0}, domain.FilterMetadata{})

	hits, err := v.Search(context.Background(), []float32{1, 0, 0}, 10, domain.QueryFilter{})
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "chunk-3d", hits[0].ChunkID)
}

func TestVectorIndex_Search_EmptyQueryOrZeroK(t *testing.T) {
	v := NewVectorIndex()
	addVector(t, v, "chunk-1", "doc-1", []float32{1, 0}, domain.FilterMetadata{})

	hits, err := v.Search(context.Background(), nil, 10, domain.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = v.Search(context.Background(), []float32{1, 0}, 0, domain.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = v.Search(context.Background(), []float32{0, 0}, 10, domain.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorIndex_Search_KNearest(t *testing.T) {
	v := NewVectorIndex()
	addVector(t, v, "chunk-1", "doc-1", []float32{1, 0}, domain.FilterMetadata{})
	addVector(t, v, "chunk-2", "doc-2", []float32{0.9, 0.1}, domain.FilterMetadata{})
	addVector(t, v, "chunk-3", "doc-3", []float32{0, 1}, domain.FilterMetadata{})

	hits, err := v.Search(context.Background(), []float32{1, 0}, 2, domain.QueryFilter{})
	require.NoError(t, err)

	require.Len(t, hits, 2)
	assert.Equal(t, "chunk-1", hits[0].ChunkID)
	assert.Equal(t, "chunk-2", hits[1].ChunkID)
}

func TestVectorIndex_DeleteDocument(t *testing.T) {
	v := NewVectorIndex()
	addVector(t, v, "chunk-1", "doc-1", []float32{1, 0}, domain.FilterMetadata{})
	addVector(t, v, "chunk-2", "doc-2", []float32{1, 0}, domain.FilterMetadata{})

	require.NoError(t, v.DeleteDocument(context.Background(), "doc-1"))

	hits, err := v.Search(context.Background(), []float32{1, 0}, 10, domain.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "chunk-2", hits[0].ChunkID)
}
