package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clauselens/clauselens/internal/core/domain"
)

func indexChunk(t *testing.T, k *KeywordIndex, id, documentID, content string, meta domain.FilterMetadata) {
	t.Helper()
	require.NoError(t, k.Index(context.Background(), domain.IndexChunk{
		ID:         id,
		DocumentID: documentID,
		Content:    content,
		Meta:       meta,
	}))
}

func TestKeywordIndex_Search_RanksByRelevance(t *testing.T) {
	k := NewKeywordIndex()
	indexChunk(t, k, "chunk-1", "doc-1",
		"The contract value is payable in quarterly instalments.", domain.FilterMetadata{})
	indexChunk(t, k, "chunk-2", "doc-1",
		"The Contractor shall maintain the signalling equipment.", domain.FilterMetadata{})
	indexChunk(t, k, "chunk-3", "doc-2",
		"Contract value: the total contract value is two million.", domain.FilterMetadata{})

	hits, err := k.Search(context.Background(), "contract value", 10, domain.QueryFilter{})
	require.NoError(t, err)

	require.Len(t, hits, 2)
	// chunk-3 mentions the query terms twice, chunk-2 not at all.
	assert.Equal(t, "chunk-3", hits[0].ChunkID)
	assert.Equal(t, "chunk-1", hits[1].ChunkID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestKeywordIndex_Search_FilterRestrictsBeforeRanking(t *testing.T) {
	k := NewKeywordIndex()
	indexChunk(t, k, "chunk-1", "doc-1",
		"Payment terms are net thirty days.", domain.FilterMetadata{ProjectID: "proj-a"})
	indexChunk(t, k, "chunk-2", "doc-2",
		"Payment terms are net sixty days.", domain.FilterMetadata{ProjectID: "proj-b"})

	hits, err := k.Search(context.Background(), "payment terms", 10,
		domain.QueryFilter{ProjectIDs: []string{"proj-b"}})
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "chunk-2", hits[0].ChunkID)
}

func TestKeywordIndex_Search_DateRangeFilter(t *testing.T) {
	k := NewKeywordIndex()
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	indexChunk(t, k, "chunk-old", "doc-1", "maintenance obligations apply", domain.FilterMetadata{Date: old})
	indexChunk(t, k, "chunk-new", "doc-2", "maintenance obligations apply", domain.FilterMetadata{Date: recent})

	hits, err := k.Search(context.Background(), "maintenance", 10, domain.QueryFilter{
		DateFrom: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "chunk-new", hits[0].ChunkID)
}

func TestKeywordIndex_Search_DeterministicTieBreak(t *testing.T) {
	k := NewKeywordIndex()
	indexChunk(t, k, "chunk-z", "doc-1", "identical clause text here", domain.FilterMetadata{})
	indexChunk(t, k, "chunk-a", "doc-2", "identical clause text here", domain.FilterMetadata{})

	for i := 0; i < 5; i++ {
		hits, err := k.Search(context.Background(), "identical clause", 10, domain.QueryFilter{})
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "chunk-a", hits[0].ChunkID)
		assert.Equal(t, "chunk-z", hits[1].ChunkID)
	}
}

func TestKeywordIndex_Search_LimitAndEmptyQuery(t *testing.T) {
	k := NewKeywordIndex()
	for _, id := range []string{"c1", "c2", "c3"} {
		indexChunk(t, k, id, "doc-1", "recurring reporting obligation", domain.FilterMetadata{})
	}

	hits, err := k.Search(context.Background(), "reporting", 2, domain.QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = k.Search(context.Background(), "  ", 10, domain.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = k.Search(context.Background(), "reporting", 0, domain.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestKeywordIndex_Index_ReplacesExistingChunk(t *testing.T) {
	k := NewKeywordIndex()
	indexChunk(t, k, "chunk-1", "doc-1", "original wording about payment", domain.FilterMetadata{})
	indexChunk(t, k, "chunk-1", "doc-1", "revised wording about penalties", domain.FilterMetadata{})

	hits, err := k.Search(context.Background(), "payment", 10, domain.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = k.Search(context.Background(), "penalties", 10, domain.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestKeywordIndex_DeleteDocument(t *testing.T) {
	k := NewKeywordIndex()
	indexChunk(t, k, "chunk-1", "doc-1", "clause about reporting", domain.FilterMetadata{})
	indexChunk(t, k, "chunk-2", "doc-2", "clause about reporting", domain.FilterMetadata{})

	require.NoError(t, k.DeleteDocument(context.Background(), "doc-1"))

	hits, err := k.Search(context.Background(), "reporting", 10, domain.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "chunk-2", hits[0].ChunkID)
}

func TestTokenize_LowercasesAndSplitsOnPunctuation(t *testing.T) {
	got := tokenize("Net-30 DAYS, payable; (quarterly)!")
	assert.Equal(t, []string{"net", "30", "days", "payable", "quarterly"}, got)
}
