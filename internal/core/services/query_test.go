package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clauselens/clauselens/internal/adapters/driven/storage/memory"
	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
	"github.com/clauselens/clauselens/internal/core/ports/driving"
)

type queryFixture struct {
	svc     *Query
	docs    *memory.DocumentStore
	ledger  *memory.LedgerStore
	keyword *mockKeywordIndex
	vector  *mockVectorIndex
	embed   *mockEmbeddingService
}

func newQueryFixture(t *testing.T, answers driven.AnswerGenerator) *queryFixture {
	t.Helper()
	f := &queryFixture{
		docs:    memory.NewDocumentStore(),
		ledger:  memory.NewLedgerStore(),
		keyword: &mockKeywordIndex{},
		vector:  &mockVectorIndex{},
		embed:   &mockEmbeddingService{embedding: []float32{0.1, 0.2, 0.3, 0.4}},
	}
	registry := newTestRegistry(&mockFieldExtractor{}, nil, f.embed, answers)
	f.svc = NewQuery(registry, f.docs, f.ledger, f.keyword, f.vector, fastCall(), staticSettings(testSettings()))
	return f
}

func (f *queryFixture) seedChunk(t *testing.T, chunk domain.IndexChunk) {
	t.Helper()
	require.NoError(t, f.docs.SaveDocument(context.Background(), &domain.Document{
		ID:    chunk.DocumentID,
		Pages: []domain.Page{{Number: 1, Text: chunk.Content}},
	}))
	existing, err := f.docs.GetChunks(context.Background(), chunk.DocumentID)
	if err != nil {
		existing = nil
	}
	require.NoError(t, f.docs.ReplaceChunks(context.Background(), chunk.DocumentID, append(existing, chunk)))
}

func TestQuery_RequiresQuestion(t *testing.T) {
	f := newQueryFixture(t, nil)

	_, err := f.svc.Query(context.Background(), driving.QueryRequest{Question: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQuery_NotFoundAnswerWhenNothingClearsThreshold(t *testing.T) {
	f := newQueryFixture(t, nil)

	result, err := f.svc.Query(context.Background(), driving.QueryRequest{
		Question: "What is the contract value?",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.AnswerNotFound, result.Answer.Type)
	assert.Equal(t, notFoundAnswer, result.Answer.Text)
	assert.Empty(t, result.Answer.Sources)
	assert.Zero(t, result.SearchResultCount)
}

func TestQuery_KeywordModeReturnsCitedAnswer(t *testing.T) {
	f := newQueryFixture(t, nil)
	f.seedChunk(t, domain.IndexChunk{
		ID:         "chunk-1",
		DocumentID: "doc-1",
		Content:    "The total contract value is USD 2,400,000 payable in quarterly instalments.",
		Offset:     domain.TextOffset{Start: 0, End: 76},
	})
	f.keyword.hits = []driven.KeywordHit{{ChunkID: "chunk-1", Score: 4.2}}

	result, err := f.svc.Query(context.Background(), driving.QueryRequest{
		Question: "What is the contract value?",
		Mode:     domain.SearchModeKeyword,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.AnswerDirect, result.Answer.Type)
	assert.Contains(t, result.Answer.Text, "USD 2,400,000")
	require.Len(t, result.Answer.Sources, 1)
	src := result.Answer.Sources[0]
	assert.Equal(t, "doc-1", src.DocumentID)
	assert.Equal(t, "chunk-1", src.ChunkID)
	assert.Equal(t, "/documents/doc-1#offset=0-76", src.DeepLink)
	assert.Equal(t, 1.0, src.Score)
	assert.Equal(t, 1, result.SearchResultCount)
}

func TestQuery_HybridMergesWeightedScores(t *testing.T) {
	f := newQueryFixture(t, nil)
	for _, id := range []string{"chunk-a", "chunk-b"} {
		f.seedChunk(t, domain.IndexChunk{
			ID:         id,
			DocumentID: "doc-" + id,
			Content:    "The Contractor shall maintain the equipment.",
			Offset:     domain.TextOffset{Start: 0, End: 44},
		})
	}
	f.keyword.hits = []driven.KeywordHit{
		{ChunkID: "chunk-a", Score: 8.0},
		{ChunkID: "chunk-b", Score: 2.0},
	}
	f.vector.hits = []driven.VectorHit{
		{ChunkID: "chunk-b", Similarity: 0.9},
	}

	result, err := f.svc.Query(context.Background(), driving.QueryRequest{
		Question: "Who maintains the equipment?",
		Mode:     domain.SearchModeHybrid,
	})
	require.NoError(t, err)

	// chunk-a: keyword 1.0 * 0.5 = 0.5
	// chunk-b: keyword 0.0 * 0.5 + vector 0.9 * 0.5 = 0.45
	require.Len(t, result.Answer.Sources, 2)
	assert.Equal(t, "chunk-a", result.Answer.Sources[0].ChunkID)
	assert.InDelta(t, 0.5, result.Answer.Sources[0].Score, 1e-9)
	assert.Equal(t, "chunk-b", result.Answer.Sources[1].ChunkID)
	assert.InDelta(t, 0.45, result.Answer.Sources[1].Score, 1e-9)
}

func TestQuery_TiesBreakOnChunkID(t *testing.T) {
	f := newQueryFixture(t, nil)
	for _, id := range []string{"chunk-z", "chunk-a"} {
		f.seedChunk(t, domain.IndexChunk{
			ID:         id,
			DocumentID: "doc-" + id,
			Content:    "Identical scoring content.",
			Offset:     domain.TextOffset{Start: 0, End: 26},
		})
	}
	f.keyword.hits = []driven.KeywordHit{
		{ChunkID: "chunk-z", Score: 3.0},
		{ChunkID: "chunk-a", Score: 3.0},
	}

	result, err := f.svc.Query(context.Background(), driving.QueryRequest{
		Question: "anything",
		Mode:     domain.SearchModeKeyword,
	})
	require.NoError(t, err)

	require.Len(t, result.Answer.Sources, 2)
	assert.Equal(t, "chunk-a", result.Answer.Sources[0].ChunkID)
	assert.Equal(t, "chunk-z", result.Answer.Sources[1].ChunkID)
}

func TestQuery_MinScoreCutsNeverPads(t *testing.T) {
	f := newQueryFixture(t, nil)
	for _, id := range []string{"chunk-a", "chunk-b", "chunk-c"} {
		f.seedChunk(t, domain.IndexChunk{
			ID:         id,
			DocumentID: "doc-" + id,
			Content:    "Some contract clause text.",
			Offset:     domain.TextOffset{Start: 0, End: 26},
		})
	}
	// Min-max normalisation maps these to 1.0, 0.5 and 0.0; with
	// MinScore 0.25 the lowest is cut and nothing replaces it.
	f.keyword.hits = []driven.KeywordHit{
		{ChunkID: "chunk-a", Score: 6.0},
		{ChunkID: "chunk-b", Score: 4.0},
		{ChunkID: "chunk-c", Score: 2.0},
	}

	result, err := f.svc.Query(context.Background(), driving.QueryRequest{
		Question: "clause",
		Mode:     domain.SearchModeKeyword,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.SearchResultCount)
	require.Len(t, result.Answer.Sources, 2)
}

func TestQuery_MaxResultsCapsSources(t *testing.T) {
	f := newQueryFixture(t, nil)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("chunk-%d", i)
		f.seedChunk(t, domain.IndexChunk{
			ID:         id,
			DocumentID: "doc-1",
			Content:    "Clause text number " + id,
			Offset:     domain.TextOffset{Start: i * 100, End: i*100 + 20},
		})
		f.keyword.hits = append(f.keyword.hits, driven.KeywordHit{ChunkID: id, Score: float64(10 - i)})
	}

	result, err := f.svc.Query(context.Background(), driving.QueryRequest{
		Question:   "clause",
		Mode:       domain.SearchModeKeyword,
		MaxResults: 2,
	})
	require.NoError(t, err)

	require.Len(t, result.Answer.Sources, 2)
	// The count reflects what cleared the threshold before capping.
	assert.Greater(t, result.SearchResultCount, 2)
}

func TestQuery_HybridDegradesOnTransientEmbeddingOutage(t *testing.T) {
	f := newQueryFixture(t, nil)
	f.seedChunk(t, domain.IndexChunk{
		ID:         "chunk-1",
		DocumentID: "doc-1",
		Content:    "Payment is due within 30 days of invoice.",
		Offset:     domain.TextOffset{Start: 0, End: 41},
	})
	f.keyword.hits = []driven.KeywordHit{{ChunkID: "chunk-1", Score: 5.0}}
	f.embed.embedErr = fmt.Errorf("%w: connection refused", domain.ErrProviderUnavailable)

	result, err := f.svc.Query(context.Background(), driving.QueryRequest{
		Question: "When is payment due?",
		Mode:     domain.SearchModeHybrid,
	})
	require.NoError(t, err)

	require.Len(t, result.Answer.Sources, 1)
	assert.Equal(t, "chunk-1", result.Answer.Sources[0].ChunkID)
}

func TestQuery_SemanticModeSurfacesEmbeddingOutage(t *testing.T) {
	f := newQueryFixture(t, nil)
	f.embed.embedErr = fmt.Errorf("%w: connection refused", domain.ErrProviderUnavailable)

	_, err := f.svc.Query(context.Background(), driving.QueryRequest{
		Question: "When is payment due?",
		Mode:     domain.SearchModeSemantic,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestQuery_SkipsChunksMissingFromStorage(t *testing.T) {
	f := newQueryFixture(t, nil)
	f.seedChunk(t, domain.IndexChunk{
		ID:         "chunk-real",
		DocumentID: "doc-1",
		Content:    "A real clause.",
		Offset:     domain.TextOffset{Start: 0, End: 14},
	})
	f.keyword.hits = []driven.KeywordHit{
		{ChunkID: "chunk-ghost", Score: 5.0},
		{ChunkID: "chunk-real", Score: 5.0},
	}

	result, err := f.svc.Query(context.Background(), driving.QueryRequest{
		Question: "clause",
		Mode:     domain.SearchModeKeyword,
	})
	require.NoError(t, err)

	// The stale index entry is skipped, not surfaced.
	require.Len(t, result.Answer.Sources, 1)
	assert.Equal(t, "chunk-real", result.Answer.Sources[0].ChunkID)
}

func TestQuery_FieldConfidenceCapsAnswerConfidence(t *testing.T) {
	f := newQueryFixture(t, nil)

	field := domain.ExtractedField{
		ID:         "field-1",
		DocumentID: "doc-1",
		Key:        domain.FieldContractValue,
		Value:      "USD 2,400,000",
		Confidence: 0.35,
		Source:     domain.SourceAI,
		Offset:     &domain.TextOffset{Start: 10, End: 23},
	}
	require.NoError(t, f.ledger.SaveField(context.Background(), &field))

	f.seedChunk(t, domain.IndexChunk{
		ID:         "chunk-1",
		DocumentID: "doc-1",
		Content:    "The total contract value is USD 2,400,000.",
		Offset:     domain.TextOffset{Start: 0, End: 42},
		FieldIDs:   []string{"field-1"},
	})
	f.keyword.hits = []driven.KeywordHit{{ChunkID: "chunk-1", Score: 5.0}}

	result, err := f.svc.Query(context.Background(), driving.QueryRequest{
		Question: "What is the contract value?",
		Mode:     domain.SearchModeKeyword,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.35, result.Answer.Confidence)
	require.Len(t, result.Answer.Sources, 1)
	assert.Equal(t, []domain.FieldKey{domain.FieldContractValue}, result.Answer.Sources[0].FieldKeys)
}

func TestQuery_SynthesizedAnswerWithGenerator(t *testing.T) {
	generator := &mockAnswerGenerator{answer: "The contract is worth USD 2,400,000."}
	f := newQueryFixture(t, generator)
	f.seedChunk(t, domain.IndexChunk{
		ID:         "chunk-1",
		DocumentID: "doc-1",
		Content:    "The total contract value is USD 2,400,000.",
		Offset:     domain.TextOffset{Start: 0, End: 42},
	})
	f.keyword.hits = []driven.KeywordHit{{ChunkID: "chunk-1", Score: 5.0}}

	result, err := f.svc.Query(context.Background(), driving.QueryRequest{
		Question: "What is the contract value?",
		Mode:     domain.SearchModeKeyword,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.AnswerSynthesized, result.Answer.Type)
	assert.Equal(t, generator.answer, result.Answer.Text)
}

func TestQuery_GeneratorFailureFallsBackToExtractive(t *testing.T) {
	generator := &mockAnswerGenerator{err: fmt.Errorf("%w: rate limited", domain.ErrProviderUnavailable)}
	f := newQueryFixture(t, generator)
	f.seedChunk(t, domain.IndexChunk{
		ID:         "chunk-1",
		DocumentID: "doc-1",
		Content:    "The total contract value is USD 2,400,000.",
		Offset:     domain.TextOffset{Start: 0, End: 42},
	})
	f.keyword.hits = []driven.KeywordHit{{ChunkID: "chunk-1", Score: 5.0}}

	result, err := f.svc.Query(context.Background(), driving.QueryRequest{
		Question: "What is the contract value?",
		Mode:     domain.SearchModeKeyword,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.AnswerDirect, result.Answer.Type)
	assert.Contains(t, result.Answer.Text, "USD 2,400,000")
}

func TestQuery_RelatedSuggestionsFromStructuredValues(t *testing.T) {
	f := newQueryFixture(t, nil)

	field := domain.ExtractedField{
		ID:         "field-end",
		DocumentID: "doc-1",
		Key:        domain.FieldEndDate,
		Value:      "2025-12-31",
		Confidence: 0.9,
		Source:     domain.SourceAI,
		Offset:     &domain.TextOffset{Start: 5, End: 15},
	}
	require.NoError(t, f.ledger.SaveField(context.Background(), &field))

	f.seedChunk(t, domain.IndexChunk{
		ID:            "chunk-1",
		DocumentID:    "doc-1",
		Content:       "This agreement ends on 2025-12-31.",
		Offset:        domain.TextOffset{Start: 0, End: 34},
		FieldIDs:      []string{"field-end"},
		ObligationIDs: []string{"ob-1"},
	})
	f.keyword.hits = []driven.KeywordHit{{ChunkID: "chunk-1", Score: 5.0}}

	result, err := f.svc.Query(context.Background(), driving.QueryRequest{
		Question: "When does the agreement end?",
		Mode:     domain.SearchModeKeyword,
	})
	require.NoError(t, err)

	assert.Contains(t, result.Answer.Related, "When does this contract expire?")
	assert.Contains(t, result.Answer.Related, "What penalties apply if obligations are missed?")
}

func TestNormaliseKeyword_EqualScoresMapToOne(t *testing.T) {
	out := normaliseKeyword([]driven.KeywordHit{
		{ChunkID: "a", Score: 3.0},
		{ChunkID: "b", Score: 3.0},
	})
	assert.Equal(t, 1.0, out["a"])
	assert.Equal(t, 1.0, out["b"])
}

func TestNormaliseVector_ClampsSimilarity(t *testing.T) {
	out := normaliseVector([]driven.VectorHit{
		{ChunkID: "a", Similarity: 1.4},
		{ChunkID: "b", Similarity: -0.2},
		{ChunkID: "c", Similarity: 0.6},
	})
	assert.Equal(t, 1.0, out["a"])
	assert.Equal(t, 0.0, out["b"])
	assert.Equal(t, 0.6, out["c"])
}

func TestSnippet_CutsAtWordBoundary(t *testing.T) {
	long := strings.Repeat("clause obligations reporting ", 20)
	s := snippet(long)
	assert.LessOrEqual(t, len(s), snippetLen+len("…"))
	assert.True(t, strings.HasSuffix(s, "…"))

	short := "Short clause."
	assert.Equal(t, short, snippet(short))
}

func TestQuery_ReportsProcessingTime(t *testing.T) {
	f := newQueryFixture(t, nil)

	result, err := f.svc.Query(context.Background(), driving.QueryRequest{Question: "anything"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.ProcessingTime, time.Duration(0))
}
