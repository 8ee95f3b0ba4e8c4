package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
	"github.com/clauselens/clauselens/internal/core/ports/driving"
	"github.com/clauselens/clauselens/internal/logger"
)

// notFoundAnswer is the explicit response when no chunk clears the
// retrieval threshold. The engine never fabricates an answer.
const notFoundAnswer = "No matching data found for this query within the permitted documents."

// snippetLen bounds citation snippets.
const snippetLen = 240

// Query answers natural-language questions over the hybrid index with
// source-attributed responses. Queries are stateless and read from the
// last committed index snapshot.
type Query struct {
	registry driving.ProviderRegistry
	docs     driven.DocumentStore
	ledger   driven.LedgerStore
	keyword  driven.KeywordIndex
	vector   driven.VectorIndex
	policy   *callPolicy
	settings func() domain.RetrievalSettings
}

// NewQuery builds the query engine. The settings function is read per
// request so weight and threshold changes apply without a restart.
func NewQuery(
	registry driving.ProviderRegistry,
	docs driven.DocumentStore,
	ledger driven.LedgerStore,
	keyword driven.KeywordIndex,
	vector driven.VectorIndex,
	call domain.ProviderCallSettings,
	settings func() domain.RetrievalSettings,
) *Query {
	return &Query{
		registry: registry,
		docs:     docs,
		ledger:   ledger,
		keyword:  keyword,
		vector:   vector,
		policy:   newCallPolicy(call),
		settings: settings,
	}
}

var _ driving.QueryService = (*Query)(nil)

// scored is one merged retrieval candidate.
type scored struct {
	chunkID string
	score   float64
}

// Query runs retrieval, merges strategy scores and synthesises the
// answer. Zero surviving candidates yields an explicit not-found
// answer, never an error.
func (q *Query) Query(ctx context.Context, req driving.QueryRequest) (*driving.QueryResult, error) {
	start := time.Now()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}
	mode := req.Mode
	if mode == "" {
		mode = domain.SearchModeHybrid
	}

	cfg := q.settings()
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = cfg.MaxResults
	}

	merged, err := q.retrieve(ctx, question, mode, req.Filter, cfg)
	if err != nil {
		return nil, err
	}

	// Threshold cut. Results below MinScore are dropped, never padded
	// back in to fill the result count.
	kept := merged[:0]
	for _, s := range merged {
		if s.score >= cfg.MinScore {
			kept = append(kept, s)
		}
	}
	resultCount := len(kept)
	if len(kept) > maxResults {
		kept = kept[:maxResults]
	}

	result := &driving.QueryResult{
		Question:          question,
		SearchResultCount: resultCount,
	}
	if len(kept) == 0 {
		result.Answer = domain.Answer{Text: notFoundAnswer, Type: domain.AnswerNotFound}
		result.ProcessingTime = time.Since(start)
		return result, nil
	}

	citations, fieldFloor, err := q.buildCitations(ctx, kept)
	if err != nil {
		return nil, err
	}
	if len(citations) == 0 {
		result.Answer = domain.Answer{Text: notFoundAnswer, Type: domain.AnswerNotFound}
		result.ProcessingTime = time.Since(start)
		return result, nil
	}

	answerText, answerType := q.synthesise(ctx, question, citations)

	scores := make([]float64, len(citations))
	for i, c := range citations {
		scores[i] = c.Score
	}

	result.Answer = domain.Answer{
		Text:       answerText,
		Type:       answerType,
		Confidence: answerConfidence(scores, fieldFloor),
		Sources:    citations,
		Related:    relatedQueries(citations),
	}
	result.ProcessingTime = time.Since(start)
	return result, nil
}

// retrieve runs the strategy searches, keyword and vector in parallel
// for hybrid mode, and merges normalised scores by the configured
// weights. Ties break on chunk ID so identical queries return
// identical rankings.
func (q *Query) retrieve(ctx context.Context, question string, mode domain.SearchMode, filter domain.QueryFilter, cfg domain.RetrievalSettings) ([]scored, error) {
	var (
		wg         sync.WaitGroup
		kwHits     []driven.KeywordHit
		vecHits    []driven.VectorHit
		kwErr      error
		vecErr     error
		wantKw     = mode == domain.SearchModeKeyword || mode == domain.SearchModeHybrid
		wantVector = mode == domain.SearchModeSemantic || mode == domain.SearchModeHybrid
	)

	if wantKw {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kwHits, kwErr = q.keyword.Search(ctx, question, cfg.TopK, filter)
		}()
	}
	if wantVector {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var embedding []float32
			vecErr = q.policy.do(ctx, "embed query", func(ctx context.Context) error {
				var err error
				embedding, err = q.registry.Embeddings().Embed(ctx, question)
				return err
			})
			if vecErr != nil {
				return
			}
			vecHits, vecErr = q.vector.Search(ctx, embedding, cfg.TopK, filter)
		}()
	}
	wg.Wait()

	// In hybrid mode a transient embedding outage degrades to
	// keyword-only rather than failing the query.
	if vecErr != nil {
		if mode == domain.SearchModeHybrid && errors.Is(vecErr, domain.ErrProviderUnavailable) {
			logger.Warn("semantic search unavailable, degrading to keyword only: %v", vecErr)
			vecHits = nil
		} else {
			return nil, vecErr
		}
	}
	if kwErr != nil {
		return nil, kwErr
	}

	kwScores := normaliseKeyword(kwHits)
	vecScores := normaliseVector(vecHits)

	wSem, wKw := cfg.SemanticWeight, cfg.KeywordWeight
	if mode == domain.SearchModeKeyword || len(vecScores) == 0 {
		wSem, wKw = 0, 1
	}
	if mode == domain.SearchModeSemantic {
		wSem, wKw = 1, 0
	}
	total := wSem + wKw
	if total == 0 {
		total = 1
	}

	combined := make(map[string]float64, len(kwScores)+len(vecScores))
	for id, s := range kwScores {
		combined[id] += s * wKw / total
	}
	for id, s := range vecScores {
		combined[id] += s * wSem / total
	}

	merged := make([]scored, 0, len(combined))
	for id, s := range combined {
		merged = append(merged, scored{chunkID: id, score: s})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].score != merged[j].score {
			return merged[i].score > merged[j].score
		}
		return merged[i].chunkID < merged[j].chunkID
	})
	return merged, nil
}

// buildCitations hydrates chunks and resolves the structured values
// attached to them. A chunk the index knows but storage does not is an
// index inconsistency: it is logged and skipped, never surfaced to the
// caller as an answer.
func (q *Query) buildCitations(ctx context.Context, kept []scored) (citations []domain.Citation, fieldFloor float64, err error) {
	fieldFloor = -1
	for _, s := range kept {
		chunk, err := q.docs.GetChunk(ctx, s.chunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				logger.Warn("%v: chunk %s present in index but not in storage, skipping", domain.ErrIndexInconsistency, s.chunkID)
				continue
			}
			return nil, 0, err
		}

		citation := domain.Citation{
			DocumentID:    chunk.DocumentID,
			ChunkID:       chunk.ID,
			Offset:        chunk.Offset,
			Snippet:       snippet(chunk.Content),
			DeepLink:      domain.DeepLink(chunk.DocumentID, chunk.Offset),
			Score:         s.score,
			ObligationIDs: chunk.ObligationIDs,
		}
		for _, fieldID := range chunk.FieldIDs {
			field, err := q.ledger.GetField(ctx, fieldID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					logger.Warn("%v: chunk %s references missing field %s", domain.ErrIndexInconsistency, chunk.ID, fieldID)
					continue
				}
				return nil, 0, err
			}
			citation.FieldKeys = append(citation.FieldKeys, field.Key)
			if fieldFloor < 0 || field.Confidence < fieldFloor {
				fieldFloor = field.Confidence
			}
		}
		citations = append(citations, citation)
	}
	return citations, fieldFloor, nil
}

// synthesise produces the answer text. With a generative provider the
// answer is synthesised from the cited passages only; otherwise, or on
// transient provider failure, the top passage is returned verbatim.
func (q *Query) synthesise(ctx context.Context, question string, citations []domain.Citation) (string, domain.AnswerType) {
	generator := q.registry.Answers()
	if generator == nil {
		return citations[0].Snippet, domain.AnswerDirect
	}

	contexts := make([]string, len(citations))
	for i, c := range citations {
		contexts[i] = c.Snippet
	}

	var text string
	err := q.policy.do(ctx, "generate answer", func(ctx context.Context) error {
		var err error
		text, err = generator.GenerateAnswer(ctx, question, contexts)
		return err
	})
	if err != nil {
		logger.Warn("answer generation failed, returning extractive answer: %v", err)
		return citations[0].Snippet, domain.AnswerDirect
	}
	return text, domain.AnswerSynthesized
}

// normaliseKeyword min-max normalises lexical scores into [0,1].
func normaliseKeyword(hits []driven.KeywordHit) map[string]float64 {
	if len(hits) == 0 {
		return nil
	}
	min, max := hits[0].Score, hits[0].Score
	for _, h := range hits {
		if h.Score < min {
			min = h.Score
		}
		if h.Score > max {
			max = h.Score
		}
	}
	out := make(map[string]float64, len(hits))
	for _, h := range hits {
		if max > min {
			out[h.ChunkID] = (h.Score - min) / (max - min)
		} else {
			out[h.ChunkID] = 1
		}
	}
	return out
}

// normaliseVector clamps cosine similarities into [0,1].
func normaliseVector(hits []driven.VectorHit) map[string]float64 {
	if len(hits) == 0 {
		return nil
	}
	out := make(map[string]float64, len(hits))
	for _, h := range hits {
		out[h.ChunkID] = clamp01(h.Similarity)
	}
	return out
}

// relatedQueries suggests follow-ups from the structured values the
// answer touched.
func relatedQueries(citations []domain.Citation) []string {
	seen := make(map[domain.FieldKey]bool)
	hasObligations := false
	for _, c := range citations {
		for _, k := range c.FieldKeys {
			seen[k] = true
		}
		if len(c.ObligationIDs) > 0 {
			hasObligations = true
		}
	}

	var related []string
	if seen[domain.FieldPenaltyClauses] || hasObligations {
		related = append(related, "What penalties apply if obligations are missed?")
	}
	if seen[domain.FieldStartDate] || seen[domain.FieldEndDate] {
		related = append(related, "When does this contract expire?")
	}
	if seen[domain.FieldContractValue] || seen[domain.FieldPaymentTerms] {
		related = append(related, "What are the payment terms?")
	}
	if hasObligations {
		related = append(related, "Which obligations are due monthly?")
	}
	return related
}

func snippet(content string) string {
	content = strings.TrimSpace(content)
	if len(content) <= snippetLen {
		return content
	}
	cut := content[:snippetLen]
	if i := strings.LastIndex(cut, " "); i > snippetLen/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
