// Package memory provides in-process search indexes: a BM25 keyword
// index and a brute-force cosine vector index. Both are rebuilt from
// persisted chunks on startup, so process memory is a cache of the
// store, never the source of truth.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
)

// Ensure KeywordIndex implements the interface.
var _ driven.KeywordIndex = (*KeywordIndex)(nil)

// BM25 constants, standard values.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// keywordEntry is one indexed chunk.
type keywordEntry struct {
	documentID string
	meta       domain.FilterMetadata
	terms      map[string]int
	length     int
}

// KeywordIndex is an in-memory BM25 index over chunk tokens.
type KeywordIndex struct {
	mu       sync.RWMutex
	entries  map[string]*keywordEntry
	totalLen int
}

// NewKeywordIndex creates an empty keyword index.
func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{entries: make(map[string]*keywordEntry)}
}

// Index adds or replaces a chunk.
func (k *KeywordIndex) Index(ctx context.Context, chunk domain.IndexChunk) error {
	terms := termFrequencies(chunk.Content)
	length := 0
	for _, n := range terms {
		length += n
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if old, ok := k.entries[chunk.ID]; ok {
		k.totalLen -= old.length
	}
	k.entries[chunk.ID] = &keywordEntry{
		documentID: chunk.DocumentID,
		meta:       chunk.Meta,
		terms:      terms,
		length:     length,
	}
	k.totalLen += length
	return nil
}

// DeleteDocument removes every chunk owned by the document.
func (k *KeywordIndex) DeleteDocument(ctx context.Context, documentID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for id, e := range k.entries {
		if e.documentID == documentID {
			k.totalLen -= e.length
			delete(k.entries, id)
		}
	}
	return nil
}

// Search scores the filtered candidate set with BM25 and returns the
// top matches. The filter restricts the set BEFORE ranking, so top-K
// is computed over permitted chunks only.
func (k *KeywordIndex) Search(ctx context.Context, query string, limit int, filter domain.QueryFilter) ([]driven.KeywordHit, error) {
	queryTerms := tokenize(query)
	if len(queryTerms) == 0 || limit <= 0 {
		return nil, nil
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	candidates := make(map[string]*keywordEntry, len(k.entries))
	for id, e := range k.entries {
		if filter.IsZero() || filter.Matches(e.meta) {
			candidates[id] = e
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Document frequencies over the candidate set.
	df := make(map[string]int, len(queryTerms))
	for _, t := range queryTerms {
		for _, e := range candidates {
			if e.terms[t] > 0 {
				df[t]++
			}
		}
	}
	n := float64(len(candidates))
	avgLen := 0.0
	for _, e := range candidates {
		avgLen += float64(e.length)
	}
	avgLen /= n

	hits := make([]driven.KeywordHit, 0, len(candidates))
	for id, e := range candidates {
		var score float64
		for _, t := range queryTerms {
			tf := float64(e.terms[t])
			if tf == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[t])+0.5)/(float64(df[t])+0.5))
			denom := tf + bm25K1*(1-bm25B+bm25B*float64(e.length)/avgLen)
			score += idf * tf * (bm25K1 + 1) / denom
		}
		if score > 0 {
			hits = append(hits, driven.KeywordHit{ChunkID: id, Score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Close releases resources.
func (k *KeywordIndex) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.entries = make(map[string]*keywordEntry)
	k.totalLen = 0
	return nil
}

func termFrequencies(text string) map[string]int {
	terms := make(map[string]int)
	for _, t := range tokenize(text) {
		terms[t]++
	}
	return terms
}

// tokenize lowercases and splits on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
