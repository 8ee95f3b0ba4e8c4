package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
	"github.com/clauselens/clauselens/internal/core/ports/driving"
	"github.com/clauselens/clauselens/internal/logger"
	"github.com/clauselens/clauselens/internal/postprocessors/chunker"
)

// Indexer owns all writes to the hybrid index. Writes for one
// document are serialised by a per-document lock so they never
// interleave; different documents index concurrently.
type Indexer struct {
	docs       driven.DocumentStore
	keyword    driven.KeywordIndex
	vector     driven.VectorIndex
	embeddings driven.EmbeddingService
	ledger     driven.LedgerStore
	chunker    *chunker.Chunker
	policy     *callPolicy

	mu       sync.Mutex
	docLocks map[string]*sync.Mutex
}

// NewIndexer builds the index service.
func NewIndexer(
	docs driven.DocumentStore,
	keyword driven.KeywordIndex,
	vector driven.VectorIndex,
	embeddings driven.EmbeddingService,
	ledger driven.LedgerStore,
	index domain.IndexSettings,
	call domain.ProviderCallSettings,
) *Indexer {
	return &Indexer{
		docs:       docs,
		keyword:    keyword,
		vector:     vector,
		embeddings: embeddings,
		ledger:     ledger,
		chunker: chunker.New(
			chunker.WithChunkSize(index.ChunkSize),
			chunker.WithOverlap(index.ChunkOverlap),
		),
		policy:   newCallPolicy(call),
		docLocks: make(map[string]*sync.Mutex),
	}
}

var _ driving.IndexService = (*Indexer)(nil)

// Upsert replaces the document's chunk set. Re-running with the same
// input converges to the same index state: the document's previous
// chunks are removed before the new set is inserted.
func (ix *Indexer) Upsert(ctx context.Context, req driving.UpsertRequest) error {
	if req.DocumentID == "" {
		return fmt.Errorf("%w: document_id is required", domain.ErrInvalidInput)
	}

	lock := ix.lockFor(req.DocumentID)
	lock.Lock()
	defer lock.Unlock()

	content := req.Content
	if content == "" {
		doc, err := ix.docs.GetDocument(ctx, req.DocumentID)
		if err != nil {
			return err
		}
		content = doc.FullText()
	}
	if content == "" {
		// Empty content converges to an empty chunk set.
		return ix.removeChunks(ctx, req.DocumentID)
	}

	chunks := ix.chunker.Split(req.DocumentID, content)
	for i := range chunks {
		chunks[i].Meta = req.Meta
	}
	if err := ix.attachStructured(ctx, req.DocumentID, chunks); err != nil {
		return err
	}
	if err := ix.embedChunks(ctx, chunks); err != nil {
		return err
	}

	// Persist first, then swap the search indexes. A crash between
	// the two is repaired by Rebuild on next startup.
	if err := ix.docs.ReplaceChunks(ctx, req.DocumentID, chunks); err != nil {
		return fmt.Errorf("replacing chunks: %w", err)
	}
	if err := ix.reindex(ctx, req.DocumentID, chunks); err != nil {
		return err
	}

	logger.Info("indexed document %s (%d chunks)", req.DocumentID, len(chunks))
	return nil
}

// Delete removes every chunk owned by the document from storage and
// both search indexes.
func (ix *Indexer) Delete(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("%w: document_id is required", domain.ErrInvalidInput)
	}
	lock := ix.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()
	return ix.removeChunks(ctx, documentID)
}

// Stats reports index contents.
func (ix *Indexer) Stats(ctx context.Context) (driving.IndexStats, error) {
	ids, err := ix.docs.ListDocuments(ctx)
	if err != nil {
		return driving.IndexStats{}, err
	}
	stats := driving.IndexStats{Dimensions: ix.embeddings.Dimensions()}
	for _, id := range ids {
		chunks, err := ix.docs.GetChunks(ctx, id)
		if err != nil {
			return driving.IndexStats{}, err
		}
		if len(chunks) == 0 {
			continue
		}
		stats.Documents++
		stats.Chunks += len(chunks)
	}
	return stats, nil
}

// Rebuild reloads the search indexes from persisted chunks. Called on
// startup; also the self-heal path when the index and storage
// disagree. Chunks missing their embedding are re-embedded.
func (ix *Indexer) Rebuild(ctx context.Context) error {
	ids, err := ix.docs.ListDocuments(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		chunks, err := ix.docs.GetChunks(ctx, id)
		if err != nil {
			return err
		}
		healed := false
		for i := range chunks {
			if len(chunks[i].Embedding) == 0 {
				healed = true
			}
		}
		if healed {
			logger.Warn("%v: document %s has chunks without embeddings, re-embedding", domain.ErrIndexInconsistency, id)
			if err := ix.embedChunks(ctx, chunks); err != nil {
				return err
			}
			if err := ix.docs.ReplaceChunks(ctx, id, chunks); err != nil {
				return err
			}
		}
		if err := ix.reindex(ctx, id, chunks); err != nil {
			return err
		}
	}
	logger.Info("index rebuilt (%d documents)", len(ids))
	return nil
}

// Close releases both search indexes.
func (ix *Indexer) Close() error {
	return errors.Join(ix.keyword.Close(), ix.vector.Close())
}

// attachStructured stamps each chunk with the IDs of the current
// fields and obligations whose source offsets overlap the chunk, so
// query results can cite structured values alongside text.
func (ix *Indexer) attachStructured(ctx context.Context, documentID string, chunks []domain.IndexChunk) error {
	fields, err := ix.ledger.CurrentFields(ctx, documentID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	obligations, err := ix.ledger.CurrentObligations(ctx, documentID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	for i := range chunks {
		for _, f := range fields {
			if f.Offset != nil && chunks[i].Offset.Overlaps(*f.Offset) {
				chunks[i].FieldIDs = append(chunks[i].FieldIDs, f.ID)
			}
		}
		for _, ob := range obligations {
			if chunks[i].Offset.Overlaps(ob.Offset) {
				chunks[i].ObligationIDs = append(chunks[i].ObligationIDs, ob.ID)
			}
		}
	}
	return nil
}

// embedChunks fills in chunk embeddings in one batched provider call.
func (ix *Indexer) embedChunks(ctx context.Context, chunks []domain.IndexChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	var embeddings [][]float32
	err := ix.policy.do(ctx, "embed chunks", func(ctx context.Context) error {
		var err error
		embeddings, err = ix.embeddings.EmbedBatch(ctx, texts)
		return err
	})
	if err != nil {
		return fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: embedding count %d does not match chunk count %d",
			domain.ErrProviderUnavailable, len(embeddings), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}
	return nil
}

// reindex swaps the document's entries in both search indexes for the
// given chunk set.
func (ix *Indexer) reindex(ctx context.Context, documentID string, chunks []domain.IndexChunk) error {
	if err := ix.keyword.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("clearing keyword index: %w", err)
	}
	if err := ix.vector.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("clearing vector index: %w", err)
	}
	for i := range chunks {
		if err := ix.keyword.Index(ctx, chunks[i]); err != nil {
			return fmt.Errorf("keyword indexing chunk %s: %w", chunks[i].ID, err)
		}
		if err := ix.vector.Add(ctx, chunks[i]); err != nil {
			return fmt.Errorf("vector indexing chunk %s: %w", chunks[i].ID, err)
		}
	}
	return nil
}

func (ix *Indexer) removeChunks(ctx context.Context, documentID string) error {
	if err := ix.docs.ReplaceChunks(ctx, documentID, nil); err != nil {
		return fmt.Errorf("removing chunks: %w", err)
	}
	if err := ix.keyword.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	return ix.vector.DeleteDocument(ctx, documentID)
}

func (ix *Indexer) lockFor(documentID string) *sync.Mutex {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	lock, ok := ix.docLocks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		ix.docLocks[documentID] = lock
	}
	return lock
}
