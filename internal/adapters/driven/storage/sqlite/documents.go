package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document. The page model is kept
// as JSON; offsets and chunks reference the concatenated text, not the
// page rows, so no page-level schema is needed.
func (d *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	pagesJSON, err := json.Marshal(doc.Pages)
	if err != nil {
		return fmt.Errorf("marshalling pages: %w", err)
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err = d.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, source_key, language, pages, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_key = excluded.source_key,
			language = excluded.language,
			pages = excluded.pages,
			updated_at = excluded.updated_at
	`, doc.ID, doc.SourceKey, doc.Language, string(pagesJSON), doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (d *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := d.store.db.QueryRowContext(ctx, `
		SELECT id, source_key, language, pages, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)

	var doc domain.Document
	var pagesJSON string
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&doc.ID, &doc.SourceKey, &doc.Language, &pagesJSON, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	if err := json.Unmarshal([]byte(pagesJSON), &doc.Pages); err != nil {
		return nil, fmt.Errorf("unmarshaling pages: %w", err)
	}
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}
	return &doc, nil
}

// DeleteDocument removes a document and its chunks.
func (d *documentStore) DeleteDocument(ctx context.Context, id string) error {
	tx, err := d.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return tx.Commit()
}

// ListDocuments returns all stored document IDs.
func (d *documentStore) ListDocuments(ctx context.Context) ([]string, error) {
	rows, err := d.store.db.QueryContext(ctx, "SELECT id FROM documents ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return ids, nil
}

// ReplaceChunks atomically swaps the document's chunk set.
func (d *documentStore) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.IndexChunk) error {
	tx, err := d.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting old chunks: %w", err)
	}

	for _, chunk := range chunks {
		fieldIDs, err := json.Marshal(chunk.FieldIDs)
		if err != nil {
			return fmt.Errorf("marshalling field ids: %w", err)
		}
		obligationIDs, err := json.Marshal(chunk.ObligationIDs)
		if err != nil {
			return fmt.Errorf("marshalling obligation ids: %w", err)
		}
		meta, err := json.Marshal(chunk.Meta)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO chunks (id, document_id, content, position,
				offset_start, offset_end, offset_page,
				embedding, field_ids, obligation_ids, meta)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, chunk.ID, documentID, chunk.Content, chunk.Position,
			chunk.Offset.Start, chunk.Offset.End, chunk.Offset.Page,
			float32SliceToBytes(chunk.Embedding), string(fieldIDs), string(obligationIDs), string(meta))
		if err != nil {
			return fmt.Errorf("inserting chunk %s: %w", chunk.ID, err)
		}
	}
	return tx.Commit()
}

// GetChunks retrieves all chunks for a document in position order.
func (d *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.IndexChunk, error) {
	rows, err := d.store.db.QueryContext(ctx, `
		SELECT id, document_id, content, position,
			offset_start, offset_end, offset_page,
			embedding, field_ids, obligation_ids, meta
		FROM chunks WHERE document_id = ? ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.IndexChunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// GetChunk retrieves a specific chunk by ID.
func (d *documentStore) GetChunk(ctx context.Context, id string) (*domain.IndexChunk, error) {
	row := d.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, content, position,
			offset_start, offset_end, offset_page,
			embedding, field_ids, obligation_ids, meta
		FROM chunks WHERE id = ?
	`, id)
	chunk, err := scanChunk(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: chunk %s", domain.ErrNotFound, id)
		}
		return nil, err
	}
	return chunk, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (*domain.IndexChunk, error) {
	var chunk domain.IndexChunk
	var embedding []byte
	var fieldIDs, obligationIDs, meta string
	err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.Position,
		&chunk.Offset.Start, &chunk.Offset.End, &chunk.Offset.Page,
		&embedding, &fieldIDs, &obligationIDs, &meta)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	chunk.Embedding = bytesToFloat32Slice(embedding)
	if err := json.Unmarshal([]byte(fieldIDs), &chunk.FieldIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling field ids: %w", err)
	}
	if err := json.Unmarshal([]byte(obligationIDs), &chunk.ObligationIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling obligation ids: %w", err)
	}
	if err := json.Unmarshal([]byte(meta), &chunk.Meta); err != nil {
		return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
	}
	return &chunk, nil
}
