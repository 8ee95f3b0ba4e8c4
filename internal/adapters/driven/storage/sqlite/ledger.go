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

// ledgerStore implements driven.LedgerStore. Field and obligation
// versions are append-only rows; "current" is a materialised flag
// repointed inside the same transaction as the insert.
type ledgerStore struct {
	store *Store
}

var _ driven.LedgerStore = (*ledgerStore)(nil)

// SaveField inserts a new field version and marks it current.
func (l *ledgerStore) SaveField(ctx context.Context, field *domain.ExtractedField) error {
	return l.SaveFields(ctx, []*domain.ExtractedField{field})
}

// SaveFields persists a batch of field versions in one transaction so
// a failure mid-batch commits nothing.
func (l *ledgerStore) SaveFields(ctx context.Context, fields []*domain.ExtractedField) error {
	if len(fields) == 0 {
		return nil
	}
	tx, err := l.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, field := range fields {
		if err := saveFieldTx(ctx, tx, field); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func saveFieldTx(ctx context.Context, tx *sql.Tx, field *domain.ExtractedField) error {
	if field.Version == 0 {
		row := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(version), 0) FROM fields WHERE document_id = ? AND key = ?",
			field.DocumentID, field.Key)
		var maxVersion int
		if err := row.Scan(&maxVersion); err != nil {
			return fmt.Errorf("getting field version: %w", err)
		}
		field.Version = maxVersion + 1
	}
	if field.CreatedAt.IsZero() {
		field.CreatedAt = time.Now().UTC()
	}

	var offsetJSON sql.NullString
	if field.Offset != nil {
		b, err := json.Marshal(field.Offset)
		if err != nil {
			return fmt.Errorf("marshalling offset: %w", err)
		}
		offsetJSON = sql.NullString{String: string(b), Valid: true}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE fields SET current = 0 WHERE document_id = ? AND key = ? AND current = 1",
		field.DocumentID, field.Key); err != nil {
		return fmt.Errorf("repointing current field: %w", err)
	}

	field.Current = true
	_, err := tx.ExecContext(ctx, `
		INSERT INTO fields (id, document_id, key, value, confidence, source,
			offset_json, method, version, current, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	`, field.ID, field.DocumentID, field.Key, field.Value, field.Confidence,
		field.Source, offsetJSON, field.Method, field.Version, field.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting field version: %w", err)
	}
	return nil
}

// CurrentField returns the current version for (document, key).
func (l *ledgerStore) CurrentField(ctx context.Context, documentID string, key domain.FieldKey) (*domain.ExtractedField, error) {
	row := l.store.db.QueryRowContext(ctx, fieldSelect+
		" WHERE document_id = ? AND key = ? AND current = 1", documentID, key)
	field, err := scanField(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no current value for %s/%s", domain.ErrNotFound, documentID, key)
	}
	return field, err
}

// CurrentFields returns the current version of every field for the
// document.
func (l *ledgerStore) CurrentFields(ctx context.Context, documentID string) ([]domain.ExtractedField, error) {
	rows, err := l.store.db.QueryContext(ctx, fieldSelect+
		" WHERE document_id = ? AND current = 1 ORDER BY key", documentID)
	if err != nil {
		return nil, fmt.Errorf("querying current fields: %w", err)
	}
	defer rows.Close()
	return collectFields(rows)
}

// FieldHistory returns every version for (document, key), oldest first.
func (l *ledgerStore) FieldHistory(ctx context.Context, documentID string, key domain.FieldKey) ([]domain.ExtractedField, error) {
	rows, err := l.store.db.QueryContext(ctx, fieldSelect+
		" WHERE document_id = ? AND key = ? ORDER BY version", documentID, key)
	if err != nil {
		return nil, fmt.Errorf("querying field history: %w", err)
	}
	defer rows.Close()
	return collectFields(rows)
}

// GetField retrieves a field version by its version ID.
func (l *ledgerStore) GetField(ctx context.Context, id string) (*domain.ExtractedField, error) {
	row := l.store.db.QueryRowContext(ctx, fieldSelect+" WHERE id = ?", id)
	field, err := scanField(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: field %s", domain.ErrNotFound, id)
	}
	return field, err
}

// SaveObligation inserts a new version for the obligation ID and marks
// it current.
func (l *ledgerStore) SaveObligation(ctx context.Context, ob *domain.Obligation) error {
	return l.SaveObligations(ctx, []*domain.Obligation{ob})
}

// SaveObligations persists a batch of obligation versions in one
// transaction, all or nothing.
func (l *ledgerStore) SaveObligations(ctx context.Context, obs []*domain.Obligation) error {
	if len(obs) == 0 {
		return nil
	}
	tx, err := l.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, ob := range obs {
		if err := saveObligationTx(ctx, tx, ob); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func saveObligationTx(ctx context.Context, tx *sql.Tx, ob *domain.Obligation) error {
	if ob.Version == 0 {
		row := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(version), 0) FROM obligations WHERE id = ?", ob.ID)
		var maxVersion int
		if err := row.Scan(&maxVersion); err != nil {
			return fmt.Errorf("getting obligation version: %w", err)
		}
		ob.Version = maxVersion + 1
	}
	if ob.CreatedAt.IsZero() {
		ob.CreatedAt = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE obligations SET current = 0 WHERE id = ? AND current = 1", ob.ID); err != nil {
		return fmt.Errorf("repointing current obligation: %w", err)
	}

	ob.Current = true
	_, err := tx.ExecContext(ctx, `
		INSERT INTO obligations (id, version, document_id, description, frequency,
			due_date, penalty_text, category, confidence, source,
			offset_start, offset_end, offset_page, current, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	`, ob.ID, ob.Version, ob.DocumentID, ob.Description, ob.Frequency,
		ob.DueDate, ob.PenaltyText, ob.Category, ob.Confidence, ob.Source,
		ob.Offset.Start, ob.Offset.End, ob.Offset.Page, ob.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting obligation version: %w", err)
	}
	return nil
}

// GetObligation returns the current version of an obligation.
func (l *ledgerStore) GetObligation(ctx context.Context, id string) (*domain.Obligation, error) {
	row := l.store.db.QueryRowContext(ctx, obligationSelect+
		" WHERE id = ? AND current = 1", id)
	ob, err := scanObligation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: obligation %s", domain.ErrNotFound, id)
	}
	return ob, err
}

// CurrentObligations returns the current version of every obligation
// for the document.
func (l *ledgerStore) CurrentObligations(ctx context.Context, documentID string) ([]domain.Obligation, error) {
	rows, err := l.store.db.QueryContext(ctx, obligationSelect+
		" WHERE document_id = ? AND current = 1 ORDER BY offset_start", documentID)
	if err != nil {
		return nil, fmt.Errorf("querying current obligations: %w", err)
	}
	defer rows.Close()

	var obs []domain.Obligation
	for rows.Next() {
		ob, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		obs = append(obs, *ob)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating obligations: %w", err)
	}
	return obs, nil
}

// AppendCorrection appends a correction record, superseding earlier
// non-superseded corrections for the same target.
func (l *ledgerStore) AppendCorrection(ctx context.Context, c *domain.Correction) error {
	tx, err := l.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE corrections SET superseded = 1 WHERE target_id = ? AND superseded = 0",
		c.TargetID); err != nil {
		return fmt.Errorf("superseding earlier corrections: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO corrections (id, document_id, target_kind, target_id,
			field_key, previous_value, new_value, actor, superseded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`, c.ID, c.DocumentID, c.TargetKind, c.TargetID,
		c.FieldKey, c.PreviousValue, c.NewValue, c.Actor, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting correction: %w", err)
	}
	return tx.Commit()
}

// Corrections returns every correction for the document, oldest first.
func (l *ledgerStore) Corrections(ctx context.Context, documentID string) ([]domain.Correction, error) {
	rows, err := l.store.db.QueryContext(ctx, `
		SELECT id, document_id, target_kind, target_id, field_key,
			previous_value, new_value, actor, superseded, created_at
		FROM corrections WHERE document_id = ? ORDER BY created_at, id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying corrections: %w", err)
	}
	defer rows.Close()

	var corrections []domain.Correction
	for rows.Next() {
		var c domain.Correction
		var createdAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.TargetKind, &c.TargetID,
			&c.FieldKey, &c.PreviousValue, &c.NewValue, &c.Actor, &c.Superseded, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning correction: %w", err)
		}
		if createdAt.Valid {
			c.CreatedAt = createdAt.Time
		}
		corrections = append(corrections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating corrections: %w", err)
	}
	return corrections, nil
}

const fieldSelect = `
	SELECT id, document_id, key, value, confidence, source,
		offset_json, method, version, current, created_at
	FROM fields`

func scanField(row rowScanner) (*domain.ExtractedField, error) {
	var f domain.ExtractedField
	var offsetJSON sql.NullString
	var createdAt sql.NullTime
	err := row.Scan(&f.ID, &f.DocumentID, &f.Key, &f.Value, &f.Confidence, &f.Source,
		&offsetJSON, &f.Method, &f.Version, &f.Current, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning field: %w", err)
	}
	if offsetJSON.Valid {
		var offset domain.TextOffset
		if err := json.Unmarshal([]byte(offsetJSON.String), &offset); err != nil {
			return nil, fmt.Errorf("unmarshaling offset: %w", err)
		}
		f.Offset = &offset
	}
	if createdAt.Valid {
		f.CreatedAt = createdAt.Time
	}
	return &f, nil
}

func collectFields(rows *sql.Rows) ([]domain.ExtractedField, error) {
	var fields []domain.ExtractedField
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		fields = append(fields, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fields: %w", err)
	}
	return fields, nil
}

const obligationSelect = `
	SELECT id, version, document_id, description, frequency,
		due_date, penalty_text, category, confidence, source,
		offset_start, offset_end, offset_page, current, created_at
	FROM obligations`

func scanObligation(row rowScanner) (*domain.Obligation, error) {
	var ob domain.Obligation
	var createdAt sql.NullTime
	err := row.Scan(&ob.ID, &ob.Version, &ob.DocumentID, &ob.Description, &ob.Frequency,
		&ob.DueDate, &ob.PenaltyText, &ob.Category, &ob.Confidence, &ob.Source,
		&ob.Offset.Start, &ob.Offset.End, &ob.Offset.Page, &ob.Current, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning obligation: %w", err)
	}
	if createdAt.Valid {
		ob.CreatedAt = createdAt.Time
	}
	return &ob, nil
}
