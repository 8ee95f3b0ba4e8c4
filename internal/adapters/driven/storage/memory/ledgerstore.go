package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
)

// Ensure LedgerStore implements the interface.
var _ driven.LedgerStore = (*LedgerStore)(nil)

type fieldSlot struct {
	documentID string
	key        domain.FieldKey
}

// LedgerStore is an in-memory implementation of driven.LedgerStore.
// Versions are append-only; "current" is tracked per slot.
type LedgerStore struct {
	mu          sync.RWMutex
	fields      map[fieldSlot][]domain.ExtractedField
	fieldsByID  map[string]*domain.ExtractedField
	obligations map[string][]domain.Obligation
	corrections map[string][]domain.Correction
}

// NewLedgerStore creates a new in-memory ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		fields:      make(map[fieldSlot][]domain.ExtractedField),
		fieldsByID:  make(map[string]*domain.ExtractedField),
		obligations: make(map[string][]domain.Obligation),
		corrections: make(map[string][]domain.Correction),
	}
}

// SaveField inserts a new field version and marks it current.
func (s *LedgerStore) SaveField(ctx context.Context, field *domain.ExtractedField) error {
	return s.SaveFields(ctx, []*domain.ExtractedField{field})
}

// SaveFields persists a batch of field versions under one lock. The
// context is checked once up front so a cancelled batch writes
// nothing; after that the whole batch applies.
func (s *LedgerStore) SaveFields(ctx context.Context, fields []*domain.ExtractedField) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, field := range fields {
		s.saveFieldLocked(field)
	}
	return nil
}

func (s *LedgerStore) saveFieldLocked(field *domain.ExtractedField) {
	slot := fieldSlot{documentID: field.DocumentID, key: field.Key}
	versions := s.fields[slot]
	if field.Version == 0 {
		field.Version = len(versions) + 1
	}
	if field.CreatedAt.IsZero() {
		field.CreatedAt = time.Now().UTC()
	}
	for i := range versions {
		versions[i].Current = false
		s.fieldsByID[versions[i].ID].Current = false
	}
	field.Current = true
	s.fields[slot] = append(versions, *field)
	stored := &s.fields[slot][len(s.fields[slot])-1]
	s.fieldsByID[field.ID] = stored
}

// CurrentField returns the current version for (document, key).
func (s *LedgerStore) CurrentField(_ context.Context, documentID string, key domain.FieldKey) (*domain.ExtractedField, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.fields[fieldSlot{documentID: documentID, key: key}] {
		if f.Current {
			out := f
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: no current value for %s/%s", domain.ErrNotFound, documentID, key)
}

// CurrentFields returns the current version of every field for the
// document, in canonical key order.
func (s *LedgerStore) CurrentFields(_ context.Context, documentID string) ([]domain.ExtractedField, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ExtractedField
	for _, key := range domain.AllFieldKeys() {
		for _, f := range s.fields[fieldSlot{documentID: documentID, key: key}] {
			if f.Current {
				out = append(out, f)
			}
		}
	}
	return out, nil
}

// FieldHistory returns every version for (document, key), oldest first.
func (s *LedgerStore) FieldHistory(_ context.Context, documentID string, key domain.FieldKey) ([]domain.ExtractedField, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.fields[fieldSlot{documentID: documentID, key: key}]
	out := make([]domain.ExtractedField, len(versions))
	copy(out, versions)
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// GetField retrieves a field version by its version ID.
func (s *LedgerStore) GetField(_ context.Context, id string) (*domain.ExtractedField, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fieldsByID[id]
	if !ok {
		return nil, fmt.Errorf("%w: field %s", domain.ErrNotFound, id)
	}
	out := *f
	return &out, nil
}

// SaveObligation inserts a new version for the obligation ID and marks
// it current.
func (s *LedgerStore) SaveObligation(ctx context.Context, ob *domain.Obligation) error {
	return s.SaveObligations(ctx, []*domain.Obligation{ob})
}

// SaveObligations persists a batch of obligation versions under one
// lock, all or nothing like SaveFields.
func (s *LedgerStore) SaveObligations(ctx context.Context, obs []*domain.Obligation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ob := range obs {
		versions := s.obligations[ob.ID]
		if ob.Version == 0 {
			ob.Version = len(versions) + 1
		}
		if ob.CreatedAt.IsZero() {
			ob.CreatedAt = time.Now().UTC()
		}
		for i := range versions {
			versions[i].Current = false
		}
		ob.Current = true
		s.obligations[ob.ID] = append(versions, *ob)
	}
	return nil
}

// GetObligation returns the current version of an obligation.
func (s *LedgerStore) GetObligation(_ context.Context, id string) (*domain.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ob := range s.obligations[id] {
		if ob.Current {
			out := ob
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: obligation %s", domain.ErrNotFound, id)
}

// CurrentObligations returns the current version of every obligation
// for the document, ordered by text position.
func (s *LedgerStore) CurrentObligations(_ context.Context, documentID string) ([]domain.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Obligation
	for _, versions := range s.obligations {
		for _, ob := range versions {
			if ob.Current && ob.DocumentID == documentID {
				out = append(out, ob)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Offset.Start != out[j].Offset.Start {
			return out[i].Offset.Start < out[j].Offset.Start
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// AppendCorrection appends a correction record, superseding earlier
// non-superseded corrections for the same target.
func (s *LedgerStore) AppendCorrection(_ context.Context, c *domain.Correction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	for docID, list := range s.corrections {
		for i := range list {
			if list[i].TargetID == c.TargetID && !list[i].Superseded {
				list[i].Superseded = true
			}
		}
		s.corrections[docID] = list
	}
	s.corrections[c.DocumentID] = append(s.corrections[c.DocumentID], *c)
	return nil
}

// Corrections returns every correction for the document, oldest first.
func (s *LedgerStore) Corrections(_ context.Context, documentID string) ([]domain.Correction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.corrections[documentID]
	out := make([]domain.Correction, len(list))
	copy(out, list)
	return out, nil
}
