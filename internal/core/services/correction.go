package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
	"github.com/clauselens/clauselens/internal/core/ports/driving"
	"github.com/clauselens/clauselens/internal/logger"
)

// correctionStripes is the number of lock stripes serialising
// concurrent corrections. Corrections hash on the value slot they
// mutate, so rivals for the same slot apply one at a time even when
// they cite different version IDs.
const correctionStripes = 64

// Ledger reconciles extracted values with human corrections. Every
// mutation appends: the corrected value becomes the new current
// version and the previous one stays as history.
type Ledger struct {
	store driven.LedgerStore
	locks [correctionStripes]sync.Mutex
}

// NewLedger builds the correction service on the given store.
func NewLedger(store driven.LedgerStore) *Ledger {
	return &Ledger{store: store}
}

var _ driving.CorrectionService = (*Ledger)(nil)

// Apply records a human correction. The target's current value is
// replaced by a new version with human provenance and confidence 1.0;
// concurrent corrections to the same target serialise, last writer
// wins, and the losing correction is retained superseded.
func (l *Ledger) Apply(ctx context.Context, req driving.CorrectionRequest) (*domain.Correction, error) {
	if req.DocumentID == "" || req.TargetID == "" {
		return nil, fmt.Errorf("%w: document_id and target_id are required", domain.ErrInvalidInput)
	}
	if req.NewValue == "" {
		return nil, fmt.Errorf("%w: new_value is required", domain.ErrInvalidInput)
	}
	if req.TargetKind != domain.TargetField && req.TargetKind != domain.TargetObligation {
		return nil, fmt.Errorf("%w: unknown target kind %q", domain.ErrInvalidInput, req.TargetKind)
	}

	slot, err := l.lockSlot(ctx, req)
	if err != nil {
		return nil, err
	}
	lock := &l.locks[stripeFor(slot)]
	lock.Lock()
	defer lock.Unlock()

	var (
		previous string
		fieldKey domain.FieldKey
	)
	switch req.TargetKind {
	case domain.TargetField:
		previous, fieldKey, err = l.correctField(ctx, req)
	case domain.TargetObligation:
		previous, err = l.correctObligation(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	correction := &domain.Correction{
		ID:            uuid.New().String(),
		DocumentID:    req.DocumentID,
		TargetKind:    req.TargetKind,
		TargetID:      req.TargetID,
		FieldKey:      fieldKey,
		PreviousValue: previous,
		NewValue:      req.NewValue,
		Actor:         req.Actor,
		CreatedAt:     time.Now().UTC(),
	}
	if err := l.store.AppendCorrection(ctx, correction); err != nil {
		return nil, fmt.Errorf("appending correction: %w", err)
	}
	logger.Info("correction applied to %s %s by %s", req.TargetKind, req.TargetID, req.Actor)
	return correction, nil
}

// History returns the document's full correction log, oldest first.
// Superseded corrections are included; the log never forgets.
func (l *Ledger) History(ctx context.Context, documentID string) ([]domain.Correction, error) {
	if documentID == "" {
		return nil, fmt.Errorf("%w: document_id is required", domain.ErrInvalidInput)
	}
	return l.store.Corrections(ctx, documentID)
}

// correctField resolves the target field version, then writes a new
// current version carrying the corrected value.
func (l *Ledger) correctField(ctx context.Context, req driving.CorrectionRequest) (previous string, key domain.FieldKey, err error) {
	target, err := l.store.GetField(ctx, req.TargetID)
	if err != nil {
		return "", "", err
	}
	if target.DocumentID != req.DocumentID {
		return "", "", fmt.Errorf("%w: field %s does not belong to document %s", domain.ErrInvalidInput, req.TargetID, req.DocumentID)
	}

	current, err := l.store.CurrentField(ctx, req.DocumentID, target.Key)
	if err != nil {
		return "", "", err
	}

	next := domain.ExtractedField{
		ID:         uuid.New().String(),
		DocumentID: req.DocumentID,
		Key:        target.Key,
		Value:      req.NewValue,
		Confidence: 1.0,
		Source:     domain.SourceHuman,
		Offset:     current.Offset,
		Method:     "correction",
		Version:    current.Version + 1,
		CreatedAt:  time.Now().UTC(),
	}
	if err := l.store.SaveField(ctx, &next); err != nil {
		return "", "", fmt.Errorf("saving corrected field: %w", err)
	}
	return current.Value, target.Key, nil
}

// correctObligation writes a new current version of the obligation
// with the corrected description. The obligation ID stays stable.
func (l *Ledger) correctObligation(ctx context.Context, req driving.CorrectionRequest) (previous string, err error) {
	current, err := l.store.GetObligation(ctx, req.TargetID)
	if err != nil {
		return "", err
	}
	if current.DocumentID != req.DocumentID {
		return "", fmt.Errorf("%w: obligation %s does not belong to document %s", domain.ErrInvalidInput, req.TargetID, req.DocumentID)
	}

	next := *current
	next.Description = req.NewValue
	next.Category = domain.CategorizeObligation(req.NewValue)
	next.Confidence = 1.0
	next.Source = domain.SourceHuman
	next.Version = current.Version + 1
	next.CreatedAt = time.Now().UTC()
	if err := l.store.SaveObligation(ctx, &next); err != nil {
		return "", fmt.Errorf("saving corrected obligation: %w", err)
	}
	return current.Description, nil
}

// lockSlot resolves the slot a correction contends on. A field
// correction may cite any version ID of its key, so the slot is the
// (document, key) pair rather than the cited version; obligation IDs
// are already stable across versions.
func (l *Ledger) lockSlot(ctx context.Context, req driving.CorrectionRequest) (string, error) {
	if req.TargetKind == domain.TargetField {
		target, err := l.store.GetField(ctx, req.TargetID)
		if err != nil {
			return "", err
		}
		return req.DocumentID + "/" + string(target.Key), nil
	}
	return req.DocumentID + "/" + req.TargetID, nil
}

func stripeFor(slot string) int {
	h := fnv.New32a()
	h.Write([]byte(slot))
	return int(h.Sum32() % correctionStripes)
}
