package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clauselens/clauselens/internal/adapters/driven/storage/memory"
	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driving"
)

func newTestLedger(t *testing.T) (*Ledger, *memory.LedgerStore) {
	t.Helper()
	store := memory.NewLedgerStore()
	return NewLedger(store), store
}

func seedField(t *testing.T, store *memory.LedgerStore, documentID string, key domain.FieldKey, value string) *domain.ExtractedField {
	t.Helper()
	field := &domain.ExtractedField{
		ID:         "field-" + string(key),
		DocumentID: documentID,
		Key:        key,
		Value:      value,
		Confidence: 0.8,
		Source:     domain.SourceAI,
		Offset:     &domain.TextOffset{Start: 10, End: 30},
		Method:     "pattern",
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.SaveField(context.Background(), field))
	return field
}

func seedObligation(t *testing.T, store *memory.LedgerStore, documentID string) *domain.Obligation {
	t.Helper()
	ob := &domain.Obligation{
		ID:          "ob-1",
		DocumentID:  documentID,
		Description: "The Contractor shall submit monthly reports.",
		Frequency:   domain.FreqMonthly,
		Category:    domain.CategoryReporting,
		Confidence:  0.85,
		Source:      domain.SourceAI,
		Offset:      domain.TextOffset{Start: 100, End: 144},
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.SaveObligation(context.Background(), ob))
	return ob
}

func TestLedger_Apply_ValidatesRequest(t *testing.T) {
	svc, _ := newTestLedger(t)

	tests := []struct {
		name string
		req  driving.CorrectionRequest
	}{
		{"missing document", driving.CorrectionRequest{TargetID: "x", NewValue: "v", TargetKind: domain.TargetField}},
		{"missing target", driving.CorrectionRequest{DocumentID: "d", NewValue: "v", TargetKind: domain.TargetField}},
		{"missing value", driving.CorrectionRequest{DocumentID: "d", TargetID: "x", TargetKind: domain.TargetField}},
		{"unknown kind", driving.CorrectionRequest{DocumentID: "d", TargetID: "x", NewValue: "v", TargetKind: "clause"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Apply(context.Background(), tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestLedger_Apply_FieldCorrectionCreatesNewVersion(t *testing.T) {
	svc, store := newTestLedger(t)
	field := seedField(t, store, "doc-1", domain.FieldClientName, "Acme Corp")

	correction, err := svc.Apply(context.Background(), driving.CorrectionRequest{
		DocumentID: "doc-1",
		TargetKind: domain.TargetField,
		TargetID:   field.ID,
		NewValue:   "ACME Corporation Ltd",
		Actor:      "reviewer@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", correction.PreviousValue)
	assert.Equal(t, "ACME Corporation Ltd", correction.NewValue)
	assert.Equal(t, domain.FieldClientName, correction.FieldKey)
	assert.False(t, correction.Superseded)

	current, err := store.CurrentField(context.Background(), "doc-1", domain.FieldClientName)
	require.NoError(t, err)
	assert.Equal(t, "ACME Corporation Ltd", current.Value)
	assert.Equal(t, 1.0, current.Confidence)
	assert.Equal(t, domain.SourceHuman, current.Source)
	assert.Equal(t, "correction", current.Method)
	assert.Equal(t, 2, current.Version)
	// The supporting offset carries over from the corrected version.
	require.NotNil(t, current.Offset)
	assert.Equal(t, 10, current.Offset.Start)

	history, err := store.FieldHistory(context.Background(), "doc-1", domain.FieldClientName)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Acme Corp", history[0].Value)
	assert.False(t, history[0].Current)
	assert.True(t, history[1].Current)
}

func TestLedger_Apply_FieldMustBelongToDocument(t *testing.T) {
	svc, store := newTestLedger(t)
	field := seedField(t, store, "doc-1", domain.FieldCountry, "Spain")

	_, err := svc.Apply(context.Background(), driving.CorrectionRequest{
		DocumentID: "doc-other",
		TargetKind: domain.TargetField,
		TargetID:   field.ID,
		NewValue:   "Portugal",
		Actor:      "reviewer",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLedger_Apply_UnknownTargetNotFound(t *testing.T) {
	svc, _ := newTestLedger(t)

	_, err := svc.Apply(context.Background(), driving.CorrectionRequest{
		DocumentID: "doc-1",
		TargetKind: domain.TargetField,
		TargetID:   "no-such-field",
		NewValue:   "v",
		Actor:      "reviewer",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedger_Apply_ObligationCorrectionRecategorizes(t *testing.T) {
	svc, store := newTestLedger(t)
	ob := seedObligation(t, store, "doc-1")

	correction, err := svc.Apply(context.Background(), driving.CorrectionRequest{
		DocumentID: "doc-1",
		TargetKind: domain.TargetObligation,
		TargetID:   ob.ID,
		NewValue:   "The Contractor shall pay the licence invoice monthly.",
		Actor:      "reviewer",
	})
	require.NoError(t, err)
	assert.Equal(t, ob.Description, correction.PreviousValue)

	current, err := store.GetObligation(context.Background(), ob.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Contractor shall pay the licence invoice monthly.", current.Description)
	assert.Equal(t, domain.CategoryPayment, current.Category)
	assert.Equal(t, 1.0, current.Confidence)
	assert.Equal(t, domain.SourceHuman, current.Source)
	assert.Equal(t, 2, current.Version)
	// The obligation identity is stable across corrections.
	assert.Equal(t, ob.ID, current.ID)
}

func TestLedger_Apply_LaterCorrectionSupersedesEarlier(t *testing.T) {
	svc, store := newTestLedger(t)
	field := seedField(t, store, "doc-1", domain.FieldContractValue, "USD 1,000,000")

	_, err := svc.Apply(context.Background(), driving.CorrectionRequest{
		DocumentID: "doc-1",
		TargetKind: domain.TargetField,
		TargetID:   field.ID,
		NewValue:   "USD 2,000,000",
		Actor:      "first",
	})
	require.NoError(t, err)

	_, err = svc.Apply(context.Background(), driving.CorrectionRequest{
		DocumentID: "doc-1",
		TargetKind: domain.TargetField,
		TargetID:   field.ID,
		NewValue:   "USD 2,400,000",
		Actor:      "second",
	})
	require.NoError(t, err)

	log, err := svc.History(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, log, 2)
	// Oldest first; the earlier correction is retained superseded.
	assert.Equal(t, "first", log[0].Actor)
	assert.True(t, log[0].Superseded)
	assert.Equal(t, "second", log[1].Actor)
	assert.False(t, log[1].Superseded)
}

func TestLedger_History_RequiresDocumentID(t *testing.T) {
	svc, _ := newTestLedger(t)

	_, err := svc.History(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLedger_Apply_ConcurrentCorrectionsSerialise(t *testing.T) {
	svc, store := newTestLedger(t)
	field := seedField(t, store, "doc-1", domain.FieldPaymentTerms, "30 days")

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Apply(context.Background(), driving.CorrectionRequest{
				DocumentID: "doc-1",
				TargetKind: domain.TargetField,
				TargetID:   field.ID,
				NewValue:   fmt.Sprintf("%d days", 30+i),
				Actor:      fmt.Sprintf("writer-%d", i),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	log, err := svc.History(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, log, writers)

	// Exactly one correction survives unsuperseded.
	active := 0
	for _, c := range log {
		if !c.Superseded {
			active++
		}
	}
	assert.Equal(t, 1, active)

	current, err := store.CurrentField(context.Background(), "doc-1", domain.FieldPaymentTerms)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceHuman, current.Source)
	assert.Equal(t, writers+1, current.Version)
}

func TestLedger_Apply_RivalVersionCitationsSerialise(t *testing.T) {
	svc, store := newTestLedger(t)
	v1 := seedField(t, store, "doc-1", domain.FieldClientName, "Acme Corp")

	v2 := &domain.ExtractedField{
		ID:         "field-clientname-v2",
		DocumentID: "doc-1",
		Key:        domain.FieldClientName,
		Value:      "Acme Corp Ltd",
		Confidence: 0.9,
		Source:     domain.SourceAI,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.SaveField(context.Background(), v2))

	// Writers cite different version IDs of the same key; they must
	// still serialise on the (document, key) slot.
	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := v1.ID
			if i%2 == 1 {
				target = v2.ID
			}
			_, err := svc.Apply(context.Background(), driving.CorrectionRequest{
				DocumentID: "doc-1",
				TargetKind: domain.TargetField,
				TargetID:   target,
				NewValue:   fmt.Sprintf("Acme Holding %d", i),
				Actor:      fmt.Sprintf("writer-%d", i),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := store.FieldHistory(context.Background(), "doc-1", domain.FieldClientName)
	require.NoError(t, err)
	require.Len(t, history, writers+2)

	seen := make(map[int]bool)
	active := 0
	for _, f := range history {
		assert.False(t, seen[f.Version], "version %d assigned twice", f.Version)
		seen[f.Version] = true
		if f.Current {
			active++
		}
	}
	assert.Equal(t, 1, active)

	latest, err := store.CurrentField(context.Background(), "doc-1", domain.FieldClientName)
	require.NoError(t, err)
	assert.Equal(t, writers+2, latest.Version)
}
