package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
	"github.com/clauselens/clauselens/internal/core/ports/driving"
	"github.com/clauselens/clauselens/internal/logger"
)

// dateLayouts are the formats tried when checking StartDate/EndDate
// consistency. Values that parse with none of them are left alone.
var dateLayouts = []string{
	"2006-01-02", "02/01/2006", "01/02/2006", "2 January 2006",
	"January 2, 2006", "Jan 2, 2006", "2 Jan 2006",
}

// inconsistentDatePenalty scales down the confidence of a date pair
// whose end precedes its start.
const inconsistentDatePenalty = 0.5

// Extraction runs the metadata and obligation extractors over stored
// documents or raw text, scores the candidates and persists the
// results through the ledger.
type Extraction struct {
	registry driving.ProviderRegistry
	docs     driven.DocumentStore
	ledger   driven.LedgerStore
	policy   *callPolicy
	settings func() domain.RetrievalSettings
}

// NewExtraction builds the extraction engine. The settings function is
// consulted per request so configuration reloads take effect without a
// restart.
func NewExtraction(
	registry driving.ProviderRegistry,
	docs driven.DocumentStore,
	ledger driven.LedgerStore,
	call domain.ProviderCallSettings,
	settings func() domain.RetrievalSettings,
) *Extraction {
	return &Extraction{
		registry: registry,
		docs:     docs,
		ledger:   ledger,
		policy:   newCallPolicy(call),
		settings: settings,
	}
}

var _ driving.ExtractionService = (*Extraction)(nil)

// ExtractMetadata extracts the requested metadata fields. For stored
// documents the surviving values are persisted as new AI versions;
// keys holding a human-confirmed value are skipped unless
// ForceReextraction is set.
func (e *Extraction) ExtractMetadata(ctx context.Context, req driving.MetadataRequest) (*driving.MetadataResult, error) {
	start := time.Now()

	text, err := e.resolveText(ctx, req.DocumentID, req.Text)
	if err != nil {
		return nil, err
	}

	keys := req.Keys
	if len(keys) == 0 {
		keys = domain.AllFieldKeys()
	}
	threshold := req.ConfidenceThreshold
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}

	persisted := req.DocumentID != ""
	var skipped []domain.FieldKey
	if persisted && !req.ForceReextraction {
		keys, skipped, err = e.withoutHumanConfirmed(ctx, req.DocumentID, keys)
		if err != nil {
			return nil, err
		}
	}

	result := &driving.MetadataResult{
		SkippedKeys:   skipped,
		AttemptedKeys: len(keys),
		Provider:      e.registry.Fields().Name(),
	}
	if len(keys) == 0 {
		result.ProcessingTime = time.Since(start)
		return result, nil
	}

	candidates, provider, err := e.extractFieldCandidates(ctx, text, keys)
	if err != nil {
		return nil, err
	}
	result.Provider = provider

	evidenceCap := e.settings().NoEvidenceCap
	byKey := make(map[domain.FieldKey]domain.ExtractedField, len(candidates))
	for _, cand := range candidates {
		conf := fieldConfidence(cand.Certainty, cand.Offset != nil && cand.Offset.Len() > 0, evidenceCap)
		if conf < threshold {
			logger.Debug("dropping %s below threshold (%.2f < %.2f)", cand.Key, conf, threshold)
			continue
		}
		field := domain.ExtractedField{
			ID:         uuid.New().String(),
			DocumentID: req.DocumentID,
			Key:        cand.Key,
			Value:      cand.Value,
			Confidence: conf,
			Source:     domain.SourceAI,
			Offset:     cand.Offset,
			Method:     cand.Method,
			CreatedAt:  time.Now().UTC(),
		}
		// One value per key: keep the more confident candidate.
		if prev, ok := byKey[cand.Key]; !ok || conf > prev.Confidence {
			byKey[cand.Key] = field
		}
	}

	checkDateConsistency(byKey)

	fields := make([]domain.ExtractedField, 0, len(byKey))
	for _, k := range domain.AllFieldKeys() {
		if f, ok := byKey[k]; ok {
			fields = append(fields, f)
		}
	}

	// The batch commits atomically: a cancelled or failed pass leaves
	// no partial field state behind.
	if persisted && len(fields) > 0 {
		batch := make([]*domain.ExtractedField, len(fields))
		for i := range fields {
			batch[i] = &fields[i]
		}
		if err := e.ledger.SaveFields(ctx, batch); err != nil {
			return nil, fmt.Errorf("saving fields: %w", err)
		}
	}

	result.Fields = fields
	result.OverallConfidence = meanFieldConfidence(fields)
	result.ProcessingTime = time.Since(start)
	return result, nil
}

// ExtractObligations extracts recurring duties from the document text,
// deduplicates overlapping candidates and normalises frequency and
// category.
func (e *Extraction) ExtractObligations(ctx context.Context, req driving.ObligationsRequest) (*driving.ObligationsResult, error) {
	start := time.Now()

	text, err := e.resolveText(ctx, req.DocumentID, req.Text)
	if err != nil {
		return nil, err
	}
	threshold := req.ConfidenceThreshold
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}

	candidates, provider, err := e.extractObligationCandidates(ctx, text, req.IncludePenalties)
	if err != nil {
		return nil, err
	}

	deduped := dedupeObligations(candidates)

	obligations := make([]domain.Obligation, 0, len(deduped))
	seen := make(map[domain.Category]bool)
	high := 0
	var confSum float64
	for _, cand := range deduped {
		conf := clamp01(cand.Certainty)
		if conf < threshold {
			continue
		}
		ob := domain.Obligation{
			ID:          uuid.New().String(),
			DocumentID:  req.DocumentID,
			Description: cand.Description,
			Frequency:   domain.NormalizeFrequency(cand.FrequencyText),
			DueDate:     cand.DueDateText,
			Category:    domain.CategorizeObligation(cand.Description),
			Confidence:  conf,
			Source:      domain.SourceAI,
			Offset:      cand.Offset,
			CreatedAt:   time.Now().UTC(),
		}
		if req.IncludePenalties {
			ob.PenaltyText = cand.PenaltyText
		}
		obligations = append(obligations, ob)
		seen[ob.Category] = true
		confSum += conf
		if conf >= 0.8 {
			high++
		}
	}

	sort.Slice(obligations, func(i, j int) bool {
		return obligations[i].Offset.Start < obligations[j].Offset.Start
	})

	if req.DocumentID != "" && len(obligations) > 0 {
		batch := make([]*domain.Obligation, len(obligations))
		for i := range obligations {
			batch[i] = &obligations[i]
		}
		if err := e.ledger.SaveObligations(ctx, batch); err != nil {
			return nil, fmt.Errorf("saving obligations: %w", err)
		}
	}

	result := &driving.ObligationsResult{
		Obligations:         obligations,
		HighConfidenceCount: high,
		Provider:            provider,
		ProcessingTime:      time.Since(start),
	}
	if len(candidates) > 0 {
		result.CoverageRate = float64(len(obligations)) / float64(len(candidates))
	}
	if len(obligations) > 0 {
		result.AverageConfidence = confSum / float64(len(obligations))
	}
	for _, c := range []domain.Category{
		domain.CategoryReporting, domain.CategoryMaintenance, domain.CategoryDelivery,
		domain.CategoryCompliance, domain.CategoryPayment, domain.CategoryPerformance,
		domain.CategoryGeneral,
	} {
		if seen[c] {
			result.Categories = append(result.Categories, c)
		}
	}
	return result, nil
}

// resolveText returns the text to extract from. Exactly one of
// documentID and text must be set.
func (e *Extraction) resolveText(ctx context.Context, documentID, text string) (string, error) {
	switch {
	case documentID != "" && text != "":
		return "", fmt.Errorf("%w: document_id and text are mutually exclusive", domain.ErrInvalidInput)
	case documentID == "" && text == "":
		return "", fmt.Errorf("%w: document_id or text is required", domain.ErrInvalidInput)
	case text != "":
		return text, nil
	}

	doc, err := e.docs.GetDocument(ctx, documentID)
	if err != nil {
		return "", err
	}
	full := doc.FullText()
	if full == "" {
		return "", fmt.Errorf("%w: document %s has no extractable text", domain.ErrDocumentUnreadable, documentID)
	}
	return full, nil
}

// withoutHumanConfirmed drops keys whose current value came from a
// human. A re-extraction pass must never silently overwrite a human
// correction.
func (e *Extraction) withoutHumanConfirmed(ctx context.Context, documentID string, keys []domain.FieldKey) (kept, skipped []domain.FieldKey, err error) {
	current, err := e.ledger.CurrentFields(ctx, documentID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, err
	}
	human := make(map[domain.FieldKey]bool)
	for _, f := range current {
		if f.Source == domain.SourceHuman {
			human[f.Key] = true
		}
	}
	for _, k := range keys {
		if human[k] {
			skipped = append(skipped, k)
			continue
		}
		kept = append(kept, k)
	}
	if len(skipped) > 0 {
		logger.Info("skipping %d human-confirmed keys for document %s", len(skipped), documentID)
	}
	return kept, skipped, nil
}

// extractFieldCandidates calls the primary field extractor, falling
// back to the configured alternate on transient failure.
func (e *Extraction) extractFieldCandidates(ctx context.Context, text string, keys []domain.FieldKey) ([]driven.FieldCandidate, string, error) {
	primary := e.registry.Fields()

	var candidates []driven.FieldCandidate
	err := e.policy.do(ctx, "extract fields ("+primary.Name()+")", func(ctx context.Context) error {
		var err error
		candidates, err = primary.ExtractFields(ctx, text, keys)
		return err
	})
	if err == nil {
		return candidates, primary.Name(), nil
	}

	fallback := e.registry.FieldsFallback()
	if fallback == nil || !errors.Is(err, domain.ErrProviderUnavailable) {
		return nil, primary.Name(), err
	}
	logger.Warn("field extractor %s unavailable, falling back to %s: %v", primary.Name(), fallback.Name(), err)

	err = e.policy.do(ctx, "extract fields ("+fallback.Name()+")", func(ctx context.Context) error {
		var err error
		candidates, err = fallback.ExtractFields(ctx, text, keys)
		return err
	})
	if err != nil {
		return nil, fallback.Name(), err
	}
	return candidates, fallback.Name(), nil
}

func (e *Extraction) extractObligationCandidates(ctx context.Context, text string, includePenalties bool) ([]driven.ObligationCandidate, string, error) {
	primary := e.registry.Obligations()

	var candidates []driven.ObligationCandidate
	err := e.policy.do(ctx, "extract obligations ("+primary.Name()+")", func(ctx context.Context) error {
		var err error
		candidates, err = primary.ExtractObligations(ctx, text, includePenalties)
		return err
	})
	if err == nil {
		return candidates, primary.Name(), nil
	}

	fallback := e.registry.ObligationsFallback()
	if fallback == nil || !errors.Is(err, domain.ErrProviderUnavailable) {
		return nil, primary.Name(), err
	}
	logger.Warn("obligation extractor %s unavailable, falling back to %s: %v", primary.Name(), fallback.Name(), err)

	err = e.policy.do(ctx, "extract obligations ("+fallback.Name()+")", func(ctx context.Context) error {
		var err error
		candidates, err = fallback.ExtractObligations(ctx, text, includePenalties)
		return err
	})
	if err != nil {
		return nil, fallback.Name(), err
	}
	return candidates, fallback.Name(), nil
}

// dedupeObligations collapses candidates whose offsets overlap,
// keeping the highest-certainty one per overlapping group.
func dedupeObligations(candidates []driven.ObligationCandidate) []driven.ObligationCandidate {
	if len(candidates) <= 1 {
		return candidates
	}
	sorted := make([]driven.ObligationCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Certainty > sorted[j].Certainty
	})

	var kept []driven.ObligationCandidate
	for _, cand := range sorted {
		overlaps := false
		for _, k := range kept {
			if cand.Offset.Overlaps(k.Offset) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, cand)
		}
	}
	return kept
}

// checkDateConsistency halves the confidence of a StartDate/EndDate
// pair where the end precedes the start. The values are kept so a
// human can resolve them; the score records the doubt.
func checkDateConsistency(byKey map[domain.FieldKey]domain.ExtractedField) {
	start, okS := byKey[domain.FieldStartDate]
	end, okE := byKey[domain.FieldEndDate]
	if !okS || !okE {
		return
	}
	startT, errS := parseDate(start.Value)
	endT, errE := parseDate(end.Value)
	if errS != nil || errE != nil {
		return
	}
	if endT.Before(startT) {
		logger.Warn("end date %q precedes start date %q, reducing confidence", end.Value, start.Value)
		start.Confidence = clamp01(start.Confidence * inconsistentDatePenalty)
		end.Confidence = clamp01(end.Confidence * inconsistentDatePenalty)
		byKey[domain.FieldStartDate] = start
		byKey[domain.FieldEndDate] = end
	}
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
