package httpapi

import (
	"time"

	"github.com/clauselens/clauselens/internal/core/domain"
)

type offsetDTO struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Page  int `json:"page,omitempty"`
}

func offsetFrom(o domain.TextOffset) offsetDTO {
	return offsetDTO{Start: o.Start, End: o.End, Page: o.Page}
}

type fieldDTO struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"document_id,omitempty"`
	Key        string     `json:"key"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	Source     string     `json:"source"`
	Offset     *offsetDTO `json:"offset,omitempty"`
	Method     string     `json:"method,omitempty"`
	Version    int        `json:"version,omitempty"`
}

func fieldFrom(f domain.ExtractedField) fieldDTO {
	dto := fieldDTO{
		ID:         f.ID,
		DocumentID: f.DocumentID,
		Key:        string(f.Key),
		Value:      f.Value,
		Confidence: f.Confidence,
		Source:     string(f.Source),
		Method:     f.Method,
		Version:    f.Version,
	}
	if f.Offset != nil {
		o := offsetFrom(*f.Offset)
		dto.Offset = &o
	}
	return dto
}

type obligationDTO struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id,omitempty"`
	Description string    `json:"description"`
	Frequency   string    `json:"frequency"`
	DueDate     string    `json:"due_date,omitempty"`
	PenaltyText string    `json:"penalty_text,omitempty"`
	Category    string    `json:"category"`
	Confidence  float64   `json:"confidence"`
	Source      string    `json:"source"`
	Offset      offsetDTO `json:"offset"`
	Version     int       `json:"version,omitempty"`
}

func obligationFrom(ob domain.Obligation) obligationDTO {
	return obligationDTO{
		ID:          ob.ID,
		DocumentID:  ob.DocumentID,
		Description: ob.Description,
		Frequency:   string(ob.Frequency),
		DueDate:     ob.DueDate,
		PenaltyText: ob.PenaltyText,
		Category:    string(ob.Category),
		Confidence:  ob.Confidence,
		Source:      string(ob.Source),
		Offset:      offsetFrom(ob.Offset),
		Version:     ob.Version,
	}
}

type citationDTO struct {
	DocumentID    string    `json:"document_id"`
	ChunkID       string    `json:"chunk_id"`
	Offset        offsetDTO `json:"offset"`
	Snippet       string    `json:"snippet"`
	DeepLink      string    `json:"deep_link"`
	Score         float64   `json:"score"`
	FieldKeys     []string  `json:"field_keys,omitempty"`
	ObligationIDs []string  `json:"obligation_ids,omitempty"`
}

func citationFrom(c domain.Citation) citationDTO {
	keys := make([]string, len(c.FieldKeys))
	for i, k := range c.FieldKeys {
		keys[i] = string(k)
	}
	return citationDTO{
		DocumentID:    c.DocumentID,
		ChunkID:       c.ChunkID,
		Offset:        offsetFrom(c.Offset),
		Snippet:       c.Snippet,
		DeepLink:      c.DeepLink,
		Score:         c.Score,
		FieldKeys:     keys,
		ObligationIDs: c.ObligationIDs,
	}
}

type correctionDTO struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"document_id"`
	TargetKind    string    `json:"target_kind"`
	TargetID      string    `json:"target_id"`
	FieldKey      string    `json:"field_key,omitempty"`
	PreviousValue string    `json:"previous_value"`
	NewValue      string    `json:"new_value"`
	Actor         string    `json:"actor,omitempty"`
	Superseded    bool      `json:"superseded"`
	CreatedAt     time.Time `json:"created_at"`
}

func correctionFrom(c domain.Correction) correctionDTO {
	return correctionDTO{
		ID:            c.ID,
		DocumentID:    c.DocumentID,
		TargetKind:    string(c.TargetKind),
		TargetID:      c.TargetID,
		FieldKey:      string(c.FieldKey),
		PreviousValue: c.PreviousValue,
		NewValue:      c.NewValue,
		Actor:         c.Actor,
		Superseded:    c.Superseded,
		CreatedAt:     c.CreatedAt,
	}
}

type filterDTO struct {
	ProjectIDs []string   `json:"project_ids,omitempty"`
	Contractor string     `json:"contractor,omitempty"`
	Status     string     `json:"status,omitempty"`
	DateFrom   *time.Time `json:"date_from,omitempty"`
	DateTo     *time.Time `json:"date_to,omitempty"`
}

func (f filterDTO) toDomain() domain.QueryFilter {
	filter := domain.QueryFilter{
		ProjectIDs: f.ProjectIDs,
		Contractor: f.Contractor,
		Status:     f.Status,
	}
	if f.DateFrom != nil {
		filter.DateFrom = *f.DateFrom
	}
	if f.DateTo != nil {
		filter.DateTo = *f.DateTo
	}
	return filter
}

type metadataDTO struct {
	ProjectID  string     `json:"project_id,omitempty"`
	Contractor string     `json:"contractor,omitempty"`
	Status     string     `json:"status,omitempty"`
	Date       *time.Time `json:"date,omitempty"`
}

func (m metadataDTO) toDomain() domain.FilterMetadata {
	meta := domain.FilterMetadata{
		ProjectID:  m.ProjectID,
		Contractor: m.Contractor,
		Status:     m.Status,
	}
	if m.Date != nil {
		meta.Date = *m.Date
	}
	return meta
}

type documentDTO struct {
	ID        string    `json:"id"`
	SourceKey string    `json:"source_key,omitempty"`
	Language  string    `json:"language,omitempty"`
	Pages     int       `json:"pages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func documentFrom(d *domain.Document) documentDTO {
	return documentDTO{
		ID:        d.ID,
		SourceKey: d.SourceKey,
		Language:  d.Language,
		Pages:     len(d.Pages),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func millis(d time.Duration) int64 {
	return d.Milliseconds()
}
