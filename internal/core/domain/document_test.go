package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocument_FullText_JoinsPagesWithNewline(t *testing.T) {
	doc := Document{Pages: []Page{
		{Number: 1, Text: "page one"},
		{Number: 2, Text: "page two"},
	}}
	assert.Equal(t, "page one\npage two", doc.FullText())

	assert.Empty(t, Document{}.FullText())
}

func TestTextOffset_Overlaps(t *testing.T) {
	a := TextOffset{Start: 10, End: 20}

	assert.True(t, a.Overlaps(TextOffset{Start: 15, End: 25}))
	assert.True(t, a.Overlaps(TextOffset{Start: 5, End: 11}))
	assert.True(t, a.Overlaps(TextOffset{Start: 12, End: 15}))

	// Half-open ranges: touching ends do not overlap.
	assert.False(t, a.Overlaps(TextOffset{Start: 20, End: 30}))
	assert.False(t, a.Overlaps(TextOffset{Start: 0, End: 10}))
}

func TestTextOffset_Contains(t *testing.T) {
	a := TextOffset{Start: 10, End: 20}

	assert.True(t, a.Contains(TextOffset{Start: 10, End: 20}))
	assert.True(t, a.Contains(TextOffset{Start: 12, End: 18}))
	assert.False(t, a.Contains(TextOffset{Start: 5, End: 15}))
}

func TestTextOffset_Len(t *testing.T) {
	assert.Equal(t, 10, TextOffset{Start: 10, End: 20}.Len())
	assert.Zero(t, TextOffset{Start: 20, End: 10}.Len())
	assert.Zero(t, TextOffset{}.Len())
}

func TestExtractedField_HasEvidence(t *testing.T) {
	assert.False(t, ExtractedField{}.HasEvidence())
	assert.False(t, ExtractedField{Offset: &TextOffset{Start: 5, End: 5}}.HasEvidence())
	assert.True(t, ExtractedField{Offset: &TextOffset{Start: 5, End: 10}}.HasEvidence())
}

func TestParseFieldKey(t *testing.T) {
	key, err := ParseFieldKey("ContractValue")
	assert.NoError(t, err)
	assert.Equal(t, FieldContractValue, key)

	_, err = ParseFieldKey("contract_value")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
