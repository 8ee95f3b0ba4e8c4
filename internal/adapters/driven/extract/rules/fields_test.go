package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
)

const sampleContract = `SERVICE AGREEMENT

Project Name: Metro Line 3 Extension
Client: Acme Infrastructure Ltd
Contract Value: $2,400,000.00
Payment Terms: Net 30 days after invoice

This agreement is governed by the laws of Spain.
The commencement date of the works is 01/02/2024.
The completion date of the works is 31/12/2025.

Services provided: maintenance and support of the signalling systems.
SLA: response time of 4 hours for critical incidents.
Penalty: 2% of the monthly fee per day of delay.
`

func candidateFor(t *testing.T, candidates []driven.FieldCandidate, key domain.FieldKey) driven.FieldCandidate {
	t.Helper()
	for _, c := range candidates {
		if c.Key == key {
			return c
		}
	}
	t.Fatalf("no candidate for key %s", key)
	return driven.FieldCandidate{}
}

func TestExtractor_ExtractFields_LabelledFields(t *testing.T) {
	e := New()

	candidates, err := e.ExtractFields(context.Background(), sampleContract, domain.AllFieldKeys())
	require.NoError(t, err)

	project := candidateFor(t, candidates, domain.FieldProjectName)
	assert.Equal(t, "Metro Line 3 Extension", project.Value)
	assert.GreaterOrEqual(t, project.Certainty, 0.85)

	client := candidateFor(t, candidates, domain.FieldClientName)
	assert.Equal(t, "Acme Infrastructure Ltd", client.Value)

	value := candidateFor(t, candidates, domain.FieldContractValue)
	assert.Contains(t, value.Value, "$2,400,000.00")

	terms := candidateFor(t, candidates, domain.FieldPaymentTerms)
	assert.Contains(t, terms.Value, "30 days")
}

func TestExtractor_ExtractFields_Dates(t *testing.T) {
	e := New()

	candidates, err := e.ExtractFields(context.Background(), sampleContract,
		[]domain.FieldKey{domain.FieldStartDate, domain.FieldEndDate})
	require.NoError(t, err)

	start := candidateFor(t, candidates, domain.FieldStartDate)
	assert.Equal(t, "01/02/2024", start.Value)
	assert.Equal(t, 0.9, start.Certainty)

	end := candidateFor(t, candidates, domain.FieldEndDate)
	assert.Equal(t, "31/12/2025", end.Value)
}

func TestExtractor_ExtractFields_Country(t *testing.T) {
	e := New()

	candidates, err := e.ExtractFields(context.Background(), sampleContract,
		[]domain.FieldKey{domain.FieldCountry})
	require.NoError(t, err)

	country := candidateFor(t, candidates, domain.FieldCountry)
	assert.Equal(t, "Spain", country.Value)
}

func TestExtractor_ExtractFields_OffsetsAnchorValues(t *testing.T) {
	e := New()

	candidates, err := e.ExtractFields(context.Background(), sampleContract, domain.AllFieldKeys())
	require.NoError(t, err)
	require.NotEmpty(t, candidates)

	for _, c := range candidates {
		require.NotNil(t, c.Offset, c.Key)
		assert.Equal(t, c.Value, sampleContract[c.Offset.Start:c.Offset.End], c.Key)
		assert.Equal(t, methodPattern, c.Method)
	}
}

func TestExtractor_ExtractFields_AbsenceIsNotAnError(t *testing.T) {
	e := New()

	candidates, err := e.ExtractFields(context.Background(),
		"This short note mentions nothing of interest.", domain.AllFieldKeys())
	require.NoError(t, err)
	for _, c := range candidates {
		assert.NotEqual(t, domain.FieldContractValue, c.Key)
		assert.NotEqual(t, domain.FieldStartDate, c.Key)
	}
}

func TestExtractor_ExtractFields_RespectsRequestedKeys(t *testing.T) {
	e := New()

	candidates, err := e.ExtractFields(context.Background(), sampleContract,
		[]domain.FieldKey{domain.FieldClientName})
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, domain.FieldClientName, candidates[0].Key)
}

func TestExtractor_ExtractFields_CancelledContext(t *testing.T) {
	e := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ExtractFields(ctx, sampleContract, domain.AllFieldKeys())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScoreValue_RejectsImplausibleMatches(t *testing.T) {
	// Fragments and values without the required shape score zero.
	assert.Zero(t, scoreValue(domain.FieldProjectName, "X", 0.8))
	assert.Zero(t, scoreValue(domain.FieldContractValue, "no numbers here", 0.8))
	assert.Zero(t, scoreValue(domain.FieldPaymentTerms, "na", 0.8))

	// Corporate suffixes raise client-name certainty.
	plain := scoreValue(domain.FieldClientName, "Acme Partners", 0.7)
	suffixed := scoreValue(domain.FieldClientName, "Acme Partners Ltd", 0.7)
	assert.Greater(t, suffixed, plain)
}
