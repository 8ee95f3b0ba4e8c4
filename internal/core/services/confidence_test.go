package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clauselens/clauselens/internal/core/domain"
)

func TestFieldConfidence_ClampsToUnitInterval(t *testing.T) {
	assert.Equal(t, 0.0, fieldConfidence(-0.5, true, 0.6))
	assert.Equal(t, 1.0, fieldConfidence(1.5, true, 0.6))
	assert.Equal(t, 0.7, fieldConfidence(0.7, true, 0.6))
}

func TestFieldConfidence_CapsUnanchoredValues(t *testing.T) {
	// Without a supporting offset the confidence never exceeds the cap.
	assert.Equal(t, 0.6, fieldConfidence(0.95, false, 0.6))
	assert.Equal(t, 0.4, fieldConfidence(0.4, false, 0.6))

	// Anchored values keep the extractor's certainty.
	assert.Equal(t, 0.95, fieldConfidence(0.95, true, 0.6))
}

func TestAnswerConfidence_WeightedMean(t *testing.T) {
	// Weighted by the scores themselves, higher scores count more than
	// a plain average.
	got := answerConfidence([]float64{0.9, 0.3}, -1)
	want := (0.9*0.9 + 0.3*0.3) / (0.9 + 0.3)
	assert.InDelta(t, want, got, 1e-9)
	assert.Greater(t, got, 0.6)
}

func TestAnswerConfidence_CappedByFieldFloor(t *testing.T) {
	// An answer that relied on a low-confidence structured field is no
	// more confident than that field.
	got := answerConfidence([]float64{0.9, 0.8}, 0.5)
	assert.Equal(t, 0.5, got)

	// A floor above the mean leaves the mean alone.
	got = answerConfidence([]float64{0.4}, 0.9)
	assert.InDelta(t, 0.4, got, 1e-9)
}

func TestAnswerConfidence_EmptyScores(t *testing.T) {
	assert.Equal(t, 0.0, answerConfidence(nil, -1))
	assert.Equal(t, 0.0, answerConfidence([]float64{0, 0}, -1))
}

func TestMeanFieldConfidence(t *testing.T) {
	assert.Equal(t, 0.0, meanFieldConfidence(nil))

	fields := []domain.ExtractedField{
		{Confidence: 0.8},
		{Confidence: 0.4},
	}
	assert.InDelta(t, 0.6, meanFieldConfidence(fields), 1e-9)
}
