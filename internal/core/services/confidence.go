package services

import (
	"github.com/clauselens/clauselens/internal/core/domain"
)

// DefaultConfidenceThreshold is the cut below which extracted values
// are dropped when the caller does not supply a threshold.
const DefaultConfidenceThreshold = 0.3

// fieldConfidence turns an extractor's self-reported certainty into a
// stored confidence. Values with no supporting text offset are capped
// at noEvidenceCap so unanchored values never outrank anchored ones.
func fieldConfidence(certainty float64, hasEvidence bool, noEvidenceCap float64) float64 {
	c := clamp01(certainty)
	if !hasEvidence && c > noEvidenceCap {
		c = noEvidenceCap
	}
	return c
}

// answerConfidence is the score-weighted mean of the contributing
// chunk scores, capped at the lowest structured-field confidence the
// answer relied on. fieldFloor < 0 means no structured field was used.
func answerConfidence(scores []float64, fieldFloor float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum, weighted float64
	for _, s := range scores {
		sum += s
		weighted += s * s
	}
	var c float64
	if sum > 0 {
		c = weighted / sum
	}
	if fieldFloor >= 0 && c > fieldFloor {
		c = fieldFloor
	}
	return clamp01(c)
}

// meanConfidence averages field confidences, zero for an empty set.
func meanFieldConfidence(fields []domain.ExtractedField) float64 {
	if len(fields) == 0 {
		return 0
	}
	var sum float64
	for _, f := range fields {
		sum += f.Confidence
	}
	return sum / float64(len(fields))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
