package domain

import (
	"regexp"
	"strings"
	"time"
)

// Frequency is the canonical obligation frequency set.
type Frequency string

// Canonical frequencies. Raw extractor output is normalised into this
// set; anything unrecognised maps to FreqAsRequired.
const (
	FreqDaily     Frequency = "Daily"
	FreqWeekly    Frequency = "Weekly"
	FreqBiWeekly  Frequency = "Bi-weekly"
	FreqMonthly   Frequency = "Monthly"
	FreqQuarterly Frequency = "Quarterly"
	FreqMilestone Frequency = "Milestone-based"
	FreqAsNeeded  Frequency = "As-required"
)

var biWeeklyPattern = regexp.MustCompile(`bi-?weekly|every\s+(two|2)\s+weeks|fortnight`)

// NormalizeFrequency classifies raw frequency text into the canonical
// set. Empty input maps to FreqAsNeeded.
func NormalizeFrequency(raw string) Frequency {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return FreqAsNeeded
	case biWeeklyPattern.MatchString(s):
		return FreqBiWeekly
	case strings.Contains(s, "daily") || strings.Contains(s, "each day") || strings.Contains(s, "per day"):
		return FreqDaily
	case strings.Contains(s, "weekly") || strings.Contains(s, "per week") || strings.Contains(s, "each week"):
		return FreqWeekly
	case strings.Contains(s, "monthly") || strings.Contains(s, "per month") || strings.Contains(s, "each month"):
		return FreqMonthly
	case strings.Contains(s, "quarterly") || strings.Contains(s, "per quarter") || strings.Contains(s, "every three months"):
		return FreqQuarterly
	case strings.Contains(s, "milestone") || strings.Contains(s, "deliverable") || strings.Contains(s, "phase"):
		return FreqMilestone
	default:
		return FreqAsNeeded
	}
}

// Category classifies an obligation by subject matter. Categorisation
// is independent of confidence.
type Category string

// Obligation categories.
const (
	CategoryReporting   Category = "reporting"
	CategoryMaintenance Category = "maintenance"
	CategoryDelivery    Category = "delivery"
	CategoryCompliance  Category = "compliance"
	CategoryPayment     Category = "payment"
	CategoryPerformance Category = "performance"
	CategoryGeneral     Category = "general"
)

// categoryKeywords drives CategorizeObligation. Order matters: the
// first category with a keyword hit wins.
var categoryKeywords = []struct {
	category Category
	words    []string
}{
	{CategoryReporting, []string{"report", "submit", "document", "record", "notify"}},
	{CategoryMaintenance, []string{"maintain", "service", "repair", "clean", "inspect"}},
	{CategoryDelivery, []string{"deliver", "provide", "supply", "furnish"}},
	{CategoryCompliance, []string{"comply", "adhere", "follow", "conform", "meet"}},
	{CategoryPayment, []string{"pay", "payment", "invoice", "bill", "remit"}},
	{CategoryPerformance, []string{"perform", "execute", "complete", "achieve"}},
}

// CategorizeObligation assigns a category from the obligation text.
func CategorizeObligation(text string) Category {
	lower := strings.ToLower(text)
	for _, c := range categoryKeywords {
		for _, w := range c.words {
			if strings.Contains(lower, w) {
				return c.category
			}
		}
	}
	return CategoryGeneral
}

// Obligation is a contractual duty extracted from document text.
// Its ID is stable across corrections; corrections create new versions
// of the same obligation, never new obligations.
type Obligation struct {
	// ID is the stable obligation identity.
	ID string

	// DocumentID links to the source document.
	DocumentID string

	// Description is the obligation text.
	Description string

	// Frequency is the normalised recurrence.
	Frequency Frequency

	// DueDate is the due date or deadline text found near the
	// obligation, empty when none was found.
	DueDate string

	// PenaltyText is the penalty clause text found near the obligation,
	// empty when none was found.
	PenaltyText string

	// Category classifies the obligation by subject matter.
	Category Category

	// Confidence is in [0,1].
	Confidence float64

	// Source records the value's provenance.
	Source ValueSource

	// Offset is the sentence range the obligation was extracted from.
	Offset TextOffset

	// Version is the 1-based version number for this obligation ID.
	Version int

	// Current marks the materialised current version.
	Current bool

	// CreatedAt is when this version was produced.
	CreatedAt time.Time
}
