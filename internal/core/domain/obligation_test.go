package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFrequency(t *testing.T) {
	tests := []struct {
		raw  string
		want Frequency
	}{
		{"", FreqAsNeeded},
		{"daily", FreqDaily},
		{"each day", FreqDaily},
		{"per day", FreqDaily},
		{"Weekly", FreqWeekly},
		{"once per week", FreqWeekly},
		{"each week", FreqWeekly},
		{"bi-weekly", FreqBiWeekly},
		{"biweekly", FreqBiWeekly},
		{"every two weeks", FreqBiWeekly},
		{"every 2 weeks", FreqBiWeekly},
		{"fortnightly", FreqBiWeekly},
		{"monthly", FreqMonthly},
		{"per month", FreqMonthly},
		{"quarterly", FreqQuarterly},
		{"every three months", FreqQuarterly},
		{"on each milestone", FreqMilestone},
		{"per deliverable", FreqMilestone},
		{"at the end of each phase", FreqMilestone},
		{"whenever requested", FreqAsNeeded},
		{"  DAILY  ", FreqDaily},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFrequency(tt.raw))
		})
	}
}

func TestCategorizeObligation(t *testing.T) {
	tests := []struct {
		text string
		want Category
	}{
		{"The Contractor shall submit monthly reports", CategoryReporting},
		{"notify the Client of any incident", CategoryReporting},
		{"maintain the equipment in working order", CategoryMaintenance},
		{"inspect the premises quarterly", CategoryMaintenance},
		{"deliver the goods to the site", CategoryDelivery},
		{"supply spare parts on request", CategoryDelivery},
		{"comply with all applicable regulations", CategoryCompliance},
		{"adhere to the security policy", CategoryCompliance},
		{"pay the invoice within 30 days", CategoryPayment},
		{"remit the balance quarterly", CategoryPayment},
		{"execute the works per the schedule", CategoryPerformance},
		{"achieve the agreed uptime target", CategoryPerformance},
		{"keep this agreement confidential", CategoryGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, CategorizeObligation(tt.text))
		})
	}
}

func TestCategorizeObligation_FirstCategoryWins(t *testing.T) {
	// "report" (reporting) appears before "deliver" (delivery) in the
	// keyword precedence.
	assert.Equal(t, CategoryReporting,
		CategorizeObligation("deliver the weekly report to the Client"))
}
