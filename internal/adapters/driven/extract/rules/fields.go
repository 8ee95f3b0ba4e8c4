// Package rules provides the local extraction provider. It proposes
// metadata fields and obligations from regular-expression pattern
// libraries and keyword gating, with no network dependency.
package rules

import (
	"context"
	"regexp"
	"strings"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
)

// Ensure the provider implements both extractor interfaces.
var (
	_ driven.FieldExtractor      = (*Extractor)(nil)
	_ driven.ObligationExtractor = (*Extractor)(nil)
)

// methodPattern tags candidates produced by regex matching.
const methodPattern = "pattern"

// Extractor is the rules-based extraction provider.
type Extractor struct{}

// New creates the rules extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name returns the provider name.
func (e *Extractor) Name() string { return domain.ExtractProviderRules }

// Ping always succeeds; the provider is in-process.
func (e *Extractor) Ping(ctx context.Context) error { return nil }

// Close releases resources.
func (e *Extractor) Close() error { return nil }

// fieldPattern is one weighted pattern for a metadata field. The first
// capture group is the proposed value.
type fieldPattern struct {
	re *regexp.Regexp

	// certainty is the base certainty for a match; scoring functions
	// may refine it.
	certainty float64
}

var fieldPatterns = map[domain.FieldKey][]fieldPattern{
	domain.FieldProjectName: {
		{regexp.MustCompile(`(?i)project\s+(?:name|title):\s*([^.\n]+)`), 0.85},
		{regexp.MustCompile(`(?i)(?:project|contract):\s*([^.\n]+)`), 0.75},
		{regexp.MustCompile(`(?i)for\s+the\s+([^.\n]*?project[^.\n]*)`), 0.7},
		{regexp.MustCompile(`([A-Z][^.\n]*?Project[^.\n]*)`), 0.65},
	},
	domain.FieldClientName: {
		{regexp.MustCompile(`(?i)client:\s*([^.\n]+)`), 0.8},
		{regexp.MustCompile(`(?i)customer:\s*([^.\n]+)`), 0.8},
		{regexp.MustCompile(`(?i)contractor:\s*([^.\n]+)`), 0.75},
		{regexp.MustCompile(`(?i)between\s+([^.\n]+?)\s+and`), 0.6},
		{regexp.MustCompile(`(?i)for\s+([A-Z][^.\n]*?(?:Inc|LLC|Ltd|Corp|Company)[^.\n]*)`), 0.7},
	},
	domain.FieldContractValue: {
		{regexp.MustCompile(`(?i)(?:contract\s+value|total\s+amount|value):\s*([^\n]*?[$€£¥]\s*[\d,]+(?:\.\d{2})?[^\n]*)`), 0.9},
		{regexp.MustCompile(`([$€£¥]\s*[\d,]+(?:\.\d{2})?(?:\s*(?:million|billion|thousand|M|B|K))?)`), 0.8},
		{regexp.MustCompile(`(?i)(?:amount|value|price)(?:\s+of)?:\s*([^\n]*?[\d,]+(?:\.\d{2})?[^\n]*)`), 0.7},
	},
	domain.FieldPaymentTerms: {
		{regexp.MustCompile(`(?i)payment\s+terms?:\s*([^.\n]+)`), 0.85},
		{regexp.MustCompile(`(?i)payment\s+(?:shall\s+be\s+)?([^.\n]*?(?:days?|monthly|quarterly|annually)[^.\n]*)`), 0.75},
		{regexp.MustCompile(`(?i)(?:net\s+)(\d+\s+days?)`), 0.8},
		{regexp.MustCompile(`(?i)payment\s+(?:due|schedule):\s*([^.\n]+)`), 0.8},
	},
	domain.FieldServices: {
		{regexp.MustCompile(`(?i)services?[^.\n]*?:\s*([^.]*?(?:service|provision|maintenance|support|consulting)[^.]*)`), 0.7},
	},
	domain.FieldKPIs: {
		{regexp.MustCompile(`(?i)kpi[^.\n]*?:\s*([^.\n]+)`), 0.8},
		{regexp.MustCompile(`(?i)(?:key\s+)?performance\s+indicator[^.\n]*?:\s*([^.\n]+)`), 0.8},
		{regexp.MustCompile(`(?i)target[^.\n]*?:\s*([^.\n]*?(?:\d+%|percentage|ratio)[^.\n]*)`), 0.7},
	},
	domain.FieldSLAs: {
		{regexp.MustCompile(`(?i)sla[^.\n]*?:\s*([^.\n]+)`), 0.8},
		{regexp.MustCompile(`(?i)service\s+level\s+agreement[^.\n]*?:\s*([^.\n]+)`), 0.8},
		{regexp.MustCompile(`(?i)(?:response|resolution)\s+time[^.\n]*?:\s*([^.\n]*?(?:hours?|days?|minutes?)[^.\n]*)`), 0.75},
	},
	domain.FieldPenaltyClauses: {
		{regexp.MustCompile(`(?i)penalty[^.\n]*?:\s*([^.\n]+)`), 0.75},
		{regexp.MustCompile(`(?i)(?:liquidated\s+)?damages[^.\n]*?:\s*([^.\n]+)`), 0.7},
		{regexp.MustCompile(`(?i)(?:fine|penalty|charge)[^.\n]*?(?:of|shall\s+be)[^.\n]*?([^.\n]*?(?:[$€£]|amount)[^.\n]*)`), 0.65},
	},
}

// datePattern matches numeric and written date forms. Group 1 is the
// date text.
const months = `January|February|March|April|May|June|July|August|September|October|November|December`

var dateForms = `\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}` +
	`|\d{1,2}\s+(?:` + months + `)\s+\d{2,4}` +
	`|(?:` + months + `)\s+\d{1,2},?\s+\d{2,4}`

var (
	startDateRe = regexp.MustCompile(`(?i)(?:start|commencement|effective|begin)[^.\n]*?(` + dateForms + `)`)
	endDateRe   = regexp.MustCompile(`(?i)(?:end|expiration|termination|completion)[^.\n]*?(` + dateForms + `)`)
	currencyRe  = regexp.MustCompile(`[$€£¥]|[\d,]+\d`)
	countryRe   = regexp.MustCompile(`(?i)\b(United States|United Kingdom|Canada|Australia|Germany|France|Italy|Spain|Netherlands|Belgium|Switzerland|Sweden|Norway|Denmark|Finland|Austria|Portugal|Ireland|Poland|Czech Republic|Hungary|Romania|Bulgaria|Greece|Croatia|Slovenia|Slovakia|Lithuania|Latvia|Estonia|Malta|Cyprus|Luxembourg)\b`)
)

// ExtractFields proposes at most one candidate per requested key.
// Values always come from the text itself; nothing is fabricated.
func (e *Extractor) ExtractFields(ctx context.Context, text string, keys []domain.FieldKey) ([]driven.FieldCandidate, error) {
	var out []driven.FieldCandidate
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var cand *driven.FieldCandidate
		switch key {
		case domain.FieldStartDate:
			cand = bestDateMatch(text, key, startDateRe)
		case domain.FieldEndDate:
			cand = bestDateMatch(text, key, endDateRe)
		case domain.FieldCountry:
			cand = firstCountryMatch(text)
		default:
			cand = bestPatternMatch(text, key, fieldPatterns[key])
		}
		if cand != nil {
			out = append(out, *cand)
		}
	}
	return out, nil
}

// bestPatternMatch runs a field's pattern set and keeps the single
// highest-certainty plausible match.
func bestPatternMatch(text string, key domain.FieldKey, patterns []fieldPattern) *driven.FieldCandidate {
	var best *driven.FieldCandidate
	for _, p := range patterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			if len(m) < 4 || m[2] < 0 {
				continue
			}
			value := strings.TrimSpace(text[m[2]:m[3]])
			certainty := scoreValue(key, value, p.certainty)
			if certainty <= 0 {
				continue
			}
			if best == nil || certainty > best.Certainty {
				best = &driven.FieldCandidate{
					Key:       key,
					Value:     value,
					Certainty: certainty,
					Offset:    &domain.TextOffset{Start: m[2], End: m[3]},
					Method:    methodPattern,
				}
			}
		}
	}
	return best
}

// scoreValue applies per-field plausibility checks to the base
// certainty, returning 0 to reject a match outright.
func scoreValue(key domain.FieldKey, value string, base float64) float64 {
	n := len(value)
	switch key {
	case domain.FieldProjectName:
		if n <= 5 || n >= 100 {
			return 0
		}
		// Names near typical length score a little higher.
		drift := float64(n - 30)
		if drift < 0 {
			drift = -drift
		}
		bonus := 0.1 * (50 - drift) / 50
		if bonus < 0 {
			bonus = 0
		}
		return base + bonus
	case domain.FieldClientName:
		if n <= 2 || n >= 100 {
			return 0
		}
		lower := strings.ToLower(value)
		for _, suffix := range []string{"inc", "llc", "ltd", "corp", "company"} {
			if strings.Contains(lower, suffix) {
				return base + 0.1
			}
		}
		return base
	case domain.FieldContractValue:
		if !currencyRe.MatchString(value) {
			return 0
		}
		return base
	case domain.FieldPaymentTerms:
		if n <= 3 || n >= 200 {
			return 0
		}
		return base
	default:
		if n <= 3 {
			return 0
		}
		return base
	}
}

func bestDateMatch(text string, key domain.FieldKey, re *regexp.Regexp) *driven.FieldCandidate {
	m := re.FindStringSubmatchIndex(text)
	if m == nil || m[2] < 0 {
		return nil
	}
	return &driven.FieldCandidate{
		Key:       key,
		Value:     strings.TrimSpace(text[m[2]:m[3]]),
		Certainty: 0.9,
		Offset:    &domain.TextOffset{Start: m[2], End: m[3]},
		Method:    methodPattern,
	}
}

func firstCountryMatch(text string) *driven.FieldCandidate {
	m := countryRe.FindStringSubmatchIndex(text)
	if m == nil {
		return nil
	}
	return &driven.FieldCandidate{
		Key:       domain.FieldCountry,
		Value:     text[m[2]:m[3]],
		Certainty: 0.8,
		Offset:    &domain.TextOffset{Start: m[2], End: m[3]},
		Method:    methodPattern,
	}
}
