package rules

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
)

// maxObligationSentences caps the gated sentence set per document so
// pathological inputs stay bounded.
const maxObligationSentences = 50

// minSentenceLen filters out fragments left over from splitting.
const minSentenceLen = 10

// obligationKeywords gate candidate sentences. A sentence with none of
// these is never an obligation candidate.
var obligationKeywords = []string{
	"shall", "must", "will", "required", "obligation", "responsible",
	"duty", "commitment", "ensure", "provide", "deliver", "maintain",
	"comply", "adhere", "follow", "perform", "complete", "submit",
}

var (
	sentenceSplitRe = regexp.MustCompile(`[.!?]+`)
	whitespaceRe    = regexp.MustCompile(`\s+`)

	frequencyRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(daily|weekly|bi-?weekly|monthly|quarterly|annually|yearly)\b`),
		regexp.MustCompile(`(?i)\bevery\s+(\d+\s+(?:day|week|month|year)s?)\b`),
		regexp.MustCompile(`(?i)\b(once\s+(?:per\s+)?(?:day|week|month|year))\b`),
	}

	dueDateRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bby\s+(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})\b`),
		regexp.MustCompile(`(?i)\bwithin\s+(\d+\s+(?:day|week|month)s?)\b`),
		regexp.MustCompile(`(?i)\b(?:due|deadline):\s*([^.\n]+)`),
		regexp.MustCompile(`(?i)\bno\s+later\s+than\s+([^.\n]+)`),
	}

	penaltyRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:penalty|fine|charge)[^.\n]*?([^.\n]*?(?:[$€£]|\d+)[^.\n]*)`),
		regexp.MustCompile(`(?i)(?:liquidated\s+)?damages[^.\n]*?([^.\n]+)`),
	}
)

// sentence is one split segment with its position in the source text.
type sentence struct {
	text   string
	offset domain.TextOffset
}

// gatedSentence is one keyword-gated candidate, indexed into the full
// sentence sequence so adjacent sentences stay reachable.
type gatedSentence struct {
	idx  int
	hits int
}

// ExtractObligations gates sentences on duty keywords and extracts
// frequency, due-date and penalty phrases from each survivor. Due
// dates and penalties are searched in a bounded window of the gated
// sentence and its immediate neighbours: penalty clauses routinely
// follow the duty sentence ("Late submission penalty: ...") and carry
// no duty keyword of their own.
func (e *Extractor) ExtractObligations(ctx context.Context, text string, includePenalties bool) ([]driven.ObligationCandidate, error) {
	sentences := splitSentences(text)
	gated := gateSentences(sentences)

	candidates := make([]driven.ObligationCandidate, 0, len(gated))
	for _, g := range gated {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s := sentences[g.idx]
		cand := driven.ObligationCandidate{
			Description: whitespaceRe.ReplaceAllString(s.text, " "),
			Certainty:   sentenceCertainty(g.hits),
			Offset:      s.offset,
			Method:      methodPattern,
		}
		if m := firstMatch(s.text, frequencyRes); m != "" {
			cand.FrequencyText = m
		}
		if m := windowMatch(sentences, g.idx, dueDateRes); m != "" {
			cand.DueDateText = m
		}
		if includePenalties {
			if m := windowMatch(sentences, g.idx, penaltyRes); m != "" {
				cand.PenaltyText = strings.TrimSpace(strings.TrimLeft(m, ": "))
			}
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// splitSentences splits the text on sentence terminators, keeping
// every non-empty segment so window search sees true neighbours.
func splitSentences(text string) []sentence {
	start := 0
	boundaries := sentenceSplitRe.FindAllStringIndex(text, -1)
	segments := make([][2]int, 0, len(boundaries)+1)
	for _, b := range boundaries {
		segments = append(segments, [2]int{start, b[0]})
		start = b[1]
	}
	if start < len(text) {
		segments = append(segments, [2]int{start, len(text)})
	}

	sentences := make([]sentence, 0, len(segments))
	for _, seg := range segments {
		raw := text[seg[0]:seg[1]]
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		lead := strings.Index(raw, trimmed)
		sentences = append(sentences, sentence{
			text:   trimmed,
			offset: domain.TextOffset{Start: seg[0] + lead, End: seg[0] + lead + len(trimmed)},
		})
	}
	return sentences
}

// gateSentences keeps keyword-bearing sentences, strongest hits first,
// capped.
func gateSentences(sentences []sentence) []gatedSentence {
	var gated []gatedSentence
	for i, s := range sentences {
		if len(s.text) <= minSentenceLen {
			continue
		}
		lower := strings.ToLower(s.text)
		hits := 0
		for _, kw := range obligationKeywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		gated = append(gated, gatedSentence{idx: i, hits: hits})
	}

	sort.SliceStable(gated, func(i, j int) bool { return gated[i].hits > gated[j].hits })
	if len(gated) > maxObligationSentences {
		gated = gated[:maxObligationSentences]
	}
	return gated
}

// windowMatch searches the sentence itself, then the following and
// preceding sentences, returning the first match.
func windowMatch(sentences []sentence, idx int, res []*regexp.Regexp) string {
	for _, j := range [3]int{idx, idx + 1, idx - 1} {
		if j < 0 || j >= len(sentences) {
			continue
		}
		if m := firstMatch(sentences[j].text, res); m != "" {
			return m
		}
	}
	return ""
}

// sentenceCertainty maps keyword density to certainty. One keyword is
// a plausible obligation; several make it near-certain.
func sentenceCertainty(hits int) float64 {
	c := 0.6 + 0.1*float64(hits)
	if c > 0.95 {
		c = 0.95
	}
	return c
}

func firstMatch(sentence string, res []*regexp.Regexp) string {
	for _, re := range res {
		if m := re.FindStringSubmatch(sentence); m != nil {
			return m[1]
		}
	}
	return ""
}
