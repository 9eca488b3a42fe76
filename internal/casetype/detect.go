package casetype

import (
	"fmt"
	"math"
	"sort"

	"lexcase/internal/textutil"
)

// Alternative is a runner-up category.
type Alternative struct {
	Type       string `json:"type"`
	Confidence int    `json:"confidence"`
	Reason     string `json:"reason"`
}

// Detection is the outcome of keyword scoring.
type Detection struct {
	Type         string        `json:"suggestedType"`
	Confidence   int           `json:"confidence"`
	Reasons      []string      `json:"reasons"`
	Alternatives []Alternative `json:"alternativeTypes"`
}

const maxAlternatives = 3

type scored struct {
	name    string
	score   int
	reasons []string
}

// Detect scores every category against text. Primary keywords weigh 3,
// secondary 2 and context 1 per occurrence. Confidence is the top score's
// share of the total, capped at 95.
func Detect(text string) Detection {
	normalized := textutil.Normalize(text)
	results := make([]scored, 0, len(categories))
	total := 0
	for _, cat := range categories {
		entry := scored{name: cat.name}
		for _, tr := range cat.tiers {
			for _, kw := range tr.words {
				n := countWord(normalized, kw.normalized)
				if n == 0 {
					continue
				}
				entry.score += n * tr.weight
				entry.reasons = append(entry.reasons, fmt.Sprintf("%s: %q (%d مرة)", tr.label, kw.display, n))
			}
		}
		total += entry.score
		if entry.score > 0 {
			results = append(results, entry)
		}
	}
	if len(results) == 0 {
		return Detection{
			Type:       General,
			Confidence: 0,
			Reasons:    []string{"لم يتم العثور على مؤشرات واضحة لنوع القضية"},
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })

	top := results[0]
	detection := Detection{
		Type:       top.name,
		Confidence: min(95, percent(top.score, total)),
		Reasons:    top.reasons,
	}
	for _, alt := range results[1:min(len(results), maxAlternatives+1)] {
		reason := "تطابق جزئي"
		if len(alt.reasons) > 0 {
			reason = alt.reasons[0]
		}
		detection.Alternatives = append(detection.Alternatives, Alternative{
			Type:       alt.name,
			Confidence: percent(alt.score, total),
			Reason:     reason,
		})
	}
	return detection
}

func percent(score, total int) int {
	return int(math.Round(float64(score) / float64(max(total, 1)) * 100))
}
