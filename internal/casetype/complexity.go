package casetype

import (
	"fmt"
	"strings"

	"lexcase/internal/textutil"
)

// Report levels, lowest to highest.
const (
	LevelSimple      = "بسيط"
	LevelModerate    = "متوسط"
	LevelComplex     = "معقد"
	LevelVeryComplex = "معقد جداً"
)

// ComplexityReport explains how involved a case is likely to be.
type ComplexityReport struct {
	Level             string   `json:"complexity"`
	Score             int      `json:"score"`
	Factors           []string `json:"factors"`
	EstimatedDuration string   `json:"estimatedDuration"`
}

var complexityMarkers = []string{
	"متعدد الأطراف", "معقد", "متشابك", "متداخل", "صعب",
	"عدة جوانب", "قوانين متعددة", "اختصاصات مختلفة",
}

// AnalyzeComplexity scores the case from the number of detected types, the
// length of the facts and explicit complexity markers.
func AnalyzeComplexity(text string, types []string) ComplexityReport {
	var report ComplexityReport
	if len(types) > 1 {
		report.Score += len(types) * 2
		report.Factors = append(report.Factors, fmt.Sprintf("قضية متعددة الأنواع (%d أنواع)", len(types)))
	}

	switch words := textutil.WordCount(text); {
	case words > 500:
		report.Score += 3
		report.Factors = append(report.Factors, "نص مفصل وطويل")
	case words > 200:
		report.Score++
		report.Factors = append(report.Factors, "نص متوسط الطول")
	}

	normalized := textutil.Normalize(text)
	for _, marker := range complexityMarkers {
		if strings.Contains(normalized, textutil.Normalize(marker)) {
			report.Score += 2
			report.Factors = append(report.Factors, "عامل تعقيد: "+marker)
		}
	}

	switch {
	case report.Score <= 2:
		report.Level, report.EstimatedDuration = LevelSimple, "1-2 ساعات"
	case report.Score <= 5:
		report.Level, report.EstimatedDuration = LevelModerate, "3-5 ساعات"
	case report.Score <= 8:
		report.Level, report.EstimatedDuration = LevelComplex, "6-10 ساعات"
	default:
		report.Level, report.EstimatedDuration = LevelVeryComplex, "أكثر من 10 ساعات"
	}
	return report
}
