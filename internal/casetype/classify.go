package casetype

import (
	"strings"

	"lexcase/internal/textutil"
)

// Complexity levels reported by Complexity.
const (
	ComplexityBasic        = "basic"
	ComplexityIntermediate = "intermediate"
	ComplexityAdvanced     = "advanced"
)

// DefaultPromptType is returned by Determine when nothing matches.
const DefaultPromptType = "قضية مدنية عامة"

type rule struct {
	name  string
	terms []string
}

// First match wins.
var promptRules = normalizeRules([]rule{
	{"ميراث", []string{"ميراث", "ورثة", "إرث"}},
	{"أحوال شخصية", []string{"طلاق", "زواج", "أحوال شخصية", "حضانة", "نفقة", "مؤخر", "شقاق", "نزاع"}},
	{"تجاري", []string{"عقد", "تجاري", "شركة", "كمبيالة", "شيك", "مصرف"}},
	{"جنائي", []string{"عقوبة", "جريمة", "جنحة", "جزائي", "جزائية"}},
	{"عقاري", []string{"أرض", "عقار", "ملكية", "حيازة", "إخلاء"}},
	{"عمل", []string{"عمل", "موظف", "راتب", "فصل", "أجور", "نقابة"}},
	{"إداري", []string{"إداري", "قرار إداري", "إلغاء قرار", "جهة إدارية"}},
	{"إيجارات", []string{"إيجار", "بدل إيجار", "مأجور", "مستأجر"}},
})

var (
	legalTerms     = normalizeTerms("قانون", "محكمة", "عقوبة", "حقوق", "التزام", "عقد", "ميراث", "طلاق", "نزاع")
	technicalTerms = normalizeTerms("إجراءات", "استئناف", "طعن", "تنفيذ", "تحكيم", "وساطة")
)

func normalizeRules(rules []rule) []rule {
	for i := range rules {
		rules[i].terms = normalizeTerms(rules[i].terms...)
	}
	return rules
}

func normalizeTerms(terms ...string) []string {
	out := make([]string, len(terms))
	for i, term := range terms {
		out[i] = textutil.Normalize(term)
	}
	return out
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// Determine returns the first category whose terms appear anywhere in text.
// It is substring based and intentionally coarser than Detect.
func Determine(text string) string {
	normalized := textutil.Normalize(text)
	for _, r := range promptRules {
		if containsAny(normalized, r.terms) {
			return r.name
		}
	}
	return DefaultPromptType
}

// Complexity grades text as basic, intermediate or advanced by length and
// the presence of legal or procedural vocabulary.
func Complexity(text string) string {
	normalized := textutil.Normalize(text)
	words := textutil.WordCount(text)
	switch {
	case words > 500 || containsAny(normalized, technicalTerms):
		return ComplexityAdvanced
	case words > 200 || containsAny(normalized, legalTerms):
		return ComplexityIntermediate
	default:
		return ComplexityBasic
	}
}
