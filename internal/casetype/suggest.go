package casetype

import "slices"

const maxSuggestions = 3

var relatedTypes = map[string][]string{
	"مدني":        {"تجاري", "عقاري"},
	"تجاري":       {"مدني", "ضريبي"},
	"جنائي":       {"إداري"},
	"أحوال شخصية": {"مدني"},
	"عمالي":       {"تجاري", "إداري"},
	"إداري":       {"دستوري"},
	"عقاري":       {"مدني", "تجاري"},
	"ضريبي":       {"تجاري", "إداري"},
	"بيئي":        {"إداري", "جنائي"},
}

var customStages = map[string][]string{
	"مدني":        {"تحليل العقد أو الاتفاقية", "تحديد الالتزامات والحقوق", "تقييم المسؤولية المدنية"},
	"جنائي":       {"تحليل الأدلة الجنائية", "دراسة ظروف الجريمة", "تقييم العقوبة المتوقعة"},
	"تجاري":       {"تحليل الوضع المالي", "دراسة القوانين التجارية", "تقييم المخاطر التجارية"},
	"أحوال شخصية": {"تحليل الوضع العائلي", "دراسة حقوق الأطفال", "تقييم النفقة والحضانة"},
	"عمالي":       {"تحليل عقد العمل", "دراسة حقوق العامل", "تقييم التعويضات"},
}

// SuggestAdditional proposes up to three further categories for a case
// already filed under current: strong alternatives first, then related types.
func SuggestAdditional(text, current string) []string {
	var out []string
	for _, alt := range Detect(text).Alternatives {
		if alt.Confidence > 20 && alt.Type != current {
			out = append(out, alt.Type)
		}
	}
	for _, related := range relatedTypes[current] {
		if !slices.Contains(out, related) {
			out = append(out, related)
		}
	}
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// SuggestCustomStages lists extra analysis stages that suit the given
// categories, without duplicates, in the order the categories are given.
func SuggestCustomStages(types []string) []string {
	var out []string
	for _, t := range types {
		for _, name := range customStages[t] {
			if !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
	}
	return out
}
