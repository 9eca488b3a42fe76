package casetype

import "lexcase/internal/textutil"

// General is reported when no category keyword matches.
const General = "عام"

type keywordSet struct {
	name      string
	primary   []string
	secondary []string
	context   []string
}

// Order matters: ties keep this order.
var keywordSets = []keywordSet{
	{
		name:      "مدني",
		primary:   []string{"عقد", "التزام", "دين", "ضمان", "كفالة", "إيجار", "بيع", "شراء"},
		secondary: []string{"مدني", "تعاقد", "اتفاق", "مسؤولية مدنية", "تعويض مدني"},
		context:   []string{"طرفين", "اتفاقية", "التزامات", "حقوق مدنية"},
	},
	{
		name:      "جنائي",
		primary:   []string{"جريمة", "سرقة", "قتل", "اعتداء", "احتيال", "تزوير", "رشوة", "فساد"},
		secondary: []string{"جنائي", "جناية", "جنحة", "مخالفة", "عقوبة", "حبس", "غرامة"},
		context:   []string{"متهم", "مجرم", "ضحية", "شاهد", "تحقيق", "نيابة"},
	},
	{
		name:      "تجاري",
		primary:   []string{"شركة", "تجارة", "استثمار", "أسهم", "بنك", "قرض", "ربح", "خسارة"},
		secondary: []string{"تجاري", "اقتصادي", "مالي", "محاسبي", "ضريبي"},
		context:   []string{"شراكة", "مؤسسة", "رأس مال", "أرباح", "أعمال"},
	},
	{
		name:      "أحوال شخصية",
		primary:   []string{"زواج", "طلاق", "نفقة", "حضانة", "ميراث", "وصية", "نسب", "زوجة", "زوج", "أحوال شخصية"},
		secondary: []string{"أسرة", "زوجية", "أطفال", "والدين", "أقارب", "عائلة", "شرعي", "عقد زواج", "دعوى طلاق"},
		context:   []string{"قرابة", "أبناء", "وراثة", "تركة", "عائلي", "أسري", "شؤون عائلية"},
	},
	{
		name:      "عمالي",
		primary:   []string{"عمل", "وظيفة", "راتب", "أجر", "فصل", "استقالة", "إجازة"},
		secondary: []string{"عامل", "موظف", "صاحب عمل"},
		context:   []string{"عمالة", "توظيف", "حقوق العمال", "قانون العمل"},
	},
	{
		name:      "إداري",
		primary:   []string{"حكومة", "وزارة", "بلدية", "ترخيص", "قرار إداري", "موظف عام"},
		secondary: []string{"إدارة", "حكومي", "رسمي", "دولة", "سلطة"},
		context:   []string{"إجراءات", "معاملة", "خدمات حكومية", "قطاع عام"},
	},
	{
		name:      "عقاري",
		primary:   []string{"أرض", "بيت", "عقار", "ملكية", "بناء", "تطوير"},
		secondary: []string{"عقاري", "سكني", "استثماري"},
		context:   []string{"مساحة", "موقع", "حدود", "جيران", "تسجيل"},
	},
	{
		name:      "ضريبي",
		primary:   []string{"ضريبة", "رسوم", "جمارك", "ضريبة دخل", "ضريبة مبيعات"},
		secondary: []string{"إقرار ضريبي"},
		context:   []string{"دافع الضرائب", "سلطة الضرائب", "إعفاء ضريبي"},
	},
	{
		name:      "دستوري",
		primary:   []string{"دستور", "حقوق أساسية", "حريات", "انتخابات", "برلمان"},
		secondary: []string{"دستوري", "سياسي", "قانون أساسي"},
		context:   []string{"فصل السلطات", "رقابة دستورية"},
	},
	{
		name:      "بيئي",
		primary:   []string{"بيئة", "تلوث", "نفايات", "مياه", "هواء", "طبيعة"},
		secondary: []string{"بيئي", "طبيعي", "إيكولوجي", "استدامة"},
		context:   []string{"حماية البيئة", "موارد طبيعية", "تأثير بيئي"},
	},
}

type keyword struct {
	display    string
	normalized string
}

type tier struct {
	weight int
	label  string
	words  []keyword
}

type category struct {
	name  string
	tiers []tier
}

var categories = buildCategories()

func buildCategories() []category {
	out := make([]category, 0, len(keywordSets))
	for _, set := range keywordSets {
		out = append(out, category{
			name: set.name,
			tiers: []tier{
				{weight: 3, label: "كلمة أساسية", words: normalizeAll(set.primary)},
				{weight: 2, label: "كلمة ثانوية", words: normalizeAll(set.secondary)},
				{weight: 1, label: "كلمة سياق", words: normalizeAll(set.context)},
			},
		})
	}
	return out
}

func normalizeAll(words []string) []keyword {
	out := make([]keyword, 0, len(words))
	for _, w := range words {
		out = append(out, keyword{display: w, normalized: textutil.Normalize(w)})
	}
	return out
}

// Names returns the detectable category names in scoring order.
func Names() []string {
	names := make([]string, len(keywordSets))
	for i, set := range keywordSets {
		names[i] = set.name
	}
	return names
}
