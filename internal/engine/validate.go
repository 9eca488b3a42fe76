package engine

import (
	"fmt"
	"net/http"
	"regexp"
	"slices"

	"lexcase/internal/analysis"
	"lexcase/internal/api"
)

const (
	DefaultMinTextLength = 10
	DefaultMaxTextLength = 10000
	// MaxAPIKeyLength bounds accepted Gemini keys.
	MaxAPIKeyLength = 100
)

// PartyRoles are the accepted party role values.
var PartyRoles = []string{"المشتكي", "المشتكى عليه", "المدعي", "المدعى عليه"}

var apiKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Limits bounds request validation.
type Limits struct {
	MinTextLength int
	MaxTextLength int
	StageCount    int
}

func (l Limits) normalized() Limits {
	if l.MinTextLength <= 0 {
		l.MinTextLength = DefaultMinTextLength
	}
	if l.MaxTextLength <= 0 {
		l.MaxTextLength = DefaultMaxTextLength
	}
	return l
}

// Validate checks a sanitised request. It returns nil when req is acceptable.
func Validate(req analysis.Request, limits Limits) *api.StatusError {
	limits = limits.normalized()
	length := len([]rune(req.Text))
	switch {
	case req.Text == "":
		return api.NewError(http.StatusBadRequest, api.CodeValidation,
			"يجب إدخال نص صحيح للتحليل", map[string]any{"field": "text"})
	case length < limits.MinTextLength:
		return api.NewError(http.StatusBadRequest, api.CodeValidation,
			fmt.Sprintf("النص قصير جداً. الحد الأدنى %d حرف", limits.MinTextLength),
			map[string]any{"field": "text", "minLength": limits.MinTextLength, "actualLength": length})
	case length > limits.MaxTextLength:
		return api.NewError(http.StatusBadRequest, api.CodeTextTooLong,
			fmt.Sprintf("النص طويل جداً. الحد الأقصى %d حرف", limits.MaxTextLength),
			map[string]any{"field": "text", "maxLength": limits.MaxTextLength, "actualLength": length})
	}

	switch {
	case req.APIKey == "":
		return api.NewError(http.StatusBadRequest, api.CodeInvalidAPIKey,
			"يجب إدخال مفتاح API صحيح", map[string]any{"field": "apiKey"})
	case len(req.APIKey) > MaxAPIKeyLength, !apiKeyPattern.MatchString(req.APIKey):
		return api.NewError(http.StatusBadRequest, api.CodeInvalidAPIKey,
			"مفتاح API غير صحيح", map[string]any{"field": "apiKey", "maxLength": MaxAPIKeyLength})
	}

	isPetition := req.FinalPetition && req.StageIndex == analysis.PetitionStageIndex
	if !isPetition && limits.StageCount > 0 {
		last := limits.StageCount - 1
		if req.StageIndex < 0 || req.StageIndex > last {
			return api.NewError(http.StatusBadRequest, api.CodeValidation,
				fmt.Sprintf("رقم المرحلة غير صحيح. يجب أن يكون بين 0 و %d", last),
				map[string]any{"field": "stageIndex", "validRange": []int{0, last}, "actualValue": req.StageIndex})
		}
	}

	if req.PartyRole != "" && !slices.Contains(PartyRoles, req.PartyRole) {
		return api.NewError(http.StatusBadRequest, api.CodeValidation,
			"صفة الطرف غير صحيحة", map[string]any{"field": "partyRole"})
	}
	return nil
}
