package api

import (
	"errors"
	"strings"

	"lexcase/internal/services"
)

// Code identifies an API error class.
type Code string

const (
	CodeValidation     Code = "VALIDATION_ERROR"
	CodeTextTooLong    Code = "TEXT_TOO_LONG"
	CodeInvalidAPIKey  Code = "INVALID_API_KEY"
	CodeRateLimited    Code = "RATE_LIMIT_EXCEEDED"
	CodeStageNotFound  Code = "STAGE_NOT_FOUND"
	CodeAnalyticsError Code = "ANALYTICS_ERROR"
	CodeAPIError       Code = "API_ERROR"
	CodeUnauthorized   Code = "UNAUTHORIZED"
	CodeNotFound       Code = "NOT_FOUND"
	CodeMethod         Code = "METHOD_NOT_ALLOWED"
)

const defaultMessage = "حدث خطأ غير متوقع."

var messages = map[Code]string{
	CodeValidation:     "البيانات غير مكتملة أو غير صحيحة. يرجى المراجعة والمحاولة مجدداً.",
	CodeInvalidAPIKey:  "مفتاح API غير صالح. تحقق من الإعدادات.",
	CodeRateLimited:    "تم تجاوز الحد المسموح من الطلبات. يرجى الانتظار قليلاً ثم المحاولة.",
	CodeStageNotFound:  "المرحلة المطلوبة غير موجودة.",
	CodeAnalyticsError: "تعذر معالجة بيانات التحليلات حالياً.",
	CodeAPIError:       "حدث خطأ في الاتصال بالخدمة. حاول لاحقاً.",
}

// Message returns the user-facing sentence for code. Unknown codes yield
// fallback, or a generic sentence when fallback is blank.
func Message(code Code, fallback string) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	if strings.TrimSpace(fallback) != "" {
		return fallback
	}
	return defaultMessage
}

// Error kinds carried in details.kind of API_ERROR responses so remote
// callers can recover the failure class.
const (
	KindRateLimited = "rate_limited"
	KindAuth        = "auth"
	KindTimeout     = "timeout"
	KindUpstream    = "upstream"
	KindTransient   = "transient"
	KindValidation  = "validation"
)

// KindOf names the services marker carried by err.
func KindOf(err error) string {
	switch {
	case errors.Is(err, services.ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, services.ErrAuth), errors.Is(err, services.ErrConfiguration):
		return KindAuth
	case errors.Is(err, services.ErrTimeout):
		return KindTimeout
	case errors.Is(err, services.ErrUpstream):
		return KindUpstream
	case errors.Is(err, services.ErrValidation):
		return KindValidation
	default:
		return KindTransient
	}
}

func markerForKind(kind string) error {
	switch kind {
	case KindRateLimited:
		return services.ErrRateLimited
	case KindAuth:
		return services.ErrAuth
	case KindTimeout:
		return services.ErrTimeout
	case KindUpstream:
		return services.ErrUpstream
	case KindValidation:
		return services.ErrValidation
	case KindTransient:
		return services.ErrTransient
	}
	return nil
}

func markerForCode(code Code, status int) error {
	switch code {
	case CodeValidation, CodeTextTooLong:
		return services.ErrValidation
	case CodeInvalidAPIKey, CodeUnauthorized:
		return services.ErrAuth
	case CodeRateLimited:
		return services.ErrRateLimited
	case CodeStageNotFound, CodeNotFound:
		return services.ErrNotFound
	}
	switch {
	case status == 429:
		return services.ErrRateLimited
	case status == 401 || status == 403:
		return services.ErrAuth
	case status == 408 || status == 504:
		return services.ErrTimeout
	case status >= 500:
		return services.ErrUpstream
	case status >= 400:
		return services.ErrValidation
	}
	return services.ErrTransient
}
