package analysis

import (
	"context"
	"errors"
	"math"
	"net"
	"strings"
	"time"

	"lexcase/internal/services"
)

// ErrAlreadyRunning is returned when a run starts while another is active.
var ErrAlreadyRunning = errors.New("التحليل قيد التشغيل بالفعل")

// ErrInvalidStage is returned by ResumeFromStage for an out-of-range index.
var ErrInvalidStage = errors.New("رقم المرحلة غير صحيح")

// timeoutMessage is recorded when an attempt exceeds its stage timeout.
const timeoutMessage = "انتهت المهلة الزمنية للمرحلة"

// ErrorKind groups failures by retry treatment.
type ErrorKind string

const (
	KindRateLimit  ErrorKind = "rate_limit"
	KindNetwork    ErrorKind = "network"
	KindServer     ErrorKind = "server"
	KindAuth       ErrorKind = "auth"
	KindValidation ErrorKind = "validation"
	KindGeneral    ErrorKind = "general"
)

// Classify maps err to an ErrorKind. Typed markers win; the message text is
// only consulted when err carries none.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindGeneral
	}
	switch {
	case errors.Is(err, services.ErrRateLimited):
		return KindRateLimit
	case errors.Is(err, services.ErrAuth), errors.Is(err, services.ErrConfiguration):
		return KindAuth
	case services.Permanent(err):
		return KindValidation
	case errors.Is(err, services.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindNetwork
	case errors.Is(err, services.ErrUpstream):
		return KindServer
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	return classifyMessage(err.Error())
}

func classifyMessage(message string) ErrorKind {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, "429", "rate", "quota"):
		return KindRateLimit
	case containsAny(lower, "network", "connection", "timeout"):
		return KindNetwork
	case containsAny(lower, "500", "502", "503"):
		return KindServer
	case containsAny(lower, "api", "key", "auth"):
		return KindAuth
	}
	return KindGeneral
}

func containsAny(s string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

// RetryStrategy is the decision taken after a failed attempt.
type RetryStrategy struct {
	Kind  ErrorKind
	Retry bool
	Delay time.Duration
}

// authRetries bounds retries of authentication failures.
const authRetries = 2

// Strategy picks the retry decision for err on the 0-based attempt. Only
// rate-limit delays are capped at MaxDelay.
func (c SmartConfig) Strategy(err error, attempt int) RetryStrategy {
	kind := Classify(err)
	s := RetryStrategy{Kind: kind, Retry: true}
	switch kind {
	case KindRateLimit:
		if c.ExponentialBackoff {
			s.Delay = time.Duration(float64(c.BaseDelay) * math.Pow(2, float64(attempt)))
		} else {
			s.Delay = c.BaseDelay * time.Duration(attempt+1)
		}
		if c.MaxDelay > 0 && s.Delay > c.MaxDelay {
			s.Delay = c.MaxDelay
		}
	case KindNetwork:
		s.Delay = c.BaseDelay + time.Duration(attempt)*2*time.Second
	case KindServer:
		s.Delay = c.BaseDelay * time.Duration(attempt+1)
	case KindAuth:
		s.Retry = attempt < authRetries
		s.Delay = c.BaseDelay
	case KindValidation:
		s.Retry = false
	default:
		s.Delay = c.BaseDelay + time.Duration(attempt)*1500*time.Millisecond
	}
	return s
}

// IsRateLimit reports whether err signals quota exhaustion.
func IsRateLimit(err error) bool {
	return Classify(err) == KindRateLimit
}

// attemptError normalises an attempt failure. A stage deadline that fired
// while the run itself is still live becomes a timeout error.
func attemptError(runCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if runCtx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "analysis", "stage", timeoutMessage, err)
	}
	return err
}
