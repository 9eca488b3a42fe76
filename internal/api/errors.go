package api

import (
	"fmt"
	"net/http"
	"strings"
)

// StatusError is a non-2xx API reply.
type StatusError struct {
	Status  int
	Code    Code
	Message string
	Details map[string]any
	// Err is the local cause when the error originates in-process.
	Err error
}

// NewError builds a StatusError.
func NewError(status int, code Code, message string, details map[string]any) *StatusError {
	return &StatusError{Status: status, Code: code, Message: message, Details: details}
}

func (e *StatusError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return msg
}

// Unwrap exposes the services marker for the code plus the local cause.
func (e *StatusError) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := make([]error, 0, 3)
	if kind, ok := e.Details["kind"].(string); ok {
		if marker := markerForKind(kind); marker != nil {
			errs = append(errs, marker)
		}
	}
	errs = append(errs, markerForCode(e.Code, e.Status))
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Response converts the error to its wire body.
func (e *StatusError) Response() ErrorResponse {
	return ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Error:   e.Message,
		Details: e.Details,
	}
}

// HTTPStatus returns the reply status, defaulting to 500.
func (e *StatusError) HTTPStatus() int {
	if e == nil || e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}
