package collab

import (
	"errors"
	"fmt"

	"github.com/gosuda/boardsync/internal/domain"
)

// Error codes carried by the outbound error event.
const (
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeValidation   = "validation"
	CodeNotFound     = "not_found"
	CodeNotViewing   = "not_viewing"
	CodeRateLimited  = "rate_limited"
	CodeInternal     = "internal"
)

// EventError is reported only to the connection whose event failed.
type EventError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *EventError) Error() string {
	return "collab: " + e.Code + ": " + e.Message
}

func newEventError(code, message string) *EventError {
	return &EventError{Code: code, Message: message}
}

func validationf(format string, args ...any) *EventError {
	return newEventError(CodeValidation, fmt.Sprintf(format, args...))
}

func forbidden(message string) *EventError { return newEventError(CodeForbidden, message) }
func notFound(message string) *EventError  { return newEventError(CodeNotFound, message) }

var errNotViewing = newEventError(CodeNotViewing, "Not connected to any board")

// classify turns a handler error into the scoped error sent to the client.
// Storage failures collapse to fallback; the second result reports whether
// the error is internal and worth logging.
func classify(err error, fallback string) (*EventError, bool) {
	var ee *EventError
	if errors.As(err, &ee) {
		return ee, false
	}
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return newEventError(CodeValidation, capitalize(ve.Message)), false
	case errors.Is(err, domain.ErrValidation):
		return newEventError(CodeValidation, "Invalid request"), false
	case errors.Is(err, domain.ErrNotFound):
		return newEventError(CodeNotFound, "Resource not found"), false
	case errors.Is(err, domain.ErrForbidden):
		return newEventError(CodeForbidden, "Access denied"), false
	case errors.Is(err, domain.ErrUnauthorized):
		return newEventError(CodeUnauthorized, "Not authenticated"), false
	default:
		return newEventError(CodeInternal, fallback), true
	}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
