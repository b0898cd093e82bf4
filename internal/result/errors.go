package result

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for programmatic branching by callers.
type Kind string

// Error kinds surfaced by engine operations.
const (
	KindMissingField       Kind = "MissingField"
	KindInvalidFieldType   Kind = "InvalidFieldType"
	KindInvalidTimeFormat  Kind = "InvalidTimeFormat"
	KindInvalidTimeRange   Kind = "InvalidTimeRange"
	KindInvalidDuration    Kind = "InvalidDuration"
	KindValidationFailed   Kind = "ValidationFailed"
	KindProtectedResource  Kind = "ProtectedResource"
	KindNotFound           Kind = "NotFound"
	KindServiceUnavailable Kind = "ServiceUnavailable"
	KindRetryExhausted     Kind = "RetryExhausted"
	KindUpstreamError      Kind = "UpstreamError"
)

// Error is a classified failure carrying a message suitable for display.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
// This lets callers write errors.Is(err, &result.Error{Kind: result.KindNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// New creates a classified error.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a classified error around a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// MissingField reports a required field that was empty or absent.
func MissingField(field string) *Error {
	return &Error{Kind: KindMissingField, Field: field, Message: fmt.Sprintf("%s is required", field)}
}

// InvalidFieldType reports a required field that was not a string.
func InvalidFieldType(field string, value any) *Error {
	return &Error{
		Kind:    KindInvalidFieldType,
		Field:   field,
		Message: fmt.Sprintf("%s must be a string, got %T", field, value),
	}
}

// KindOf returns the kind of err. Unclassified errors are UpstreamError.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstreamError
}

// IsKind reports whether err is classified with kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Retryable reports whether err may succeed on a later attempt.
// Classified errors are final; anything unclassified is treated as a
// transient upstream or transport failure.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	return !errors.As(err, &e)
}

// IsInputError reports whether kind is detected before any network call.
func IsInputError(kind Kind) bool {
	switch kind {
	case KindMissingField, KindInvalidFieldType, KindInvalidTimeFormat,
		KindInvalidTimeRange, KindInvalidDuration:
		return true
	}
	return false
}
