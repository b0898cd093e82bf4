package result

import "errors"

// Result is the outcome of an engine operation. Exactly one of Data or
// Error is meaningful, selected by Success.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   Kind   `json:"error,omitempty"`
	Message string `json:"message"`

	err error
}

// Ok builds a successful result.
func Ok[T any](data T, message string) Result[T] {
	return Result[T]{Success: true, Data: data, Message: message}
}

// Fail builds a failed result from err, keeping its kind and message.
func Fail[T any](err error) Result[T] {
	r := Result[T]{Error: KindOf(err), Message: err.Error(), err: err}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		r.Message = e.Message
	}
	return r
}

// Err returns the underlying error of a failed result, nil on success.
func (r Result[T]) Err() error {
	if r.Success {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	return &Error{Kind: r.Error, Message: r.Message}
}
