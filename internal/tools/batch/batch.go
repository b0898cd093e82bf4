package batch

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/teemow/calbridge/internal/result"
)

// Item is the outcome of a single operation in a batch
type Item[T any] struct {
	Index   int         `json:"index"`
	ID      string      `json:"id,omitempty"`
	Success bool        `json:"success"`
	Data    T           `json:"data,omitempty"`
	Error   result.Kind `json:"error,omitempty"`
	Message string      `json:"message"`
}

// Outcome aggregates the items of one batch. The batch itself succeeded
// even when some items failed.
type Outcome[T any] struct {
	BatchID      string    `json:"batchId"`
	Total        int       `json:"total"`
	SuccessCount int       `json:"successCount"`
	FailureCount int       `json:"failureCount"`
	Items        []Item[T] `json:"items"`
}

// ParseStringOrArray parses a parameter that can be a single string, a JSON
// array encoded as a string, or an array of strings. Empty input fails.
func ParseStringOrArray(param any, paramName string) ([]string, error) {
	if param == nil {
		return nil, result.MissingField(paramName)
	}

	var values []string

	switch v := param.(type) {
	case string:
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "[") {
			var arr []string
			if err := json.Unmarshal([]byte(v), &arr); err == nil {
				if len(arr) == 0 {
					return nil, result.New(result.KindValidationFailed, "%s cannot be empty", paramName)
				}
				return ParseStringOrArray(toAny(arr), paramName)
			}
		}
		if v == "" {
			return nil, result.MissingField(paramName)
		}
		values = []string{v}
	case []string:
		return ParseStringOrArray(toAny(v), paramName)
	case []any:
		if len(v) == 0 {
			return nil, result.New(result.KindValidationFailed, "%s cannot be empty", paramName)
		}
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, result.New(result.KindInvalidFieldType, "%s[%d] must be a string", paramName, i)
			}
			if str = strings.TrimSpace(str); str == "" {
				return nil, result.New(result.KindValidationFailed, "%s[%d] cannot be empty", paramName, i)
			}
			values = append(values, str)
		}
	default:
		return nil, result.New(result.KindInvalidFieldType, "%s must be a string or array of strings", paramName)
	}

	return values, nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// Process runs fn over inputs in order and collects every item. A failed
// item never stops the batch. idOf may be nil.
func Process[In, T any](ctx context.Context, inputs []In, idOf func(In) string, fn func(ctx context.Context, in In) result.Result[T]) Outcome[T] {
	out := Outcome[T]{
		BatchID: uuid.NewString(),
		Total:   len(inputs),
		Items:   make([]Item[T], 0, len(inputs)),
	}

	for i, in := range inputs {
		r := fn(ctx, in)
		item := Item[T]{
			Index:   i,
			Success: r.Success,
			Data:    r.Data,
			Error:   r.Error,
			Message: r.Message,
		}
		if idOf != nil {
			item.ID = idOf(in)
		}
		if r.Success {
			out.SuccessCount++
		} else {
			out.FailureCount++
		}
		out.Items = append(out.Items, item)
	}

	return out
}
