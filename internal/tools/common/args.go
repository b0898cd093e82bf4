package common

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/teemow/calbridge/internal/input"
	"github.com/teemow/calbridge/internal/result"
)

// StringArg returns the trimmed string argument name, or "" when absent.
func StringArg(args map[string]any, name string) (string, error) {
	return input.Field(args, name, false)
}

// IntArg returns the integer argument name, or 0 when absent. JSON
// numbers arrive as float64 and must be whole. Values outside the int32
// range are rejected.
func IntArg(args map[string]any, name string) (int, error) {
	var n int64
	switch v := args[name].(type) {
	case nil:
		return 0, nil
	case int:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, result.New(result.KindInvalidFieldType, "%s must be a whole number, got %v", name, v)
		}
		if v < math.MinInt32 || v > math.MaxInt32 {
			return 0, outOfRange(name, v)
		}
		n = int64(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return 0, outOfRange(name, v)
			}
			return 0, result.Wrap(result.KindInvalidFieldType, err, "%s must be a whole number, got %q", name, v)
		}
		n = parsed
	default:
		return 0, result.New(result.KindInvalidFieldType, "%s must be a number, got %T", name, v)
	}

	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, outOfRange(name, n)
	}
	return int(n), nil
}

func outOfRange(name string, v any) error {
	return result.New(result.KindInvalidFieldType, "%s is out of range, got %v", name, v)
}

// BoolArg returns the boolean argument name, or false when absent.
func BoolArg(args map[string]any, name string) (bool, error) {
	switch v := args[name].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return false, nil
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return false, result.Wrap(result.KindInvalidFieldType, err, "%s must be true or false, got %q", name, v)
		}
		return b, nil
	default:
		return false, result.New(result.KindInvalidFieldType, "%s must be a boolean, got %T", name, v)
	}
}

// ListArg returns the list argument name. See input.SplitList for the
// accepted encodings.
func ListArg(args map[string]any, name string) ([]string, error) {
	return input.SplitList(args[name], name)
}
