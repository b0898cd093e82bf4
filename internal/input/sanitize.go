package input

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/teemow/calbridge/internal/result"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@.]+(\.[^\s@.]+)+$`)

// Sanitize trims a free-form field. A required field must be a non-empty
// string; optional non-string values are coerced with fmt.Sprint.
func Sanitize(value any, field string, required bool) (string, error) {
	if value == nil {
		if required {
			return "", result.MissingField(field)
		}
		return "", nil
	}

	s, ok := value.(string)
	if !ok {
		if required {
			return "", result.InvalidFieldType(field, value)
		}
		s = fmt.Sprint(value)
	}

	s = strings.TrimSpace(s)
	if required && s == "" {
		return "", result.MissingField(field)
	}
	return s, nil
}

// Field reads and sanitizes args[field].
func Field(args map[string]any, field string, required bool) (string, error) {
	return Sanitize(args[field], field, required)
}

// IsValidEmail is a syntactic local@domain.tld check. It does not verify
// that the mailbox exists.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// SplitList accepts a comma-separated string, a JSON array encoded as a
// string, or an array of strings, and returns the trimmed non-empty items.
func SplitList(value any, field string) ([]string, error) {
	var raw []string

	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "[") {
			var arr []string
			if err := json.Unmarshal([]byte(v), &arr); err == nil {
				raw = arr
				break
			}
		}
		raw = strings.Split(v, ",")
	case []string:
		raw = v
	case []any:
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, result.New(result.KindInvalidFieldType, "%s[%d] must be a string, got %T", field, i, item)
			}
			raw = append(raw, s)
		}
	default:
		return nil, result.InvalidFieldType(field, value)
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}

// ValidateAttendees fails with ValidationFailed on the first address that
// is not syntactically valid.
func ValidateAttendees(attendees []string) error {
	for _, a := range attendees {
		if !IsValidEmail(a) {
			return result.New(result.KindValidationFailed, "invalid attendee email address %q", a)
		}
	}
	return nil
}
