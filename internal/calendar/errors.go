package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/teemow/calbridge/internal/result"
)

// rateLimitReasons are 403 reasons the provider uses for throttling.
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
}

// classifyAPIError maps a provider error to the propagation policy:
// absence is NotFound, rejections are UpstreamError and everything else
// stays unclassified so the retry executor treats it as transient.
// reauth is set when the session's credentials should be rebuilt.
func classifyAPIError(op string, err error) (classified error, reauth bool) {
	if err == nil {
		return nil, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("%s: %w", op, err), false
	}

	msg := apiErrorMessage(gerr)
	switch {
	case gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone:
		return result.Wrap(result.KindNotFound, err, "%s: not found: %s", op, msg), false
	case gerr.Code == http.StatusUnauthorized:
		return fmt.Errorf("%s: unauthorized: %w", op, err), true
	case gerr.Code == http.StatusForbidden && isRateLimited(gerr):
		return fmt.Errorf("%s: rate limited: %w", op, err), false
	case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
		return fmt.Errorf("%s: %w", op, err), false
	case gerr.Code >= 400:
		return result.Wrap(result.KindUpstreamError, err, "%s rejected by provider (%d): %s", op, gerr.Code, msg), false
	}
	return fmt.Errorf("%s: %w", op, err), false
}

func isRateLimited(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		if rateLimitReasons[item.Reason] {
			return true
		}
	}
	return false
}

func apiErrorMessage(gerr *googleapi.Error) string {
	if gerr.Message != "" {
		return gerr.Message
	}
	for _, item := range gerr.Errors {
		if item.Message != "" {
			return item.Message
		}
	}
	return http.StatusText(gerr.Code)
}

// Phrases in tool error text that indicate a condition worth retrying.
var transientPhrases = []string{
	"timeout",
	"timed out",
	"rate limit",
	"too many requests",
	"unauthorized",
	"expired",
	"unavailable",
	"try again",
	"temporarily",
	"connection reset",
	"connection refused",
}

// classifyToolError maps the text of a failed tool result.
func classifyToolError(op, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "tool reported an error without a message"
	}
	lower := strings.ToLower(text)

	if strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist") {
		return result.New(result.KindNotFound, "%s: %s", op, text)
	}
	for _, phrase := range transientPhrases {
		if strings.Contains(lower, phrase) {
			return fmt.Errorf("%s: %s", op, text)
		}
	}
	return result.New(result.KindUpstreamError, "%s rejected by provider: %s", op, text)
}
