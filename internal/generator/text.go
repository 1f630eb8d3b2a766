package generator

import (
	"strings"
	"unicode/utf8"

	"github.com/clintrovert/ourstreet/pkg/types"
)

const ellipsis = "..."

// Length counts characters the way the platform limit is applied
func Length(s string) int {
	return utf8.RuneCountInString(s)
}

// ClampLength cuts s to types.MaxPostLength, ending in an ellipsis when cut
func ClampLength(s string) string {
	if Length(s) <= types.MaxPostLength {
		return s
	}
	return truncateRunes(s, types.MaxPostLength-Length(ellipsis)) + ellipsis
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// cleanTweet strips whitespace and the wrapping quotes models like to add
func cleanTweet(raw string) string {
	text := strings.TrimSpace(raw)
	for _, q := range []string{`"`, `'`, "“"} {
		if strings.HasPrefix(text, q) {
			text = strings.TrimPrefix(text, q)
			break
		}
	}
	for _, q := range []string{`"`, `'`, "”"} {
		if strings.HasSuffix(text, q) {
			text = strings.TrimSuffix(text, q)
			break
		}
	}
	return ClampLength(strings.TrimSpace(text))
}

// parseVerdict reads "APPROVE: reason" / "REJECT: reason" style answers
func parseVerdict(raw string) Verdict {
	text := strings.TrimSpace(raw)
	text = strings.Trim(text, `"'`)

	v := Verdict{
		ShouldPost: strings.HasPrefix(strings.ToUpper(text), "APPROVE"),
		Reason:     text,
		Source:     SourceModel,
	}
	if idx := strings.Index(text, ":"); idx != -1 {
		if reason := strings.TrimSpace(text[idx+1:]); reason != "" {
			v.Reason = reason
		}
	}
	return v
}
