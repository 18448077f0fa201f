package assistant

import (
	"html"
	"regexp"
	"strings"
)

const filtered = "[FILTERED]"

var (
	injectionPatterns = compileAll(
		`ignore\s+(previous|above|all)\s+instructions?`,
		`disregard\s+(previous|above|all)\s+instructions?`,
		`forget\s+(previous|above|all)\s+instructions?`,
		`new\s+instructions?:`,
		`system\s*:`,
		`assistant\s*:`,
		`\[system\]`,
		`\[assistant\]`,
		`<\|.*?\|>`,
		"```system",
	)
	rolePatterns = compileAll(
		`you\s+are\s+(now|actually)`,
		`pretend\s+(to\s+be|you\s+are)`,
		`roleplay\s+as`,
		`act\s+as\s+if`,
		`your\s+(new\s+)?role\s+is`,
	)
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// SanitizeInput HTML-escapes text and masks common prompt-injection phrases.
// It is a heuristic filter, not an access control.
func SanitizeInput(text string) string {
	if text == "" {
		return text
	}
	text = html.EscapeString(text)
	for _, re := range injectionPatterns {
		text = re.ReplaceAllString(text, filtered)
	}
	return strings.TrimSpace(text)
}

// SanitizeForModel additionally masks role-reassignment phrases.
func SanitizeForModel(text string) string {
	text = SanitizeInput(text)
	for _, re := range rolePatterns {
		text = re.ReplaceAllString(text, filtered)
	}
	return text
}
