// internal/app/system/htmlsanitize/htmlsanitize.go
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// The mobile client renders text, never HTML, so every tag is stripped.
var strict = bluemonday.StrictPolicy()

// Text removes all markup from s and returns the readable text. Entities
// escaped by the policy are unescaped again so "&" stays "&".
func Text(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// Lines strips markup and splits the result into trimmed, non-empty lines.
// Common list markers ("-", "*", "•", "1.") are removed.
func Lines(s string) []string {
	var out []string
	for _, line := range strings.Split(Text(s), "\n") {
		line = trimBullet(strings.TrimSpace(line))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// IsPlainText reports whether s contains no markup.
func IsPlainText(s string) bool {
	return !strings.ContainsAny(s, "<>")
}

func trimBullet(s string) string {
	for _, p := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(s, p) {
			return strings.TrimSpace(s[len(p):])
		}
	}
	// "1. ", "12) "
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i+1 < len(s) && (s[i] == '.' || s[i] == ')') && s[i+1] == ' ' {
		return strings.TrimSpace(s[i+2:])
	}
	return s
}
