// Package sanitize cleans operator-supplied free text before it is logged,
// forwarded to the dispatch service or rendered into alert emails.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxReasonLength bounds a stop reason in runes.
const MaxReasonLength = 500

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes tags, including tags hidden behind entity encoding.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = html.UnescapeString(result)
	return htmlTagRegex.ReplaceAllString(result, "")
}

// Reason returns s as a single line of plain text: tags stripped, control
// characters dropped, whitespace runs collapsed and length capped.
func Reason(s string) string {
	s = StripHTML(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
			continue
		case unicode.IsControl(r), r == utf8.RuneError:
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}

	out := b.String()
	if utf8.RuneCountInString(out) > MaxReasonLength {
		out = string([]rune(out)[:MaxReasonLength])
	}
	return out
}

// TextPtr sanitizes an optional value and maps blank results to nil.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := strings.TrimSpace(StripHTML(*s))
	if result == "" {
		return nil
	}
	return &result
}
