package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString cleans free text from query strings such as catalog search
// terms and SEO paths. Control characters are dropped, whitespace runs are
// collapsed to one space, and the result is cut to maxLen bytes without
// splitting a rune. A maxLen of zero disables the cap.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(input))
	space := false
	for _, r := range input {
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
	if maxLen <= 0 || len(out) <= maxLen {
		return out
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(out[cut]) {
		cut--
	}
	return strings.TrimRight(out[:cut], " ")
}
