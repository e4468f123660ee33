package filename

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// hostileChars are rejected by at least one common filesystem.
const hostileChars = `\/:*?"<>|`

// Sanitize makes s safe to use inside a filename: NFC-normalized, control
// and path characters removed, whitespace collapsed and trimmed.
func Sanitize(s string) string {
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			// dropped
		case strings.ContainsRune(hostileChars, r):
			// dropped
		default:
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) (string, bool) {
	if n <= 0 {
		return "", s != ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}
