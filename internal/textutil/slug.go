package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes text and removes combining marks, so accented
// characters reduce to their ASCII base ("Café" -> "Cafe").
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify derives a lowercase, hyphen-separated identifier from a title.
// The derivation is deterministic and lossy: distinct titles can collide.
// Empty or fully non-alphanumeric input yields "".
func Slugify(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if stripped, _, err := transform.String(stripMarks, value); err == nil {
		value = stripped
	}

	var b strings.Builder
	b.Grow(len(value))
	pendingDash := false
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r + ('a' - 'A'))
		default:
			pendingDash = true
		}
	}
	return b.String()
}
