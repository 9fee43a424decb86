package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugRunes = 48

// Slug turns a title into a lowercase file-name token: accents are stripped,
// letters and digits kept, every other run of characters becomes a single
// dash. Returns "untitled" when nothing usable remains.
func Slug(title string) string {
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		title,
	)
	if err != nil {
		stripped = title
	}

	var b strings.Builder
	count := 0
	pendingDash := false
	for _, r := range strings.ToLower(stripped) {
		if count >= maxSlugRunes {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
				count++
			}
			pendingDash = false
			b.WriteRune(r)
			count++
			continue
		}
		pendingDash = true
	}
	out := strings.TrimRight(b.String(), "-")
	if out == "" {
		return "untitled"
	}
	return out
}
