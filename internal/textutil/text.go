package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fold returns the Unicode case-folded form of s for keyword matching.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// TitleCase capitalizes each word of s.
func TitleCase(s string) string {
	return cases.Title(language.Und).String(CollapseSpace(s))
}

// CollapseSpace trims s and reduces internal whitespace runs to one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

const subtitleTrim = ".!?;,。！？；、 \t\r\n"

// CleanSubtitle turns a fragment of a brief into display text: surrounding
// quotes and trailing punctuation removed, whitespace collapsed, first letter
// upper-cased.
func CleanSubtitle(s string) string {
	s = CollapseSpace(s)
	s = strings.Trim(s, "\"'“”‘’「」")
	s = strings.TrimRight(s, subtitleTrim)
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// Truncate shortens s to at most limit runes, ending with an ellipsis when
// anything was cut.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	if limit == 1 {
		return "…"
	}
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}
