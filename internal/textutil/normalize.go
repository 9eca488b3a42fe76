package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const tatweel = 'ـ'

// Normalize prepares text for keyword matching. Combining marks are removed
// after canonical decomposition, so harakat disappear and hamza carriers fold
// to their base letter (أ and إ become ا). Tatweel is dropped, the result is
// lowercased and whitespace runs collapse to one space.
func Normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), runes.Remove(runes.Predicate(isTatweel)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		out = text
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

func isTatweel(r rune) bool {
	return r == tatweel
}

// WordCount returns the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Truncate shortens text to at most limit runes. When text is cut, suffix is
// appended.
func Truncate(text string, limit int, suffix string) string {
	if limit < 0 {
		limit = 0
	}
	if len(text) <= limit {
		return text
	}
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit]) + suffix
}

// FirstLine returns the first non-empty trimmed line of text.
func FirstLine(text string) string {
	for line := range strings.SplitSeq(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// RuneLen returns the length of text in runes.
func RuneLen(text string) int {
	return len([]rune(text))
}
