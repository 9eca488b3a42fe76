package casetype

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Attached Arabic particles and suffixes a keyword may carry and still count
// as a whole-word hit ("والعقد", "زوجته").
var (
	proclitics = map[string]bool{
		"": true, "ال": true, "و": true, "ب": true, "ل": true, "ف": true, "ك": true,
		"وال": true, "بال": true, "فال": true, "كال": true, "لل": true, "ولل": true,
	}
	enclitics = map[string]bool{
		"": true, "ه": true, "ها": true, "هم": true, "هما": true, "ي": true, "ك": true,
		"نا": true, "ات": true, "ين": true, "ون": true, "ان": true, "ته": true, "تها": true, "ية": true,
	}
)

// countWord counts occurrences of keyword in normalized text that sit on word
// boundaries, allowing common attached particles on either side.
func countWord(text, keyword string) int {
	if keyword == "" {
		return 0
	}
	count := 0
	offset := 0
	for {
		idx := strings.Index(text[offset:], keyword)
		if idx < 0 {
			return count
		}
		start := offset + idx
		end := start + len(keyword)
		if proclitics[leadingLetters(text, start)] && enclitics[trailingLetters(text, end)] {
			count++
		}
		offset = end
	}
}

func leadingLetters(text string, pos int) string {
	begin := pos
	for begin > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:begin])
		if !unicode.IsLetter(r) {
			break
		}
		begin -= size
	}
	return text[begin:pos]
}

func trailingLetters(text string, pos int) string {
	end := pos
	for end < len(text) {
		r, size := utf8.DecodeRuneInString(text[end:])
		if !unicode.IsLetter(r) {
			break
		}
		end += size
	}
	return text[pos:end]
}
