package tools

import (
	"strings"
	"unicode/utf8"
)

// MaxExcerptLen is the longest excerpt, in characters, before
// [Excerpt] narrows to a single sentence or truncates.
const MaxExcerptLen = 300

// Excerpt returns the text around the first case-insensitive occurrence of
// target: the sentence containing it plus one sentence on either side.
// Sentences end at '.', '!' or '?'; a blank line also bounds the window.
// Windows over [MaxExcerptLen] characters fall back to the matching
// sentence alone, and that is cut to MaxExcerptLen with an ellipsis if
// still too long. ok is false when target does not occur.
func Excerpt(text, target string) (excerpt string, ok bool) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", false
	}
	start := indexFold(text, target)
	if start < 0 {
		return "", false
	}
	end := start + len(target)

	window := strings.TrimSpace(text[scanBack(text, start, 2):scanForward(text, end, 2)])
	if utf8.RuneCountInString(window) <= MaxExcerptLen {
		return window, true
	}

	sentence := strings.TrimSpace(text[scanBack(text, start, 1):scanForward(text, end, 1)])
	if utf8.RuneCountInString(sentence) <= MaxExcerptLen {
		return sentence, true
	}
	return string([]rune(sentence)[:MaxExcerptLen]) + "…", true
}

// indexFold is a case-insensitive strings.Index returning a byte offset
// into s.
func indexFold(s, substr string) int {
	n := len(substr)
	for i := 0; i+n <= len(s); i++ {
		if !utf8.RuneStart(s[i]) {
			continue
		}
		if strings.EqualFold(s[i:i+n], substr) {
			return i
		}
	}
	return -1
}

// scanBack walks left from pos and returns the offset just past the n-th
// sentence terminator, or the start of the paragraph.
func scanBack(s string, pos, n int) int {
	seen := 0
	for i := pos - 1; i >= 0; i-- {
		switch s[i] {
		case '.', '!', '?':
			seen++
			if seen == n {
				return i + 1
			}
		case '\n':
			if i > 0 && s[i-1] == '\n' {
				return i + 1
			}
		}
	}
	return 0
}

// scanForward walks right from pos and returns the offset just past the
// n-th sentence terminator, or the end of the paragraph.
func scanForward(s string, pos, n int) int {
	seen := 0
	for i := pos; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			seen++
			if seen == n {
				return i + 1
			}
		case '\n':
			if i+1 < len(s) && s[i+1] == '\n' {
				return i
			}
		}
	}
	return len(s)
}
