// Package stringutils provides helpers to shorten texts for display.
package stringutils

import (
	"strings"
	"unicode/utf8"
)

const ellipsis = "..."

// FirstLine returns str up to the first line break, without trailing
// whitespace.
func FirstLine(str string) string {
	if idx := strings.IndexAny(str, "\r\n"); idx != -1 {
		str = str[:idx]
	}

	return strings.TrimRightFunc(str, func(r rune) bool {
		return r == ' ' || r == '\t'
	})
}

// Ellipsize shortens str to at most maxRunes runes.
// When it is shortened the last runes are replaced by "...".
func Ellipsize(str string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}

	if utf8.RuneCountInString(str) <= maxRunes {
		return str
	}

	if maxRunes <= len(ellipsis) {
		return truncateRunes(str, maxRunes)
	}

	return truncateRunes(str, maxRunes-len(ellipsis)) + ellipsis
}

func truncateRunes(str string, n int) string {
	var cnt int
	for i := range str {
		if cnt == n {
			return str[:i]
		}
		cnt++
	}

	return str
}
