package roast

import (
	"regexp"
	"strings"
)

// DefaultPreviewLength is the preview length used by feeds.
const DefaultPreviewLength = 150

var (
	markdownChars = regexp.MustCompile("[#*_`\\[\\]()]")
	newlineRuns   = regexp.MustCompile(`\n+`)
)

// Preview returns a plain-text excerpt of a markdown review, cut on a word
// boundary and suffixed with "..." when longer than maxLen characters.
func Preview(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultPreviewLength
	}

	plain := markdownChars.ReplaceAllString(text, "")
	plain = strings.TrimSpace(newlineRuns.ReplaceAllString(plain, " "))

	runes := []rune(plain)
	if len(runes) <= maxLen {
		return plain
	}

	cut := string(runes[:maxLen])
	if i := strings.LastIndex(cut, " "); i >= 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
