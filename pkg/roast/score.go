package roast

import (
	"regexp"
	"strconv"
)

var scorePattern = regexp.MustCompile(`(?i)Roast Score[:\s]*(\d{1,3})\s*/\s*100`)

// ExtractScore pulls "Roast Score: N/100" out of a review, capped at 100.
// It reports false when the review carries no score.
func ExtractScore(text string) (int, bool) {
	m := scorePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return min(n, 100), true
}
