package roast

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"roastline-hq/roastline/pkg/settings"
)

// MessageEmptyInput is shown when nothing but whitespace was submitted.
const MessageEmptyInput = "Paste some code first. We can't roast nothing."

// Validator checks submissions against the max_input_chars and
// max_input_lines settings.
type Validator struct {
	settings settings.Reader
}

// NewValidator creates a validator reading limits from cfg.
func NewValidator(cfg settings.Reader) *Validator {
	return &Validator{settings: cfg}
}

// Validate reports whether code may be reviewed and, if not, why.
func (v *Validator) Validate(ctx context.Context, code string) (bool, string, error) {
	if strings.TrimSpace(code) == "" {
		return false, MessageEmptyInput, nil
	}

	maxChars, err := settings.Int(ctx, v.settings, settings.KeyMaxInputChars, settings.DefaultMaxInputChars)
	if err != nil {
		return false, "", err
	}
	maxLines, err := settings.Int(ctx, v.settings, settings.KeyMaxInputLines, settings.DefaultMaxInputLines)
	if err != nil {
		return false, "", err
	}

	if chars := CountChars(code); chars > maxChars {
		return false, fmt.Sprintf("Too long (%s chars). Max is %s.",
			humanize.Comma(int64(chars)), humanize.Comma(int64(maxChars))), nil
	}

	if lines := CountLines(code); lines > maxLines {
		return false, fmt.Sprintf("Too many lines (%d). Max is %d. Paste the worst part.", lines, maxLines), nil
	}

	return true, "", nil
}

// CountChars returns the number of characters (runes) in code.
func CountChars(code string) int {
	return utf8.RuneCountInString(code)
}

// CountLines returns the number of newline-separated lines in code.
func CountLines(code string) int {
	return strings.Count(code, "\n") + 1
}
