// Package mock provides a canned reviewer for local runs without an
// Anthropic API key.
package mock

import (
	"context"
	"fmt"
	"time"

	"roastline-hq/roastline/pkg/providers"
	"roastline-hq/roastline/pkg/roast"
)

// Model is the model name reported by mock reviews.
const Model = "mock"

const roastText = `## Roast Score: 65/100

Oh, what do we have here? A human actually typed this out? By hand? In %d?

**The Good (yes, there's some):**
- You used functions. That's a start. An assistant would have suggested better names, but hey.

**The Not-So-Good:**
- Your variable naming looks like leftover Scrabble tiles. ` + "`x`, `tmp`, `data2`" + `.
- No error handling anywhere. When things go wrong we apparently just hope.
- That nested loop is O(n²) and you know it. A map lookup was right there.

**The Verdict:** It works the way a car with three wheels works. Technically it moves, but nobody's comfortable.
`

const seriousText = `## Code Review

**Warning: Variable naming could be improved**
Several variables use single-letter or abbreviated names. Prefer names that communicate intent.

**Critical: No error handling**
Functions that perform I/O or process external input do not check for failure.

**Warning: Algorithmic complexity**
The nested loop is quadratic. A set or map gives linear lookups.

**Suggestion: Extract magic numbers**
Hard-coded values belong in named constants.

**Overall:** The code is functional but would benefit from clearer naming and explicit error paths.
`

// Reviewer returns canned reviews at no cost.
type Reviewer struct {
	now func() time.Time
}

var _ providers.Reviewer = (*Reviewer)(nil)

// NewReviewer creates a mock reviewer.
func NewReviewer() *Reviewer {
	return &Reviewer{now: time.Now}
}

// Review returns a canned review for the requested mode.
func (r *Reviewer) Review(ctx context.Context, req providers.ReviewRequest) (*providers.ReviewResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := seriousText
	if req.Mode != roast.ModeSerious {
		text = fmt.Sprintf(roastText, r.now().Year())
	}

	result := &providers.ReviewResult{
		Text:     text,
		Model:    Model,
		Language: roast.DetectLanguage(req.Code),
	}
	if score, ok := roast.ExtractScore(text); ok {
		result.Score = &score
	}
	return result, nil
}
