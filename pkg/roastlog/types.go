package roastlog

import "time"

// Record is one completed roast.
type Record struct {
	ID        int64
	CreatedAt time.Time

	SessionID string
	IPHash    string

	InputChars   int
	InputLines   int
	InputTokens  int
	OutputTokens int
	CostCents    float64

	Model    string
	Mode     string
	Severity string
	Language string

	ShareID  string
	IsPublic bool

	// Score is nil when the review carried no roast score.
	Score *int

	RoastContent string

	// CodeContent is only stored for public roasts.
	CodeContent string
}
