package providers

import (
	"context"
	"time"

	"roastline-hq/roastline/pkg/roast"
)

// Reviewer produces a review of submitted code.
//
// Implementations retry transient failures themselves; an error returned
// from Review means the review failed and nothing should be charged.
type Reviewer interface {
	Review(ctx context.Context, req ReviewRequest) (*ReviewResult, error)
}

// ReviewRequest is one review to perform.
type ReviewRequest struct {
	// Code is the submitted source code.
	Code string

	// Mode selects the reviewer persona.
	Mode roast.Mode

	// Severity selects how harsh a roast is.
	Severity roast.Severity

	// Model is the model id to call.
	Model string
}

// ReviewResult is the outcome of a successful review.
type ReviewResult struct {
	// Text is the markdown review.
	Text string

	// InputTokens and OutputTokens are the provider-reported usage.
	InputTokens  int
	OutputTokens int

	// Model is the model that actually served the request.
	Model string

	// CostCents is the actual cost of the call.
	CostCents float64

	// Language is the detected language of the submission.
	Language string

	// Score is the extracted roast score, if the review carried one.
	Score *int

	// Latency is how long the review took, retries included.
	Latency time.Duration
}

// ClientConfig configures an HTTPClient.
type ClientConfig struct {
	// Name is the provider identifier used in errors and logs.
	Name string

	// Timeout is the per-attempt request timeout.
	Timeout time.Duration

	// MaxAttempts is the total number of attempts, first try included.
	MaxAttempts int

	// MinBackoff and MaxBackoff clamp the exponential backoff between attempts.
	MinBackoff time.Duration
	MaxBackoff time.Duration

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// IdleConnTimeout is how long an idle connection remains in the pool.
	IdleConnTimeout time.Duration
}

// Retry defaults: two attempts, backoff between one and four seconds.
const (
	DefaultMaxAttempts = 2
	DefaultMinBackoff  = time.Second
	DefaultMaxBackoff  = 4 * time.Second
	DefaultTimeout     = 60 * time.Second
)
