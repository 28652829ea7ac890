// Package providers defines the model-review client contract and the shared
// HTTP plumbing behind it.
//
// # Overview
//
// A Reviewer turns submitted code into a review and reports what it cost:
//
//	result, err := reviewer.Review(ctx, providers.ReviewRequest{
//	    Code:     code,
//	    Mode:     roast.ModeRoast,
//	    Severity: roast.SeverityNormal,
//	    Model:    "claude-haiku-4-5-20251001",
//	})
//
// # Retries
//
// HTTPClient retries connection failures and 5xx responses with exponential
// backoff clamped to [MinBackoff, MaxBackoff]. Authentication failures, 4xx
// validation errors and 429 responses are returned immediately. Callers that
// get an error back should treat the review as failed and charge nothing.
//
// # Pricing
//
// CostCents converts token usage into cents using per-million-token prices
// keyed by model family.
package providers
