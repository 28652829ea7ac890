// Package limits is the admission gate in front of the model call.
//
// # Overview
//
// Every roast passes four checks, in order, before any money is spent:
//
//  1. Kill switch: the enable_roasting setting must be "true".
//  2. Input validation: size limits from max_input_chars and max_input_lines.
//  3. Budget: the month's spend plus one estimated roast must fit the budget.
//  4. Rate limit: session, network and global daily quotas.
//
// The first failing check ends evaluation with a *PolicyDenied carrying the
// stage and a message safe to show the user. A check that cannot be
// evaluated, for example because the counter store is locked, refuses the
// request with the underlying error.
//
// # Usage
//
//	gate := limits.NewGate(limits.Config{
//	    Settings: settingsStore,
//	    Budget:   budget.NewLedger(backend, settingsStore),
//	    Limiter:  ratelimit.NewLimiter(backend, settingsStore),
//	    Reviewer: reviewer,
//	    Roasts:   roastLog,
//	})
//
//	outcome, err := gate.Roast(ctx, limits.Request{Code: code, Identity: id})
//	switch {
//	case errors.Is(err, limits.ErrBudgetExceeded):
//	    // 402
//	case errors.Is(err, limits.ErrReviewUnavailable):
//	    // 502, nothing was charged
//	}
//
// # Bookkeeping
//
// Counters only move after a successful review: the roast is logged, its
// cost is added to the month when positive, and the session and network
// counters are incremented together. Failed reviews cost neither budget nor
// quota.
//
// # Sub-packages
//
//   - budget: monthly spend ledger
//   - ratelimit: daily session, network and global quotas
//   - storage: SQLite counter store shared by both
package limits
