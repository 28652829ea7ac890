package ratelimit

import (
	"context"
	"time"
)

// DateLayout formats daily_usage dates.
const DateLayout = "2006-01-02"

// Tier names the quota that produced a decision.
type Tier string

const (
	TierNone    Tier = ""
	TierSession Tier = "session"
	TierIP      Tier = "ip"
	TierGlobal  Tier = "global"
)

// User-facing denial messages.
const (
	ReasonOK            = "ok"
	reasonSessionFormat = "Easy there, glutton for punishment. You've used all %d roasts for today. Resets in ~%dh."
	ReasonIPLimit       = "This network has hit its daily limit. Try again tomorrow."
	ReasonGlobalLimit   = "The roast machine is at capacity for today. Check back tomorrow."
)

// Store is the persistence the limiter needs.
type Store interface {
	IncrementUsage(ctx context.Context, date string, identities ...string) error
	UsageCount(ctx context.Context, date, identity string) (int64, error)
	TotalUsage(ctx context.Context, date string) (int64, error)
	DeleteUsageBefore(ctx context.Context, cutoff string) (int64, error)
}

// Decision is the result of a rate limit check.
type Decision struct {
	// Allowed indicates whether every tier has room for one more roast.
	Allowed bool

	// Reason is ReasonOK or a user-facing denial message.
	Reason string

	// Tier is the tier that denied, or TierNone.
	Tier Tier

	// Used and Limit describe the denying tier, or the session tier when
	// allowed.
	Used  int64
	Limit int
}

// PruneResult reports the outcome of a usage sweep. Callers log it; a failed
// sweep never stops the service.
type PruneResult struct {
	// Cutoff is the first date kept (YYYY-MM-DD).
	Cutoff string

	// KeepDays is the retention window used.
	KeepDays int

	// RowsDeleted is the number of rows removed.
	RowsDeleted int64

	// Duration is how long the sweep took.
	Duration time.Duration

	// Err is the failure, if any.
	Err error
}

// OK reports whether the sweep succeeded.
func (r PruneResult) OK() bool {
	return r.Err == nil
}
