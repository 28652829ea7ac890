package budget

import (
	"context"
	"time"

	"roastline-hq/roastline/pkg/limits/storage"
)

const (
	// ReasonOK is the reason attached to an allowed decision.
	ReasonOK = "ok"

	// ReasonCoolingDown is shown to users when the monthly budget is spent.
	ReasonCoolingDown = "The roast machine is cooling down. Check back next month."
)

// Store is the persistence the ledger needs.
type Store interface {
	AddMonthSpend(ctx context.Context, month string, cents float64) error
	MonthTotals(ctx context.Context, month string) (float64, int64, error)
	ListMonths(ctx context.Context) ([]storage.MonthRecord, error)
}

// Decision is the result of a budget check.
type Decision struct {
	// Allowed indicates whether one more roast fits in the budget.
	Allowed bool

	// Reason is ReasonOK or a user-facing denial message.
	Reason string

	// SpentCents is the current month's spend.
	SpentCents float64

	// LimitCents is the configured monthly budget.
	LimitCents float64

	// UsagePercent is SpentCents as a percentage of LimitCents (0 when the
	// limit is 0).
	UsagePercent float64

	// Warning is set when UsagePercent reached the warning threshold.
	Warning bool
}

// Status summarizes the current month for reporting.
type Status struct {
	Month          string
	SpentCents     float64
	LimitCents     float64
	RemainingCents float64
	UsagePercent   float64
	RoastCount     int64
	ProjectedCents float64
	DaysInMonth    int
	DayOfMonth     int
	GeneratedAt    time.Time
}
