package budget

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"roastline-hq/roastline/pkg/limits/storage"
	"roastline-hq/roastline/pkg/settings"
)

// MonthLayout formats month keys.
const MonthLayout = "2006-01"

// Ledger tracks spend per calendar month and gates model calls on the
// monthly budget.
//
// Settings are read on every check so admin edits apply immediately.
type Ledger struct {
	store    Store
	settings settings.Reader
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the wall clock used to derive the current month.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithLogger sets the logger used for budget warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// NewLedger creates a ledger over store, reading thresholds from cfg.
func NewLedger(store Store, cfg settings.Reader, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		settings: cfg,
		now:      time.Now,
		logger:   slog.Default().With("component", "limits.budget"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CurrentMonth returns the current UTC month key (YYYY-MM).
func (l *Ledger) CurrentMonth() string {
	return l.now().UTC().Format(MonthLayout)
}

func (l *Ledger) monthOrCurrent(month string) string {
	if month == "" {
		return l.CurrentMonth()
	}
	return month
}

// MonthSpend returns the spend in cents for month, or the current month when
// month is empty. Months without spend report 0.
func (l *Ledger) MonthSpend(ctx context.Context, month string) (float64, error) {
	spent, _, err := l.store.MonthTotals(ctx, l.monthOrCurrent(month))
	return spent, err
}

// MonthRoastCount returns the number of billed roasts for month, or the
// current month when month is empty.
func (l *Ledger) MonthRoastCount(ctx context.Context, month string) (int64, error) {
	_, count, err := l.store.MonthTotals(ctx, l.monthOrCurrent(month))
	return count, err
}

// RecordCost adds cents to the current month and counts one roast.
// It is not idempotent; call it exactly once per billed model call.
func (l *Ledger) RecordCost(ctx context.Context, cents float64) error {
	month := l.CurrentMonth()
	if err := l.store.AddMonthSpend(ctx, month, cents); err != nil {
		return fmt.Errorf("failed to record cost for %s: %w", month, err)
	}

	l.logger.Debug("recorded cost", "month", month, "cost_cents", cents)
	return nil
}

// CheckBudget decides whether one more roast fits in this month's budget.
func (l *Ledger) CheckBudget(ctx context.Context) (*Decision, error) {
	limit, err := settings.Float(ctx, l.settings, settings.KeyMonthlyBudgetCents, settings.DefaultMonthlyBudgetCents)
	if err != nil {
		return nil, fmt.Errorf("failed to read monthly budget: %w", err)
	}

	spent, err := l.MonthSpend(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read month spend: %w", err)
	}

	decision := &Decision{
		SpentCents: spent,
		LimitCents: limit,
	}
	if limit > 0 {
		decision.UsagePercent = spent * 100 / limit
	}

	if spent >= limit {
		decision.Reason = ReasonCoolingDown
		return decision, nil
	}

	estimate, err := settings.Float(ctx, l.settings, settings.KeyCostPerRoastCents, settings.DefaultCostPerRoastCents)
	if err != nil {
		return nil, fmt.Errorf("failed to read cost estimate: %w", err)
	}
	if spent+estimate > limit {
		decision.Reason = ReasonCoolingDown
		return decision, nil
	}

	threshold, err := settings.Float(ctx, l.settings, settings.KeyBudgetWarningThreshold, settings.DefaultBudgetWarningThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to read warning threshold: %w", err)
	}
	if limit > 0 && decision.UsagePercent >= threshold {
		decision.Warning = true
		l.logger.Warn("budget warning",
			"usage_percent", fmt.Sprintf("%.1f", decision.UsagePercent),
			"spent_cents", spent,
			"limit_cents", limit,
		)
	}

	decision.Allowed = true
	decision.Reason = ReasonOK
	return decision, nil
}

// MonthlyHistory returns every recorded month, newest first.
func (l *Ledger) MonthlyHistory(ctx context.Context) ([]storage.MonthRecord, error) {
	return l.store.ListMonths(ctx)
}

// Status summarizes the current month, including a straight-line projection
// of month-end spend from the daily average so far.
func (l *Ledger) Status(ctx context.Context) (*Status, error) {
	now := l.now().UTC()
	month := now.Format(MonthLayout)

	spent, count, err := l.store.MonthTotals(ctx, month)
	if err != nil {
		return nil, err
	}

	limit, err := settings.Float(ctx, l.settings, settings.KeyMonthlyBudgetCents, settings.DefaultMonthlyBudgetCents)
	if err != nil {
		return nil, err
	}

	daysInMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()

	status := &Status{
		Month:          month,
		SpentCents:     spent,
		LimitCents:     limit,
		RemainingCents: max(0, limit-spent),
		RoastCount:     count,
		DaysInMonth:    daysInMonth,
		DayOfMonth:     now.Day(),
		ProjectedCents: spent / float64(now.Day()) * float64(daysInMonth),
		GeneratedAt:    now,
	}
	if limit > 0 {
		status.UsagePercent = spent * 100 / limit
	}

	return status, nil
}
