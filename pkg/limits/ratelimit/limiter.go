package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"roastline-hq/roastline/pkg/identity"
	"roastline-hq/roastline/pkg/settings"
)

// DefaultKeepDays is the usage retention window used by the startup sweep.
const DefaultKeepDays = 7

// Limiter enforces the session, network and global daily quotas.
//
// Checks only read counters. Counters move in RecordUsage, which the caller
// invokes after the model call succeeds so failed calls cost no quota.
type Limiter struct {
	store    Store
	settings settings.Reader
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the wall clock used for the day boundary.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithLogger sets the limiter's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// NewLimiter creates a limiter over store, reading quotas from cfg.
func NewLimiter(store Store, cfg settings.Reader, opts ...Option) *Limiter {
	l := &Limiter{
		store:    store,
		settings: cfg,
		now:      time.Now,
		logger:   slog.Default().With("component", "limits.ratelimit"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Today returns the current local date key (YYYY-MM-DD).
func (l *Limiter) Today() string {
	return l.now().Format(DateLayout)
}

// CheckRateLimit evaluates the session, network and global tiers in order and
// returns the first denial.
func (l *Limiter) CheckRateLimit(ctx context.Context, id identity.Identity) (*Decision, error) {
	today := l.Today()

	sessionLimit, err := settings.Int(ctx, l.settings, settings.KeyDailyRoastsPerSession, settings.DefaultDailyRoastsPerSession)
	if err != nil {
		return nil, fmt.Errorf("failed to read session limit: %w", err)
	}
	sessionUsed, err := l.store.UsageCount(ctx, today, id.SessionKey())
	if err != nil {
		return nil, fmt.Errorf("failed to read session usage: %w", err)
	}
	if sessionUsed >= int64(sessionLimit) {
		hoursLeft := 24 - l.now().Hour()
		return &Decision{
			Reason: fmt.Sprintf(reasonSessionFormat, sessionLimit, hoursLeft),
			Tier:   TierSession,
			Used:   sessionUsed,
			Limit:  sessionLimit,
		}, nil
	}

	ipLimit, err := settings.Int(ctx, l.settings, settings.KeyDailyRoastsPerIP, settings.DefaultDailyRoastsPerIP)
	if err != nil {
		return nil, fmt.Errorf("failed to read ip limit: %w", err)
	}
	ipUsed, err := l.store.UsageCount(ctx, today, id.IPKey())
	if err != nil {
		return nil, fmt.Errorf("failed to read ip usage: %w", err)
	}
	if ipUsed >= int64(ipLimit) {
		return &Decision{
			Reason: ReasonIPLimit,
			Tier:   TierIP,
			Used:   ipUsed,
			Limit:  ipLimit,
		}, nil
	}

	globalLimit, err := settings.Int(ctx, l.settings, settings.KeyDailyRoastsGlobal, settings.DefaultDailyRoastsGlobal)
	if err != nil {
		return nil, fmt.Errorf("failed to read global limit: %w", err)
	}
	globalUsed, err := l.store.TotalUsage(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("failed to read global usage: %w", err)
	}
	if globalUsed >= int64(globalLimit) {
		l.logger.Warn("global daily limit reached", "used", globalUsed, "limit", globalLimit)
		return &Decision{
			Reason: ReasonGlobalLimit,
			Tier:   TierGlobal,
			Used:   globalUsed,
			Limit:  globalLimit,
		}, nil
	}

	return &Decision{
		Allowed: true,
		Reason:  ReasonOK,
		Used:    sessionUsed,
		Limit:   sessionLimit,
	}, nil
}

// RecordUsage counts one roast against the session and the network. Both
// rows move together or not at all.
func (l *Limiter) RecordUsage(ctx context.Context, id identity.Identity) error {
	today := l.Today()
	if err := l.store.IncrementUsage(ctx, today, id.SessionKey(), id.IPKey()); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// RemainingRoasts returns how many roasts the session has left today.
// It is never negative.
func (l *Limiter) RemainingRoasts(ctx context.Context, id identity.Identity) (int, error) {
	limit, err := settings.Int(ctx, l.settings, settings.KeyDailyRoastsPerSession, settings.DefaultDailyRoastsPerSession)
	if err != nil {
		return 0, fmt.Errorf("failed to read session limit: %w", err)
	}

	used, err := l.store.UsageCount(ctx, l.Today(), id.SessionKey())
	if err != nil {
		return 0, fmt.Errorf("failed to read session usage: %w", err)
	}

	return int(max(0, int64(limit)-used)), nil
}

// PruneOldUsage deletes usage rows dated before today minus keepDays.
// Failures are reported in the result rather than returned.
func (l *Limiter) PruneOldUsage(ctx context.Context, keepDays int) PruneResult {
	start := time.Now()
	if keepDays < 0 {
		keepDays = 0
	}

	cutoff := l.now().AddDate(0, 0, -keepDays).Format(DateLayout)
	result := PruneResult{Cutoff: cutoff, KeepDays: keepDays}

	deleted, err := l.store.DeleteUsageBefore(ctx, cutoff)
	result.Duration = time.Since(start)
	if err != nil {
		result.Err = fmt.Errorf("failed to prune usage before %s: %w", cutoff, err)
		return result
	}

	result.RowsDeleted = deleted
	return result
}
