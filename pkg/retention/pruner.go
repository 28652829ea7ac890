package retention

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"roastline-hq/roastline/pkg/limits/ratelimit"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// KeepDays is how many days of usage rows survive a prune.
	KeepDays int

	// Schedule is a standard cron expression. Empty disables scheduled runs.
	// Example: "0 3 * * *" (daily at 3 AM)
	Schedule string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		KeepDays: ratelimit.DefaultKeepDays,
		Schedule: "0 3 * * *",
	}
}

// UsagePruner deletes old usage rows.
type UsagePruner interface {
	PruneOldUsage(ctx context.Context, keepDays int) ratelimit.PruneResult
}

// Observer receives prune results for metrics.
type Observer interface {
	ObservePrune(result ratelimit.PruneResult)
}

// Pruner enforces the usage retention window.
type Pruner struct {
	usage     UsagePruner
	config    *Config
	observer  Observer
	logger    *slog.Logger
	scheduler *Scheduler

	mu     sync.Mutex
	last   *ratelimit.PruneResult
	lastAt time.Time
}

// NewPruner creates a new retention pruner.
func NewPruner(usage UsagePruner, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Pruner{
		usage:  usage,
		config: config,
		logger: slog.Default().With("component", "retention"),
	}
	p.scheduler = NewScheduler(p)
	return p
}

// SetObserver attaches a metrics observer.
func (p *Pruner) SetObserver(o Observer) {
	p.observer = o
}

// SetKeepDays changes the retention window for later runs. Values below 1
// are ignored.
func (p *Pruner) SetKeepDays(days int) {
	if days < 1 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.config.KeepDays = days
}

// KeepDays returns the current retention window.
func (p *Pruner) KeepDays() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config.KeepDays
}

// RunOnce prunes immediately and logs the outcome.
func (p *Pruner) RunOnce(ctx context.Context) ratelimit.PruneResult {
	result := p.usage.PruneOldUsage(ctx, p.KeepDays())

	p.mu.Lock()
	p.last = &result
	p.lastAt = time.Now()
	p.mu.Unlock()

	if p.observer != nil {
		p.observer.ObservePrune(result)
	}

	if !result.OK() {
		p.logger.Error("usage pruning failed",
			"cutoff", result.Cutoff,
			"keep_days", result.KeepDays,
			"error", result.Err,
		)
		return result
	}

	if result.RowsDeleted > 0 {
		p.logger.Info("usage pruning completed",
			"cutoff", result.Cutoff,
			"rows_deleted", result.RowsDeleted,
			"duration", result.Duration,
		)
	} else {
		p.logger.Debug("usage pruning completed, no rows deleted", "cutoff", result.Cutoff)
	}
	return result
}

// LastResult returns the most recent prune result and when it ran.
func (p *Pruner) LastResult() (*ratelimit.PruneResult, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.lastAt
}

// Start begins scheduled pruning. It stops when ctx is canceled.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops scheduled pruning.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the next scheduled run, or nil when not scheduled.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
