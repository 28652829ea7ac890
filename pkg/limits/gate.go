package limits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"roastline-hq/roastline/pkg/identity"
	"roastline-hq/roastline/pkg/providers"
	"roastline-hq/roastline/pkg/roast"
	"roastline-hq/roastline/pkg/roastlog"
	"roastline-hq/roastline/pkg/settings"
)

// Config wires a Gate to its collaborators.
type Config struct {
	Settings  SettingsReader
	Validator InputValidator
	Budget    BudgetLedger
	Limiter   UsageLimiter
	Reviewer  Reviewer
	Roasts    RoastRecorder

	// Observer is optional.
	Observer Observer

	// WriteTimeout bounds each bookkeeping write that follows a review,
	// including time spent queued for a database connection.
	// Default: 10 seconds
	WriteTimeout time.Duration

	// Logger is optional.
	Logger *slog.Logger
}

// Gate decides whether a roast may run and, once it has, settles the
// bookkeeping. Checks run in a fixed order and stop at the first denial:
// kill switch, input validation, budget, rate limit.
type Gate struct {
	settings  SettingsReader
	validator InputValidator
	budget    BudgetLedger
	limiter   UsageLimiter
	reviewer  Reviewer
	roasts    RoastRecorder
	observer  Observer
	logger    *slog.Logger

	writeTimeout time.Duration
}

// DefaultWriteTimeout is the bookkeeping deadline when Config leaves it unset.
const DefaultWriteTimeout = 10 * time.Second

// NewGate creates a gate. The validator defaults to roast.NewValidator over
// the same settings.
func NewGate(cfg Config) *Gate {
	g := &Gate{
		settings:  cfg.Settings,
		validator: cfg.Validator,
		budget:    cfg.Budget,
		limiter:   cfg.Limiter,
		reviewer:  cfg.Reviewer,
		roasts:    cfg.Roasts,
		observer:  cfg.Observer,
		logger:    cfg.Logger,

		writeTimeout: cfg.WriteTimeout,
	}
	if g.writeTimeout <= 0 {
		g.writeTimeout = DefaultWriteTimeout
	}
	if g.validator == nil {
		g.validator = roast.NewValidator(cfg.Settings)
	}
	if g.observer == nil {
		g.observer = nopObserver{}
	}
	if g.logger == nil {
		g.logger = slog.Default().With("component", "limits.gate")
	}
	return g
}

// Evaluate runs the admission checks without touching any counter. A denial
// is returned as *PolicyDenied; any other error means a check could not be
// evaluated and the request must be refused.
func (g *Gate) Evaluate(ctx context.Context, req Request) (*Decision, error) {
	enabled, err := settings.Bool(ctx, g.settings, settings.KeyEnableRoasting, true)
	if err != nil {
		return nil, fmt.Errorf("failed to read kill switch: %w", err)
	}
	g.observer.ObserveDecision(StageKillSwitch, enabled)
	if !enabled {
		return nil, g.deny(StageKillSwitch, MessageRoastingDisabled)
	}

	ok, message, err := g.validator.Validate(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to validate input: %w", err)
	}
	g.observer.ObserveDecision(StageValidation, ok)
	if !ok {
		return nil, g.deny(StageValidation, message)
	}

	budgetDecision, err := g.budget.CheckBudget(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check budget: %w", err)
	}
	g.observer.ObserveBudget(budgetDecision.SpentCents, budgetDecision.LimitCents)
	g.observer.ObserveDecision(StageBudget, budgetDecision.Allowed)
	if !budgetDecision.Allowed {
		return nil, g.deny(StageBudget, budgetDecision.Reason)
	}

	rateDecision, err := g.limiter.CheckRateLimit(ctx, req.Identity)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	g.observer.ObserveDecision(StageRateLimit, rateDecision.Allowed)
	if !rateDecision.Allowed {
		return nil, g.deny(StageRateLimit, rateDecision.Reason)
	}

	return &Decision{Budget: budgetDecision, Rate: rateDecision}, nil
}

// Roast admits the request, calls the reviewer and records the result.
//
// A failed review returns *ReviewError and charges nothing. After a
// successful review the roast is persisted, its cost recorded when positive
// and the usage counted, in that order. The writes are detached from ctx
// cancellation and each is bounded by the write timeout. If any of them
// fails the outcome is still returned together with the first write error.
func (g *Gate) Roast(ctx context.Context, req Request) (*Outcome, error) {
	if _, err := g.Evaluate(ctx, req); err != nil {
		return nil, err
	}

	model, err := settings.String(ctx, g.settings, settings.KeyDefaultModel, settings.DefaultModel)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}

	start := time.Now()
	result, err := g.reviewer.Review(ctx, providers.ReviewRequest{
		Code:     req.Code,
		Mode:     req.Mode,
		Severity: req.Severity,
		Model:    model,
	})
	if err != nil {
		g.observer.ObserveReview(model, false, time.Since(start), 0)
		g.logger.Warn("review failed",
			"model", model,
			"mode", req.Mode.String(),
			"error", err,
		)
		return nil, &ReviewError{Cause: err}
	}
	g.observer.ObserveReview(result.Model, true, time.Since(start), result.CostCents)

	rec := &roastlog.Record{
		SessionID:    req.Identity.SessionID,
		IPHash:       req.Identity.IPHash,
		InputChars:   roast.CountChars(req.Code),
		InputLines:   roast.CountLines(req.Code),
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		CostCents:    result.CostCents,
		Model:        result.Model,
		Mode:         req.Mode.String(),
		Severity:     req.Severity.String(),
		Language:     result.Language,
		IsPublic:     req.IsPublic,
		Score:        result.Score,
		RoastContent: result.Text,
		CodeContent:  req.Code,
	}
	outcome := &Outcome{Review: result, Record: rec}

	writes := context.WithoutCancel(ctx)
	bounded := func(fn func(context.Context) error) error {
		wctx, cancel := context.WithTimeout(writes, g.writeTimeout)
		defer cancel()
		return fn(wctx)
	}

	var writeErrs []error
	if err := bounded(func(c context.Context) error { return g.roasts.Record(c, rec) }); err != nil {
		writeErrs = append(writeErrs, fmt.Errorf("failed to persist roast: %w", err))
	}
	if result.CostCents > 0 {
		if err := bounded(func(c context.Context) error { return g.budget.RecordCost(c, result.CostCents) }); err != nil {
			writeErrs = append(writeErrs, err)
		}
	}
	if err := bounded(func(c context.Context) error { return g.limiter.RecordUsage(c, req.Identity) }); err != nil {
		writeErrs = append(writeErrs, err)
	}

	if len(writeErrs) > 0 {
		for _, werr := range writeErrs {
			g.logger.Error("roast bookkeeping lost",
				"share_id", rec.ShareID,
				"cost_cents", result.CostCents,
				"error", werr,
			)
		}
		return outcome, writeErrs[0]
	}

	var remaining int
	err = bounded(func(c context.Context) error {
		var rerr error
		remaining, rerr = g.limiter.RemainingRoasts(c, req.Identity)
		return rerr
	})
	if err != nil {
		g.logger.Warn("failed to read remaining roasts", "error", err)
	}
	outcome.Remaining = remaining

	g.logger.Info("roast completed",
		"share_id", rec.ShareID,
		"model", result.Model,
		"mode", rec.Mode,
		"language", rec.Language,
		"cost_cents", result.CostCents,
		"remaining", remaining,
	)
	return outcome, nil
}

// RemainingRoasts reports the session's remaining roasts for today.
func (g *Gate) RemainingRoasts(ctx context.Context, id identity.Identity) (int, error) {
	return g.limiter.RemainingRoasts(ctx, id)
}

// RoastingEnabled reports whether a roast could currently pass the kill
// switch and the budget check.
func (g *Gate) RoastingEnabled(ctx context.Context) (bool, error) {
	enabled, err := settings.Bool(ctx, g.settings, settings.KeyEnableRoasting, true)
	if err != nil || !enabled {
		return false, err
	}
	decision, err := g.budget.CheckBudget(ctx)
	if err != nil {
		return false, err
	}
	return decision.Allowed, nil
}

func (g *Gate) deny(stage Stage, reason string) error {
	g.logger.Info("roast denied", "stage", string(stage), "reason", reason)
	return &PolicyDenied{Stage: stage, Reason: reason}
}

// IsDenied reports whether err is a policy denial.
func IsDenied(err error) bool {
	var denied *PolicyDenied
	return errors.As(err, &denied)
}
