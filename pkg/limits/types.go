package limits

import (
	"context"
	"errors"
	"time"

	"roastline-hq/roastline/pkg/identity"
	"roastline-hq/roastline/pkg/limits/budget"
	"roastline-hq/roastline/pkg/limits/ratelimit"
	"roastline-hq/roastline/pkg/providers"
	"roastline-hq/roastline/pkg/roast"
	"roastline-hq/roastline/pkg/roastlog"
)

// Stage names the admission check that produced a decision.
type Stage string

const (
	// StageKillSwitch checks the enable_roasting setting.
	StageKillSwitch Stage = "kill_switch"

	// StageValidation checks the submitted code.
	StageValidation Stage = "validation"

	// StageBudget checks the monthly budget.
	StageBudget Stage = "budget"

	// StageRateLimit checks the session, network and global quotas.
	StageRateLimit Stage = "rate_limit"

	// StageReview is the model call.
	StageReview Stage = "review"
)

// User-facing messages owned by the gate.
const (
	MessageRoastingDisabled  = "The roast machine is currently offline. Check back later."
	MessageReviewUnavailable = "Claude is having a moment... try again in a minute."
)

// Sentinels matched by PolicyDenied and ReviewError through errors.Is.
var (
	ErrRoastingDisabled  = errors.New("roasting disabled")
	ErrInvalidInput      = errors.New("invalid input")
	ErrBudgetExceeded    = errors.New("budget exceeded")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrReviewUnavailable = errors.New("review unavailable")
)

// PolicyDenied is returned when an admission check turns a request away.
// Reason is safe to show to the user.
type PolicyDenied struct {
	Stage  Stage
	Reason string
}

// Error implements the error interface.
func (e *PolicyDenied) Error() string {
	return e.Reason
}

// Is matches the sentinel for the denying stage.
func (e *PolicyDenied) Is(target error) bool {
	switch target {
	case ErrRoastingDisabled:
		return e.Stage == StageKillSwitch
	case ErrInvalidInput:
		return e.Stage == StageValidation
	case ErrBudgetExceeded:
		return e.Stage == StageBudget
	case ErrRateLimitExceeded:
		return e.Stage == StageRateLimit
	}
	return false
}

// ReviewError is returned when the model call fails. Nothing is charged.
type ReviewError struct {
	Cause error
}

// Error returns the user-facing message.
func (e *ReviewError) Error() string {
	return MessageReviewUnavailable
}

// Unwrap returns the reviewer's error.
func (e *ReviewError) Unwrap() error {
	return e.Cause
}

// Is matches ErrReviewUnavailable.
func (e *ReviewError) Is(target error) bool {
	return target == ErrReviewUnavailable
}

// Request is one roast submission.
type Request struct {
	Code     string
	Mode     roast.Mode
	Severity roast.Severity
	IsPublic bool
	Identity identity.Identity
}

// Decision is the result of a successful admission check.
type Decision struct {
	Budget *budget.Decision
	Rate   *ratelimit.Decision
}

// Outcome is the result of a completed roast.
type Outcome struct {
	Review *providers.ReviewResult
	Record *roastlog.Record

	// Remaining is the session's roasts left today after this one.
	Remaining int
}

// SettingsReader reads runtime settings.
type SettingsReader interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

// InputValidator checks submitted code. A false result carries a
// user-facing message.
type InputValidator interface {
	Validate(ctx context.Context, code string) (ok bool, message string, err error)
}

// Reviewer performs the model call.
type Reviewer interface {
	Review(ctx context.Context, req providers.ReviewRequest) (*providers.ReviewResult, error)
}

// RoastRecorder persists completed roasts.
type RoastRecorder interface {
	Record(ctx context.Context, rec *roastlog.Record) error
}

// BudgetLedger is the monthly spend gate.
type BudgetLedger interface {
	CheckBudget(ctx context.Context) (*budget.Decision, error)
	RecordCost(ctx context.Context, cents float64) error
}

// UsageLimiter is the daily quota gate.
type UsageLimiter interface {
	CheckRateLimit(ctx context.Context, id identity.Identity) (*ratelimit.Decision, error)
	RecordUsage(ctx context.Context, id identity.Identity) error
	RemainingRoasts(ctx context.Context, id identity.Identity) (int, error)
}

// Observer receives gate events for metrics.
type Observer interface {
	ObserveDecision(stage Stage, allowed bool)
	ObserveReview(model string, ok bool, latency time.Duration, costCents float64)
	ObserveBudget(spentCents, limitCents float64)
}

type nopObserver struct{}

func (nopObserver) ObserveDecision(Stage, bool)                        {}
func (nopObserver) ObserveReview(string, bool, time.Duration, float64) {}
func (nopObserver) ObserveBudget(float64, float64)                     {}
