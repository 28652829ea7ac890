package limits

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"roastline-hq/roastline/pkg/identity"
	"roastline-hq/roastline/pkg/limits/budget"
	"roastline-hq/roastline/pkg/limits/ratelimit"
	"roastline-hq/roastline/pkg/limits/storage"
	"roastline-hq/roastline/pkg/providers"
	"roastline-hq/roastline/pkg/roast"
	"roastline-hq/roastline/pkg/roastlog"
	"roastline-hq/roastline/pkg/settings"
)

var fixedNow = time.Date(2026, time.October, 15, 14, 0, 0, 0, time.UTC)

const testCode = "def main():\n    print('hello')\n"

type fakeReviewer struct {
	mu     sync.Mutex
	calls  int
	cost   float64
	err    error
	models []string

	// after runs once the review has been produced.
	after func()
}

func (f *fakeReviewer) Review(_ context.Context, req providers.ReviewRequest) (*providers.ReviewResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.models = append(f.models, req.Model)
	if f.err != nil {
		return nil, f.err
	}

	if f.after != nil {
		f.after()
	}

	score := 42
	return &providers.ReviewResult{
		Text:         "## Roast Score: 42/100\n\nIt prints. Barely.",
		InputTokens:  800,
		OutputTokens: 300,
		Model:        req.Model,
		CostCents:    f.cost,
		Language:     roast.DetectLanguage(req.Code),
		Score:        &score,
	}, nil
}

func (f *fakeReviewer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, *roastlog.Record) error {
	return storage.NewStorageError("sqlite", "record_roast", errors.New("disk I/O error"))
}

type stuckRecorder struct{}

func (stuckRecorder) Record(ctx context.Context, _ *roastlog.Record) error {
	<-ctx.Done()
	return storage.NewStorageError("sqlite", "record_roast", ctx.Err())
}

type recordingObserver struct {
	mu        sync.Mutex
	decisions []string
	reviews   []bool
	spent     float64
}

func (o *recordingObserver) ObserveDecision(stage Stage, allowed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	result := "allow"
	if !allowed {
		result = "deny"
	}
	o.decisions = append(o.decisions, string(stage)+":"+result)
}

func (o *recordingObserver) ObserveReview(_ string, ok bool, _ time.Duration, _ float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reviews = append(o.reviews, ok)
}

func (o *recordingObserver) ObserveBudget(spent, _ float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.spent = spent
}

type testEnv struct {
	gate     *Gate
	backend  *storage.SQLiteBackend
	roasts   *roastlog.Store
	ledger   *budget.Ledger
	limiter  *ratelimit.Limiter
	reviewer *fakeReviewer
	observer *recordingObserver
}

func newTestEnv(t *testing.T, cfg settings.Static, reviewer *fakeReviewer) *testEnv {
	t.Helper()
	dir := t.TempDir()

	backend, err := storage.NewSQLiteBackend(filepath.Join(dir, "counters.db"))
	if err != nil {
		t.Fatalf("NewSQLiteBackend failed: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	roasts, err := roastlog.Open(roastlog.Config{Path: filepath.Join(dir, "roasts.db")})
	if err != nil {
		t.Fatalf("roastlog.Open failed: %v", err)
	}
	t.Cleanup(func() { roasts.Close() })

	clock := func() time.Time { return fixedNow }
	env := &testEnv{
		backend:  backend,
		roasts:   roasts,
		ledger:   budget.NewLedger(backend, cfg, budget.WithClock(clock)),
		limiter:  ratelimit.NewLimiter(backend, cfg, ratelimit.WithClock(clock)),
		reviewer: reviewer,
		observer: &recordingObserver{},
	}
	env.gate = NewGate(Config{
		Settings: cfg,
		Budget:   env.ledger,
		Limiter:  env.limiter,
		Reviewer: reviewer,
		Roasts:   roasts,
		Observer: env.observer,
	})
	return env
}

func testRequest(session string) Request {
	return Request{
		Code:     testCode,
		Mode:     roast.ModeRoast,
		Severity: roast.SeverityNormal,
		IsPublic: true,
		Identity: identity.New(session, identity.HashIP("203.0.113.7")),
	}
}

func (env *testEnv) assertNoSideEffects(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	months, err := env.ledger.MonthlyHistory(ctx)
	if err != nil {
		t.Fatalf("MonthlyHistory failed: %v", err)
	}
	if len(months) != 0 {
		t.Errorf("Expected no spend rows, got %+v", months)
	}

	total, err := env.backend.TotalUsage(ctx, env.limiter.Today())
	if err != nil {
		t.Fatalf("TotalUsage failed: %v", err)
	}
	if total != 0 {
		t.Errorf("Expected no usage, got %d", total)
	}

	n, err := env.roasts.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected no logged roasts, got %d", n)
	}
}

func TestGate_Denials(t *testing.T) {
	tests := []struct {
		name      string
		cfg       settings.Static
		code      string
		spend     float64
		usage     int
		wantErr   error
		wantStage Stage
		wantText  string
	}{
		{
			name:      "kill switch",
			cfg:       settings.Static{settings.KeyEnableRoasting: "false"},
			code:      testCode,
			wantErr:   ErrRoastingDisabled,
			wantStage: StageKillSwitch,
			wantText:  MessageRoastingDisabled,
		},
		{
			name:      "kill switch is exact",
			cfg:       settings.Static{settings.KeyEnableRoasting: "TRUE"},
			code:      testCode,
			wantErr:   ErrRoastingDisabled,
			wantStage: StageKillSwitch,
		},
		{
			name:      "empty input",
			cfg:       settings.Static{},
			code:      "   \n\t",
			wantErr:   ErrInvalidInput,
			wantStage: StageValidation,
			wantText:  roast.MessageEmptyInput,
		},
		{
			name:      "too long",
			cfg:       settings.Static{settings.KeyMaxInputChars: "10"},
			code:      testCode,
			wantErr:   ErrInvalidInput,
			wantStage: StageValidation,
			wantText:  "Max is 10.",
		},
		{
			name:      "budget spent",
			cfg:       settings.Static{settings.KeyMonthlyBudgetCents: "10"},
			code:      testCode,
			spend:     10,
			wantErr:   ErrBudgetExceeded,
			wantStage: StageBudget,
			wantText:  budget.ReasonCoolingDown,
		},
		{
			name:      "session quota",
			cfg:       settings.Static{settings.KeyDailyRoastsPerSession: "2"},
			code:      testCode,
			usage:     2,
			wantErr:   ErrRateLimitExceeded,
			wantStage: StageRateLimit,
			wantText:  "You've used all 2 roasts",
		},
		{
			name:      "kill switch before validation",
			cfg:       settings.Static{settings.KeyEnableRoasting: "false"},
			code:      "",
			wantErr:   ErrRoastingDisabled,
			wantStage: StageKillSwitch,
		},
		{
			name: "budget before rate limit",
			cfg: settings.Static{
				settings.KeyMonthlyBudgetCents:    "5",
				settings.KeyDailyRoastsPerSession: "1",
			},
			code:      testCode,
			spend:     5,
			usage:     1,
			wantErr:   ErrBudgetExceeded,
			wantStage: StageBudget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reviewer := &fakeReviewer{cost: 1}
			env := newTestEnv(t, tt.cfg, reviewer)
			ctx := context.Background()
			req := testRequest("sess-1")
			req.Code = tt.code

			if tt.spend > 0 {
				if err := env.ledger.RecordCost(ctx, tt.spend); err != nil {
					t.Fatalf("RecordCost failed: %v", err)
				}
			}
			for i := 0; i < tt.usage; i++ {
				if err := env.limiter.RecordUsage(ctx, req.Identity); err != nil {
					t.Fatalf("RecordUsage failed: %v", err)
				}
			}

			outcome, err := env.gate.Roast(ctx, req)
			if outcome != nil {
				t.Errorf("Expected no outcome, got %+v", outcome)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}

			var denied *PolicyDenied
			if !errors.As(err, &denied) {
				t.Fatalf("Expected PolicyDenied, got %T", err)
			}
			if denied.Stage != tt.wantStage {
				t.Errorf("Expected stage %s, got %s", tt.wantStage, denied.Stage)
			}
			if tt.wantText != "" && !strings.Contains(denied.Reason, tt.wantText) {
				t.Errorf("Expected reason containing %q, got %q", tt.wantText, denied.Reason)
			}
			if reviewer.Calls() != 0 {
				t.Errorf("Reviewer must not be called on denial, got %d calls", reviewer.Calls())
			}
		})
	}
}

func TestGate_SentinelsAreDistinct(t *testing.T) {
	denied := &PolicyDenied{Stage: StageBudget, Reason: budget.ReasonCoolingDown}

	if !errors.Is(denied, ErrBudgetExceeded) {
		t.Error("Expected budget denial to match ErrBudgetExceeded")
	}
	for _, other := range []error{ErrRoastingDisabled, ErrInvalidInput, ErrRateLimitExceeded, ErrReviewUnavailable} {
		if errors.Is(denied, other) {
			t.Errorf("Budget denial must not match %v", other)
		}
	}
	if denied.Error() != budget.ReasonCoolingDown {
		t.Errorf("Expected user-facing message, got %q", denied.Error())
	}
}

func TestGate_SuccessfulRoast(t *testing.T) {
	reviewer := &fakeReviewer{cost: 0.25}
	env := newTestEnv(t, settings.Static{settings.KeyDailyRoastsPerSession: "5"}, reviewer)
	ctx := context.Background()
	req := testRequest("sess-ok")

	outcome, err := env.gate.Roast(ctx, req)
	if err != nil {
		t.Fatalf("Roast failed: %v", err)
	}

	if outcome.Remaining != 4 {
		t.Errorf("Expected 4 remaining, got %d", outcome.Remaining)
	}
	if outcome.Record.ShareID == "" {
		t.Error("Expected a share id")
	}
	if reviewer.models[0] != settings.DefaultModel {
		t.Errorf("Expected default model, got %q", reviewer.models[0])
	}

	spent, err := env.ledger.MonthSpend(ctx, "")
	if err != nil {
		t.Fatalf("MonthSpend failed: %v", err)
	}
	if spent != 0.25 {
		t.Errorf("Expected spend 0.25, got %v", spent)
	}
	count, _ := env.ledger.MonthRoastCount(ctx, "")
	if count != 1 {
		t.Errorf("Expected 1 billed roast, got %d", count)
	}

	// One session row and one network row.
	total, _ := env.backend.TotalUsage(ctx, env.limiter.Today())
	if total != 2 {
		t.Errorf("Expected global usage 2, got %d", total)
	}

	stored, err := env.roasts.GetByShareID(ctx, outcome.Record.ShareID)
	if err != nil {
		t.Fatalf("GetByShareID failed: %v", err)
	}
	if stored.Language != "python" || stored.Score == nil || *stored.Score != 42 {
		t.Errorf("Unexpected stored roast %+v", stored)
	}
	if stored.InputLines != 3 || stored.CodeContent != testCode {
		t.Errorf("Expected input metadata and code, got lines=%d code=%q", stored.InputLines, stored.CodeContent)
	}

	want := []string{"kill_switch:allow", "validation:allow", "budget:allow", "rate_limit:allow"}
	if strings.Join(env.observer.decisions, ",") != strings.Join(want, ",") {
		t.Errorf("Expected decisions %v, got %v", want, env.observer.decisions)
	}
	if len(env.observer.reviews) != 1 || !env.observer.reviews[0] {
		t.Errorf("Expected one successful review observation, got %v", env.observer.reviews)
	}
}

func TestGate_FreeReviewStillCountsUsage(t *testing.T) {
	env := newTestEnv(t, settings.Static{}, &fakeReviewer{cost: 0})
	ctx := context.Background()
	req := testRequest("sess-free")

	if _, err := env.gate.Roast(ctx, req); err != nil {
		t.Fatalf("Roast failed: %v", err)
	}

	months, _ := env.ledger.MonthlyHistory(ctx)
	if len(months) != 0 {
		t.Errorf("Zero-cost review must not create a spend row, got %+v", months)
	}
	used, _ := env.backend.UsageCount(ctx, env.limiter.Today(), req.Identity.SessionKey())
	if used != 1 {
		t.Errorf("Expected session usage 1, got %d", used)
	}
}

func TestGate_ReviewFailureChargesNothing(t *testing.T) {
	cause := &providers.ProviderError{Provider: "anthropic", StatusCode: 529, Message: "overloaded"}
	reviewer := &fakeReviewer{err: cause}
	env := newTestEnv(t, settings.Static{}, reviewer)

	outcome, err := env.gate.Roast(context.Background(), testRequest("sess-fail"))
	if outcome != nil {
		t.Errorf("Expected no outcome, got %+v", outcome)
	}
	if !errors.Is(err, ErrReviewUnavailable) {
		t.Fatalf("Expected ErrReviewUnavailable, got %v", err)
	}
	if err.Error() != MessageReviewUnavailable {
		t.Errorf("Expected user-facing message, got %q", err.Error())
	}

	var provErr *providers.ProviderError
	if !errors.As(err, &provErr) {
		t.Errorf("Expected the provider error to be wrapped")
	}
	if IsDenied(err) {
		t.Error("Review failure is not a policy denial")
	}

	env.assertNoSideEffects(t)
}

func TestGate_BookkeepingFailureReturnsOutcome(t *testing.T) {
	env := newTestEnv(t, settings.Static{}, &fakeReviewer{cost: 1})
	env.gate.roasts = failingRecorder{}
	ctx := context.Background()
	req := testRequest("sess-disk")

	outcome, err := env.gate.Roast(ctx, req)
	if outcome == nil || outcome.Review == nil {
		t.Fatal("Expected the review to be returned")
	}

	var storageErr *storage.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("Expected StorageError, got %v", err)
	}

	// The remaining writes still happen.
	spent, _ := env.ledger.MonthSpend(ctx, "")
	if spent != 1 {
		t.Errorf("Expected spend 1, got %v", spent)
	}
	used, _ := env.backend.UsageCount(ctx, env.limiter.Today(), req.Identity.IPKey())
	if used != 1 {
		t.Errorf("Expected network usage 1, got %d", used)
	}
}

func TestGate_CallerCancelAfterReviewStillRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnv(t, settings.Static{}, &fakeReviewer{cost: 2, after: cancel})
	req := testRequest("sess-gone")

	outcome, err := env.gate.Roast(ctx, req)
	if err != nil {
		t.Fatalf("Roast failed after caller cancel: %v", err)
	}

	bg := context.Background()
	spent, _ := env.ledger.MonthSpend(bg, "")
	if spent != 2 {
		t.Errorf("Expected spend 2, got %v", spent)
	}
	total, _ := env.backend.TotalUsage(bg, env.limiter.Today())
	if total != 2 {
		t.Errorf("Expected global usage 2, got %d", total)
	}
	if _, err := env.roasts.GetByShareID(bg, outcome.Record.ShareID); err != nil {
		t.Errorf("Expected the roast to be stored, got %v", err)
	}
}

func TestGate_StuckWriteIsBounded(t *testing.T) {
	env := newTestEnv(t, settings.Static{}, &fakeReviewer{cost: 1})
	env.gate.roasts = stuckRecorder{}
	env.gate.writeTimeout = 50 * time.Millisecond
	ctx := context.Background()
	req := testRequest("sess-stuck")

	start := time.Now()
	outcome, err := env.gate.Roast(ctx, req)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Roast took %v with a stuck writer", elapsed)
	}
	if outcome == nil {
		t.Fatal("Expected the review to be returned")
	}
	if !errors.Is(err, storage.ErrStorageFailure) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected a timed out StorageError, got %v", err)
	}

	// The stuck write does not eat the other writes' deadlines.
	spent, _ := env.ledger.MonthSpend(ctx, "")
	if spent != 1 {
		t.Errorf("Expected spend 1, got %v", spent)
	}
	used, _ := env.backend.UsageCount(ctx, env.limiter.Today(), req.Identity.SessionKey())
	if used != 1 {
		t.Errorf("Expected session usage 1, got %d", used)
	}
}

func TestNewGate_DefaultWriteTimeout(t *testing.T) {
	g := NewGate(Config{Settings: settings.Static{}})
	if g.writeTimeout != DefaultWriteTimeout {
		t.Errorf("Expected %v, got %v", DefaultWriteTimeout, g.writeTimeout)
	}
}

func TestGate_FailsClosedOnStorageError(t *testing.T) {
	reviewer := &fakeReviewer{cost: 1}
	env := newTestEnv(t, settings.Static{}, reviewer)
	env.backend.Close()

	_, err := env.gate.Roast(context.Background(), testRequest("sess-closed"))
	if err == nil {
		t.Fatal("Expected an error from a closed counter store")
	}
	if !errors.Is(err, storage.ErrStorageFailure) {
		t.Errorf("Expected ErrStorageFailure, got %v", err)
	}
	if IsDenied(err) {
		t.Error("Storage failure must not look like a policy denial")
	}
	if reviewer.Calls() != 0 {
		t.Errorf("Reviewer must not be called, got %d calls", reviewer.Calls())
	}
}

// Session limit 3: three roasts succeed, the fourth is denied and nothing
// moves.
func TestGate_SessionQuotaScenario(t *testing.T) {
	reviewer := &fakeReviewer{cost: 0.5}
	env := newTestEnv(t, settings.Static{settings.KeyDailyRoastsPerSession: "3"}, reviewer)
	ctx := context.Background()
	req := testRequest("sess-quota")

	for i := 1; i <= 3; i++ {
		outcome, err := env.gate.Roast(ctx, req)
		if err != nil {
			t.Fatalf("roast %d failed: %v", i, err)
		}
		if outcome.Remaining != 3-i {
			t.Errorf("roast %d: expected %d remaining, got %d", i, 3-i, outcome.Remaining)
		}
	}

	_, err := env.gate.Roast(ctx, req)
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("Expected rate limit denial, got %v", err)
	}
	if reviewer.Calls() != 3 {
		t.Errorf("Expected 3 reviewer calls, got %d", reviewer.Calls())
	}

	spent, _ := env.ledger.MonthSpend(ctx, "")
	if spent != 1.5 {
		t.Errorf("Expected spend 1.5, got %v", spent)
	}

	// A different session on another network is unaffected.
	other := testRequest("sess-other")
	other.Identity = identity.New("sess-other", identity.HashIP("198.51.100.1"))
	if _, err := env.gate.Roast(ctx, other); err != nil {
		t.Errorf("Expected other session to be allowed, got %v", err)
	}
}

func TestGate_RoastingEnabled(t *testing.T) {
	tests := []struct {
		name  string
		cfg   settings.Static
		spend float64
		want  bool
	}{
		{"defaults", settings.Static{}, 0, true},
		{"kill switch", settings.Static{settings.KeyEnableRoasting: "false"}, 0, false},
		{"budget spent", settings.Static{settings.KeyMonthlyBudgetCents: "3"}, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.cfg, &fakeReviewer{})
			ctx := context.Background()
			if tt.spend > 0 {
				if err := env.ledger.RecordCost(ctx, tt.spend); err != nil {
					t.Fatalf("RecordCost failed: %v", err)
				}
			}

			got, err := env.gate.RoastingEnabled(ctx)
			if err != nil {
				t.Fatalf("RoastingEnabled failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("RoastingEnabled = %v, want %v", got, tt.want)
			}
		})
	}
}
