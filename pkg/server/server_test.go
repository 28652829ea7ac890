package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"roastline-hq/roastline/pkg/config"
	"roastline-hq/roastline/pkg/identity"
	"roastline-hq/roastline/pkg/limits"
	"roastline-hq/roastline/pkg/limits/budget"
	"roastline-hq/roastline/pkg/limits/ratelimit"
	"roastline-hq/roastline/pkg/limits/storage"
	"roastline-hq/roastline/pkg/providers"
	"roastline-hq/roastline/pkg/roast"
	"roastline-hq/roastline/pkg/roastlog"
	"roastline-hq/roastline/pkg/settings"
	"roastline-hq/roastline/pkg/telemetry/health"
	"roastline-hq/roastline/pkg/telemetry/metrics"
)

const (
	testPassword = "hunter2"
	testCode     = "def add(a, b):\n    return a + b\n"
)

type stubReviewer struct {
	err error
}

func (s *stubReviewer) Review(_ context.Context, req providers.ReviewRequest) (*providers.ReviewResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	score := 58
	return &providers.ReviewResult{
		Text:         "## Roast Score: 58/100\n\n**Verdict:** `add` adds. Groundbreaking.",
		InputTokens:  600,
		OutputTokens: 200,
		Model:        req.Model,
		CostCents:    0.25,
		Language:     roast.DetectLanguage(req.Code),
		Score:        &score,
	}, nil
}

type testServer struct {
	server   *Server
	handler  http.Handler
	settings *settings.Store
	roasts   *roastlog.Store
	ledger   *budget.Ledger
	reviewer *stubReviewer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	backend, err := storage.NewSQLiteBackend(filepath.Join(dir, "counters.db"))
	if err != nil {
		t.Fatalf("NewSQLiteBackend failed: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	store := settings.NewStore(backend)
	if err := store.Seed(ctx); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	roasts, err := roastlog.Open(roastlog.Config{Path: filepath.Join(dir, "roasts.db")})
	if err != nil {
		t.Fatalf("roastlog.Open failed: %v", err)
	}
	t.Cleanup(func() { roasts.Close() })

	ledger := budget.NewLedger(backend, store)
	limiter := ratelimit.NewLimiter(backend, store)
	reviewer := &stubReviewer{}
	collector := metrics.NewCollector(metrics.Config{})

	gate := limits.NewGate(limits.Config{
		Settings: store,
		Budget:   ledger,
		Limiter:  limiter,
		Reviewer: reviewer,
		Roasts:   roasts,
		Observer: collector,
	})

	checker := health.New(time.Second)
	checker.RegisterCheck("counters", backend.Ping)
	checker.RegisterCheck("roast_log", roasts.Ping)
	checker.SetRoastingProbe(gate.RoastingEnabled)

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Security.AdminPassword = testPassword

	srv := New(cfg, Deps{
		Gate:     gate,
		Roasts:   roasts,
		Budget:   ledger,
		Settings: store,
		Resolver: identity.NewResolver(0),
		Sessions: identity.NewSessions("test-secret", false),
		Health:   checker,
		Metrics:  collector,
		Build:    BuildInfo{Version: "1.0.0", Commit: "abc123", BuildTime: "2026-01-01"},
	})

	return &testServer{
		server:   srv,
		handler:  srv.Handler(),
		settings: store,
		roasts:   roasts,
		ledger:   ledger,
		reviewer: reviewer,
	}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.RemoteAddr = "203.0.113.7:41234"
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) postRoast(t *testing.T, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/roast", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return ts.do(t, req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func roastBody(code string, public bool) string {
	b, _ := json.Marshal(roastRequest{Code: code, Mode: "roast", Severity: "brutal", IsPublic: public})
	return string(b)
}

func TestRoast_Success(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.postRoast(t, roastBody(testCode, true))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	resp := decode[roastResponse](t, rec)
	if len(resp.ShareID) != roast.DefaultShareIDLength {
		t.Errorf("share id = %q", resp.ShareID)
	}
	if resp.Score == nil || *resp.Score != 58 {
		t.Errorf("score = %v, want 58", resp.Score)
	}
	if resp.Severity != "brutal" || resp.Language != "python" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Remaining != settings.DefaultDailyRoastsPerSession-1 {
		t.Errorf("remaining = %d", resp.Remaining)
	}
	if got := rec.Header().Get(RemainingHeader); got != "9" {
		t.Errorf("%s = %q, want 9", RemainingHeader, got)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("missing request id header")
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != identity.SessionCookieName || !cookies[0].HttpOnly {
		t.Errorf("unexpected cookies: %+v", cookies)
	}

	spent, err := ts.ledger.MonthSpend(context.Background(), "")
	if err != nil {
		t.Fatalf("MonthSpend failed: %v", err)
	}
	if spent != 0.25 {
		t.Errorf("spent = %v, want 0.25", spent)
	}

	get := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/roast/"+resp.ShareID, nil))
	if get.Code != http.StatusOK {
		t.Fatalf("expected 200 for stored roast, got %d", get.Code)
	}
	shared := decode[sharedRoast](t, get)
	if shared.Code != testCode || !strings.Contains(shared.Roast, "Groundbreaking") {
		t.Errorf("unexpected stored roast: %+v", shared)
	}
}

func TestRoast_FormPost(t *testing.T) {
	ts := newTestServer(t)

	form := url.Values{"code": {testCode}, "mode": {"serious"}, "is_public": {"on"}}
	req := httptest.NewRequest(http.MethodPost, "/api/roast", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := ts.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	resp := decode[roastResponse](t, rec)
	if resp.Mode != "serious" || resp.Severity != "normal" {
		t.Errorf("mode/severity = %s/%s", resp.Mode, resp.Severity)
	}
}

func TestRoast_Denials(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(t *testing.T, ts *testServer)
		body      string
		wantCode  int
		wantStage limits.Stage
	}{
		{
			name: "kill switch",
			setup: func(t *testing.T, ts *testServer) {
				mustSet(t, ts, settings.KeyEnableRoasting, "false")
			},
			body:      roastBody(testCode, false),
			wantCode:  http.StatusForbidden,
			wantStage: limits.StageKillSwitch,
		},
		{
			name:      "empty code",
			setup:     func(*testing.T, *testServer) {},
			body:      roastBody("   ", false),
			wantCode:  http.StatusUnprocessableEntity,
			wantStage: limits.StageValidation,
		},
		{
			name: "budget exhausted",
			setup: func(t *testing.T, ts *testServer) {
				mustSet(t, ts, settings.KeyMonthlyBudgetCents, "0")
			},
			body:      roastBody(testCode, false),
			wantCode:  http.StatusPaymentRequired,
			wantStage: limits.StageBudget,
		},
		{
			name: "global quota",
			setup: func(t *testing.T, ts *testServer) {
				mustSet(t, ts, settings.KeyDailyRoastsGlobal, "0")
			},
			body:      roastBody(testCode, false),
			wantCode:  http.StatusTooManyRequests,
			wantStage: limits.StageRateLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			tt.setup(t, ts)

			rec := ts.postRoast(t, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body)
			}
			resp := decode[errorResponse](t, rec)
			if resp.Stage != string(tt.wantStage) || resp.Error == "" {
				t.Errorf("unexpected error body: %+v", resp)
			}
		})
	}
}

func TestRoast_SessionQuota(t *testing.T) {
	ts := newTestServer(t)
	mustSet(t, ts, settings.KeyDailyRoastsPerSession, "2")

	first := ts.postRoast(t, roastBody(testCode, false))
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", first.Code)
	}
	session := first.Result().Cookies()[0]

	if rec := ts.postRoast(t, roastBody(testCode, false), session); rec.Code != http.StatusOK {
		t.Fatalf("second roast: expected 200, got %d", rec.Code)
	}

	rec := ts.postRoast(t, roastBody(testCode, false), session)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third roast: expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get(RemainingHeader); got != "0" {
		t.Errorf("%s = %q, want 0", RemainingHeader, got)
	}

	// A fresh session still has its own quota.
	if rec := ts.postRoast(t, roastBody(testCode, false)); rec.Code != http.StatusOK {
		t.Errorf("new session: expected 200, got %d", rec.Code)
	}
}

func TestRoast_ReviewFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.reviewer.err = errors.New("upstream 529")

	rec := ts.postRoast(t, roastBody(testCode, true))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	resp := decode[errorResponse](t, rec)
	if resp.Error != limits.MessageReviewUnavailable {
		t.Errorf("error = %q", resp.Error)
	}

	n, err := ts.roasts.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected nothing logged, got %d rows", n)
	}
}

func TestRoast_BookkeepingFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.roasts.Close()

	rec := ts.postRoast(t, roastBody(testCode, true))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	resp := decode[roastResponse](t, rec)
	if resp.Error != messageBookkeeping {
		t.Errorf("error = %q", resp.Error)
	}
	if !strings.Contains(resp.Roast, "Groundbreaking") {
		t.Errorf("roast text not returned: %+v", resp)
	}
	if resp.ShareID != "" {
		t.Errorf("share id %q was never stored and must not be handed out", resp.ShareID)
	}

	// Cost and usage were still recorded.
	spent, err := ts.ledger.MonthSpend(context.Background(), "")
	if err != nil || spent != 0.25 {
		t.Errorf("spent = %v, %v; want 0.25", spent, err)
	}
	if got := rec.Header().Get(RemainingHeader); got != "9" {
		t.Errorf("%s = %q, want 9", RemainingHeader, got)
	}
}

func TestRoast_BadBody(t *testing.T) {
	ts := newTestServer(t)
	if rec := ts.postRoast(t, "{not json"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetRoast_NotFound(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/roast/nope1234", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRecent_PublicOnly(t *testing.T) {
	ts := newTestServer(t)

	ts.postRoast(t, roastBody(testCode, true))
	ts.postRoast(t, roastBody(testCode, false))

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/recent", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	feed := decode[map[string][]feedItem](t, rec)
	if len(feed["roasts"]) != 1 {
		t.Fatalf("expected 1 public roast, got %d", len(feed["roasts"]))
	}
	if strings.ContainsAny(feed["roasts"][0].Preview, "#*`") {
		t.Errorf("preview kept markdown: %q", feed["roasts"][0].Preview)
	}
}

func TestAdmin_RequiresPassword(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name     string
		password string
		auth     bool
		wantCode int
	}{
		{"no credentials", "", false, http.StatusUnauthorized},
		{"wrong password", "guess", true, http.StatusUnauthorized},
		{"right password", testPassword, true, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.auth {
				req.SetBasicAuth("admin", tt.password)
			}
			rec := ts.do(t, req)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantCode == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestAdmin_View(t *testing.T) {
	ts := newTestServer(t)
	ts.postRoast(t, roastBody(testCode, false))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.SetBasicAuth("admin", testPassword)
	rec := ts.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	view := decode[adminView](t, rec)
	if len(view.Settings) != len(settings.Definitions) {
		t.Errorf("expected %d settings, got %d", len(settings.Definitions), len(view.Settings))
	}
	if view.Budget.SpentCents != 0.25 || view.Budget.RoastCount != 1 {
		t.Errorf("budget = %+v", view.Budget)
	}
	if len(view.History) != 1 || len(view.Logs) != 1 {
		t.Errorf("history = %d rows, logs = %d rows", len(view.History), len(view.Logs))
	}
	if view.Logs[0].IsPublic {
		t.Error("private roast reported as public")
	}
}

func TestAdmin_UpdateSettings(t *testing.T) {
	ts := newTestServer(t)

	form := url.Values{
		"config_daily_roasts_per_session": {"3"},
		"config_max_input_lines":          {"lots"},
		"config_secret_sauce":             {"1"},
		"csrf_token":                      {"ignored"},
	}
	req := httptest.NewRequest(http.MethodPost, "/admin/settings", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("admin", testPassword)

	rec := ts.do(t, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body)
	}

	result := decode[settingsResult](t, rec)
	if len(result.Updated) != 1 || result.Updated[0] != settings.KeyDailyRoastsPerSession {
		t.Errorf("updated = %v", result.Updated)
	}
	if len(result.Ignored) != 1 || result.Ignored[0] != "secret_sauce" {
		t.Errorf("ignored = %v", result.Ignored)
	}
	if _, ok := result.Errors[settings.KeyMaxInputLines]; !ok {
		t.Errorf("errors = %v", result.Errors)
	}

	value, _, err := ts.settings.Get(context.Background(), settings.KeyDailyRoastsPerSession)
	if err != nil || value != "3" {
		t.Errorf("stored value = %q, %v", value, err)
	}
}

func TestAdmin_PasswordReload(t *testing.T) {
	ts := newTestServer(t)
	ts.server.SetAdminPassword("rotated")

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.SetBasicAuth("admin", testPassword)
	if rec := ts.do(t, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("old password: expected 401, got %d", rec.Code)
	}
}

func TestProbes(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		path     string
		wantCode int
		contains string
	}{
		{"/health", http.StatusOK, `"roasting_enabled":true`},
		{"/ready", http.StatusOK, `"roast_log"`},
		{"/version", http.StatusOK, `"version":"1.0.0"`},
		{"/metrics", http.StatusOK, "roastline_http_requests_total"},
	}

	// One request first so the HTTP counter has a sample.
	ts.do(t, httptest.NewRequest(http.MethodGet, "/api/recent", nil))

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := ts.do(t, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body missing %q: %s", tt.contains, rec.Body)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	handler := requestIDMiddleware(recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestRequestID_ReusesClientValue(t *testing.T) {
	handler := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-id-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "client-id-1" {
		t.Errorf("request id = %q, want client-id-1", got)
	}
}

func TestServe_GracefulShutdown(t *testing.T) {
	ts := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.server.Serve(ctx, ln) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + ln.Addr().String() + "/health")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never answered: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func mustSet(t *testing.T, ts *testServer, key, value string) {
	t.Helper()
	if err := ts.settings.Set(context.Background(), key, value); err != nil {
		t.Fatalf("Set(%s) failed: %v", key, err)
	}
}
