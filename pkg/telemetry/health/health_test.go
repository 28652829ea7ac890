package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew_DefaultTimeout(t *testing.T) {
	checker := New(0)
	if checker.checkTimeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", checker.checkTimeout)
	}
}

func TestRegisterCheck_Replaces(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("roast_log", func(ctx context.Context) error { return errors.New("down") })
	checker.RegisterCheck("roast_log", func(ctx context.Context) error { return nil })
	checker.RegisterCheck("counters", func(ctx context.Context) error { return nil })

	names := checker.ListChecks()
	if len(names) != 2 || names[0] != "counters" || names[1] != "roast_log" {
		t.Fatalf("ListChecks() = %v", names)
	}

	status := checker.CheckReadiness(context.Background())
	if status.Status != StatusReady {
		t.Errorf("expected replaced check to pass, got %q", status.Status)
	}
}

func TestCheckLiveness(t *testing.T) {
	tests := []struct {
		name        string
		probe       RoastingFunc
		wantEnabled bool
	}{
		{
			name:        "no probe",
			probe:       nil,
			wantEnabled: false,
		},
		{
			name:        "roasting on",
			probe:       func(ctx context.Context) (bool, error) { return true, nil },
			wantEnabled: true,
		},
		{
			name:        "kill switch off",
			probe:       func(ctx context.Context) (bool, error) { return false, nil },
			wantEnabled: false,
		},
		{
			name:        "probe error reads as disabled",
			probe:       func(ctx context.Context) (bool, error) { return true, errors.New("db locked") },
			wantEnabled: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second)
			if tt.probe != nil {
				checker.SetRoastingProbe(tt.probe)
			}

			status := checker.CheckLiveness(context.Background())
			if status.Status != StatusOK {
				t.Errorf("expected status ok, got %q", status.Status)
			}
			if status.RoastingEnabled != tt.wantEnabled {
				t.Errorf("RoastingEnabled = %v, want %v", status.RoastingEnabled, tt.wantEnabled)
			}
		})
	}
}

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
		wantFailed string
	}{
		{
			name:       "no checks",
			checks:     nil,
			wantStatus: StatusReady,
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"counters":  func(ctx context.Context) error { return nil },
				"roast_log": func(ctx context.Context) error { return nil },
			},
			wantStatus: StatusReady,
		},
		{
			name: "one database down",
			checks: map[string]CheckFunc{
				"counters":  func(ctx context.Context) error { return nil },
				"roast_log": func(ctx context.Context) error { return errors.New("disk I/O error") },
			},
			wantStatus: StatusDegraded,
			wantFailed: "roast_log",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second)
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}

			status := checker.CheckReadiness(context.Background())
			if status.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status.Status, tt.wantStatus)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("expected %d results, got %d", len(tt.checks), len(status.Checks))
			}
			if tt.wantFailed != "" {
				result := status.Checks[tt.wantFailed]
				if result.Status != StatusUnhealthy || result.Message != "disk I/O error" {
					t.Errorf("unexpected result for %s: %+v", tt.wantFailed, result)
				}
			}
		})
	}
}

func TestCheckReadiness_Timeout(t *testing.T) {
	checker := New(50 * time.Millisecond)
	checker.RegisterCheck("slow", func(ctx context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})

	status := checker.CheckReadiness(context.Background())
	result := status.Checks["slow"]
	if result.Status != StatusUnhealthy || result.Message != "health check timeout" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestLivenessHandler(t *testing.T) {
	checker := New(time.Second)
	checker.SetRoastingProbe(func(ctx context.Context) (bool, error) { return true, nil })

	mux := http.NewServeMux()
	checker.Register(mux, "1.2.0", "abc123", "2026-01-01")

	tests := []struct {
		method   string
		wantCode int
	}{
		{http.MethodGet, http.StatusOK},
		{http.MethodHead, http.StatusOK},
		{http.MethodPost, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.method != http.MethodGet {
				return
			}

			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body["status"] != "ok" || body["roasting_enabled"] != true {
				t.Errorf("unexpected body: %v", body)
			}
		})
	}
}

func TestReadinessHandler(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("counters", func(ctx context.Context) error { return errors.New("closed") })

	rec := httptest.NewRecorder()
	checker.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}

	var status ReadinessStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if status.Status != StatusDegraded {
		t.Errorf("expected degraded, got %q", status.Status)
	}
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	VersionHandler("1.2.0", "abc123", "2026-01-01")(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info VersionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if info.Version != "1.2.0" || info.Commit != "abc123" || info.GoVersion == "" {
		t.Errorf("unexpected version info: %+v", info)
	}
}
