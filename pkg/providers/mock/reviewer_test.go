package mock

import (
	"context"
	"strings"
	"testing"
	"time"

	"roastline-hq/roastline/pkg/providers"
	"roastline-hq/roastline/pkg/roast"
)

func TestReviewer_Review(t *testing.T) {
	r := NewReviewer()
	r.now = func() time.Time { return time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		mode      roast.Mode
		wantScore bool
		contains  string
	}{
		{roast.ModeRoast, true, "In 2026?"},
		{roast.ModeWaldorf, true, "Roast Score"},
		{roast.ModeSerious, false, "Code Review"},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			result, err := r.Review(context.Background(), providers.ReviewRequest{
				Code: "package main\n\nfunc main() {\n\tx := 1\n\tfmt.Println(x)\n}\n",
				Mode: tt.mode,
			})
			if err != nil {
				t.Fatalf("Review failed: %v", err)
			}
			if result.Model != Model || result.CostCents != 0 {
				t.Errorf("Expected free mock result, got model=%q cost=%v", result.Model, result.CostCents)
			}
			if !strings.Contains(result.Text, tt.contains) {
				t.Errorf("Expected text to contain %q", tt.contains)
			}
			if (result.Score != nil) != tt.wantScore {
				t.Errorf("Score presence = %v, want %v", result.Score != nil, tt.wantScore)
			}
			if tt.wantScore && *result.Score != 65 {
				t.Errorf("Expected score 65, got %d", *result.Score)
			}
			if result.Language != "go" {
				t.Errorf("Expected go, got %q", result.Language)
			}
		})
	}
}

func TestReviewer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewReviewer().Review(ctx, providers.ReviewRequest{Code: "x"}); err == nil {
		t.Error("Expected error for canceled context")
	}
}
