package anthropic

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"roastline-hq/roastline/internal/testutil"
	"roastline-hq/roastline/pkg/providers"
	"roastline-hq/roastline/pkg/roast"
)

const testModel = "claude-haiku-4-5-20251001"

func newTestReviewer(t *testing.T, baseURL string) *Reviewer {
	t.Helper()

	r, err := NewReviewer(Config{APIKey: "test-key", BaseURL: baseURL})
	if err != nil {
		t.Fatalf("NewReviewer failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestNewReviewer_RequiresAPIKey(t *testing.T) {
	_, err := NewReviewer(Config{})

	var cfgErr *providers.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigError, got %v", err)
	}
	if cfgErr.Field != "api_key" {
		t.Errorf("Expected field api_key, got %q", cfgErr.Field)
	}
}

func TestReviewer_Review(t *testing.T) {
	text := "## Roast Score: 72/100\n\nThat loop has seen things."
	server := testutil.NewMessagesServer(testutil.MockResponse{
		Body: testutil.MessagesResponse(text, testModel, 1000, 500),
	})
	defer server.Close()

	r := newTestReviewer(t, server.URL())
	code := "def main():\n    import os\n    print('hi')\n"

	result, err := r.Review(context.Background(), providers.ReviewRequest{
		Code:     code,
		Mode:     roast.ModeRoast,
		Severity: roast.SeverityBrutal,
		Model:    testModel,
	})
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}

	if result.Text != text {
		t.Errorf("Unexpected text %q", result.Text)
	}
	if result.InputTokens != 1000 || result.OutputTokens != 500 {
		t.Errorf("Unexpected usage %d/%d", result.InputTokens, result.OutputTokens)
	}
	if math.Abs(result.CostCents-0.28) > 1e-9 {
		t.Errorf("Expected cost 0.28, got %v", result.CostCents)
	}
	if result.Score == nil || *result.Score != 72 {
		t.Errorf("Expected score 72, got %v", result.Score)
	}
	if result.Language != "python" {
		t.Errorf("Expected python, got %q", result.Language)
	}

	requests := server.Requests()
	if len(requests) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(requests))
	}
	req := requests[0]
	if req.Header.Get("x-api-key") != "test-key" {
		t.Errorf("Missing api key header")
	}
	if req.Header.Get("anthropic-version") != APIVersion {
		t.Errorf("Expected anthropic-version %s, got %q", APIVersion, req.Header.Get("anthropic-version"))
	}

	body := gjson.ParseBytes(req.Body)
	if body.Get("model").String() != testModel {
		t.Errorf("Unexpected model %q", body.Get("model").String())
	}
	if body.Get("max_tokens").Int() != MaxTokens {
		t.Errorf("Unexpected max_tokens %d", body.Get("max_tokens").Int())
	}
	if !strings.Contains(body.Get("system").String(), "Severity: brutal") {
		t.Errorf("System prompt should carry the severity: %q", body.Get("system").String())
	}
	if body.Get("messages.0.role").String() != "user" {
		t.Errorf("Expected user message")
	}
	if !strings.Contains(body.Get("messages.0.content").String(), "```python\n"+code) {
		t.Errorf("User message should fence the code: %q", body.Get("messages.0.content").String())
	}
}

func TestReviewer_ReviewWithoutScore(t *testing.T) {
	server := testutil.NewMessagesServer(testutil.MockResponse{
		Body: testutil.MessagesResponse("Looks fine. Ship it.", "claude-sonnet-4-5", 10, 10),
	})
	defer server.Close()

	r := newTestReviewer(t, server.URL())
	result, err := r.Review(context.Background(), providers.ReviewRequest{
		Code:  "x = 1",
		Mode:  roast.ModeSerious,
		Model: "claude-sonnet-4-5",
	})
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if result.Score != nil {
		t.Errorf("Expected no score, got %d", *result.Score)
	}
	if result.Model != "claude-sonnet-4-5" {
		t.Errorf("Unexpected model %q", result.Model)
	}
}

func TestReviewer_Errors(t *testing.T) {
	tests := []struct {
		name         string
		response     testutil.MockResponse
		wantRequests int
		check        func(error) bool
	}{
		{
			name:         "auth failure",
			response:     testutil.MockResponse{StatusCode: http.StatusUnauthorized, Body: testutil.ErrorResponse("authentication_error", "invalid x-api-key")},
			wantRequests: 1,
			check: func(err error) bool {
				var authErr *providers.AuthError
				return errors.As(err, &authErr)
			},
		},
		{
			name:         "malformed body",
			response:     testutil.MockResponse{Body: "not json"},
			wantRequests: 1,
			check: func(err error) bool {
				var parseErr *providers.ParseError
				return errors.As(err, &parseErr)
			},
		},
		{
			name:         "no text content",
			response:     testutil.MockResponse{Body: `{"model":"m","content":[],"usage":{"input_tokens":1,"output_tokens":0}}`},
			wantRequests: 1,
			check: func(err error) bool {
				var parseErr *providers.ParseError
				return errors.As(err, &parseErr)
			},
		},
		{
			name:         "server error retried once",
			response:     testutil.MockResponse{StatusCode: http.StatusInternalServerError, Body: testutil.ErrorResponse("api_error", "internal")},
			wantRequests: 2,
			check:        providers.IsTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := testutil.NewMessagesServer(tt.response)
			defer server.Close()

			r := newTestReviewer(t, server.URL())
			result, err := r.Review(context.Background(), providers.ReviewRequest{Code: "x = 1", Model: testModel})
			if err == nil {
				t.Fatalf("Expected error, got result %+v", result)
			}
			if !tt.check(err) {
				t.Errorf("Unexpected error type %T: %v", err, err)
			}
			if got := server.RequestCount(); got != tt.wantRequests {
				t.Errorf("Expected %d requests, got %d", tt.wantRequests, got)
			}
		})
	}
}
