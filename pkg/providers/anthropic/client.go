package anthropic

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"roastline-hq/roastline/pkg/providers"
	"roastline-hq/roastline/pkg/roast"
)

const (
	// DefaultBaseURL is the public Anthropic API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"

	// APIVersion is sent as the anthropic-version header.
	APIVersion = "2023-06-01"

	// MaxTokens caps the length of a review.
	MaxTokens = 1024

	messagesPath = "/v1/messages"
)

// Config configures the Anthropic reviewer.
type Config struct {
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
}

// Reviewer calls the Anthropic Messages API.
type Reviewer struct {
	*providers.HTTPClient

	apiKey  string
	baseURL string
	logger  *slog.Logger
}

var _ providers.Reviewer = (*Reviewer)(nil)

// NewReviewer creates an Anthropic reviewer.
func NewReviewer(cfg Config) (*Reviewer, error) {
	if cfg.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: "anthropic",
			Field:    "api_key",
			Message:  "API key is required for Anthropic",
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	r := &Reviewer{
		HTTPClient: providers.NewHTTPClient(providers.ClientConfig{
			Name:        "anthropic",
			Timeout:     cfg.Timeout,
			MaxAttempts: cfg.MaxAttempts,
		}),
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  slog.Default().With("component", "providers.anthropic"),
	}

	r.logger.Info("Anthropic reviewer initialized", "base_url", r.baseURL)
	return r, nil
}

// Review sends the code to the Messages API and returns the review with its
// token usage and cost.
func (r *Reviewer) Review(ctx context.Context, req providers.ReviewRequest) (*providers.ReviewResult, error) {
	start := time.Now()
	language := roast.DetectLanguage(req.Code)

	body, err := buildRequestBody(req, language)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	headers := map[string]string{
		"x-api-key":         r.apiKey,
		"anthropic-version": APIVersion,
		"content-type":      "application/json",
	}

	resp, err := r.DoRequest(ctx, http.MethodPost, r.baseURL+messagesPath, body, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &providers.ParseError{Provider: r.Name(), Cause: err}
	}

	result, err := parseResponse(raw, req.Model)
	if err != nil {
		return nil, err
	}
	result.Language = language
	result.Latency = time.Since(start)

	r.logger.Debug("review completed",
		"model", result.Model,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"cost_cents", result.CostCents,
		"latency", result.Latency,
	)
	return result, nil
}

func buildRequestBody(req providers.ReviewRequest, language string) ([]byte, error) {
	body := []byte(`{}`)
	var err error

	set := func(path string, value any) {
		if err != nil {
			return
		}
		body, err = sjson.SetBytes(body, path, value)
	}

	set("model", req.Model)
	set("max_tokens", MaxTokens)
	set("system", roast.SystemPrompt(req.Mode, req.Severity, language))
	set("messages.0.role", "user")
	set("messages.0.content", roast.UserMessage(req.Code, language))

	return body, err
}

func parseResponse(raw []byte, requestedModel string) (*providers.ReviewResult, error) {
	if !gjson.ValidBytes(raw) {
		return nil, &providers.ParseError{
			Provider:    "anthropic",
			RawResponse: string(raw),
			Cause:       fmt.Errorf("invalid JSON"),
		}
	}

	parsed := gjson.ParseBytes(raw)

	var text strings.Builder
	for _, block := range parsed.Get("content").Array() {
		if block.Get("type").String() == "text" {
			text.WriteString(block.Get("text").String())
		}
	}
	if text.Len() == 0 {
		return nil, &providers.ParseError{
			Provider:    "anthropic",
			RawResponse: string(raw),
			Cause:       fmt.Errorf("response has no text content"),
		}
	}

	model := parsed.Get("model").String()
	if model == "" {
		model = requestedModel
	}

	result := &providers.ReviewResult{
		Text:         text.String(),
		InputTokens:  int(parsed.Get("usage.input_tokens").Int()),
		OutputTokens: int(parsed.Get("usage.output_tokens").Int()),
		Model:        model,
	}
	result.CostCents = providers.CostCents(model, result.InputTokens, result.OutputTokens)

	if score, ok := roast.ExtractScore(result.Text); ok {
		result.Score = &score
	}
	return result, nil
}
