// Package githubmodels implements a generation gateway on top of the GitHub
// Models inference API (OpenAI-compatible chat completions).
package githubmodels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/caseforge/worker/internal/adapter/ai/extract"
	"github.com/caseforge/worker/internal/adapter/ai/gapfill"
	"github.com/caseforge/worker/internal/adapter/ai/prompt"
	"github.com/caseforge/worker/internal/adapter/ai/reliability"
	"github.com/caseforge/worker/internal/domain/suite"
)

const (
	defaultBaseURL     = "https://models.github.ai"
	defaultAPIVersion  = "2022-11-28"
	defaultModel       = "openai/gpt-4o"
	defaultMaxTokens   = 8192
	defaultTemperature = 0.3
	defaultMaxAttempts = 3
	defaultBackoffUnit = time.Second
	defaultHTTPTimeout = 120 * time.Second

	rawPreviewLimit = 500
)

// Config holds configuration for the GitHub Models gateway.
type Config struct {
	Token       string
	Model       string
	Org         string // optional, routes through the org-scoped endpoint
	BaseURL     string
	APIVersion  string // sent as X-GitHub-Api-Version
	Temperature float64
	MaxTokens   int
	MaxAttempts int

	// EnableGapFill issues a third turn for missing mandatory categories.
	EnableGapFill bool

	// UseJSONSchema asks the API to constrain output with a JSON schema
	// response_format. Models that reject it fall back to free-form JSON
	// for the rest of the process lifetime.
	UseJSONSchema bool

	BackoffUnit time.Duration
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New("github models token is required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.APIVersion == "" {
		c.APIVersion = defaultAPIVersion
	}
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BackoffUnit == 0 {
		c.BackoffUnit = defaultBackoffUnit
	}
}

// Gateway implements suite.Generator using GitHub Models.
type Gateway struct {
	config  Config
	limiter *reliability.RateLimiter
	prompts *prompt.Builder
	client  *http.Client

	// schemaRejected flips once the backend refuses response_format; the
	// fallback is one-way so every later request skips the schema hint.
	// Atomic because one gateway serves concurrent jobs.
	schemaRejected atomic.Bool
}

var _ suite.Generator = (*Gateway)(nil)

// NewGateway creates a new GitHub Models gateway sharing the given limiter.
func NewGateway(config Config, limiter *reliability.RateLimiter) (*Gateway, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	config.applyDefaults()

	prompts, err := prompt.NewBuilder()
	if err != nil {
		return nil, fmt.Errorf("create prompt builder: %w", err)
	}

	slog.Info("github models gateway initialized",
		"model", config.Model,
		"json_schema", config.UseJSONSchema,
	)

	return &Gateway{
		config:  config,
		limiter: limiter,
		prompts: prompts,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}, nil
}

// Generate runs the generation turn, one self-correction turn when the
// first response does not contain parseable JSON, and the optional coverage
// gap-fill turn.
func (g *Gateway) Generate(ctx context.Context, req suite.GenerationRequest, contextCode string) (suite.RawSuite, error) {
	fullPrompt, err := g.prompts.Build(req, contextCode)
	if err != nil {
		return nil, err
	}

	raw, err := g.complete(ctx, fullPrompt)
	if err != nil {
		return nil, err
	}

	parsed, ok := extract.Object(raw)
	if !ok {
		slog.WarnContext(ctx, "turn 1 returned invalid JSON, attempting self-correction")
		corrected, err := g.complete(ctx, g.prompts.Correction(raw))
		if err != nil {
			return nil, err
		}
		parsed, ok = extract.Object(corrected)
		if !ok {
			return nil, fmt.Errorf("%w: no valid JSON after 2 turns, raw output: %s",
				suite.ErrInvalidOutput, extract.Preview(corrected, rawPreviewLimit))
		}
	}

	if g.config.EnableGapFill {
		gapfill.Fill(ctx, parsed, req, g.prompts, g.complete)
	}

	return parsed, nil
}

// Close releases resources held by the gateway.
func (g *Gateway) Close() error {
	g.client.CloseIdleConnections()
	return nil
}

// complete sends one chat completion request with classified retries.
func (g *Gateway) complete(ctx context.Context, userPrompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < g.config.MaxAttempts; attempt++ {
		if err := g.limiter.Acquire(ctx); err != nil {
			if errors.Is(err, reliability.ErrDailyQuotaExceeded) {
				return "", fmt.Errorf("%w: %v", suite.ErrQuotaExceeded, err)
			}
			return "", err
		}

		slog.InfoContext(ctx, "calling github models",
			"model", g.config.Model,
			"attempt", attempt+1,
			"max_attempts", g.config.MaxAttempts,
		)

		text, status, err := g.doRequest(ctx, userPrompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}

		if g.config.UseJSONSchema && isSchemaRejection(status, err) {
			if g.schemaRejected.CompareAndSwap(false, true) {
				slog.WarnContext(ctx, "model rejected json schema response_format, falling back to free-form")
			}
			// Not counted against the retry budget. The request is
			// re-sent without the schema hint.
			text, _, err = g.doRequest(ctx, userPrompt)
			if err == nil {
				return text, nil
			}
			lastErr = err
		}

		if status != 0 && !reliability.IsRetryableStatusCode(status) && !reliability.IsRetryable(err) {
			return "", lastErr
		}

		if attempt < g.config.MaxAttempts-1 {
			var wait time.Duration
			if status == http.StatusTooManyRequests || reliability.IsRateLimited(err) {
				wait = reliability.RateLimitBackoff(attempt, g.config.BackoffUnit)
			} else {
				wait = reliability.TransientBackoff(attempt, g.config.BackoffUnit)
			}
			slog.WarnContext(ctx, "github models call failed, backing off",
				"status", status,
				"wait", wait,
				"error", extract.Preview(err.Error(), 200),
			)
			if err := reliability.Sleep(ctx, wait); err != nil {
				return "", err
			}
		}
	}

	return "", fmt.Errorf("%w: %d attempt(s) exhausted: %v",
		suite.ErrGenerationFailed, g.config.MaxAttempts, lastErr)
}

type chatRequest struct {
	Model               string         `json:"model"`
	Messages            []chatMessage  `json:"messages"`
	Temperature         *float64       `json:"temperature,omitempty"`
	MaxTokens           int            `json:"max_tokens,omitempty"`
	MaxCompletionTokens int            `json:"max_completion_tokens,omitempty"`
	ResponseFormat      map[string]any `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// doRequest performs a single HTTP round trip. The returned status is zero
// when the request never reached the server.
func (g *Gateway) doRequest(ctx context.Context, userPrompt string) (string, int, error) {
	body, err := json.Marshal(g.buildRequest(userPrompt))
	if err != nil {
		return "", 0, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.config.Token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/vnd.github+json")
	httpReq.Header.Set("X-GitHub-Api-Version", g.config.APIVersion)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", 0, fmt.Errorf("github models request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, fmt.Errorf("github models returned %d: %s",
			resp.StatusCode, extract.Preview(string(respBody), 300))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", resp.StatusCode, fmt.Errorf("github models error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", resp.StatusCode, errors.New("empty choices in response")
	}

	text, err := decodeContent(parsed.Choices[0].Message.Content)
	if err != nil {
		return "", resp.StatusCode, err
	}
	if text == "" {
		return "", resp.StatusCode, errors.New("empty response from github models")
	}
	return text, resp.StatusCode, nil
}

func (g *Gateway) buildRequest(userPrompt string) chatRequest {
	req := chatRequest{
		Model: g.config.Model,
		Messages: []chatMessage{
			{Role: "user", Content: userPrompt},
		},
	}

	// gpt-5 family models reject the classic knobs: they take
	// max_completion_tokens instead of max_tokens and no temperature.
	if strings.Contains(g.config.Model, "gpt-5") {
		req.MaxCompletionTokens = g.config.MaxTokens
	} else {
		req.MaxTokens = g.config.MaxTokens
		temp := g.config.Temperature
		req.Temperature = &temp
	}

	if g.config.UseJSONSchema && !g.schemaRejected.Load() {
		req.ResponseFormat = responseSchema()
	}
	return req
}

func (g *Gateway) endpoint() string {
	base := strings.TrimSuffix(g.config.BaseURL, "/")
	if g.config.Org != "" {
		return fmt.Sprintf("%s/orgs/%s/inference/chat/completions", base, g.config.Org)
	}
	return base + "/inference/chat/completions"
}

// decodeContent handles both content shapes the API emits: a plain string
// and an array of typed parts.
func decodeContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		var sb strings.Builder
		for _, p := range parts {
			if p.Type == "" || p.Type == "text" {
				sb.WriteString(p.Text)
			}
		}
		return sb.String(), nil
	}

	return "", errors.New("unrecognized message content shape")
}

// isSchemaRejection detects a backend refusing the response_format hint, as
// opposed to a generic bad request.
func isSchemaRejection(status int, err error) bool {
	if status != http.StatusBadRequest && status != http.StatusUnprocessableEntity {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "response_format") ||
		strings.Contains(msg, "json_schema") ||
		strings.Contains(msg, "schema")
}

// responseSchema builds the strict JSON schema hint for the suite shape.
// Nested objects are spelled out because the API rejects recursive $refs.
func responseSchema() map[string]any {
	stepSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"step_number":     map[string]any{"type": "integer"},
			"action":          map[string]any{"type": "string"},
			"input_data":      map[string]any{"type": []string{"string", "null"}},
			"expected_result": map[string]any{"type": "string"},
		},
		"required":             []string{"step_number", "action", "input_data", "expected_result"},
		"additionalProperties": false,
	}

	caseSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":         map[string]any{"type": "string"},
			"scenario_type": map[string]any{"type": "string"},
			"severity":      map[string]any{"type": "string"},
			"preconditions": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"steps":         map[string]any{"type": "array", "items": stepSchema},
			"tags":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"is_edge_case":  map[string]any{"type": "boolean"},
		},
		"required":             []string{"title", "scenario_type", "severity", "preconditions", "steps", "tags", "is_edge_case"},
		"additionalProperties": false,
	}

	return map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   "test_suite",
			"strict": true,
			"schema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"user_story_summary": map[string]any{"type": "string"},
					"test_cases":         map[string]any{"type": "array", "items": caseSchema},
				},
				"required":             []string{"user_story_summary", "test_cases"},
				"additionalProperties": false,
			},
		},
	}
}
