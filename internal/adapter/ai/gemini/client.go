// Package gemini implements the primary generation gateway on top of the
// Gemini API, with API key rotation, model fallback and classified
// retry/backoff.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/caseforge/worker/internal/adapter/ai/extract"
	"github.com/caseforge/worker/internal/adapter/ai/gapfill"
	"github.com/caseforge/worker/internal/adapter/ai/prompt"
	"github.com/caseforge/worker/internal/adapter/ai/reliability"
	"github.com/caseforge/worker/internal/domain/suite"
)

const (
	defaultModel           = "gemini-2.5-flash"
	defaultTemperature     = float32(0.3)
	defaultTopP            = float32(0.8)
	defaultMaxOutputTokens = int32(8192)
	defaultMaxInputTokens  = 32768
	defaultMaxAttempts     = 3
	defaultBackoffUnit     = time.Second

	// rawPreviewLimit bounds the diagnostic preview attached to
	// invalid-output errors.
	rawPreviewLimit = 500

	truncationMarker = "\n\n... [context truncated to fit token budget]"
)

// Config holds configuration for the Gemini gateway.
type Config struct {
	APIKeys         []string // rotated in order when quota is hit
	Models          []string // primary first, then fallbacks
	Temperature     float32
	TopP            float32
	MaxOutputTokens int32
	MaxInputTokens  int  // prompt token budget, chars/4 estimate
	MaxAttempts     int  // attempts per key/model combination
	EnableGapFill   bool // issue a third turn for missing categories

	// BackoffUnit scales retry sleeps. Production uses the one-second
	// default; tests shrink it.
	BackoffUnit time.Duration
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.APIKeys) == 0 {
		return errors.New("at least one gemini API key is required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if len(c.Models) == 0 {
		c.Models = []string{defaultModel}
	}
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
	}
	if c.TopP == 0 {
		c.TopP = defaultTopP
	}
	if c.MaxOutputTokens == 0 {
		c.MaxOutputTokens = defaultMaxOutputTokens
	}
	if c.MaxInputTokens == 0 {
		c.MaxInputTokens = defaultMaxInputTokens
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BackoffUnit == 0 {
		c.BackoffUnit = defaultBackoffUnit
	}
}

// caller abstracts the SDK call so tests can script backend behavior.
type caller interface {
	call(ctx context.Context, apiKey, model, userPrompt string) (string, error)
}

// Gateway implements suite.Generator using Google Gemini.
type Gateway struct {
	config  Config
	limiter *reliability.RateLimiter
	prompts *prompt.Builder
	backend caller
}

var _ suite.Generator = (*Gateway)(nil)

// NewGateway creates a new Gemini gateway. The rate limiter is injected
// because it is shared process-wide across every gateway instance for this
// backend: the quota belongs to the credentials, not the caller.
func NewGateway(config Config, limiter *reliability.RateLimiter) (*Gateway, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	config.applyDefaults()

	prompts, err := prompt.NewBuilder()
	if err != nil {
		return nil, fmt.Errorf("create prompt builder: %w", err)
	}

	slog.Info("gemini gateway initialized",
		"keys", maskKeys(config.APIKeys),
		"models", config.Models,
	)

	return &Gateway{
		config:  config,
		limiter: limiter,
		prompts: prompts,
		backend: &sdkCaller{
			temperature:     config.Temperature,
			topP:            config.TopP,
			maxOutputTokens: config.MaxOutputTokens,
		},
	}, nil
}

// Generate runs the full multi-turn protocol: generation, self-correction on
// parse failure, and optional coverage gap-fill.
func (g *Gateway) Generate(ctx context.Context, req suite.GenerationRequest, contextCode string) (suite.RawSuite, error) {
	fullPrompt, err := g.buildBudgetedPrompt(req, contextCode)
	if err != nil {
		return nil, err
	}

	raw, err := g.callWithFallback(ctx, fullPrompt)
	if err != nil {
		return nil, err
	}

	parsed, ok := extract.Object(raw)
	if !ok {
		slog.WarnContext(ctx, "turn 1 returned invalid JSON, attempting self-correction")
		corrected, err := g.callWithFallback(ctx, g.prompts.Correction(raw))
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
		gapfill.Fill(ctx, parsed, req, g.prompts, g.callWithFallback)
	}

	return parsed, nil
}

// Close releases resources held by the gateway.
func (g *Gateway) Close() error {
	// genai.Client does not require explicit close
	return nil
}

// buildBudgetedPrompt renders the prompt, truncating only the context
// portion when the chars/4 estimate exceeds the input token budget. Base
// instructions are never cut.
func (g *Gateway) buildBudgetedPrompt(req suite.GenerationRequest, contextCode string) (string, error) {
	if contextCode == "" {
		return g.prompts.Build(req, "")
	}

	base, err := g.prompts.Build(req, "")
	if err != nil {
		return "", err
	}

	budget := g.config.MaxInputTokens - prompt.EstimateTokens(base)
	if budget <= 0 {
		slog.Warn("input budget exhausted by base prompt, dropping context",
			"max_input_tokens", g.config.MaxInputTokens,
		)
		return base, nil
	}

	if prompt.EstimateTokens(contextCode) > budget {
		keep := budget * 4
		if keep > len(contextCode) {
			keep = len(contextCode)
		}
		contextCode = contextCode[:keep] + truncationMarker
		slog.Warn("context truncated to fit input budget", "kept_chars", keep)
	}

	return g.prompts.Build(req, contextCode)
}

// callWithFallback iterates every (API key, model) combination in order,
// retrying each with classified exponential backoff. The first success wins.
func (g *Gateway) callWithFallback(ctx context.Context, userPrompt string) (string, error) {
	var lastErr error

	for keyIdx, apiKey := range g.config.APIKeys {
		keyLabel := fmt.Sprintf("key-%d", keyIdx+1)

		for _, model := range g.config.Models {
			text, err := g.callCombo(ctx, apiKey, keyLabel, model, userPrompt)
			if err == nil {
				return text, nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
				errors.Is(err, suite.ErrQuotaExceeded) {
				return "", err
			}
			lastErr = err
		}
	}

	return "", fmt.Errorf("%w: all %d key(s) x %d model(s) exhausted: %v",
		suite.ErrGenerationFailed, len(g.config.APIKeys), len(g.config.Models), lastErr)
}

// callCombo retries one key/model combination until success, a permanent
// classification, or attempt exhaustion.
func (g *Gateway) callCombo(ctx context.Context, apiKey, keyLabel, model, userPrompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < g.config.MaxAttempts; attempt++ {
		if err := g.limiter.Acquire(ctx); err != nil {
			if errors.Is(err, reliability.ErrDailyQuotaExceeded) {
				return "", fmt.Errorf("%w: %v", suite.ErrQuotaExceeded, err)
			}
			return "", err
		}

		slog.InfoContext(ctx, "calling gemini",
			"model", model,
			"key", keyLabel,
			"attempt", attempt+1,
			"max_attempts", g.config.MaxAttempts,
		)

		text, err := g.backend.call(ctx, apiKey, model, userPrompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}

		slog.WarnContext(ctx, "gemini call failed",
			"model", model,
			"key", keyLabel,
			"attempt", attempt+1,
			"error", extract.Preview(err.Error(), 200),
		)

		switch {
		case reliability.IsRateLimited(err) && reliability.IsQuotaSignal(err):
			// Credential is spent; advance to the next combination immediately.
			slog.WarnContext(ctx, "quota exceeded, advancing to next combination",
				"model", model,
				"key", keyLabel,
			)
			return "", lastErr
		case reliability.IsRateLimited(err):
			wait := reliability.RateLimitBackoff(attempt, g.config.BackoffUnit)
			slog.WarnContext(ctx, "rate limited, backing off", "wait", wait)
			if err := reliability.Sleep(ctx, wait); err != nil {
				return "", err
			}
		case reliability.IsModelNotFound(err):
			slog.WarnContext(ctx, "model not available, skipping", "model", model)
			return "", lastErr
		case attempt < g.config.MaxAttempts-1:
			wait := reliability.TransientBackoff(attempt, g.config.BackoffUnit)
			slog.WarnContext(ctx, "retrying after backoff", "wait", wait)
			if err := reliability.Sleep(ctx, wait); err != nil {
				return "", err
			}
		}
	}

	return "", lastErr
}

func maskKeys(keys []string) []string {
	masked := make([]string, len(keys))
	for i, k := range keys {
		if len(k) > 8 {
			masked[i] = k[:4] + "***" + k[len(k)-4:]
		} else {
			masked[i] = "***"
		}
	}
	return masked
}

// sdkCaller is the production caller backed by the genai SDK. Clients are
// created lazily per API key and cached so rotation does not rebuild them.
type sdkCaller struct {
	temperature     float32
	topP            float32
	maxOutputTokens int32

	mu      sync.Mutex
	clients map[string]*genai.Client
}

func (c *sdkCaller) call(ctx context.Context, apiKey, model, userPrompt string) (string, error) {
	client, err := c.clientFor(ctx, apiKey)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.temperature),
		TopP:            genai.Ptr(c.topP),
		MaxOutputTokens: c.maxOutputTokens,
	}

	result, err := client.Models.GenerateContent(ctx, model, genai.Text(userPrompt), config)
	if err != nil {
		return "", err
	}

	text := result.Text()
	if text == "" {
		return "", errors.New("empty response from gemini")
	}
	return text, nil
}

func (c *sdkCaller) clientFor(ctx context.Context, apiKey string) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.clients == nil {
		c.clients = make(map[string]*genai.Client)
	}
	if client, ok := c.clients[apiKey]; ok {
		return client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	c.clients[apiKey] = client
	return client, nil
}
