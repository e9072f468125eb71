// Package config loads the environment-driven configuration surface.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider selects the generation backend.
type Provider string

const (
	ProviderAuto         Provider = "auto"
	ProviderGemini       Provider = "gemini"
	ProviderGitHubModels Provider = "github_models"
	ProviderMock         Provider = "mock"
)

type GeminiConfig struct {
	APIKeys         []string
	Model           string
	FallbackModels  []string
	RPMLimit        int
	RPDLimit        int
	Temperature     float64
	TopP            float64
	MaxOutputTokens int
}

type GitHubModelsConfig struct {
	Token            string
	Org              string
	Model            string
	APIBase          string
	APIVersion       string
	RPMLimit         int
	RPDLimit         int
	MaxRetries       int
	StructuredOutput bool
}

type Config struct {
	Provider Provider

	Gemini       GeminiConfig
	GitHubModels GitHubModelsConfig

	MaxInputTokens    int
	EnableGapFill     bool
	StrictMode        bool
	MinCases          int
	GenerationTimeout time.Duration

	DatabaseURL     string
	MockMode        bool
	QueueMaxWorkers int
}

// Load reads configuration from the environment. DATABASE_URL is the only
// hard requirement; backend credential checks happen at provider selection.
func Load() (*Config, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	cfg := &Config{
		Provider: Provider(envOr("LLM_PROVIDER", string(ProviderAuto))),
		Gemini: GeminiConfig{
			APIKeys:         geminiKeys(),
			Model:           envOr("GEMINI_MODEL", "gemini-2.5-flash"),
			FallbackModels:  splitList(os.Getenv("GEMINI_FALLBACK_MODELS")),
			RPMLimit:        envInt("GEMINI_RPM_LIMIT", 3),
			RPDLimit:        envInt("GEMINI_RPD_LIMIT", 200),
			Temperature:     envFloat("GEMINI_TEMPERATURE", 0.3),
			TopP:            envFloat("GEMINI_TOP_P", 0.8),
			MaxOutputTokens: envInt("GEMINI_MAX_OUTPUT_TOKENS", 8192),
		},
		GitHubModels: GitHubModelsConfig{
			Token:            os.Getenv("GITHUB_MODELS_TOKEN"),
			Org:              os.Getenv("GITHUB_MODELS_ORG"),
			Model:            envOr("GITHUB_MODELS_MODEL", "openai/gpt-4o"),
			APIBase:          envOr("GITHUB_MODELS_API_BASE", "https://models.github.ai"),
			APIVersion:       envOr("GITHUB_MODELS_API_VERSION", "2022-11-28"),
			RPMLimit:         envInt("GITHUB_MODELS_RPM_LIMIT", 2),
			RPDLimit:         envInt("GITHUB_MODELS_RPD_LIMIT", 150),
			MaxRetries:       envInt("GITHUB_MODELS_MAX_RETRIES", 2),
			StructuredOutput: envBool("GITHUB_MODELS_STRUCTURED_OUTPUT", false),
		},
		MaxInputTokens:    envInt("MAX_INPUT_TOKENS", 32768),
		EnableGapFill:     envBool("ENABLE_GAP_FILL", true),
		StrictMode:        envBool("STRICT_MODE", false),
		MinCases:          envInt("MIN_CASES", 3),
		GenerationTimeout: envDuration("GENERATION_TIMEOUT", 5*time.Minute),
		DatabaseURL:       databaseURL,
		MockMode:          envBool("MOCK_MODE", false),
		QueueMaxWorkers:   envInt("QUEUE_MAX_WORKERS", 5),
	}

	switch cfg.Provider {
	case ProviderAuto, ProviderGemini, ProviderGitHubModels, ProviderMock:
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER: %q", cfg.Provider)
	}

	return cfg, nil
}

// ResolveProvider applies auto-selection: Gemini when keys exist, else
// GitHub Models, else mock. MOCK_MODE overrides everything.
func (c *Config) ResolveProvider() (Provider, error) {
	if c.MockMode {
		return ProviderMock, nil
	}

	switch c.Provider {
	case ProviderGemini:
		if len(c.Gemini.APIKeys) == 0 {
			return "", errors.New("LLM_PROVIDER=gemini but no GEMINI_API_KEY is set")
		}
		return ProviderGemini, nil
	case ProviderGitHubModels:
		if c.GitHubModels.Token == "" {
			return "", errors.New("LLM_PROVIDER=github_models but GITHUB_MODELS_TOKEN is not set")
		}
		return ProviderGitHubModels, nil
	case ProviderMock:
		return ProviderMock, nil
	default:
		if len(c.Gemini.APIKeys) > 0 {
			return ProviderGemini, nil
		}
		if c.GitHubModels.Token != "" {
			return ProviderGitHubModels, nil
		}
		return "", errors.New("no generation backend configured: set GEMINI_API_KEY or GITHUB_MODELS_TOKEN")
	}
}

// GeminiModels returns the primary model followed by fallbacks, deduplicated.
func (c *Config) GeminiModels() []string {
	models := []string{c.Gemini.Model}
	for _, m := range c.Gemini.FallbackModels {
		if m != c.Gemini.Model {
			models = append(models, m)
		}
	}
	return models
}

// geminiKeys merges GEMINI_API_KEYS (comma list) and GEMINI_API_KEY.
func geminiKeys() []string {
	keys := splitList(os.Getenv("GEMINI_API_KEYS"))
	if single := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); single != "" {
		found := false
		for _, k := range keys {
			if k == single {
				found = true
				break
			}
		}
		if !found {
			keys = append([]string{single}, keys...)
		}
	}
	return keys
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
