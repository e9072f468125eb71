package config

import (
	"testing"
	"time"
)

func setBase(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/caseforge")
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setBase(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Provider != ProviderAuto {
		t.Errorf("Provider = %s, want auto", cfg.Provider)
	}
	if cfg.Gemini.RPMLimit != 3 {
		t.Errorf("Gemini.RPMLimit = %d, want 3", cfg.Gemini.RPMLimit)
	}
	if cfg.Gemini.Temperature != 0.3 || cfg.Gemini.TopP != 0.8 {
		t.Errorf("Gemini sampling = %v/%v", cfg.Gemini.Temperature, cfg.Gemini.TopP)
	}
	if cfg.GitHubModels.RPDLimit != 150 {
		t.Errorf("GitHubModels.RPDLimit = %d, want 150", cfg.GitHubModels.RPDLimit)
	}
	if !cfg.EnableGapFill || cfg.StrictMode {
		t.Error("gap-fill defaults on, strict mode defaults off")
	}
	if cfg.GenerationTimeout != 5*time.Minute {
		t.Errorf("GenerationTimeout = %v", cfg.GenerationTimeout)
	}
	if cfg.MinCases != 3 || cfg.QueueMaxWorkers != 5 {
		t.Errorf("MinCases=%d QueueMaxWorkers=%d", cfg.MinCases, cfg.QueueMaxWorkers)
	}
}

func TestLoad_GeminiKeysMerged(t *testing.T) {
	setBase(t)
	t.Setenv("GEMINI_API_KEY", "primary")
	t.Setenv("GEMINI_API_KEYS", "second, third,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := []string{"primary", "second", "third"}
	if len(cfg.Gemini.APIKeys) != len(want) {
		t.Fatalf("keys = %v, want %v", cfg.Gemini.APIKeys, want)
	}
	for i, k := range want {
		if cfg.Gemini.APIKeys[i] != k {
			t.Errorf("keys[%d] = %q, want %q", i, cfg.Gemini.APIKeys[i], k)
		}
	}
}

func TestLoad_RejectsUnknownProvider(t *testing.T) {
	setBase(t)
	t.Setenv("LLM_PROVIDER", "claude")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    Provider
		wantErr bool
	}{
		{
			name: "auto prefers gemini when keys exist",
			cfg: Config{
				Provider:     ProviderAuto,
				Gemini:       GeminiConfig{APIKeys: []string{"k"}},
				GitHubModels: GitHubModelsConfig{Token: "t"},
			},
			want: ProviderGemini,
		},
		{
			name: "auto falls back to github models",
			cfg: Config{
				Provider:     ProviderAuto,
				GitHubModels: GitHubModelsConfig{Token: "t"},
			},
			want: ProviderGitHubModels,
		},
		{
			name:    "auto with nothing configured fails",
			cfg:     Config{Provider: ProviderAuto},
			wantErr: true,
		},
		{
			name:    "explicit gemini without keys fails",
			cfg:     Config{Provider: ProviderGemini},
			wantErr: true,
		},
		{
			name: "mock mode overrides everything",
			cfg: Config{
				Provider: ProviderGemini,
				Gemini:   GeminiConfig{APIKeys: []string{"k"}},
				MockMode: true,
			},
			want: ProviderMock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.ResolveProvider()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveProvider: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveProvider = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGeminiModels(t *testing.T) {
	cfg := Config{Gemini: GeminiConfig{
		Model:          "gemini-2.5-flash",
		FallbackModels: []string{"gemini-2.0-flash", "gemini-2.5-flash"},
	}}

	got := cfg.GeminiModels()
	if len(got) != 2 {
		t.Fatalf("models = %v, want primary + 1 distinct fallback", got)
	}
	if got[0] != "gemini-2.5-flash" || got[1] != "gemini-2.0-flash" {
		t.Errorf("models = %v", got)
	}
}
