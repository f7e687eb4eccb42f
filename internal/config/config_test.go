package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"cartographer/internal/config"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CARTOGRAPHER_LLM_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("CARTOGRAPHER_API_TOKEN", "")
	t.Setenv("XDG_CACHE_HOME", "")
}

func TestLoadDefaultConfigUsesEnvKeyAndExpandsPaths(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("CARTOGRAPHER_LLM_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "cartographer")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	wantCache := filepath.Join(tempHome, ".cache", "cartographer", "artifacts")
	if cfg.Cache.Dir != wantCache {
		t.Fatalf("unexpected cache dir: got %q want %q", cfg.Cache.Dir, wantCache)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7488" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.LLM.APIKey != "test-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.CacheTTL() != time.Hour {
		t.Fatalf("unexpected cache ttl: %s", cfg.CacheTTL())
	}
	if cfg.SweepInterval() != 30*time.Minute {
		t.Fatalf("unexpected sweep interval: %s", cfg.SweepInterval())
	}
	if cfg.MaxUploadBytes() != 10<<20 {
		t.Fatalf("unexpected upload limit: %d", cfg.MaxUploadBytes())
	}
	if cfg.Upload.MaxBatchFiles != 50 {
		t.Fatalf("unexpected batch limit: %d", cfg.Upload.MaxBatchFiles)
	}
	if cfg.JobsDBPath() != filepath.Join(wantState, "jobs.db") {
		t.Fatalf("unexpected jobs db path: %q", cfg.JobsDBPath())
	}
	if cfg.PIDPath() != filepath.Join(wantState, "cartographer.pid") || cfg.LockPath() != filepath.Join(wantState, "cartographer.lock") {
		t.Fatalf("unexpected runtime files: %q %q", cfg.PIDPath(), cfg.LockPath())
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearKeyEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "cartographer.toml")

	type payload struct {
		LLM struct {
			APIKey string `toml:"api_key"`
			Model  string `toml:"model"`
		} `toml:"llm"`
		Cache struct {
			Dir      string  `toml:"dir"`
			TTLHours float64 `toml:"ttl_hours"`
		} `toml:"cache"`
		Extraction struct {
			CallTimeoutSeconds int `toml:"call_timeout_seconds"`
		} `toml:"extraction"`
	}
	custom := payload{}
	custom.LLM.APIKey = "abc123"
	custom.LLM.Model = "claude-sonnet-4-5"
	custom.Cache.Dir = filepath.Join(tempDir, "artifacts")
	custom.Cache.TTLHours = 0.25
	custom.Extraction.CallTimeoutSeconds = 30
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.LLM.APIKey != "abc123" {
		t.Fatalf("expected LLM key from file, got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "claude-sonnet-4-5" {
		t.Fatalf("expected model override, got %q", cfg.LLM.Model)
	}
	if cfg.Cache.Dir != filepath.Join(tempDir, "artifacts") {
		t.Fatalf("unexpected cache dir %q", cfg.Cache.Dir)
	}
	if cfg.CacheTTL() != 15*time.Minute {
		t.Fatalf("expected ttl 15m, got %s", cfg.CacheTTL())
	}
	if cfg.CallTimeout() != 30*time.Second {
		t.Fatalf("expected call timeout 30s, got %s", cfg.CallTimeout())
	}
	if cfg.Cache.SweepIntervalMinutes != 30 {
		t.Fatalf("expected default sweep interval, got %d", cfg.Cache.SweepIntervalMinutes)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	clearKeyEnv(t)
	configPath := filepath.Join(t.TempDir(), "cartographer.toml")
	if err := os.WriteFile(configPath, []byte("[llm]\napi_key = \"k\"\nbogus = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown field to fail parsing")
	}
}

func TestEnvVarOverridesConfigFileForAPIKey(t *testing.T) {
	clearKeyEnv(t)
	configPath := filepath.Join(t.TempDir(), "cartographer.toml")
	if err := os.WriteFile(configPath, []byte("[llm]\napi_key = \"file-key\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CARTOGRAPHER_LLM_API_KEY", "env-key")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
}

func TestMissingAPIKeyAllowedInDebugMode(t *testing.T) {
	clearKeyEnv(t)
	cfg := config.Default()
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "llm.api_key") {
		t.Fatalf("expected api key error, got %v", err)
	}
	cfg.Extraction.Debug = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected debug config to validate, got %v", err)
	}
}

func TestPricingMergesOverrides(t *testing.T) {
	clearKeyEnv(t)
	configPath := filepath.Join(t.TempDir(), "cartographer.toml")
	body := "[llm]\napi_key = \"k\"\n\n[pricing.\"custom-model\"]\ninput = 1.5\noutput = 2.5\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	price, model := cfg.PriceFor("custom-model")
	if model != "custom-model" || price.Input != 1.5 || price.Output != 2.5 {
		t.Fatalf("unexpected custom price %+v for %q", price, model)
	}
	price, model = cfg.PriceFor("claude-sonnet-4-20250514")
	if model != "claude-sonnet-4-20250514" || price.Input != 3 || price.Output != 15 {
		t.Fatalf("built-in price lost: %+v for %q", price, model)
	}
	price, model = cfg.PriceFor("unknown")
	if model != "claude-opus-4-5-20251101" || price.Input != 5 || price.Output != 25 {
		t.Fatalf("expected fallback to default model, got %+v for %q", price, model)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.StateDir, "cartographer") {
		t.Fatalf("expected state dir to contain cartographer, got %q", cfg.Paths.StateDir)
	}
	if cfg.Cache.TTLHours != 1 {
		t.Fatalf("expected sample ttl 1h, got %v", cfg.Cache.TTLHours)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "key"
	cfg.Cache.TTLHours = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}

	cfg = config.Default()
	cfg.LLM.APIKey = "key"
	cfg.Extraction.EventBuffer = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for event buffer")
	}

	cfg = config.Default()
	cfg.LLM.APIKey = "key"
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for log format")
	}

	cfg = config.Default()
	cfg.LLM.APIKey = "key"
	cfg.Pricing["bad"] = config.Price{Input: -1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative price")
	}
}
