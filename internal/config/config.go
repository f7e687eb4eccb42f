package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Cache contains configuration for the parsed-artifact cache.
type Cache struct {
	Dir                  string  `toml:"dir"`
	TTLHours             float64 `toml:"ttl_hours"`
	SweepIntervalMinutes int     `toml:"sweep_interval_minutes"`
}

// Upload contains limits applied to documents before they are parsed.
type Upload struct {
	MaxFileMiB    int `toml:"max_file_mib"`
	MaxBatchFiles int `toml:"max_batch_files"`
	PreviewChars  int `toml:"preview_chars"`
}

// Extraction contains configuration for extraction job execution.
type Extraction struct {
	// CallTimeoutSeconds bounds every external extraction call.
	CallTimeoutSeconds int `toml:"call_timeout_seconds"`
	// EventBuffer is the capacity of the per-job progress queue.
	EventBuffer int `toml:"event_buffer"`
	// MaxInputTokens only produces a warning when exceeded.
	MaxInputTokens int `toml:"max_input_tokens"`
	// Debug writes prompts to the state directory instead of calling the LLM.
	Debug bool `toml:"debug"`
}

// LLM contains connection settings for the semantic-extraction model.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Price is a per-million-token USD rate for one model.
type Price struct {
	Input  float64 `toml:"input"`
	Output float64 `toml:"output"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Cartographer.
//
// Configuration sections by subsystem:
//   - Paths: state, logs, and API bind address
//   - Cache: artifact cache location, TTL, and sweep cadence
//   - Upload: document size and batch limits
//   - Extraction: per-call timeout, progress buffering, debug mode
//   - LLM: extraction model connection settings
//   - Pricing: per-model token rates used for cost estimates
//   - Logging: log format and level
type Config struct {
	Paths      Paths            `toml:"paths"`
	Cache      Cache            `toml:"cache"`
	Upload     Upload           `toml:"upload"`
	Extraction Extraction       `toml:"extraction"`
	LLM        LLM              `toml:"llm"`
	Pricing    map[string]Price `toml:"pricing"`
	Logging    Logging          `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("cartographer.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Cache.Dir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CacheTTL returns how long a parsed artifact stays retrievable.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours * float64(time.Hour))
}

// SweepInterval returns the cadence of the background cache sweep.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Cache.SweepIntervalMinutes) * time.Minute
}

// CallTimeout returns the deadline applied to each extraction call.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Extraction.CallTimeoutSeconds) * time.Second
}

// MaxUploadBytes returns the per-file upload ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Upload.MaxFileMiB) << 20
}

// JobsDBPath returns the location of the job history database.
func (c *Config) JobsDBPath() string {
	return filepath.Join(c.Paths.StateDir, "jobs.db")
}

// DebugDir returns where prompts are written when extraction debug mode is on.
func (c *Config) DebugDir() string {
	return filepath.Join(c.Paths.StateDir, "debug")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "cartographer.lock")
}

// PIDPath returns where the running daemon records its process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "cartographer.pid")
}

// PriceFor returns the rate for model, falling back to the configured model
// and then to the built-in default model.
func (c *Config) PriceFor(model string) (Price, string) {
	model = strings.TrimSpace(model)
	if price, ok := c.Pricing[model]; ok && model != "" {
		return price, model
	}
	if price, ok := c.Pricing[c.LLM.Model]; ok {
		return price, c.LLM.Model
	}
	return c.Pricing[defaultLLMModel], defaultLLMModel
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "cartographer", "artifacts")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/cartographer/artifacts"
	}
	return filepath.Join(home, ".cache", "cartographer", "artifacts")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
