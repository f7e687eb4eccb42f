package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.normalizeUpload()
	c.normalizeExtraction()
	c.normalizeLLM()
	c.normalizePricing()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("CARTOGRAPHER_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeCache() error {
	if strings.TrimSpace(c.Cache.Dir) == "" {
		c.Cache.Dir = defaultCacheDir()
	}
	var err error
	if c.Cache.Dir, err = expandPath(c.Cache.Dir); err != nil {
		return fmt.Errorf("cache.dir: %w", err)
	}
	if c.Cache.TTLHours == 0 {
		c.Cache.TTLHours = defaultCacheTTLHours
	}
	if c.Cache.SweepIntervalMinutes == 0 {
		c.Cache.SweepIntervalMinutes = defaultSweepIntervalMinutes
	}
	return nil
}

func (c *Config) normalizeUpload() {
	if c.Upload.MaxFileMiB == 0 {
		c.Upload.MaxFileMiB = defaultUploadMaxFileMiB
	}
	if c.Upload.MaxBatchFiles == 0 {
		c.Upload.MaxBatchFiles = defaultUploadMaxBatchFiles
	}
	if c.Upload.PreviewChars == 0 {
		c.Upload.PreviewChars = defaultUploadPreviewChars
	}
}

func (c *Config) normalizeExtraction() {
	if c.Extraction.CallTimeoutSeconds == 0 {
		c.Extraction.CallTimeoutSeconds = defaultCallTimeoutSeconds
	}
	if c.Extraction.EventBuffer == 0 {
		c.Extraction.EventBuffer = defaultEventBuffer
	}
	if c.Extraction.MaxInputTokens == 0 {
		c.Extraction.MaxInputTokens = defaultMaxInputTokens
	}
}

func (c *Config) normalizeLLM() {
	// Environment variables take precedence over the config file.
	for _, name := range []string{llmAPIKeyEnv, llmAPIKeyFallbackEnv} {
		if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
			c.LLM.APIKey = value
			break
		}
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

// normalizePricing merges user rates over the built-in table so partial
// overrides keep the stock models priced.
func (c *Config) normalizePricing() {
	merged := defaultPricing()
	for model, price := range c.Pricing {
		model = strings.TrimSpace(model)
		if model == "" {
			continue
		}
		merged[model] = price
	}
	c.Pricing = merged
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
