package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validatePricing(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateCache() error {
	if c.Cache.TTLHours <= 0 {
		return errors.New("cache.ttl_hours must be positive")
	}
	if c.Cache.SweepIntervalMinutes <= 0 {
		return errors.New("cache.sweep_interval_minutes must be positive")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.MaxFileMiB <= 0 {
		return errors.New("upload.max_file_mib must be positive")
	}
	if c.Upload.MaxBatchFiles <= 0 {
		return errors.New("upload.max_batch_files must be positive")
	}
	if c.Upload.PreviewChars < 0 {
		return errors.New("upload.preview_chars must be positive")
	}
	return nil
}

func (c *Config) validateExtraction() error {
	if c.Extraction.CallTimeoutSeconds <= 0 {
		return errors.New("extraction.call_timeout_seconds must be positive")
	}
	if c.Extraction.EventBuffer <= 0 {
		return errors.New("extraction.event_buffer must be positive")
	}
	if c.Extraction.MaxInputTokens <= 0 {
		return errors.New("extraction.max_input_tokens must be positive")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.Extraction.Debug {
		return nil
	}
	if c.LLM.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("llm.api_key is required. Set %s env var, enable extraction.debug, or edit %s (create with 'cartographer config init')", llmAPIKeyEnv, defaultPath)
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validatePricing() error {
	for model, price := range c.Pricing {
		if price.Input < 0 || price.Output < 0 {
			return fmt.Errorf("pricing.%q: rates must not be negative", model)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
