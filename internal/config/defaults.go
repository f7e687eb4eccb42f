package config

const (
	defaultConfigPath           = "~/.config/cartographer/config.toml"
	defaultStateDir             = "~/.local/share/cartographer"
	defaultLogDir               = "~/.local/share/cartographer/logs"
	defaultAPIBind              = "127.0.0.1:7488"
	defaultCacheTTLHours        = 1.0
	defaultSweepIntervalMinutes = 30
	defaultUploadMaxFileMiB     = 10
	defaultUploadMaxBatchFiles  = 50
	defaultUploadPreviewChars   = 500
	defaultCallTimeoutSeconds   = 300
	defaultEventBuffer          = 64
	defaultMaxInputTokens       = 150000
	defaultLLMBaseURL           = "https://api.anthropic.com/v1/chat/completions"
	defaultLLMModel             = "claude-opus-4-5-20251101"
	defaultLLMReferer           = "https://github.com/cartographer"
	defaultLLMTitle             = "Cartographer"
	defaultLLMTimeoutSeconds    = 300
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	llmAPIKeyEnv                = "CARTOGRAPHER_LLM_API_KEY"
	llmAPIKeyFallbackEnv        = "ANTHROPIC_API_KEY"
)

func defaultPricing() map[string]Price {
	return map[string]Price{
		"claude-opus-4-5-20251101": {Input: 5.0, Output: 25.0},
		"claude-sonnet-4-5":        {Input: 3.0, Output: 15.0},
		"claude-sonnet-4-20250514": {Input: 3.0, Output: 15.0},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Cache: Cache{
			Dir:                  defaultCacheDir(),
			TTLHours:             defaultCacheTTLHours,
			SweepIntervalMinutes: defaultSweepIntervalMinutes,
		},
		Upload: Upload{
			MaxFileMiB:    defaultUploadMaxFileMiB,
			MaxBatchFiles: defaultUploadMaxBatchFiles,
			PreviewChars:  defaultUploadPreviewChars,
		},
		Extraction: Extraction{
			CallTimeoutSeconds: defaultCallTimeoutSeconds,
			EventBuffer:        defaultEventBuffer,
			MaxInputTokens:     defaultMaxInputTokens,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Pricing: defaultPricing(),
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
