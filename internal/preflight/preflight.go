package preflight

import (
	"context"

	"cartographer/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Option adjusts which checks RunAll performs.
type Option func(*options)

type options struct {
	probeModel bool
}

// WithModelProbe adds a live CheckLLM call. Skipped in debug mode.
func WithModelProbe() Option {
	return func(o *options) { o.probeModel = true }
}

// RunAll executes the checks for cfg: directory access and model settings,
// plus a live model probe when requested.
func RunAll(ctx context.Context, cfg *config.Config, opts ...Option) []Result {
	if cfg == nil {
		return nil
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	results := []Result{
		CheckDirectoryAccess("Artifact cache", cfg.Cache.Dir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if cfg.Paths.LogDir != "" && cfg.Paths.LogDir != cfg.Paths.StateDir {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	llmConfig := CheckLLMConfig(cfg)
	results = append(results, llmConfig)
	if o.probeModel && llmConfig.Passed && !cfg.Extraction.Debug {
		results = append(results, CheckLLM(ctx, cfg.LLM))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
