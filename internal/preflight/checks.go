package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"cartographer/internal/config"
	"cartographer/internal/services/llm"
)

const llmProbeTimeout = 30 * time.Second

// CheckLLM sends one health prompt to the configured model. It makes a
// single attempt so an unreachable endpoint fails fast.
func CheckLLM(ctx context.Context, cfg config.LLM) Result {
	const name = "Extraction model"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, llmProbeTimeout)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	})

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", cfg.Model)}
}

// CheckLLMConfig validates the model settings without contacting the API.
func CheckLLMConfig(cfg *config.Config) Result {
	const name = "Extraction model config"
	if cfg.Extraction.Debug {
		return Result{Name: name, Passed: true, Detail: "debug mode (model calls disabled)"}
	}
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing (set llm.api_key or CARTOGRAPHER_LLM_API_KEY)"}
	}
	if base := strings.TrimSpace(cfg.LLM.BaseURL); base != "" {
		parsed, err := url.Parse(base)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return Result{Name: name, Detail: fmt.Sprintf("invalid base url %q", base)}
		}
	}
	if _, model := cfg.PriceFor(cfg.LLM.Model); model != cfg.LLM.Model {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (no pricing entry, estimates use %s)", cfg.LLM.Model, model)}
	}
	return Result{Name: name, Passed: true, Detail: cfg.LLM.Model}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
