package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"cartographer/internal/artifactcache"
	"cartographer/internal/config"
	"cartographer/internal/daemon"
	"cartographer/internal/estimate"
	"cartographer/internal/extraction"
	"cartographer/internal/jobs"
	"cartographer/internal/logging"
	"cartographer/internal/logs"
	"cartographer/internal/preflight"
	"cartographer/internal/services/llm"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the cartographer daemon and blocks until SIGINT/SIGTERM or
// cmdCtx ends. The HTTP API and the artifact sweeper run side by side; if
// either fails the other is stopped.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("cartographer-%s.log", runID))
	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update cartographer.log link: %v\n", err)
	}

	logConfigSnapshot(logger, cfg)
	for _, result := range preflight.RunAll(signalCtx, cfg) {
		if result.Passed {
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "uploads or extractions may fail"),
		)
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	cache, err := artifactcache.New(cfg.Cache.Dir, cfg.CacheTTL(), artifactcache.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open artifact cache: %w", err)
	}
	store, err := jobs.Open(cfg.JobsDBPath())
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}

	orchestrator, err := NewOrchestrator(cfg, cache, store, logger)
	if err != nil {
		_ = store.Close()
		return err
	}
	d, err := daemon.New(cfg, cache, store, orchestrator, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(signalCtx)
	g.Go(func() error {
		return artifactcache.NewSweeper(cache, cfg.SweepInterval(), logger).Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		d.Stop()
		return nil
	})
	err = g.Wait()
	logger.Info("cartographer daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// NewOrchestrator builds the extraction orchestrator for cfg: the debug
// extractor when extraction.debug is set, the model client otherwise.
func NewOrchestrator(cfg *config.Config, cache *artifactcache.Cache, recorder extraction.Recorder, logger *slog.Logger) (*extraction.Orchestrator, error) {
	price, model := cfg.PriceFor(cfg.LLM.Model)
	return extraction.New(extraction.Options{
		Cache:          cache,
		Extractor:      NewExtractor(cfg, logger),
		Recorder:       recorder,
		Logger:         logger,
		CallTimeout:    cfg.CallTimeout(),
		MaxInputTokens: cfg.Extraction.MaxInputTokens,
		Model:          model,
		Rate:           estimate.Rate{Input: price.Input, Output: price.Output},
	})
}

// NewExtractor returns the extraction collaborator selected by cfg.
func NewExtractor(cfg *config.Config, logger *slog.Logger) extraction.Extractor {
	if cfg.Extraction.Debug {
		return extraction.DebugExtractor{
			Dir:    cfg.DebugDir(),
			Model:  cfg.LLM.Model,
			Logger: logging.NewComponentLogger(logger, "debug-extractor"),
		}
	}
	client := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	return extraction.NewModelExtractor(client)
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := logs.CurrentPath(logDir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_set", strings.TrimSpace(cfg.Paths.APIToken) != ""),
		logging.String("cache_dir", cfg.Cache.Dir),
		logging.Duration("cache_ttl", cfg.CacheTTL()),
		logging.Duration("sweep_interval", cfg.SweepInterval()),
		logging.Duration("call_timeout", cfg.CallTimeout()),
		logging.String("model", cfg.LLM.Model),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
		logging.Bool("debug", cfg.Extraction.Debug),
	)
}
