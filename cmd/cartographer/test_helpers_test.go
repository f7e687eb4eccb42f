package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cartographer/internal/artifactcache"
	"cartographer/internal/config"
	"cartographer/internal/daemon"
	"cartographer/internal/extraction"
	"cartographer/internal/jobs"
	"cartographer/internal/logging"
	"cartographer/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	cache      *artifactcache.Cache
	store      *jobs.Store
	daemon     *daemon.Daemon
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("CARTOGRAPHER_LLM_API_KEY", "")
	t.Setenv("CARTOGRAPHER_API_TOKEN", "")
	cfg := testsupport.NewConfig(t, testsupport.WithDebug())

	cache, err := artifactcache.New(cfg.Cache.Dir, cfg.CacheTTL())
	if err != nil {
		t.Fatalf("artifactcache.New: %v", err)
	}
	store, err := jobs.Open(cfg.JobsDBPath())
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	orchestrator, err := extraction.New(extraction.Options{
		Cache: cache,
		Extractor: extraction.ExtractorFunc(func(_ context.Context, req extraction.Request) (extraction.Result, error) {
			return extraction.Result{Primary: "rules " + req.Category, Secondary: "# " + req.Category, InputTokens: 120, OutputTokens: 12}, nil
		}),
		Recorder: store,
		Model:    "test-model",
	})
	if err != nil {
		t.Fatalf("extraction.New: %v", err)
	}
	d, err := daemon.New(cfg, cache, store, orchestrator, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon Start: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	cfg.Paths.APIBind = d.Address()

	configPath := filepath.Join(homeDir, ".config", "cartographer", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		cache:      cache,
		store:      store,
		daemon:     d,
		configPath: configPath,
		baseDir:    base,
	}
}

func (e *cliTestEnv) storeArtifact(t *testing.T, name, content string) string {
	t.Helper()
	record, err := e.cache.Store(name, content, len(content)/4)
	if err != nil {
		t.Fatalf("cache.Store: %v", err)
	}
	return record.ID
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
state_dir = %q
log_dir = %q
api_bind = %q
api_token = %q

[cache]
dir = %q

[llm]
api_key = "test"

[extraction]
debug = %t
`,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		cfg.Paths.APIToken,
		cfg.Cache.Dir,
		cfg.Extraction.Debug,
	)
	testsupport.WriteFile(t, path, content)
}

func closedAddress(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()
	return addr
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

// requireRow fails unless one line of output holds every part, in order.
func requireRow(t *testing.T, output string, parts ...string) {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		rest, ok := line, true
		for _, part := range parts {
			idx := strings.Index(rest, part)
			if idx < 0 {
				ok = false
				break
			}
			rest = rest[idx+len(part):]
		}
		if ok {
			return
		}
	}
	t.Fatalf("no line of %q holds %q in order", output, parts)
}
