package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cartographer/internal/logging"
	"cartographer/internal/services"
	"cartographer/internal/textutil"
)

const (
	// DebugPrimary is the placeholder rules artifact returned in debug mode.
	DebugPrimary = "// Debug mode - no API call made"
	// DebugSecondary is the placeholder guidelines artifact returned in debug mode.
	DebugSecondary = "# Debug mode - no API call made"
)

// DebugExtractor writes each prompt and a metadata file under Dir instead of
// calling the model, then returns placeholder artifacts. Input tokens are the
// prompt's estimated size so cost reporting stays meaningful.
type DebugExtractor struct {
	Dir    string
	Model  string
	Logger *slog.Logger
	Now    func() time.Time
}

type debugMetadata struct {
	Timestamp      string `json:"timestamp"`
	JobID          string `json:"job_id"`
	ClientName     string `json:"client_name"`
	Category       string `json:"category"`
	DocumentCount  int    `json:"document_count"`
	Situation      string `json:"language_situation"`
	PromptTokens   int    `json:"prompt_tokens"`
	DocumentTokens int    `json:"document_tokens"`
	Model          string `json:"model,omitempty"`
}

// Extract implements Extractor.
func (d DebugExtractor) Extract(_ context.Context, req Request) (Result, error) {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	dir := filepath.Join(d.Dir, textutil.SanitizeToken(req.ClientName), textutil.SanitizeToken(req.Category))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrProcessing, component, "debug", "create debug directory", err)
	}
	stamp := now().Format("20060102_150405")
	tokens := req.PromptTokens
	if tokens == 0 {
		tokens = textutil.CountTokens(req.Prompt)
	}
	promptPath := filepath.Join(dir, fmt.Sprintf("prompt_%s_%.1fk.md", stamp, float64(tokens)/1000))
	if err := os.WriteFile(promptPath, []byte(req.Prompt), 0o644); err != nil {
		return Result{}, services.Wrap(services.ErrProcessing, component, "debug", "write prompt", err)
	}
	meta := debugMetadata{
		Timestamp:      stamp,
		JobID:          req.JobID,
		ClientName:     req.ClientName,
		Category:       req.Category,
		DocumentCount:  req.Documents,
		Situation:      req.Situation,
		PromptTokens:   tokens,
		DocumentTokens: req.DocumentTokens,
		Model:          d.Model,
	}
	encoded, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return Result{}, services.Wrap(services.ErrProcessing, component, "debug", "encode metadata", err)
	}
	metaPath := filepath.Join(dir, fmt.Sprintf("prompt_%s_meta.json", stamp))
	if err := os.WriteFile(metaPath, encoded, 0o644); err != nil {
		return Result{}, services.Wrap(services.ErrProcessing, component, "debug", "write metadata", err)
	}
	if d.Logger != nil {
		d.Logger.Info("debug prompt saved",
			logging.String(logging.FieldEventType, "debug_prompt_saved"),
			logging.String("path", promptPath),
			logging.Int("prompt_tokens", tokens),
		)
	}
	return Result{
		Primary:     DebugPrimary,
		Secondary:   DebugSecondary,
		InputTokens: tokens,
	}, nil
}
