package extraction

import (
	"context"

	"cartographer/internal/services/llm"
	"cartographer/internal/textutil"
)

// Request is everything the semantic-extraction collaborator receives for one
// category.
type Request struct {
	JobID          string
	ClientName     string
	Category       string
	Prompt         string
	PromptTokens   int
	Documents      int
	DocumentTokens int
	Situation      string
}

// Result is the successful output of one extraction call.
type Result struct {
	Primary      string
	Secondary    string
	InputTokens  int
	OutputTokens int
}

// Extractor performs one extraction call. Implementations tag failures with
// services markers; anything untagged fails the whole job.
type Extractor interface {
	Extract(ctx context.Context, req Request) (Result, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, req Request) (Result, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// ModelClient is the subset of the llm client the model extractor needs.
type ModelClient interface {
	Extract(ctx context.Context, prompt string) (llm.Extraction, error)
}

// NewModelExtractor returns an Extractor backed by an LLM client. The client
// rules script is the primary artifact and the guidelines document the
// secondary one. Providers that omit usage get the local token estimate.
func NewModelExtractor(client ModelClient) Extractor {
	return ExtractorFunc(func(ctx context.Context, req Request) (Result, error) {
		out, err := client.Extract(ctx, req.Prompt)
		if err != nil {
			return Result{}, err
		}
		result := Result{
			Primary:      out.ClientRules,
			Secondary:    out.Guidelines,
			InputTokens:  out.Usage.InputTokens,
			OutputTokens: out.Usage.OutputTokens,
		}
		if result.InputTokens == 0 {
			result.InputTokens = req.PromptTokens
		}
		if result.OutputTokens == 0 {
			result.OutputTokens = textutil.CountTokens(out.ClientRules) + textutil.CountTokens(out.Guidelines)
		}
		return result, nil
	})
}
