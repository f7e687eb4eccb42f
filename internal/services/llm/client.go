package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cartographer/internal/services"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1/chat/completions"
	defaultTimeout   = 300 * time.Second
	defaultMaxTokens = 16000
	maxReplyBytes    = 8 << 20
	component        = "llm"
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client talks to an OpenAI-compatible chat completion endpoint. Each call
// is a single attempt.
type Client struct {
	cfg  Config
	http *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg = Config{
		APIKey:         strings.TrimSpace(cfg.APIKey),
		BaseURL:        strings.TrimSpace(cfg.BaseURL),
		Model:          strings.TrimSpace(cfg.Model),
		Referer:        strings.TrimSpace(cfg.Referer),
		Title:          strings.TrimSpace(cfg.Title),
		TimeoutSeconds: cfg.TimeoutSeconds,
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{cfg: cfg, http: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Usage reports the token accounting of one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Extraction is the pair of artifacts produced for one category.
type Extraction struct {
	ClientRules string
	Guidelines  string
	Usage       Usage
	Raw         string
}

// StatusError is a non-2xx reply from the provider.
type StatusError struct {
	Code       int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned http %d: %s", e.Code, snippet(e.Body))
}

type emptyReplyError struct {
	FinishReason string
	Refusal      string
	Body         string
}

func (e *emptyReplyError) Error() string {
	return fmt.Sprintf("empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.FinishReason, e.Refusal, snippet(e.Body))
}

// Extract sends an assembled extraction prompt and splits the reply into the
// client rules and guidelines artifacts. Errors carry a services marker:
// rate limits, timeouts and everything else as processing failures.
func (c *Client) Extract(ctx context.Context, prompt string) (Extraction, error) {
	const op = "extract"
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Extraction{}, services.Wrap(services.ErrValidation, component, op, "prompt required", nil)
	}
	if c.cfg.APIKey == "" {
		return Extraction{}, services.Wrap(services.ErrValidation, component, op, "api key required", nil)
	}
	content, usage, err := c.complete(ctx, completionRequest{
		Model:     c.cfg.Model,
		Messages:  []message{{Role: "user", Content: prompt}},
		MaxTokens: defaultMaxTokens,
	})
	if err != nil {
		return Extraction{}, classify(op, err)
	}
	rules, guidelines := ParseArtifacts(content)
	if rules == "" && guidelines == "" {
		return Extraction{}, services.Wrap(services.ErrProcessing, component, op,
			"response has neither CLIENT_RULES nor GUIDELINES section (response_snippet="+snippet(content)+")", nil)
	}
	return Extraction{ClientRules: rules, Guidelines: guidelines, Usage: usage, Raw: content}, nil
}

// HealthCheck issues a tiny JSON-only request to verify the key and model.
func (c *Client) HealthCheck(ctx context.Context) error {
	const op = "health"
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrValidation, component, op, "api key required", nil)
	}
	zero := 0.0
	content, _, err := c.complete(ctx, completionRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "system", Content: "You must respond with JSON only."},
			{Role: "user", Content: `Respond with {"ok":true}`},
		},
		Temperature:    &zero,
		MaxTokens:      16,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return classify(op, err)
	}
	var reply struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON(content, &reply); err != nil {
		return services.Wrap(services.ErrProcessing, component, op, "unparseable reply", err)
	}
	if !reply.OK {
		return services.Wrap(services.ErrProcessing, component, op, "unexpected reply "+snippet(content), nil)
	}
	return nil
}

type completionRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		// Completion-style providers reply with text instead of a message.
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	// OpenAI names the counts prompt/completion, Anthropic input/output.
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		InputTokens      int `json:"input_tokens"`
		OutputTokens     int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (r completionResponse) usage() Usage {
	if r.Usage == nil {
		return Usage{}
	}
	return Usage{
		InputTokens:  max(r.Usage.PromptTokens, r.Usage.InputTokens),
		OutputTokens: max(r.Usage.CompletionTokens, r.Usage.OutputTokens),
	}
}

// content returns the first non-empty choice text.
func (r completionResponse) content() (text, finishReason, refusal string) {
	for _, choice := range r.Choices {
		if finishReason == "" {
			finishReason = choice.FinishReason
		}
		if refusal == "" {
			refusal = strings.TrimSpace(choice.Message.Refusal)
		}
		for _, candidate := range []string{choice.Message.Content, choice.Text} {
			if candidate = strings.TrimSpace(candidate); candidate != "" {
				return candidate, choice.FinishReason, refusal
			}
		}
	}
	return "", finishReason, refusal
}

func (c *Client) complete(ctx context.Context, payload completionRequest) (string, Usage, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", Usage{}, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", Usage{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("send request (timeout=%s): %w", c.http.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", Usage{}, fmt.Errorf("read reply: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", Usage{}, &StatusError{
			Code:       resp.StatusCode,
			Body:       string(body),
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var completion completionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", Usage{}, fmt.Errorf("decode reply: %w", err)
	}
	if completion.Error != nil {
		return "", Usage{}, fmt.Errorf("provider error: %s", strings.TrimSpace(completion.Error.Message))
	}
	text, finish, refusal := completion.content()
	if text == "" {
		return "", Usage{}, &emptyReplyError{FinishReason: finish, Refusal: refusal, Body: string(body)}
	}
	return text, completion.usage(), nil
}

// classify tags a transport or decode failure with its services marker.
func classify(op string, err error) error {
	var status *StatusError
	isStatus := errors.As(err, &status)
	switch {
	case isStatus && status.Code == http.StatusTooManyRequests:
		message := "rate limited by provider"
		if status.RetryAfter > 0 {
			message += fmt.Sprintf(" (retry after %s)", status.RetryAfter)
		}
		return services.Wrap(services.ErrRateLimit, component, op, message, err)
	case isStatus && status.Code == http.StatusRequestTimeout:
		return services.Wrap(services.ErrTimeout, component, op, "provider timed out", err)
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, component, op, "deadline exceeded", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, component, op, "request timed out", err)
	}
	return services.Wrap(services.ErrProcessing, component, op, "completion failed", err)
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		return max(time.Until(when).Round(time.Second), 0)
	}
	return 0
}
