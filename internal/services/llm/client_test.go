package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cartographer/internal/services"
)

const sampleReply = "## CATEGORY: general\n\n### CLIENT_RULES\n\n```javascript\nmodule.exports = { forbidden: [\"Sie\"] };\n```\n\n### GUIDELINES\n\n# Voice\n\n## Tone\nInformal, du-form.\n"

func completionHandler(t *testing.T, content string, usage map[string]int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"finish_reason": "stop",
					"message":       map[string]any{"content": content},
				},
			},
		}
		if usage != nil {
			payload["usage"] = usage
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, `{"ok":true}`, nil))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, "```json\n{\"ok\":true}\n```", nil))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	err := client.HealthCheck(context.Background())
	if err == nil {
		t.Fatal("expected health check to fail")
	}
	if kind := services.Classify(err); kind != services.KindProcessing {
		t.Fatalf("expected processing kind, got %s", kind)
	}
}

func TestClientExtractParsesArtifactsAndUsage(t *testing.T) {
	var received completionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		completionHandler(t, sampleReply, map[string]int{"prompt_tokens": 2100, "completion_tokens": 480})(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	out, err := client.Extract(context.Background(), "extract the rules")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if received.Model != "demo-model" || len(received.Messages) != 1 || received.Messages[0].Role != "user" {
		t.Fatalf("unexpected request %+v", received)
	}
	if received.MaxTokens != defaultMaxTokens || received.ResponseFormat != nil {
		t.Fatalf("unexpected request options %+v", received)
	}
	if out.ClientRules != `module.exports = { forbidden: ["Sie"] };` {
		t.Fatalf("unexpected rules %q", out.ClientRules)
	}
	if !strings.HasPrefix(out.Guidelines, "# Voice") || !strings.Contains(out.Guidelines, "## Tone") {
		t.Fatalf("unexpected guidelines %q", out.Guidelines)
	}
	if out.Usage.InputTokens != 2100 || out.Usage.OutputTokens != 480 {
		t.Fatalf("unexpected usage %+v", out.Usage)
	}
}

func TestClientExtractAnthropicStyleUsage(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, sampleReply, map[string]int{"input_tokens": 900, "output_tokens": 100}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	out, err := client.Extract(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if out.Usage.InputTokens != 900 || out.Usage.OutputTokens != 100 {
		t.Fatalf("unexpected usage %+v", out.Usage)
	}
}

func TestClientExtractRateLimitIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	_, err := client.Extract(context.Background(), "prompt")
	if kind := services.Classify(err); kind != services.KindRateLimit {
		t.Fatalf("expected rate limit, got %s (%v)", kind, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
	if !strings.Contains(err.Error(), "retry after 1s") {
		t.Fatalf("expected retry hint in %v", err)
	}
}

func TestClientExtractTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Extract(ctx, "prompt")
	if kind := services.Classify(err); kind != services.KindTimeout {
		t.Fatalf("expected timeout, got %s (%v)", kind, err)
	}
}

func TestClientExtractWithoutSectionsIsProcessingError(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, "I cannot help with that.", nil))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	_, err := client.Extract(context.Background(), "prompt")
	if kind := services.Classify(err); kind != services.KindProcessing {
		t.Fatalf("expected processing, got %s (%v)", kind, err)
	}
	if !strings.Contains(err.Error(), "response_snippet=I cannot help") {
		t.Fatalf("expected snippet in error, got %v", err)
	}
}

func TestClientExtractEmptyContentHasSnippet(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, "", nil))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	_, err := client.Extract(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected extract to fail")
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), "response_snippet=") {
		t.Fatalf("expected empty-content error to include snippet, got %v", err)
	}
}

func TestClientExtractRequiresKey(t *testing.T) {
	client := NewClient(Config{Model: "demo"})
	_, err := client.Extract(context.Background(), "prompt")
	if kind := services.Classify(err); kind != services.KindValidation {
		t.Fatalf("expected validation, got %s", kind)
	}
}

func TestClientHealthCheckSendsJSONRequest(t *testing.T) {
	var received completionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Title"); got != "Cartographer" {
			t.Errorf("unexpected title header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		completionHandler(t, `{"ok":true}`, nil)(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo", Title: " Cartographer "})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if received.ResponseFormat == nil || received.ResponseFormat.Type != "json_object" {
		t.Fatalf("expected json response format, got %+v", received.ResponseFormat)
	}
	if received.Temperature == nil || *received.Temperature != 0 {
		t.Fatalf("expected zero temperature, got %v", received.Temperature)
	}
}

func TestRetryAfter(t *testing.T) {
	if got := retryAfter("30"); got != 30*time.Second {
		t.Fatalf("retryAfter seconds = %s", got)
	}
	if got := retryAfter("soon"); got != 0 {
		t.Fatalf("retryAfter garbage = %s", got)
	}
	if got := retryAfter(time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)); got != 0 {
		t.Fatalf("retryAfter past date = %s", got)
	}
}
