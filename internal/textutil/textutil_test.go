package textutil

import "testing"

func TestCountTokens(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"", 0},
		{"   ", 0},
		{"abcd", 1},
		{"abcde", 2},
		{"ÄÖÜß", 1},
	}
	for _, tt := range tests {
		if got := CountTokens(tt.input); got != tt.expected {
			t.Errorf("CountTokens(%q) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}

func TestFormatTokens(t *testing.T) {
	tests := map[int]string{
		0:         "0",
		950:       "950",
		12_345:    "12.3k",
		1_500_000: "1.5M",
	}
	for input, want := range tests {
		if got := FormatTokens(input); got != want {
			t.Errorf("FormatTokens(%d) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatCost(t *testing.T) {
	if got := FormatCost(0.5); got != "$0.5000" {
		t.Fatalf("FormatCost = %q", got)
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("hello", 10); got != "hello" {
		t.Fatalf("Preview short = %q", got)
	}
	if got := Preview("héllo world", 5); got != "héllo..." {
		t.Fatalf("Preview cut = %q", got)
	}
	if got := Preview("x", 0); got != "" {
		t.Fatalf("Preview zero = %q", got)
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := SanitizeFileName(` a/b:c*d?"<>| `); got != "a-b-c-d" {
		t.Fatalf("SanitizeFileName = %q", got)
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := map[string]string{
		"Gift Cards":  "gift_cards",
		"Überweisung": "überweisung",
		"  ":          "unknown",
		"!!":          "unknown",
		"game-card_2": "game-card_2",
	}
	for input, want := range tests {
		if got := SanitizeToken(input); got != want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", input, got, want)
		}
	}
}
