package language

import (
	"strings"
	"testing"
)

func TestFromFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"card_EN.txt", "en"},
		{"gift-cards-DE.docx", "de"},
		{"offer(FR).pdf", "fr"},
		{"content[NL].md", "nl"},
		{"promo_ES_v2.txt", "es"},
		{"de-DE_amazon__product.docx", "de-DE"},
		{"en-GB_steam__product.docx", "en-GB"},
		{"notes.txt", ""},
		{"report_XX.txt", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := FromFilename(tt.input); got != tt.expected {
				t.Errorf("FromFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"EN", "en"},
		{"en_gb", "en-GB"},
		{"DE-de", "de-DE"},
		{"EN-WW", "en"},
		{"UNKNOWN", Unknown},
		{"", Unknown},
		{"  ", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Canonical(tt.input); got != tt.expected {
				t.Errorf("Canonical(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIsSource(t *testing.T) {
	for _, tag := range []string{"EN", "en-GB", "EN-US", "EN-WW"} {
		if !IsSource(tag) {
			t.Errorf("IsSource(%q) = false, want true", tag)
		}
	}
	for _, tag := range []string{"de", "fr-FR", "und", "", "UNKNOWN"} {
		if IsSource(tag) {
			t.Errorf("IsSource(%q) = true, want false", tag)
		}
	}
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"card_EN.txt", "card"},
		{"gift-cards-DE.docx", "gift-cards"},
		{"de-DE_amazon__product.docx", "amazon_product"},
		{"en-MC-_jeton-cash__product.docx", "jeton-cash_product"},
		{"de-DE_steam-__product.docx", "steam_product"},
		{"en-UK_steam__product.docx", "steam_product"},
		{"guide.md", "guide"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := BaseName(tt.input); got != tt.expected {
				t.Errorf("BaseName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDetectFallsBackToContent(t *testing.T) {
	english := strings.Repeat("The quick brown fox jumps over the lazy dog while the farmer watches from the porch. ", 8)
	if got := Detect("notes.txt", english); got != "en" {
		t.Fatalf("Detect content = %q, want en", got)
	}
	if got := Detect("notes_DE.txt", english); got != "de" {
		t.Fatalf("filename marker should win, got %q", got)
	}
	if got := Detect("notes.txt", ""); got != Unknown {
		t.Fatalf("Detect empty = %q, want %q", got, Unknown)
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("de"); got != "German" {
		t.Fatalf("DisplayName(de) = %q", got)
	}
	if got := DisplayName("und"); got != "Unknown" {
		t.Fatalf("DisplayName(und) = %q", got)
	}
}

func TestPair(t *testing.T) {
	docs := []Document{
		{ID: "a", Name: "card_EN.txt", Language: "en"},
		{ID: "b", Name: "faq_EN.txt", Language: "en"},
		{ID: "c", Name: "card_DE.txt", Language: "de"},
		{ID: "d", Name: "card_FR.txt", Language: "fr"},
		{ID: "e", Name: "faq-EN.md", Language: "EN"},
		{ID: "f", Name: "faq_DE.txt", Language: "DE"},
	}
	got, pairs := Pair(docs)
	if pairs != 2 {
		t.Fatalf("pairs = %d, want 2", pairs)
	}
	want := map[string]string{"a": "1", "c": "1", "b": "2", "f": "2", "d": "", "e": ""}
	for _, assignment := range got {
		if assignment.PairID != want[assignment.ID] {
			t.Errorf("doc %s pair = %q, want %q", assignment.ID, assignment.PairID, want[assignment.ID])
		}
	}
	if got[4].Language != "en" {
		t.Fatalf("expected canonical language, got %q", got[4].Language)
	}
}

func TestSituation(t *testing.T) {
	paired, _ := Pair([]Document{
		{ID: "1", Name: "card_EN.txt", Language: "en-GB"},
		{ID: "2", Name: "card_DE.txt", Language: "de-DE"},
	})
	if got := Situation(paired); got != "en-GB → de-DE (paired)" {
		t.Fatalf("Situation = %q", got)
	}
	targetOnly, _ := Pair([]Document{{ID: "1", Name: "x.txt", Language: "de"}})
	if got := Situation(targetOnly); got != "de (target only)" {
		t.Fatalf("Situation = %q", got)
	}
	if got := Situation(nil); got != "unknown" {
		t.Fatalf("Situation(nil) = %q", got)
	}
}
