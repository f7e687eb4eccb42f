package textutil

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// charsPerToken approximates the tokenizer ratio for mixed European copy.
const charsPerToken = 4

// CountTokens approximates the model token count of text.
func CountTokens(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	return (runes + charsPerToken - 1) / charsPerToken
}

// FormatTokens renders a token count compactly: 950, 12.3k, 1.5M.
func FormatTokens(tokens int) string {
	switch {
	case tokens >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(tokens)/1_000_000)
	case tokens >= 1_000:
		return fmt.Sprintf("%.1fk", float64(tokens)/1_000)
	default:
		return fmt.Sprintf("%d", tokens)
	}
}

// FormatCost renders a USD amount with four decimals.
func FormatCost(cost float64) string {
	return fmt.Sprintf("$%.4f", cost)
}

// Preview returns at most limit runes of text, appending an ellipsis when
// the text was cut.
func Preview(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "..."
}
