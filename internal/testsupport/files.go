package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Words repeats an ASCII word until the text is worth tokens under the four
// characters per token estimate.
func Words(word string, tokens int) string {
	if word == "" {
		word = "copy"
	}
	unit := word + " "
	var b strings.Builder
	for b.Len() < tokens*4 {
		b.WriteString(unit)
	}
	return b.String()[:tokens*4]
}
