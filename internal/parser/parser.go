package parser

import (
	"bytes"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"cartographer/internal/services"
	"cartographer/internal/textutil"
)

const component = "parser"

// DefaultMaxBytes is the upload ceiling used when none is configured.
const DefaultMaxBytes = 10 << 20

// SupportedExtensions lists the accepted file extensions, lower case.
var SupportedExtensions = []string{".docx", ".md", ".pdf", ".txt"}

// Result is the extracted text of one document.
type Result struct {
	Text       string
	TokenCount int
	Format     string
}

// Supported reports whether name has an accepted extension.
func Supported(name string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(name)))
}

// Parse extracts text from an uploaded document. Unsupported, empty and
// oversized files fail with services.ErrValidation; unreadable files and
// files without any text fail with services.ErrProcessing. maxBytes <= 0
// uses DefaultMaxBytes.
func Parse(name string, data []byte, maxBytes int64) (Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Result{}, services.Wrap(services.ErrValidation, component, "parse", "no filename provided", nil)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !Supported(name) {
		return Result{}, services.Wrap(services.ErrValidation, component, "parse",
			fmt.Sprintf("unsupported file type %q, allowed types: %s", ext, strings.Join(SupportedExtensions, ", ")), nil)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if int64(len(data)) > maxBytes {
		return Result{}, services.Wrap(services.ErrValidation, component, "parse",
			fmt.Sprintf("file too large (%.1fMB), maximum size: %dMB", float64(len(data))/(1<<20), maxBytes>>20), nil)
	}
	if len(data) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, component, "parse", "file is empty", nil)
	}

	var (
		text string
		err  error
	)
	switch ext {
	case ".txt", ".md":
		text, err = parseText(data)
	case ".docx":
		text, err = parseDocx(data)
	case ".pdf":
		text, err = parsePDF(data)
	}
	if err != nil {
		return Result{}, services.Wrap(services.ErrProcessing, component, "parse",
			fmt.Sprintf("failed to parse %s", name), err)
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, services.Wrap(services.ErrProcessing, component, "parse",
			fmt.Sprintf("no text content could be extracted from %s", name), nil)
	}
	return Result{
		Text:       text,
		TokenCount: textutil.CountTokens(text),
		Format:     strings.TrimPrefix(ext, "."),
	}, nil
}

func parseText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", fmt.Errorf("text is not valid UTF-8")
	}
	return string(data), nil
}
