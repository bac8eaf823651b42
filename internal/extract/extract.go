// Package extract turns raw document bytes into plain text.
package extract

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kailas-cloud/docingest/internal/domain"
)

// Media types understood by the default registry.
const (
	MediaTypeText     = "text/plain"
	MediaTypeMarkdown = "text/markdown"
	MediaTypeCSV      = "text/csv"
	MediaTypeHTML     = "text/html"
	MediaTypePDF      = "application/pdf"
)

// Extractor converts the bytes of one format into text.
// params carries media type parameters such as charset.
type Extractor interface {
	Extract(ctx context.Context, data []byte, params map[string]string) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, data []byte, params map[string]string) (string, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, data []byte, params map[string]string) (string, error) {
	return f(ctx, data, params)
}

// Registry dispatches extraction by media type.
type Registry struct {
	byType map[string]Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[string]Extractor)}
}

// Default returns a registry with every built-in format registered.
func Default() *Registry {
	r := NewRegistry()
	text := ExtractorFunc(extractText)
	r.Register(MediaTypeText, text)
	r.Register(MediaTypeMarkdown, text)
	r.Register("text/x-markdown", text)
	r.Register(MediaTypeCSV, text)
	r.Register(MediaTypeHTML, ExtractorFunc(extractHTML))
	r.Register("application/xhtml+xml", ExtractorFunc(extractHTML))
	r.Register(MediaTypePDF, ExtractorFunc(extractPDF))
	return r
}

// Register binds an extractor to a media type, replacing any previous binding.
func (r *Registry) Register(mediaType string, e Extractor) {
	r.byType[strings.ToLower(mediaType)] = e
}

// Supports reports whether contentType (or the filename extension as fallback) resolves to an extractor.
func (r *Registry) Supports(contentType, filename string) bool {
	mt, _ := resolveMediaType(contentType, filename)
	_, ok := r.byType[mt]
	return ok
}

// Extract produces normalized text from data.
// The content type wins; the filename extension is consulted when it is empty or generic.
func (r *Registry) Extract(ctx context.Context, contentType, filename string, data []byte) (string, error) {
	mt, params := resolveMediaType(contentType, filename)
	e, ok := r.byType[mt]
	if !ok {
		return "", fmt.Errorf("content type %q: %w", contentType, domain.ErrUnsupportedFormat)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty source: %w", domain.ErrExtractionFailure)
	}
	text, err := e.Extract(ctx, data, params)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", mt, err)
	}
	return Normalize(text), nil
}

func resolveMediaType(contentType, filename string) (string, map[string]string) {
	mt, params, err := mime.ParseMediaType(contentType)
	if err != nil || mt == "" || mt == "application/octet-stream" {
		mt, params = "", nil
		if byExt := extensionType(filename); byExt != "" {
			mt = byExt
		}
	}
	return strings.ToLower(mt), params
}

var extensionTypes = map[string]string{
	".txt":      MediaTypeText,
	".text":     MediaTypeText,
	".md":       MediaTypeMarkdown,
	".markdown": MediaTypeMarkdown,
	".csv":      MediaTypeCSV,
	".htm":      MediaTypeHTML,
	".html":     MediaTypeHTML,
	".pdf":      MediaTypePDF,
}

func extensionType(filename string) string {
	return extensionTypes[strings.ToLower(filepath.Ext(filename))]
}

var (
	trailingSpace = regexp.MustCompile(`[ \t\f\v]+\n`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

// Normalize converts line endings to LF, strips NULs and trailing spaces,
// and collapses runs of blank lines to one.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\x00", "")
	s = trailingSpace.ReplaceAllString(s+"\n", "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
