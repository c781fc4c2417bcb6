// Package extract turns rendition content bytes into plain text.
// Extraction is a capability consumed by the ingestion pipeline: the
// registry dispatches on file extension and callers may plug in
// additional extractors (e.g. PDF) without touching the pipeline.
package extract

import (
	"fmt"
	"strings"

	"iirdsrag/internal/domain"
)

// TextExtractor extracts human-visible text from content bytes.
// Implementations are deterministic and perform no network calls.
type TextExtractor interface {
	Extract(content []byte, ext string) (string, error)
}

// Registry dispatches to an extractor by lowercased file extension.
type Registry struct {
	byExt map[string]TextExtractor
}

// NewRegistry returns a registry with the built-in HTML extractor
// registered for .xhtml, .htm and .html.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]TextExtractor)}
	htmlExt := HTML{}
	for _, ext := range []string{".xhtml", ".htm", ".html"} {
		r.Register(ext, htmlExt)
	}
	return r
}

// Register binds an extractor to a file extension (with leading dot).
func (r *Registry) Register(ext string, e TextExtractor) {
	r.byExt[strings.ToLower(ext)] = e
}

// Extract dispatches on ext. Returns domain.ErrUnsupportedFormat when no
// extractor is registered for the extension.
func (r *Registry) Extract(content []byte, ext string) (string, error) {
	e, ok := r.byExt[strings.ToLower(ext)]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, ext)
	}
	return e.Extract(content, ext)
}
