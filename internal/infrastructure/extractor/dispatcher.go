package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
	"github.com/dkomarov/doc-analyst/internal/core/ports"
)

// Dispatcher routes a document to the extractor registered for its file
// extension. Registration happens explicitly in bootstrap; there is no
// implicit default beyond the fallback extractor.
type Dispatcher struct {
	byExtension map[string]ports.TextExtractor
	fallback    ports.TextExtractor
}

func NewDispatcher(fallback ports.TextExtractor) *Dispatcher {
	return &Dispatcher{
		byExtension: make(map[string]ports.TextExtractor),
		fallback:    fallback,
	}
}

// Register maps one or more extensions (with or without the leading dot) to
// an extractor.
func (d *Dispatcher) Register(ext ports.TextExtractor, extensions ...string) {
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimPrefix(e, "."))
		d.byExtension[e] = ext
	}
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(doc.Filename), "."))
	if e, ok := d.byExtension[ext]; ok {
		return e.Extract(ctx, doc)
	}
	if d.fallback != nil {
		return d.fallback.Extract(ctx, doc)
	}
	return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("unsupported file type: %s", doc.Filename))
}

var _ ports.TextExtractor = (*Dispatcher)(nil)
