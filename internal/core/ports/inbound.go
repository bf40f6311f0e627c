package ports

import (
	"context"
	"io"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
)

// QuestionAnswerer is the inbound contract for the full ask pipeline. It
// always returns a well-formed result; failures are surfaced inside the
// result (diagnostics, missing-information), never as a transport error.
type QuestionAnswerer interface {
	Ask(ctx context.Context, question string) domain.AskResult
}

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
