package ports

import (
	"context"
	"io"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
)

// DocumentRepository persists and reads document lifecycle state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetChunkCount(ctx context.Context, id string, chunkCount int) error
}

// CorpusVersioner reports an opaque identity for the current corpus snapshot.
// The lexical index cache rebuilds whenever the identity changes.
type CorpusVersioner interface {
	CorpusVersion(ctx context.Context) (string, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Chunker splits extracted text into cleaned, metadata-carrying chunks.
type Chunker interface {
	Chunk(source, docID, text string) []domain.Chunk
}

// Embedder builds vectors for chunk texts and query text. Embeddings must be
// deterministic for identical input within a session.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// CrossEncoder scores (query, text) pairs jointly. Scores are unbounded; the
// reranker normalizes them per batch.
type CrossEncoder interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// AnswerGenerator produces the final answer text from a grounded prompt.
// Failures are recoverable: callers fall back to the deterministic path.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// VectorRecord is one chunk plus its embedding, ready for upsert.
type VectorRecord struct {
	ID     string
	Vector []float32
	Chunk  domain.Chunk
}

// VectorMatch is a nearest-neighbor result. ScoreIsDistance marks stores that
// report raw distance; the dense retriever converts those to similarity.
type VectorMatch struct {
	Chunk           domain.Chunk
	Score           float64
	ScoreIsDistance bool
}

// VectorStore indexes chunks and answers nearest-neighbor queries. ScanAll
// streams the full corpus metadata for lexical index construction.
type VectorStore interface {
	Upsert(ctx context.Context, records []VectorRecord) error
	Query(ctx context.Context, vector []float32, k int) ([]VectorMatch, error)
	ScanAll(ctx context.Context) ([]domain.Chunk, error)
}
