package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
	"github.com/dkomarov/doc-analyst/internal/core/ports"
)

// CorpusInvalidator drops caches built over the corpus snapshot. The lexical
// registry implements it.
type CorpusInvalidator interface {
	Invalidate()
}

// ProcessDocumentService runs the ingestion pipeline for one document:
// extract, chunk, embed, index, then invalidate corpus-derived caches.
type ProcessDocumentService struct {
	repo        ports.DocumentRepository
	extractor   ports.TextExtractor
	chunker     ports.Chunker
	embedder    ports.Embedder
	vectorDB    ports.VectorStore
	invalidator CorpusInvalidator
}

func NewProcessDocumentService(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	invalidator CorpusInvalidator,
) *ProcessDocumentService {
	return &ProcessDocumentService{
		repo:        repo,
		extractor:   extractor,
		chunker:     chunker,
		embedder:    embedder,
		vectorDB:    vectorDB,
		invalidator: invalidator,
	}
}

func (s *ProcessDocumentService) ProcessByID(ctx context.Context, documentID string) error {
	if err := s.repo.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	chunkCount, err := s.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := s.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := s.repo.SetChunkCount(ctx, documentID, chunkCount); err != nil {
		return fmt.Errorf("save chunk count: %w", err)
	}
	if err := s.repo.UpdateStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate()
	}
	return nil
}

func (s *ProcessDocumentService) processPipeline(ctx context.Context, documentID string) (int, error) {
	doc, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("fetch document by id: %w", err)
	}

	text, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		return 0, fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}

	chunks := s.chunker.Chunk(doc.Filename, doc.ID, text)
	if len(chunks) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero usable chunks"))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}

	records := make([]ports.VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = ports.VectorRecord{
			ID:     c.ID,
			Vector: vectors[i],
			Chunk:  c,
		}
	}
	if err := s.vectorDB.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("index chunks in vector db: %w", err)
	}

	return len(chunks), nil
}
