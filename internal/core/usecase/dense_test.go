package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
	"github.com/dkomarov/doc-analyst/internal/core/ports"
)

type denseEmbedderFake struct {
	vector []float32
	err    error
	calls  int
}

func (f *denseEmbedderFake) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not used")
}

func (f *denseEmbedderFake) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type denseStoreFake struct {
	matches    []ports.VectorMatch
	err        error
	requestedK int
}

func (f *denseStoreFake) Upsert(ctx context.Context, records []ports.VectorRecord) error {
	return nil
}

func (f *denseStoreFake) Query(ctx context.Context, vector []float32, k int) ([]ports.VectorMatch, error) {
	f.requestedK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

func (f *denseStoreFake) ScanAll(ctx context.Context) ([]domain.Chunk, error) { return nil, nil }

func longText(word string) string {
	return word + " " + strings.Repeat("filler content for the minimum length ", 2)
}

func TestDenseQueryConvertsDistanceToSimilarity(t *testing.T) {
	store := &denseStoreFake{matches: []ports.VectorMatch{
		{Chunk: domain.Chunk{ID: "far", Text: longText("far")}, Score: 1.0, ScoreIsDistance: true},
		{Chunk: domain.Chunk{ID: "near", Text: longText("near")}, Score: 0.0, ScoreIsDistance: true},
	}}
	retriever := NewDenseRetriever(&denseEmbedderFake{vector: []float32{0.1}}, store)

	out, err := retriever.Query(context.Background(), "query", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(out))
	}
	if out[0].Chunk.ID != "near" || out[0].Score != 1.0 {
		t.Fatalf("expected zero-distance match first with score 1.0, got %q score %v", out[0].Chunk.ID, out[0].Score)
	}
	if out[1].Score != 0.5 {
		t.Fatalf("expected 1/(1+1) = 0.5, got %v", out[1].Score)
	}
	if !out[0].Scored || out[0].Origin != domain.OriginVector {
		t.Fatalf("dense candidates must be scored vector-origin, got %+v", out[0])
	}
}

func TestDenseQueryKeepsSimilarityScores(t *testing.T) {
	store := &denseStoreFake{matches: []ports.VectorMatch{
		{Chunk: domain.Chunk{ID: "a", Text: longText("a")}, Score: 0.42},
	}}
	retriever := NewDenseRetriever(&denseEmbedderFake{vector: []float32{0.1}}, store)

	out, err := retriever.Query(context.Background(), "query", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Score != 0.42 {
		t.Fatalf("similarity score must pass through unchanged, got %+v", out)
	}
}

func TestDenseQueryFiltersShortTexts(t *testing.T) {
	store := &denseStoreFake{matches: []ports.VectorMatch{
		{Chunk: domain.Chunk{ID: "short", Text: "Table of Contents"}, Score: 0.99},
		{Chunk: domain.Chunk{ID: "long", Text: longText("long")}, Score: 0.5},
	}}
	retriever := NewDenseRetriever(&denseEmbedderFake{vector: []float32{0.1}}, store)

	out, err := retriever.Query(context.Background(), "query", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Chunk.ID != "long" {
		t.Fatalf("expected short match filtered out, got %+v", out)
	}
}

func TestDenseQueryMinLengthCountsCharactersNotBytes(t *testing.T) {
	// Two bytes per character in UTF-8; only the character count may decide.
	store := &denseStoreFake{matches: []ports.VectorMatch{
		{Chunk: domain.Chunk{ID: "short-cyrillic", Text: strings.Repeat("д", 30)}, Score: 0.99},
		{Chunk: domain.Chunk{ID: "long-cyrillic", Text: strings.Repeat("п", 50)}, Score: 0.5},
	}}
	retriever := NewDenseRetriever(&denseEmbedderFake{vector: []float32{0.1}}, store)

	out, err := retriever.Query(context.Background(), "query", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Chunk.ID != "long-cyrillic" {
		t.Fatalf("expected 30-character text filtered and 50-character text kept, got %+v", out)
	}
}

func TestDenseQueryOversamplesAndTruncates(t *testing.T) {
	matches := make([]ports.VectorMatch, 6)
	for i := range matches {
		matches[i] = ports.VectorMatch{
			Chunk: domain.Chunk{ID: string(rune('a' + i)), Text: longText("entry")},
			Score: float64(i) / 10,
		}
	}
	store := &denseStoreFake{matches: matches}
	retriever := NewDenseRetriever(&denseEmbedderFake{vector: []float32{0.1}}, store)

	out, err := retriever.Query(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.requestedK != 6 {
		t.Fatalf("expected oversampled store query of 6, got %d", store.requestedK)
	}
	if len(out) != 2 {
		t.Fatalf("expected truncation to k=2, got %d", len(out))
	}
	if out[0].Score < out[1].Score {
		t.Fatalf("candidates must be ordered by descending score: %v, %v", out[0].Score, out[1].Score)
	}
}

func TestDenseQueryEmbedErrorPropagates(t *testing.T) {
	retriever := NewDenseRetriever(&denseEmbedderFake{err: errors.New("model offline")}, &denseStoreFake{})

	if _, err := retriever.Query(context.Background(), "query", 5); err == nil {
		t.Fatal("expected error when query embedding fails")
	}
}

func TestDenseQueryBlankInputIsNoop(t *testing.T) {
	embedder := &denseEmbedderFake{vector: []float32{0.1}}
	retriever := NewDenseRetriever(embedder, &denseStoreFake{})

	out, err := retriever.Query(context.Background(), "   ", 5)
	if err != nil || out != nil {
		t.Fatalf("blank query must be a no-op, got %v, %v", out, err)
	}
	if embedder.calls != 0 {
		t.Fatal("blank query must not reach the embedder")
	}
}
