package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
)

type encoderFake struct {
	scores   []float64
	err      error
	gotTexts []string
	gotQuery string
}

func (f *encoderFake) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	f.gotQuery = query
	f.gotTexts = texts
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

func rerankInput(texts ...string) []domain.Candidate {
	out := make([]domain.Candidate, len(texts))
	for i, text := range texts {
		out[i] = domain.Candidate{Chunk: domain.Chunk{ID: text, Text: text}}
	}
	return out
}

func TestRerankWithoutEncoderPassesThrough(t *testing.T) {
	reranker := NewCrossEncoderReranker(nil, nil)
	in := rerankInput("first", "second", "third")

	out, degraded := reranker.Rerank(context.Background(), "q", in, 2)
	if !degraded {
		t.Fatal("expected degraded mode without an encoder")
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(out))
	}
	if out[0].Chunk.ID != "first" || out[1].Chunk.ID != "second" {
		t.Fatalf("pass-through must keep input order: %q, %q", out[0].Chunk.ID, out[1].Chunk.ID)
	}
	if out[0].Scored {
		t.Fatal("pass-through must not invent scores")
	}
}

func TestRerankNormalizesAndSorts(t *testing.T) {
	encoder := &encoderFake{scores: []float64{1, 3, 2}}
	reranker := NewCrossEncoderReranker(encoder, nil)
	in := rerankInput("low", "high", "mid")

	out, degraded := reranker.Rerank(context.Background(), "q", in, 3)
	if degraded {
		t.Fatal("unexpected degraded mode")
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(out))
	}
	if out[0].Chunk.ID != "high" || out[0].Score != 1.0 {
		t.Fatalf("expected max-scored candidate normalized to 1.0, got %q score %v", out[0].Chunk.ID, out[0].Score)
	}
	if out[1].Chunk.ID != "mid" || out[1].Score != 0.5 {
		t.Fatalf("expected mid candidate at 0.5, got %q score %v", out[1].Chunk.ID, out[1].Score)
	}
	if out[2].Chunk.ID != "low" || out[2].Score != 0.0 {
		t.Fatalf("expected min candidate at 0.0, got %q score %v", out[2].Chunk.ID, out[2].Score)
	}
	for _, c := range out {
		if !c.Scored {
			t.Fatal("reranked candidates must be scored")
		}
	}
}

func TestRerankAllEqualScoresNormalizeToZero(t *testing.T) {
	encoder := &encoderFake{scores: []float64{7, 7, 7}}
	reranker := NewCrossEncoderReranker(encoder, nil)
	in := rerankInput("a", "b", "c")

	out, degraded := reranker.Rerank(context.Background(), "q", in, 3)
	if degraded {
		t.Fatal("unexpected degraded mode")
	}
	for i, c := range out {
		if c.Score != 0 {
			t.Fatalf("all-equal batch must normalize to zero, got %v", c.Score)
		}
		if c.Chunk.ID != in[i].Chunk.ID {
			t.Fatalf("stable sort must keep input order on ties: %q at %d", c.Chunk.ID, i)
		}
	}
}

func TestRerankEncoderFailureDegrades(t *testing.T) {
	encoder := &encoderFake{err: errors.New("encoder offline")}
	reranker := NewCrossEncoderReranker(encoder, nil)
	in := rerankInput("a", "b")

	out, degraded := reranker.Rerank(context.Background(), "q", in, 2)
	if !degraded {
		t.Fatal("expected degraded mode on encoder error")
	}
	if len(out) != 2 || out[0].Chunk.ID != "a" {
		t.Fatalf("expected pass-through order, got %+v", out)
	}
}

func TestRerankScoreCountMismatchDegrades(t *testing.T) {
	encoder := &encoderFake{scores: []float64{0.5}}
	reranker := NewCrossEncoderReranker(encoder, nil)
	in := rerankInput("a", "b", "c")

	out, degraded := reranker.Rerank(context.Background(), "q", in, 3)
	if !degraded {
		t.Fatal("expected degraded mode on score count mismatch")
	}
	if len(out) != 3 {
		t.Fatalf("expected pass-through of all candidates, got %d", len(out))
	}
}

func TestRerankTruncatesEncoderInput(t *testing.T) {
	encoder := &encoderFake{scores: []float64{0.5}}
	reranker := NewCrossEncoderReranker(encoder, nil)
	in := []domain.Candidate{{Chunk: domain.Chunk{ID: "big", Text: strings.Repeat("x", 2500)}}}

	if _, _ = reranker.Rerank(context.Background(), "q", in, 1); len(encoder.gotTexts) != 1 {
		t.Fatalf("expected one scored text, got %d", len(encoder.gotTexts))
	}
	if got := len([]rune(encoder.gotTexts[0])); got != 1000 {
		t.Fatalf("expected encoder input truncated to 1000 runes, got %d", got)
	}
}

func TestRerankBoundsRequestedK(t *testing.T) {
	reranker := NewCrossEncoderReranker(nil, nil)
	in := rerankInput("a", "b")

	out, _ := reranker.Rerank(context.Background(), "q", in, 10)
	if len(out) != 2 {
		t.Fatalf("k beyond input must clamp to input length, got %d", len(out))
	}
}
