package usecase

import (
	"testing"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
)

func TestFuseDeduplicatesByText(t *testing.T) {
	dense := []domain.Candidate{
		{Chunk: domain.Chunk{ID: "v1", Text: "shared passage"}, Score: 0.4, Scored: true, Origin: domain.OriginVector},
		{Chunk: domain.Chunk{ID: "v2", Text: "vector only"}, Score: 0.9, Scored: true, Origin: domain.OriginVector},
	}
	lexical := []domain.Candidate{
		{Chunk: domain.Chunk{ID: "l1", Text: "shared passage"}, Origin: domain.OriginLexical},
		{Chunk: domain.Chunk{ID: "l2", Text: "lexical only"}, Origin: domain.OriginLexical},
	}

	out := fuseCandidates(lexical, dense)
	if len(out) != 3 {
		t.Fatalf("expected 3 unique texts, got %d", len(out))
	}

	seen := make(map[string]struct{})
	for _, c := range out {
		if _, dup := seen[c.Chunk.Text]; dup {
			t.Fatalf("duplicate text survived fusion: %q", c.Chunk.Text)
		}
		seen[c.Chunk.Text] = struct{}{}
	}
}

func TestFuseScoredBeatsUnscored(t *testing.T) {
	dense := []domain.Candidate{
		{Chunk: domain.Chunk{ID: "v1", Text: "shared passage"}, Score: 0.4, Scored: true, Origin: domain.OriginVector},
	}
	lexical := []domain.Candidate{
		{Chunk: domain.Chunk{ID: "l1", Text: "shared passage"}, Origin: domain.OriginLexical},
	}

	out := fuseCandidates(lexical, dense)
	if len(out) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(out))
	}
	if !out[0].Scored || out[0].Chunk.ID != "v1" {
		t.Fatalf("scored duplicate must win, got %+v", out[0])
	}

	// Same outcome regardless of which side carries the score.
	out = fuseCandidates(dense, lexical)
	if len(out) != 1 || !out[0].Scored || out[0].Chunk.ID != "v1" {
		t.Fatalf("scored duplicate must win independent of order, got %+v", out[0])
	}
}

func TestFuseHigherScoreWins(t *testing.T) {
	a := []domain.Candidate{
		{Chunk: domain.Chunk{ID: "low", Text: "shared passage"}, Score: 0.2, Scored: true},
	}
	b := []domain.Candidate{
		{Chunk: domain.Chunk{ID: "high", Text: "shared passage"}, Score: 0.8, Scored: true},
	}

	out := fuseCandidates(a, b)
	if len(out) != 1 || out[0].Chunk.ID != "high" || out[0].Score != 0.8 {
		t.Fatalf("expected the higher-scored duplicate, got %+v", out[0])
	}
}

func TestFuseKeepsFirstSeenOrder(t *testing.T) {
	dense := []domain.Candidate{
		{Chunk: domain.Chunk{ID: "v1", Text: "alpha"}, Score: 0.5, Scored: true},
	}
	lexical := []domain.Candidate{
		{Chunk: domain.Chunk{ID: "l1", Text: "beta"}},
		{Chunk: domain.Chunk{ID: "l2", Text: "gamma"}},
	}

	out := fuseCandidates(lexical, dense)
	if len(out) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(out))
	}
	if out[0].Chunk.Text != "alpha" || out[1].Chunk.Text != "beta" || out[2].Chunk.Text != "gamma" {
		t.Fatalf("unexpected order: %q, %q, %q", out[0].Chunk.Text, out[1].Chunk.Text, out[2].Chunk.Text)
	}
}
