package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
)

func newAskFixture(lexStore, denseStore *retrStoreFake, embedder *retrEmbedderFake) *AskService {
	return NewAskService(
		NewQueryPlanner(nil),
		newRetrievalFixture(embedder, lexStore, denseStore),
		NewAnswerSynthesizer(nil, 0, nil),
		nil,
	)
}

func TestAskEmptyQuestion(t *testing.T) {
	svc := newAskFixture(&retrStoreFake{}, &retrStoreFake{}, &retrEmbedderFake{})

	out := svc.Ask(context.Background(), "   ")
	if out.Answer != "Please provide a question." {
		t.Fatalf("unexpected answer: %q", out.Answer)
	}
	if out.ConfidenceScore != 0 {
		t.Fatalf("expected zero confidence, got %v", out.ConfidenceScore)
	}
	if out.EvidenceUsed == nil || out.TopChunks == nil {
		t.Fatal("result slices must be non-nil")
	}
	if out.MissingInformation == "" {
		t.Fatal("expected missing-information note for an empty question")
	}
}

func TestAskAnswersFromLexicalCorpus(t *testing.T) {
	lexStore := &retrStoreFake{scanChunks: []domain.Chunk{
		{ID: "c0", Source: "manualA", ChunkIndex: 0, Text: "The battery lasts 10 hours."},
		{ID: "c1", Source: "manualA", ChunkIndex: 1, Text: "Warranty covers 1 year."},
	}}
	// Dense store returns nothing; the question is carried by BM25 alone.
	svc := newAskFixture(lexStore, &retrStoreFake{}, &retrEmbedderFake{})

	out := svc.Ask(context.Background(), "What is the warranty period?")
	if out.Answer != "(Analyst) Warranty covers 1 year." {
		t.Fatalf("unexpected answer: %q", out.Answer)
	}
	if out.ConfidenceScore != 0.35 {
		t.Fatalf("unexpected confidence: %v", out.ConfidenceScore)
	}
	if len(out.EvidenceUsed) == 0 || out.EvidenceUsed[0].Source != "manualA" {
		t.Fatalf("unexpected evidence: %+v", out.EvidenceUsed)
	}
	if out.RetrievalDiagnostics.LexicalCandidates != 2 || out.RetrievalDiagnostics.VectorCandidates != 0 {
		t.Fatalf("unexpected diagnostics: %+v", out.RetrievalDiagnostics)
	}
	if !out.RetrievalDiagnostics.RerankDegraded {
		t.Fatal("expected degraded rerank without an encoder")
	}
	if out.Plan.Intent != domain.IntentFactual || out.Plan.ChunkBudget != 5 {
		t.Fatalf("unexpected plan: %+v", out.Plan)
	}
	if len(out.TopChunks) != 2 {
		t.Fatalf("expected both chunks surfaced, got %d", len(out.TopChunks))
	}
}

func TestAskStaysWellFormedWhenRetrievalFails(t *testing.T) {
	lexStore := &retrStoreFake{scanErr: errors.New("scan down")}
	svc := newAskFixture(lexStore, &retrStoreFake{}, &retrEmbedderFake{err: errors.New("embedder down")})

	out := svc.Ask(context.Background(), "What is the warranty period?")
	if out.Answer == "" {
		t.Fatal("answer must not be empty on total retrieval failure")
	}
	if out.ConfidenceScore != 0 {
		t.Fatalf("expected zero confidence, got %v", out.ConfidenceScore)
	}
	if out.RetrievalDiagnostics.Error == "" {
		t.Fatal("expected a diagnostic error")
	}
	if out.MissingInformation == "" {
		t.Fatal("expected missing-information note")
	}
	if out.TopChunks == nil || out.EvidenceUsed == nil {
		t.Fatal("result slices must be non-nil")
	}
	if len(out.TopChunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(out.TopChunks))
	}
}
