package usecase

import (
	"context"
	"log/slog"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
)

// AskService sequences planner -> retrieval -> synthesis and normalizes the
// final result. A failure anywhere in the answer stage still surfaces the
// retrieved candidates and diagnostics; the caller always gets a well-formed
// AskResult.
type AskService struct {
	planner     *QueryPlanner
	retrieval   *RetrievalService
	synthesizer *AnswerSynthesizer
	logger      *slog.Logger
}

func NewAskService(
	planner *QueryPlanner,
	retrieval *RetrievalService,
	synthesizer *AnswerSynthesizer,
	logger *slog.Logger,
) *AskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AskService{
		planner:     planner,
		retrieval:   retrieval,
		synthesizer: synthesizer,
		logger:      logger,
	}
}

// Ask answers a question against the ingested corpus.
func (s *AskService) Ask(ctx context.Context, question string) domain.AskResult {
	plan := s.planner.Analyze(question)
	if plan.Query == "" {
		return domain.AskResult{
			Answer:             "Please provide a question.",
			EvidenceUsed:       []domain.Evidence{},
			MissingInformation: "The question was empty.",
			ConfidenceScore:    0,
			TopChunks:          []domain.Candidate{},
			Plan:               plan,
		}
	}

	candidates, diagnostics := s.retrieval.Retrieve(ctx, plan)
	answer := s.synthesizer.Answer(ctx, plan.Query, candidates)

	if diagnostics.Error != "" && answer.MissingInformation == "" {
		answer.MissingInformation = "Retrieval failed; no supporting context was available."
	}

	if candidates == nil {
		candidates = []domain.Candidate{}
	}
	if answer.Evidence == nil {
		answer.Evidence = []domain.Evidence{}
	}

	return domain.AskResult{
		Answer:               answer.Answer,
		EvidenceUsed:         answer.Evidence,
		MissingInformation:   answer.MissingInformation,
		ConfidenceScore:      answer.Confidence,
		TopChunks:            candidates,
		RetrievalDiagnostics: diagnostics,
		Plan:                 plan,
	}
}
