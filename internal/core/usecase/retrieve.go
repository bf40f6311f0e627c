package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
)

const (
	// retrievalOversample widens both sub-retrievals beyond the final budget;
	// fusion and reranking shrink the set back down.
	retrievalOversample = 10
	// retrievalDefaultBudget applies when a plan carries no budget and no
	// configured top-k overrides it.
	retrievalDefaultBudget = 5
)

// RetrievalService coordinates the lexical and dense retrievers, fusion and
// reranking into one hybrid retrieval contract. The two sub-retrievals are
// independent pure reads and run concurrently; this is the only concurrency
// inside the query path.
type RetrievalService struct {
	lexical       *LexicalRegistry
	dense         *DenseRetriever
	reranker      *CrossEncoderReranker
	defaultBudget int
	logger        *slog.Logger
}

func NewRetrievalService(
	lexical *LexicalRegistry,
	dense *DenseRetriever,
	reranker *CrossEncoderReranker,
	logger *slog.Logger,
) *RetrievalService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalService{
		lexical:       lexical,
		dense:         dense,
		reranker:      reranker,
		defaultBudget: retrievalDefaultBudget,
		logger:        logger,
	}
}

// WithDefaultBudget overrides the budget used for plans that carry none.
func (s *RetrievalService) WithDefaultBudget(k int) *RetrievalService {
	if k > 0 {
		s.defaultBudget = k
	}
	return s
}

// HybridRetrieve is the canonical contract: both signals, fused and reranked
// down to k.
func (s *RetrievalService) HybridRetrieve(ctx context.Context, query string, k int) ([]domain.Candidate, domain.RetrievalDiagnostics) {
	return s.Retrieve(ctx, domain.RetrievalPlan{
		Strategy:    domain.StrategyHybrid,
		ChunkBudget: k,
		Query:       query,
	})
}

// Retrieve executes a retrieval plan. A failing sub-index contributes zero
// candidates and the query continues on the other signal; only when every
// enabled signal fails does the result carry a diagnostic error. Retrieval
// never returns an error to the caller.
func (s *RetrievalService) Retrieve(ctx context.Context, plan domain.RetrievalPlan) ([]domain.Candidate, domain.RetrievalDiagnostics) {
	k := plan.ChunkBudget
	if k <= 0 {
		k = s.defaultBudget
	}
	fetch := k * retrievalOversample

	useLexical := plan.Strategy != domain.StrategyVector
	useDense := plan.Strategy != domain.StrategyBM25

	var (
		wg               sync.WaitGroup
		lexical, dense   []domain.Candidate
		lexErr, denseErr error
	)
	if useLexical {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lexical, lexErr = s.lexical.Query(ctx, plan.Query, fetch)
		}()
	}
	if useDense {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dense, denseErr = s.dense.Query(ctx, plan.Query, fetch)
		}()
	}
	wg.Wait()

	if lexErr != nil {
		s.logger.Warn("lexical retrieval failed; continuing without it", "error", lexErr)
		lexical = nil
	}
	if denseErr != nil {
		s.logger.Warn("dense retrieval failed; continuing without it", "error", denseErr)
		dense = nil
	}

	diagnostics := domain.RetrievalDiagnostics{
		VectorCandidates:  len(dense),
		LexicalCandidates: len(lexical),
	}

	if failure := totalFailure(useLexical, useDense, lexErr, denseErr); failure != "" {
		diagnostics.Error = failure
		return nil, diagnostics
	}

	fused := fuseCandidates(lexical, dense)
	diagnostics.MergedCandidates = len(fused)

	top, degraded := s.reranker.Rerank(ctx, plan.Query, fused, k)
	diagnostics.RerankDegraded = degraded
	return top, diagnostics
}

// totalFailure reports a combined error string only when every enabled
// retrieval signal failed.
func totalFailure(useLexical, useDense bool, lexErr, denseErr error) string {
	var parts []string
	if useLexical {
		if lexErr == nil {
			return ""
		}
		parts = append(parts, "lexical: "+lexErr.Error())
	}
	if useDense {
		if denseErr == nil {
			return ""
		}
		parts = append(parts, "dense: "+denseErr.Error())
	}
	if len(parts) == 0 {
		return ""
	}
	return "all retrieval sources failed: " + strings.Join(parts, "; ")
}
