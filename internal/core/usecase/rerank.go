package usecase

import (
	"context"
	"log/slog"
	"sort"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
	"github.com/dkomarov/doc-analyst/internal/core/ports"
)

// rerankTextLimit bounds cross-encoder cost per candidate.
const rerankTextLimit = 1000

// CrossEncoderReranker scores each fused candidate jointly against the query
// and keeps the top k. Without a configured encoder, or when the encoder
// fails, it degrades to passing through the first k candidates unchanged;
// callers see the degraded flag in diagnostics.
type CrossEncoderReranker struct {
	encoder ports.CrossEncoder
	logger  *slog.Logger
}

func NewCrossEncoderReranker(encoder ports.CrossEncoder, logger *slog.Logger) *CrossEncoderReranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrossEncoderReranker{encoder: encoder, logger: logger}
}

// Rerank returns min(k, len(candidates)) candidates and whether it ran in
// degraded (pass-through) mode. Raw encoder scores are min-max normalized to
// [0,1] across the batch; an all-equal batch normalizes to zero for everyone.
func (r *CrossEncoderReranker) Rerank(ctx context.Context, query string, candidates []domain.Candidate, k int) ([]domain.Candidate, bool) {
	if k > len(candidates) || k < 0 {
		k = len(candidates)
	}
	if len(candidates) == 0 || k == 0 {
		return nil, r.encoder == nil
	}

	if r.encoder == nil {
		return passThrough(candidates, k), true
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = truncateRunes(c.Chunk.Text, rerankTextLimit)
	}

	scores, err := r.encoder.Score(ctx, query, texts)
	if err != nil || len(scores) != len(candidates) {
		r.logger.Warn("cross-encoder scoring failed; passing candidates through", "error", err)
		return passThrough(candidates, k), true
	}

	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}
	scoreRange := maxScore - minScore

	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		norm := 0.0
		if scoreRange > 0 {
			norm = (scores[i] - minScore) / scoreRange
		}
		out[i].Score = norm
		out[i].Scored = true
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out[:k], false
}

func passThrough(candidates []domain.Candidate, k int) []domain.Candidate {
	out := make([]domain.Candidate, k)
	copy(out, candidates[:k])
	return out
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
