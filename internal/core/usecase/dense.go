package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
	"github.com/dkomarov/doc-analyst/internal/core/ports"
)

const (
	// denseOversample compensates for the min-length filter below.
	denseOversample = 3
	// denseMinChars drops header/TOC noise before it reaches the caller.
	denseMinChars = 50
)

// DenseRetriever turns a query into an embedding and asks the vector store
// for nearest neighbors. Distance-reporting stores are converted to a
// similarity in (0,1] via 1/(1+d); similarity scores pass through unchanged.
type DenseRetriever struct {
	embedder   ports.Embedder
	store      ports.VectorStore
	oversample int
	minChars   int
}

func NewDenseRetriever(embedder ports.Embedder, store ports.VectorStore) *DenseRetriever {
	return &DenseRetriever{
		embedder:   embedder,
		store:      store,
		oversample: denseOversample,
		minChars:   denseMinChars,
	}
}

// Query returns up to k vector-origin candidates ordered by descending
// similarity. Ties keep the store's original order. Zero store results is not
// an error.
func (d *DenseRetriever) Query(ctx context.Context, query string, k int) ([]domain.Candidate, error) {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	vector, err := d.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := d.store.Query(ctx, vector, k*d.oversample)
	if err != nil {
		return nil, fmt.Errorf("vector store query: %w", err)
	}

	out := make([]domain.Candidate, 0, len(matches))
	for _, m := range matches {
		if utf8.RuneCountInString(strings.TrimSpace(m.Chunk.Text)) < d.minChars {
			continue
		}
		score := m.Score
		if m.ScoreIsDistance {
			score = 1.0 / (1.0 + m.Score)
		}
		out = append(out, domain.Candidate{
			Chunk:  m.Chunk,
			Score:  score,
			Scored: true,
			Origin: domain.OriginVector,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}
