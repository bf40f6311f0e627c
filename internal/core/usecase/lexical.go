package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
	"github.com/dkomarov/doc-analyst/internal/core/ports"
)

// BM25 parameters, Okapi defaults.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// LexicalRegistry owns the cached BM25 index over the full corpus. The built
// index is immutable; rebuilds swap in a fresh handle atomically so concurrent
// queries never observe a half-built index. Invalidate drops the cache; the
// next query rebuilds from a corpus scan. When a CorpusVersioner is supplied,
// the registry also rebuilds whenever the corpus identity changes, which
// covers mutations performed by another process.
type LexicalRegistry struct {
	store    ports.VectorStore
	versions ports.CorpusVersioner
	logger   *slog.Logger

	buildMu sync.Mutex
	idx     atomic.Pointer[lexicalIndex]
}

// lexicalIndex maps every rank position back to its full chunk by slice
// position, never by text lookup, so duplicate token lists for different
// chunks stay unambiguous.
type lexicalIndex struct {
	corpusVersion string
	chunks        []domain.Chunk
	docTokens     [][]string
	docLen        []int
	avgDocLen     float64
	docFreq       map[string]int
}

func NewLexicalRegistry(store ports.VectorStore, versions ports.CorpusVersioner, logger *slog.Logger) *LexicalRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &LexicalRegistry{
		store:    store,
		versions: versions,
		logger:   logger,
	}
}

// Invalidate drops the cached index. Call after any corpus mutation.
func (r *LexicalRegistry) Invalidate() {
	r.idx.Store(nil)
}

// Close releases the cached index. The registry is unusable afterwards only
// in the sense that the next query rebuilds from scratch.
func (r *LexicalRegistry) Close() {
	r.idx.Store(nil)
}

// Query ranks the corpus against the query with BM25 and returns up to k
// lexical candidates. Candidates carry no score: BM25 orders them, fusion
// treats them as unscored hits. An empty corpus returns an empty slice.
func (r *LexicalRegistry) Query(ctx context.Context, query string, k int) ([]domain.Candidate, error) {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	idx, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	if len(idx.chunks) == 0 {
		return nil, nil
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	type ranked struct {
		pos   int
		score float64
	}
	scored := make([]ranked, 0, len(idx.chunks))
	for pos := range idx.chunks {
		s := idx.score(queryTokens, pos)
		if s <= 0 {
			continue
		}
		scored = append(scored, ranked{pos: pos, score: s})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].pos < scored[j].pos
	})
	if len(scored) > k {
		scored = scored[:k]
	}

	out := make([]domain.Candidate, 0, len(scored))
	for _, s := range scored {
		out = append(out, domain.Candidate{
			Chunk:  idx.chunks[s.pos],
			Origin: domain.OriginLexical,
		})
	}
	return out, nil
}

// current returns the cached index, rebuilding it when missing or when the
// corpus identity moved since the last build.
func (r *LexicalRegistry) current(ctx context.Context) (*lexicalIndex, error) {
	version := ""
	if r.versions != nil {
		v, err := r.versions.CorpusVersion(ctx)
		if err != nil {
			r.logger.Warn("corpus version probe failed; reusing cached lexical index", "error", err)
		} else {
			version = v
		}
	}

	if idx := r.idx.Load(); idx != nil && (version == "" || idx.corpusVersion == version) {
		return idx, nil
	}

	r.buildMu.Lock()
	defer r.buildMu.Unlock()
	if idx := r.idx.Load(); idx != nil && (version == "" || idx.corpusVersion == version) {
		return idx, nil
	}

	chunks, err := r.store.ScanAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan corpus for lexical index: %w", err)
	}
	idx := buildLexicalIndex(chunks, version)
	r.idx.Store(idx)
	r.logger.Info("lexical index rebuilt", "chunks", len(chunks), "corpus_version", version)
	return idx, nil
}

// buildLexicalIndex tokenizes the summary of each chunk, falling back to the
// full text when no summary exists.
func buildLexicalIndex(chunks []domain.Chunk, version string) *lexicalIndex {
	idx := &lexicalIndex{
		corpusVersion: version,
		chunks:        chunks,
		docTokens:     make([][]string, len(chunks)),
		docLen:        make([]int, len(chunks)),
		docFreq:       make(map[string]int),
	}

	total := 0
	for i, c := range chunks {
		field := c.Summary
		if strings.TrimSpace(field) == "" {
			field = c.Text
		}
		tokens := tokenize(field)
		idx.docTokens[i] = tokens
		idx.docLen[i] = len(tokens)
		total += len(tokens)

		seen := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			idx.docFreq[t]++
		}
	}
	if len(chunks) > 0 {
		idx.avgDocLen = float64(total) / float64(len(chunks))
	}
	return idx
}

func (idx *lexicalIndex) score(queryTokens []string, pos int) float64 {
	if idx.docLen[pos] == 0 || idx.avgDocLen == 0 {
		return 0
	}

	tf := make(map[string]int, len(idx.docTokens[pos]))
	for _, t := range idx.docTokens[pos] {
		tf[t]++
	}

	n := float64(len(idx.chunks))
	norm := bm25K1 * (1 - bm25B + bm25B*float64(idx.docLen[pos])/idx.avgDocLen)

	var score float64
	for _, q := range queryTokens {
		f := float64(tf[q])
		if f == 0 {
			continue
		}
		df := float64(idx.docFreq[q])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		score += idf * (f * (bm25K1 + 1)) / (f + norm)
	}
	return score
}

// tokenize lowercases and splits on any non-alphanumeric rune.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
