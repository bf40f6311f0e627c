package usecase

import "github.com/dkomarov/doc-analyst/internal/core/domain"

// fuseCandidates merges the two retrieval signals into a set unique by exact
// chunk text. When both signals produced the same text, the candidate with
// the higher score wins; a scored candidate always beats an unscored one.
// Output order is first-seen order; callers re-sort during reranking.
func fuseCandidates(lexical, dense []domain.Candidate) []domain.Candidate {
	byText := make(map[string]int, len(lexical)+len(dense))
	out := make([]domain.Candidate, 0, len(lexical)+len(dense))

	consider := func(c domain.Candidate) {
		i, ok := byText[c.Chunk.Text]
		if !ok {
			byText[c.Chunk.Text] = len(out)
			out = append(out, c)
			return
		}
		existing := out[i]
		if !c.Scored {
			return
		}
		if !existing.Scored || c.Score > existing.Score {
			out[i] = c
		}
	}

	for _, c := range dense {
		consider(c)
	}
	for _, c := range lexical {
		consider(c)
	}
	return out
}
