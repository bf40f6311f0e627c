package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
	"github.com/dkomarov/doc-analyst/internal/core/ports"
)

const (
	contextChunkLimit   = 10
	contextCharsLimit   = 1000
	evidenceLimit       = 5
	evidenceExcerptMax  = 1000
	fallbackSentenceMax = 400
	generationMaxTokens = 800
)

// AnswerSynthesizer assembles a grounded prompt from the top candidates,
// invokes the generation collaborator once, and repairs/normalizes its
// structured response. Without a generator, or when generation or parsing
// fails, it degrades along the paths below instead of erroring:
//
//	generation failed  -> deterministic extractive fallback
//	parse failed       -> raw text answer, empty evidence, confidence 0
//
// The synthesizer is purely functional over its inputs apart from the single
// generation call.
type AnswerSynthesizer struct {
	generator  ports.AnswerGenerator
	genTimeout time.Duration
	logger     *slog.Logger
}

func NewAnswerSynthesizer(generator ports.AnswerGenerator, genTimeout time.Duration, logger *slog.Logger) *AnswerSynthesizer {
	if genTimeout <= 0 {
		genTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerSynthesizer{
		generator:  generator,
		genTimeout: genTimeout,
		logger:     logger,
	}
}

// Answer produces the final grounded answer for the question. It never
// returns an error: every failure mode maps to a degraded but well-formed
// AnswerResult.
func (s *AnswerSynthesizer) Answer(ctx context.Context, question string, candidates []domain.Candidate) domain.AnswerResult {
	if s.generator == nil {
		return s.fallback(candidates)
	}

	genCtx, cancel := context.WithTimeout(ctx, s.genTimeout)
	defer cancel()

	raw, err := s.generator.Generate(genCtx, buildGroundedPrompt(question, candidates), generationMaxTokens)
	if err != nil {
		s.logger.Warn("answer generation failed; using extractive fallback", "error", err)
		return s.fallback(candidates)
	}

	parsed, ok := extractStructuredAnswer(raw)
	if !ok {
		return domain.AnswerResult{
			Answer:             strings.TrimSpace(raw),
			Evidence:           []domain.Evidence{},
			MissingInformation: "Could not parse structured JSON from the model.",
			Confidence:         0,
		}
	}

	parsed.Evidence = groundEvidence(parsed.Evidence, candidates)
	parsed.Confidence = round3(clamp01(parsed.Confidence))
	return parsed
}

// buildGroundedPrompt annotates each context chunk with its source and
// instructs the model to cite only in-context sources and reply with strict
// JSON.
func buildGroundedPrompt(question string, candidates []domain.Candidate) string {
	var contextBlock strings.Builder
	n := len(candidates)
	if n > contextChunkLimit {
		n = contextChunkLimit
	}
	for i := 0; i < n; i++ {
		c := candidates[i]
		if i > 0 {
			contextBlock.WriteString("\n\n---\n\n")
		}
		contextBlock.WriteString(fmt.Sprintf("SOURCE: %s\n%s", c.Chunk.Source, truncateRunes(strings.TrimSpace(c.Chunk.Text), contextCharsLimit)))
	}

	return fmt.Sprintf(`You are an expert analyst. Use ONLY the CONTEXT below to answer the QUESTION. Do NOT invent facts. If the context does not contain the information, explicitly say what is missing. Cite sources from the CONTEXT (use the 'SOURCE: filename' markers).

QUESTION:
%s

CONTEXT (top %d chunks):
%s

OUTPUT: Return STRICT JSON only (no surrounding prose) with the exact fields:
{"answer":"", "evidence_used":[{"source":"<filename>","excerpt":"<short excerpt>"}], "missing_information":"", "confidence_score":0.0}

Evidence items must reference chunks in the CONTEXT; confidence must be a number between 0 and 1.
If multiple relevant excerpts exist, include up to 5 evidence entries.
Return only valid JSON.`, question, n, contextBlock.String())
}

// structuredAnswer accepts the field-name variants models actually emit and
// normalizes them into one canonical shape.
type structuredAnswer struct {
	Answer             string            `json:"answer"`
	EvidenceUsed       []domain.Evidence `json:"evidence_used"`
	Evidence           []domain.Evidence `json:"evidence"`
	MissingInformation string            `json:"missing_information"`
	MissingInfo        string            `json:"missing_info"`
	ConfidenceScore    *float64          `json:"confidence_score"`
	Confidence         *float64          `json:"confidence"`
}

// extractStructuredAnswer tries, in order: a direct parse of the whole
// response, the first balanced JSON object inside it, and that object with
// single quotes repaired to double quotes.
func extractStructuredAnswer(raw string) (domain.AnswerResult, bool) {
	if parsed, ok := parseStructuredAnswer(raw); ok {
		return parsed, true
	}

	block, ok := firstJSONObject(raw)
	if !ok {
		return domain.AnswerResult{}, false
	}
	if parsed, ok := parseStructuredAnswer(block); ok {
		return parsed, true
	}
	if parsed, ok := parseStructuredAnswer(strings.ReplaceAll(block, "'", `"`)); ok {
		return parsed, true
	}
	return domain.AnswerResult{}, false
}

func parseStructuredAnswer(s string) (domain.AnswerResult, bool) {
	var sa structuredAnswer
	if err := json.Unmarshal([]byte(s), &sa); err != nil {
		return domain.AnswerResult{}, false
	}
	if sa.Answer == "" {
		return domain.AnswerResult{}, false
	}

	evidence := sa.EvidenceUsed
	if len(evidence) == 0 {
		evidence = sa.Evidence
	}
	missing := sa.MissingInformation
	if missing == "" {
		missing = sa.MissingInfo
	}
	confidence := 0.0
	switch {
	case sa.ConfidenceScore != nil:
		confidence = *sa.ConfidenceScore
	case sa.Confidence != nil:
		confidence = *sa.Confidence
	}

	return domain.AnswerResult{
		Answer:             sa.Answer,
		Evidence:           evidence,
		MissingInformation: missing,
		Confidence:         confidence,
	}, true
}

// firstJSONObject scans for the first balanced {...} block, ignoring braces
// inside string literals.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// groundEvidence keeps only evidence whose source exists in the candidate
// set; the synthesizer must never surface an invented source. The list is
// capped at the evidence limit.
func groundEvidence(evidence []domain.Evidence, candidates []domain.Candidate) []domain.Evidence {
	known := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		known[c.Chunk.Source] = struct{}{}
	}

	out := make([]domain.Evidence, 0, len(evidence))
	for _, e := range evidence {
		if _, ok := known[e.Source]; !ok {
			continue
		}
		e.Excerpt = truncateRunes(e.Excerpt, evidenceExcerptMax)
		out = append(out, e)
		if len(out) == evidenceLimit {
			break
		}
	}
	return out
}

// fallback is the deterministic extractive path: first sentence of the
// highest-scoring candidate plus assembled evidence and heuristic confidence.
func (s *AnswerSynthesizer) fallback(candidates []domain.Candidate) domain.AnswerResult {
	if len(candidates) == 0 {
		return domain.AnswerResult{
			Answer:             "I couldn't find relevant information in the indexed documents.",
			Evidence:           []domain.Evidence{},
			MissingInformation: "No matching chunks found; try a broader query or upload more documents.",
			Confidence:         0,
		}
	}

	top := topCandidate(candidates)
	answer := "(Analyst) " + firstSentence(top.Chunk.Text, fallbackSentenceMax)

	evidence := make([]domain.Evidence, 0, evidenceLimit)
	for _, c := range candidates {
		evidence = append(evidence, domain.Evidence{
			Source:  c.Chunk.Source,
			Excerpt: truncateRunes(c.Chunk.Text, evidenceExcerptMax),
			Score:   c.Score,
		})
		if len(evidence) == evidenceLimit {
			break
		}
	}

	missing := ""
	if len(candidates) < 3 {
		missing = "Only a small number of supporting chunks were found; the answer may be incomplete."
	}

	return domain.AnswerResult{
		Answer:             answer,
		Evidence:           evidence,
		MissingInformation: missing,
		Confidence:         fallbackConfidence(candidates),
	}
}

// topCandidate picks the highest-scoring candidate; ties and unscored sets
// keep the original candidate order.
func topCandidate(candidates []domain.Candidate) domain.Candidate {
	anyScored := false
	for _, c := range candidates {
		if c.Scored {
			anyScored = true
			break
		}
	}
	if !anyScored {
		return candidates[0]
	}

	sorted := make([]domain.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return scoreOrZero(sorted[i]) > scoreOrZero(sorted[j])
	})
	return sorted[0]
}

func scoreOrZero(c domain.Candidate) float64 {
	if !c.Scored {
		return 0
	}
	return c.Score
}

// fallbackConfidence rewards average relevance plus a capped bonus for
// corroborating volume. Without scores it grows slowly with candidate count.
func fallbackConfidence(candidates []domain.Candidate) float64 {
	if len(candidates) == 0 {
		return 0
	}

	var sum float64
	scored := 0
	for _, c := range candidates {
		if c.Scored {
			sum += c.Score
			scored++
		}
	}

	if scored > 0 {
		conf := clamp01(sum / float64(scored))
		conf = conf*0.85 + math.Min(0.15, 0.03*float64(len(candidates)))
		return round3(clamp01(conf))
	}
	return round3(math.Min(0.85, 0.25+0.05*float64(len(candidates))))
}

// firstSentence cuts at the first sentence terminator, bounded to maxRunes
// with an ellipsis.
func firstSentence(text string, maxRunes int) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	runes := []rune(text)
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 == len(runes) || runes[i+1] == ' ' {
			runes = runes[:i+1]
			break
		}
	}
	if len(runes) > maxRunes {
		return strings.TrimSpace(string(runes[:maxRunes-3])) + "..."
	}
	return string(runes)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
