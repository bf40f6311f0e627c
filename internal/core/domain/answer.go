package domain

// Evidence is one cited excerpt supporting an answer. Source always refers to
// a source present in the candidate set handed to the synthesizer.
type Evidence struct {
	Source  string  `json:"source"`
	Excerpt string  `json:"excerpt"`
	Score   float64 `json:"score"`
}

// AnswerResult is the synthesizer's output. Confidence is clamped to [0,1]
// and rounded to three decimals.
type AnswerResult struct {
	Answer             string     `json:"answer"`
	Evidence           []Evidence `json:"evidence_used"`
	MissingInformation string     `json:"missing_information"`
	Confidence         float64    `json:"confidence_score"`
}

// RetrievalDiagnostics reports candidate counts per retrieval signal. It is
// evaluation/debugging data only and never feeds back into ranking.
type RetrievalDiagnostics struct {
	VectorCandidates  int    `json:"num_vector_candidates"`
	LexicalCandidates int    `json:"num_bm25_candidates"`
	MergedCandidates  int    `json:"merged_candidates"`
	RerankDegraded    bool   `json:"rerank_degraded,omitempty"`
	Error             string `json:"error,omitempty"`
}

// AskResult is the canonical pipeline response. Field names are the wire
// schema; variants like "confidence" vs "confidence_score" are normalized
// into this shape at the orchestrator boundary.
type AskResult struct {
	Answer               string               `json:"answer"`
	EvidenceUsed         []Evidence           `json:"evidence_used"`
	MissingInformation   string               `json:"missing_information"`
	ConfidenceScore      float64              `json:"confidence_score"`
	TopChunks            []Candidate          `json:"top_chunks"`
	RetrievalDiagnostics RetrievalDiagnostics `json:"retrieval_diagnostics"`
	Plan                 RetrievalPlan        `json:"plan"`
}
