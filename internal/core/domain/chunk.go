package domain

// Chunk is the immutable unit of retrievable text. Chunks are produced once
// during ingestion and are only replaced by a full re-index of their source.
type Chunk struct {
	ID         string  `json:"id"`
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Summary    string  `json:"summary,omitempty"`
	Quality    float64 `json:"quality,omitempty"`
}

type CandidateOrigin string

const (
	OriginVector  CandidateOrigin = "vector"
	OriginLexical CandidateOrigin = "lexical"
)

// Candidate pairs a chunk with one retrieval signal for a single query.
// Scored=false marks an unscored lexical hit; such candidates lose to any
// scored candidate for the same text during fusion.
type Candidate struct {
	Chunk  Chunk           `json:"chunk"`
	Score  float64         `json:"score"`
	Scored bool            `json:"scored"`
	Origin CandidateOrigin `json:"origin"`
}
