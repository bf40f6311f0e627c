package domain

type QuestionIntent string

const (
	IntentFactual     QuestionIntent = "factual"
	IntentReasoning   QuestionIntent = "reasoning"
	IntentComparison  QuestionIntent = "comparison"
	IntentMultiHop    QuestionIntent = "multi-hop"
	IntentMissingData QuestionIntent = "missing_data"
)

type RetrievalStrategy string

const (
	StrategyVector RetrievalStrategy = "vector"
	StrategyBM25   RetrievalStrategy = "bm25"
	StrategyHybrid RetrievalStrategy = "hybrid"
)

// RetrievalPlan carries per-query retrieval parameters from the planner to the
// retrieval orchestrator. Query must always be the user's question verbatim.
type RetrievalPlan struct {
	Intent      QuestionIntent    `json:"intent"`
	Strategy    RetrievalStrategy `json:"retrieval_strategy"`
	ChunkBudget int               `json:"chunk_budget"`
	Query       string            `json:"query"`
}
