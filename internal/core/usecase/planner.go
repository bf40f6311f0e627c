package usecase

import (
	"log/slog"
	"strings"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
)

// QueryPlanner classifies a question into a retrieval plan using a fixed,
// ordered keyword rule table. It is fully deterministic and never calls a
// model. The plan's Query field is always the input question verbatim.
type QueryPlanner struct {
	logger *slog.Logger
}

func NewQueryPlanner(logger *slog.Logger) *QueryPlanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryPlanner{logger: logger}
}

type intentRule struct {
	keywords []string
	intent   domain.QuestionIntent
	strategy domain.RetrievalStrategy
	budget   int
}

// Rules are checked in order; the first keyword hit wins. Factual is the
// default when nothing matches.
var intentRules = []intentRule{
	{
		keywords: []string{"compare", "versus", " vs ", "difference", "which is better"},
		intent:   domain.IntentComparison,
		strategy: domain.StrategyHybrid,
		budget:   8,
	},
	{
		keywords: []string{"why", "how", "explain", "cause", "reason"},
		intent:   domain.IntentReasoning,
		strategy: domain.StrategyHybrid,
		budget:   12,
	},
	{
		keywords: []string{"multi-step", "multi hop", "multi-hop", "chain"},
		intent:   domain.IntentMultiHop,
		strategy: domain.StrategyHybrid,
		budget:   15,
	},
	{
		keywords: []string{"missing", "not contained", "unknown"},
		intent:   domain.IntentMissingData,
		strategy: domain.StrategyHybrid,
		budget:   10,
	},
	{
		keywords: []string{"define", "definition of", "meaning of"},
		intent:   domain.IntentFactual,
		strategy: domain.StrategyVector,
		budget:   5,
	},
}

const shortQuestionWords = 8

// Analyze builds a retrieval plan for the question. An empty question yields
// a safe default plan with an empty query and a logged warning, not an error.
func (p *QueryPlanner) Analyze(question string) domain.RetrievalPlan {
	q := strings.TrimSpace(question)
	if q == "" {
		p.logger.Warn("empty question passed to planner; returning safe default plan")
		return domain.RetrievalPlan{
			Intent:      domain.IntentFactual,
			Strategy:    domain.StrategyHybrid,
			ChunkBudget: 5,
			Query:       "",
		}
	}

	lower := strings.ToLower(q)
	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return domain.RetrievalPlan{
					Intent:      rule.intent,
					Strategy:    rule.strategy,
					ChunkBudget: rule.budget,
					Query:       q,
				}
			}
		}
	}

	budget := 8
	if len(strings.Fields(q)) < shortQuestionWords {
		budget = 5
	}
	return domain.RetrievalPlan{
		Intent:      domain.IntentFactual,
		Strategy:    domain.StrategyHybrid,
		ChunkBudget: budget,
		Query:       q,
	}
}
