// Package pipeline turns natural-language questions into answers. A question
// is routed either to the SQL path (schema context, SQL generation,
// validate/execute with refinement, interpretation) or to the knowledge-base
// path (retrieval plus a grounded answer).
package pipeline

import (
	"context"

	"github.com/malbeclabs/datachat/pkg/llm"
	"github.com/malbeclabs/datachat/pkg/retrieval"
)

type Intent string

const (
	IntentSQLData       Intent = "SQL_DATA"
	IntentKnowledgeBase Intent = "KNOWLEDGE_BASE"
)

// LLM is the set of language-model operations the pipeline depends on.
type LLM interface {
	ClassifyIntent(ctx context.Context, question string) (llm.Response, error)
	GenerateSQL(ctx context.Context, question, schemaContext string) (llm.Response, error)
	RefineSQL(ctx context.Context, sql, errorMessage, schemaContext string) (llm.Response, error)
	InterpretResults(ctx context.Context, question, sql, resultsSummary string) (llm.Response, error)
	AnswerWithContext(ctx context.Context, question, documents string) (llm.Response, error)
}

// Retriever finds knowledge-base chunks similar to a question.
type Retriever interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	QuerySimilar(ctx context.Context, vector []float32, topK int) ([]retrieval.Chunk, error)
	Count(ctx context.Context) (int, error)
}

// Usage accumulates token and cost accounting across LLM calls.
type Usage struct {
	Tokens int64
	Cost   float64
}

func (u *Usage) Add(r llm.Response) {
	u.Tokens += r.TokensUsed
	u.Cost += r.Cost
}

func (u *Usage) Merge(o Usage) {
	u.Tokens += o.Tokens
	u.Cost += o.Cost
}
