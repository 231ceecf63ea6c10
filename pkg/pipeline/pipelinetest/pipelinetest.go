// Package pipelinetest provides helpers for testing code built on the pipeline.
package pipelinetest

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/malbeclabs/datachat/pkg/connector/sqldb"
	"github.com/malbeclabs/datachat/pkg/connector/sqlite"
	"github.com/malbeclabs/datachat/pkg/llm"
	"github.com/malbeclabs/datachat/pkg/logger"
	"github.com/malbeclabs/datachat/pkg/pipeline"
	"github.com/stretchr/testify/require"
)

// LLM is a scripted pipeline.LLM. Unset funcs return fixed answers: the SQL
// generator answers GenerateSQL, refinement echoes its input and the other
// tasks return a short canned text.
type LLM struct {
	mu    sync.Mutex
	calls map[llm.Task]int

	SQL string

	ClassifyIntentFunc    func(ctx context.Context, question string) (llm.Response, error)
	GenerateSQLFunc       func(ctx context.Context, question, schemaContext string) (llm.Response, error)
	RefineSQLFunc         func(ctx context.Context, sql, errorMessage, schemaContext string) (llm.Response, error)
	InterpretResultsFunc  func(ctx context.Context, question, sql, resultsSummary string) (llm.Response, error)
	AnswerWithContextFunc func(ctx context.Context, question, documents string) (llm.Response, error)
}

var _ pipeline.LLM = (*LLM)(nil)

func (l *LLM) record(task llm.Task) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.calls == nil {
		l.calls = make(map[llm.Task]int)
	}
	l.calls[task]++
}

func (l *LLM) Calls(task llm.Task) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[task]
}

func (l *LLM) ClassifyIntent(ctx context.Context, question string) (llm.Response, error) {
	l.record(llm.TaskClassifyIntent)
	if l.ClassifyIntentFunc != nil {
		return l.ClassifyIntentFunc(ctx, question)
	}
	return llm.Response{Content: string(pipeline.IntentSQLData), TokensUsed: 1}, nil
}

func (l *LLM) GenerateSQL(ctx context.Context, question, schemaContext string) (llm.Response, error) {
	l.record(llm.TaskGenerateSQL)
	if l.GenerateSQLFunc != nil {
		return l.GenerateSQLFunc(ctx, question, schemaContext)
	}
	sql := l.SQL
	if sql == "" {
		sql = "SELECT 1 AS n"
	}
	return llm.Response{Content: sql, TokensUsed: 10, Cost: 0.001}, nil
}

func (l *LLM) RefineSQL(ctx context.Context, sql, errorMessage, schemaContext string) (llm.Response, error) {
	l.record(llm.TaskRefineSQL)
	if l.RefineSQLFunc != nil {
		return l.RefineSQLFunc(ctx, sql, errorMessage, schemaContext)
	}
	return llm.Response{Content: sql, TokensUsed: 5}, nil
}

func (l *LLM) InterpretResults(ctx context.Context, question, sql, resultsSummary string) (llm.Response, error) {
	l.record(llm.TaskInterpretResults)
	if l.InterpretResultsFunc != nil {
		return l.InterpretResultsFunc(ctx, question, sql, resultsSummary)
	}
	return llm.Response{Content: "interpreted", TokensUsed: 5}, nil
}

func (l *LLM) AnswerWithContext(ctx context.Context, question, documents string) (llm.Response, error) {
	l.record(llm.TaskAnswerWithContext)
	if l.AnswerWithContextFunc != nil {
		return l.AnswerWithContextFunc(ctx, question, documents)
	}
	return llm.Response{Content: "answered", TokensUsed: 5}, nil
}

// ShopDB opens a temporary SQLite database with customers and orders tables.
func ShopDB(t *testing.T) *sqldb.Connector {
	t.Helper()

	conn, err := sqlite.Open(sqlite.Config{
		Logger: logger.Discard(),
		Name:   "shop",
		Path:   filepath.Join(t.TempDir(), "shop.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = conn.DB().Exec(`
		CREATE TABLE customers (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			region VARCHAR(20)
		);
		CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			customer_id INTEGER NOT NULL REFERENCES customers(id),
			status TEXT,
			amount REAL
		);
		INSERT INTO customers (id, name, region) VALUES (1, 'Ada', 'EU'), (2, 'Grace', 'US'), (3, 'Linus', 'EU');
		INSERT INTO orders (id, customer_id, status, amount) VALUES
			(1, 1, 'shipped', 10.5),
			(2, 1, 'pending', 20),
			(3, 2, 'shipped', 7.25);
	`)
	require.NoError(t, err)
	return conn
}

// Orchestrator builds an orchestrator from cfg, logging to nowhere unless cfg sets a logger.
func Orchestrator(t *testing.T, cfg pipeline.Config) *pipeline.Orchestrator {
	t.Helper()

	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	o, err := pipeline.New(cfg)
	require.NoError(t, err)
	return o
}
