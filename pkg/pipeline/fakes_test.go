package pipeline

import (
	"context"
	"sync"

	"github.com/malbeclabs/datachat/pkg/connector"
	"github.com/malbeclabs/datachat/pkg/llm"
	"github.com/malbeclabs/datachat/pkg/retrieval"
)

type fakeLLM struct {
	mu    sync.Mutex
	calls map[llm.Task]int

	ClassifyIntentFunc    func(ctx context.Context, question string) (llm.Response, error)
	GenerateSQLFunc       func(ctx context.Context, question, schemaContext string) (llm.Response, error)
	RefineSQLFunc         func(ctx context.Context, sql, errorMessage, schemaContext string) (llm.Response, error)
	InterpretResultsFunc  func(ctx context.Context, question, sql, resultsSummary string) (llm.Response, error)
	AnswerWithContextFunc func(ctx context.Context, question, documents string) (llm.Response, error)
}

func (f *fakeLLM) count(task llm.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[llm.Task]int)
	}
	f.calls[task]++
}

func (f *fakeLLM) Calls(task llm.Task) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[task]
}

func (f *fakeLLM) ClassifyIntent(ctx context.Context, question string) (llm.Response, error) {
	f.count(llm.TaskClassifyIntent)
	if f.ClassifyIntentFunc == nil {
		return llm.Response{Content: "SQL_DATA"}, nil
	}
	return f.ClassifyIntentFunc(ctx, question)
}

func (f *fakeLLM) GenerateSQL(ctx context.Context, question, schemaContext string) (llm.Response, error) {
	f.count(llm.TaskGenerateSQL)
	if f.GenerateSQLFunc == nil {
		return llm.Response{Content: "SELECT 1"}, nil
	}
	return f.GenerateSQLFunc(ctx, question, schemaContext)
}

func (f *fakeLLM) RefineSQL(ctx context.Context, sql, errorMessage, schemaContext string) (llm.Response, error) {
	f.count(llm.TaskRefineSQL)
	if f.RefineSQLFunc == nil {
		return llm.Response{Content: sql}, nil
	}
	return f.RefineSQLFunc(ctx, sql, errorMessage, schemaContext)
}

func (f *fakeLLM) InterpretResults(ctx context.Context, question, sql, resultsSummary string) (llm.Response, error) {
	f.count(llm.TaskInterpretResults)
	if f.InterpretResultsFunc == nil {
		return llm.Response{Content: "interpreted"}, nil
	}
	return f.InterpretResultsFunc(ctx, question, sql, resultsSummary)
}

func (f *fakeLLM) AnswerWithContext(ctx context.Context, question, documents string) (llm.Response, error) {
	f.count(llm.TaskAnswerWithContext)
	if f.AnswerWithContextFunc == nil {
		return llm.Response{Content: "answered"}, nil
	}
	return f.AnswerWithContextFunc(ctx, question, documents)
}

type fakeConnector struct {
	mu       sync.Mutex
	executed []string
	schemas  int

	ValidateFunc     func(ctx context.Context, sql string) (connector.ValidationResult, error)
	ExecuteFunc      func(ctx context.Context, sql string) (connector.QueryResult, error)
	SchemaFunc       func(ctx context.Context) (*connector.Schema, error)
	UniqueValuesFunc func(ctx context.Context, table, column string, limit int) ([]any, error)
}

var _ connector.Connector = (*fakeConnector)(nil)

func (f *fakeConnector) Name() string { return "test_db" }
func (f *fakeConnector) Type() string { return "sqlite" }

func (f *fakeConnector) Validate(ctx context.Context, sql string) (connector.ValidationResult, error) {
	if f.ValidateFunc == nil {
		return connector.NewValidator().Check(sql), nil
	}
	return f.ValidateFunc(ctx, sql)
}

func (f *fakeConnector) Execute(ctx context.Context, sql string) (connector.QueryResult, error) {
	f.mu.Lock()
	f.executed = append(f.executed, sql)
	f.mu.Unlock()
	if f.ExecuteFunc == nil {
		return connector.QueryResult{
			Success:     true,
			Data:        &connector.Frame{Columns: []string{"n"}, Rows: [][]any{{int64(1)}}},
			RowCount:    1,
			SQLExecuted: sql,
		}, nil
	}
	return f.ExecuteFunc(ctx, sql)
}

func (f *fakeConnector) Executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.executed...)
}

func (f *fakeConnector) Schema(ctx context.Context) (*connector.Schema, error) {
	f.mu.Lock()
	f.schemas++
	f.mu.Unlock()
	if f.SchemaFunc == nil {
		return testSchema(), nil
	}
	return f.SchemaFunc(ctx)
}

func (f *fakeConnector) SchemaFetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schemas
}

func (f *fakeConnector) UniqueValues(ctx context.Context, table, column string, limit int) ([]any, error) {
	if f.UniqueValuesFunc == nil {
		return nil, nil
	}
	return f.UniqueValuesFunc(ctx, table, column, limit)
}

func (f *fakeConnector) Ping(context.Context) error { return nil }
func (f *fakeConnector) Close() error               { return nil }

type fakeRetriever struct {
	count    int
	countErr error
	chunks   []retrieval.Chunk
	embedErr error
	topK     int
}

func (f *fakeRetriever) Embed(context.Context, string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float32{1, 0}, nil
}

func (f *fakeRetriever) QuerySimilar(_ context.Context, _ []float32, topK int) ([]retrieval.Chunk, error) {
	f.topK = topK
	if len(f.chunks) > topK {
		return f.chunks[:topK], nil
	}
	return f.chunks, nil
}

func (f *fakeRetriever) Count(context.Context) (int, error) {
	return f.count, f.countErr
}

func int64p(v int64) *int64 { return &v }

func testSchema() *connector.Schema {
	return &connector.Schema{
		SourceName: "shop",
		SourceType: "sqlite",
		Tables: []connector.Table{
			{
				Name:     "customers",
				RowCount: int64p(42),
				Columns: []connector.Column{
					{Name: "id", DataType: "INTEGER", PrimaryKey: true},
					{Name: "city", DataType: "TEXT", Nullable: true},
				},
			},
			{
				Name: "orders",
				Columns: []connector.Column{
					{Name: "id", DataType: "INTEGER", PrimaryKey: true},
					{Name: "customer_id", DataType: "INTEGER", ForeignKey: "customers.id"},
					{Name: "status", DataType: "VARCHAR(16)"},
					{Name: "total", DataType: "REAL", Nullable: true},
				},
			},
		},
		Relationships: []connector.Relationship{
			{FromTable: "orders", FromColumn: "customer_id", ToTable: "customers", ToColumn: "id"},
		},
	}
}
