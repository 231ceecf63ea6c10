package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/malbeclabs/datachat/pkg/cache"
	"github.com/malbeclabs/datachat/pkg/connector"
)

const (
	DefaultRAGTopK = 3

	NoDocumentsAnswer   = "I could not find any relevant documents to answer your question."
	QuestionRequiredMsg = "Question is required"

	responseCachePrefix = "query"
	schemaCachePrefix   = "schema"
)

type Config struct {
	Logger    *slog.Logger
	Clock     clockwork.Clock
	Connector connector.Connector
	LLM       LLM
	// Retriever is optional; without it every question takes the SQL path.
	Retriever Retriever
	// Cache is optional; nil disables response caching.
	Cache *cache.Cache

	MaxRetries             int
	SchemaCacheTTL         time.Duration
	ResponseCacheTTL       time.Duration
	SchemaSummaryCacheTTL  time.Duration
	CategoricalValuesLimit int
	RAGTopK                int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Connector == nil {
		return errors.New("connector is required")
	}
	if cfg.LLM == nil {
		return errors.New("llm is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.Disabled(cfg.Logger)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.SchemaCacheTTL <= 0 {
		cfg.SchemaCacheTTL = DefaultSchemaCacheTTL
	}
	if cfg.ResponseCacheTTL <= 0 {
		cfg.ResponseCacheTTL = cache.DefaultResponseTTL
	}
	if cfg.SchemaSummaryCacheTTL <= 0 {
		cfg.SchemaSummaryCacheTTL = cache.DefaultSchemaSummaryTTL
	}
	if cfg.CategoricalValuesLimit <= 0 {
		cfg.CategoricalValuesLimit = DefaultCategoricalValuesLimit
	}
	if cfg.RAGTopK <= 0 {
		cfg.RAGTopK = DefaultRAGTopK
	}
	return nil
}

// Orchestrator answers questions end to end.
type Orchestrator struct {
	log *slog.Logger
	cfg Config

	schema      *SchemaContextBuilder
	router      *IntentRouter
	executor    *Executor
	interpreter *Interpreter
	metrics     *QueryMetrics

	responses *cache.Memo[*QueryResponse]
	summaries *cache.Memo[string]
}

// New creates a new Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate orchestrator config: %w", err)
	}

	o := &Orchestrator{
		log:         cfg.Logger,
		cfg:         cfg,
		schema:      NewSchemaContextBuilder(cfg.Logger, cfg.Clock, cfg.Connector, cfg.SchemaCacheTTL, cfg.CategoricalValuesLimit),
		router:      NewIntentRouter(cfg.Logger, cfg.LLM, cfg.Retriever),
		executor:    NewExecutor(cfg.Logger, cfg.Connector, cfg.LLM, cfg.MaxRetries),
		interpreter: NewInterpreter(cfg.LLM),
		metrics:     NewQueryMetrics(),
	}
	o.responses = &cache.Memo[*QueryResponse]{
		Cache:       cfg.Cache,
		Prefix:      responseCachePrefix,
		Function:    "process_question",
		TTL:         cfg.ResponseCacheTTL,
		Codec:       cache.PortableCodec[*QueryResponse]{FromPortable: QueryResponseFromPortable},
		ShouldCache: cacheable,
	}
	o.summaries = &cache.Memo[string]{
		Cache:    cfg.Cache,
		Prefix:   schemaCachePrefix,
		Function: "schema_summary:" + cfg.Connector.Name(),
		TTL:      cfg.SchemaSummaryCacheTTL,
		Codec:    cache.StringCodec{},
	}
	return o, nil
}

func cacheable(r *QueryResponse) bool {
	return r != nil && r.Success && r.Metadata.InterpretationError == ""
}

// NormalizeQuestion is the cache identity of a question.
func NormalizeQuestion(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// ProcessQuestion answers question. It never returns nil: every failure,
// including a panic inside the pipeline, becomes an unsuccessful response.
func (o *Orchestrator) ProcessQuestion(ctx context.Context, question string) *QueryResponse {
	resp, err := o.responses.Call(ctx, func(ctx context.Context) (*QueryResponse, error) {
		return o.process(ctx, question), nil
	}, NormalizeQuestion(question))
	if err != nil || resp == nil {
		return failure(question, "", fmt.Sprintf("Unexpected error: %v", err))
	}
	return resp
}

func (o *Orchestrator) process(ctx context.Context, question string) (resp *QueryResponse) {
	start := o.cfg.Clock.Now()
	var usage Usage

	defer func() {
		if r := recover(); r != nil {
			o.log.Error("pipeline: panic while processing question", "question", question, "panic", r)
			resp = failure(question, "", fmt.Sprintf("Unexpected error: %v", r))
		}
		if resp == nil {
			resp = failure(question, "", "Unexpected error: no response produced")
		}
		resp.applyUsage(usage)
		o.metrics.Record(resp.Success, o.cfg.Clock.Since(start), usage.Tokens, usage.Cost)
	}()

	if strings.TrimSpace(question) == "" {
		return failure(question, "", QuestionRequiredMsg)
	}
	o.log.Info("pipeline: processing question", "question", question)

	intent, u, err := o.router.Classify(ctx, question)
	usage.Merge(u)
	if err != nil {
		return o.fail(question, "", err)
	}

	if intent == IntentKnowledgeBase {
		resp = o.answerFromDocuments(ctx, question, &usage)
	} else {
		resp = o.answerFromData(ctx, question, &usage)
	}
	resp.Metadata.Intent = intent
	return resp
}

func (o *Orchestrator) fail(question, sql string, err error) *QueryResponse {
	o.log.Error("pipeline: failed to process question", "question", question, "error", err)
	return failure(question, sql, fmt.Sprintf("Unexpected error: %v", err))
}

func (o *Orchestrator) answerFromDocuments(ctx context.Context, question string, usage *Usage) *QueryResponse {
	vec, err := o.cfg.Retriever.Embed(ctx, question)
	if err != nil {
		return o.fail(question, "", err)
	}
	chunks, err := o.cfg.Retriever.QuerySimilar(ctx, vec, o.cfg.RAGTopK)
	if err != nil {
		return o.fail(question, "", err)
	}
	if len(chunks) == 0 {
		return &QueryResponse{
			Question:       question,
			Success:        true,
			Interpretation: NoDocumentsAnswer,
			Metadata:       Metadata{RAGMode: true},
		}
	}

	blocks := make([]string, 0, len(chunks))
	sources := make([]string, 0, len(chunks))
	for _, c := range chunks {
		src := c.Source
		if src == "" {
			src = "unknown"
		}
		blocks = append(blocks, fmt.Sprintf("[Source: %s]\n%s", src, c.Text))
		sources = append(sources, src)
	}

	answer, err := o.cfg.LLM.AnswerWithContext(ctx, question, strings.Join(blocks, "\n\n---\n\n"))
	if err != nil {
		return o.fail(question, "", err)
	}
	usage.Add(answer)

	return &QueryResponse{
		Question:       question,
		Success:        true,
		Interpretation: answer.Content,
		Metadata: Metadata{
			RAGMode:    true,
			SourceDocs: sources,
		},
	}
}

func (o *Orchestrator) answerFromData(ctx context.Context, question string, usage *Usage) *QueryResponse {
	schemaContext, err := o.schema.Context(ctx)
	if err != nil {
		return o.fail(question, "", err)
	}

	generated, err := o.cfg.LLM.GenerateSQL(ctx, question, schemaContext)
	if err != nil {
		return o.fail(question, "", err)
	}
	usage.Add(generated)
	sql := generated.Content
	o.log.Info("pipeline: generated sql", "sql", sql)

	exec, err := o.executor.Execute(ctx, sql, schemaContext)
	usage.Merge(exec.Usage)
	if err != nil {
		return o.fail(question, sql, err)
	}

	result := exec.Result
	if !result.Success {
		resp := failure(question, result.SQLExecuted, result.ErrorMessage)
		resp.Metadata.Attempts = exec.Attempts
		return resp
	}

	resp := &QueryResponse{
		Question: question,
		Success:  true,
		SQL:      result.SQLExecuted,
		Data:     result.Data,
		Metadata: Metadata{
			RowCount:      result.RowCount,
			ExecutionTime: result.ExecutionTime.Seconds(),
			Attempts:      exec.Attempts,
		},
	}

	interpretation, err := o.interpreter.Interpret(ctx, question, result.SQLExecuted, result.Data)
	if err != nil {
		o.log.Warn("pipeline: interpretation failed", "question", question, "error", err)
		resp.Interpretation = fmt.Sprintf("Interpretation unavailable: %v", err)
		resp.Metadata.InterpretationError = err.Error()
		return resp
	}
	usage.Add(interpretation)
	resp.Interpretation = interpretation.Content
	return resp
}

// SchemaSummary returns the schema context, cached for the schema summary TTL.
func (o *Orchestrator) SchemaSummary(ctx context.Context) (string, error) {
	return o.summaries.Call(ctx, o.schema.Context)
}

// InvalidateSchema drops the in-process schema context.
func (o *Orchestrator) InvalidateSchema() {
	o.schema.Invalidate()
}

// MetricsSummary returns the query metrics collected since startup.
func (o *Orchestrator) MetricsSummary() MetricsSummary {
	return o.metrics.Summary()
}

func (o *Orchestrator) Connector() connector.Connector {
	return o.cfg.Connector
}

func (o *Orchestrator) Retriever() Retriever {
	return o.cfg.Retriever
}
