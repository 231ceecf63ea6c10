package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/malbeclabs/datachat/pkg/connector"
	"github.com/malbeclabs/datachat/pkg/llm"
	"github.com/malbeclabs/datachat/pkg/pipeline/metrics"
)

const DefaultMaxRetries = 3

// Execution is the final outcome of the validate/execute/refine loop.
type Execution struct {
	Result      connector.QueryResult
	Attempts    int
	Refinements int
	Usage       Usage
}

// Executor validates and runs SQL, asking the LLM to repair the query when
// validation or execution fails. Validation and execution failures draw on
// one shared attempt budget.
type Executor struct {
	log        *slog.Logger
	conn       connector.Connector
	llm        LLM
	maxRetries int
}

// NewExecutor creates an executor that makes at most maxRetries attempts.
func NewExecutor(log *slog.Logger, conn connector.Connector, llm LLM, maxRetries int) *Executor {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Executor{log: log, conn: conn, llm: llm, maxRetries: maxRetries}
}

// Execute validates and runs sql, refining it after each failed attempt.
// The returned error is non-nil only when the source or the LLM is unavailable.
func (e *Executor) Execute(ctx context.Context, sql, schemaContext string) (Execution, error) {
	var exec Execution
	current := sql

	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		exec.Attempts = attempt
		last := attempt == e.maxRetries

		validation, err := e.conn.Validate(ctx, current)
		if err != nil {
			return exec, fmt.Errorf("failed to validate query: %w", err)
		}
		if !validation.Valid {
			if last {
				exec.Result = connector.QueryResult{
					Success:      false,
					ErrorMessage: "Validation failed: " + validation.ErrorMessage,
					SQLExecuted:  current,
				}
				return exec, nil
			}
			e.log.Warn("pipeline: query validation failed, refining", "attempt", attempt, "error", validation.ErrorMessage)
			current, err = e.refine(ctx, &exec, "validation", current, validation.ErrorMessage, schemaContext)
			if err != nil {
				return exec, err
			}
			continue
		}

		result, err := e.conn.Execute(ctx, current)
		if err != nil {
			return exec, fmt.Errorf("failed to execute query: %w", err)
		}
		if result.SQLExecuted == "" {
			result.SQLExecuted = current
		}
		if result.Success {
			e.log.Info("pipeline: query executed", "attempt", attempt, "rows", result.RowCount, "duration", result.ExecutionTime)
			exec.Result = result
			return exec, nil
		}
		if last {
			exec.Result = result
			return exec, nil
		}
		e.log.Warn("pipeline: query execution failed, refining", "attempt", attempt, "error", result.ErrorMessage)
		current, err = e.refine(ctx, &exec, "execution", current, result.ErrorMessage, schemaContext)
		if err != nil {
			return exec, err
		}
	}
	return exec, nil
}

func (e *Executor) refine(ctx context.Context, exec *Execution, reason, sql, errMsg, schemaContext string) (string, error) {
	resp, err := e.llm.RefineSQL(ctx, sql, errMsg, schemaContext)
	if err != nil {
		return "", fmt.Errorf("failed to refine query: %w", err)
	}
	exec.Refinements++
	exec.Usage.Add(resp)
	metrics.RefinementsTotal.WithLabelValues(reason).Inc()
	return llm.ExtractSQL(resp.Content), nil
}
