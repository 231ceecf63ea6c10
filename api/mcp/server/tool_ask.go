package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/malbeclabs/datachat/api/metrics"
	"github.com/malbeclabs/datachat/pkg/pipeline"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const askToolName = "ask"

type AskInput struct {
	Question string `json:"question" jsonschema:"Natural language question about the connected database or the knowledge base. Examples: How many orders shipped last month?, What is our refund policy?"`
}

type AskOutput struct {
	Success    bool             `json:"success"`
	Answer     string           `json:"answer,omitempty"`
	SQL        string           `json:"sql,omitempty"`
	RowCount   int              `json:"row_count"`
	Rows       []map[string]any `json:"rows,omitempty"`
	Truncated  bool             `json:"truncated,omitempty"`
	Intent     string           `json:"intent,omitempty"`
	SourceDocs []string         `json:"source_docs,omitempty"`
	Error      string           `json:"error,omitempty"`
}

func RegisterAskTool(log *slog.Logger, server *mcp.Server, orch *pipeline.Orchestrator, maxRows int) error {
	if orch == nil {
		return fmt.Errorf("orchestrator is required")
	}
	req, err := jsonschema.For[AskInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create ask input schema: %w", err)
	}
	res, err := jsonschema.For[AskOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create ask output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name: askToolName,
		Description: `
			Answer a natural language question. Data questions are translated to a read-only SQL
			query, validated, executed and interpreted; documentation questions are answered from
			the ingested knowledge base. Returns the answer, the SQL that ran and the result rows.
		`,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, AskOutput, error) {
		start := time.Now()
		log.Debug("mcp/tool: handling ask", "question", in.Question)
		out := handleAsk(ctx, orch, in, maxRows)
		var err error
		if !out.Success {
			err = errors.New(out.Error)
		}
		metrics.ObserveToolCall(askToolName, start, err)
		return nil, out, nil
	})
	return nil
}

func handleAsk(ctx context.Context, orch *pipeline.Orchestrator, in AskInput, maxRows int) AskOutput {
	resp := orch.ProcessQuestion(ctx, in.Question)

	out := AskOutput{
		Success:    resp.Success,
		Answer:     resp.Interpretation,
		SQL:        resp.SQL,
		RowCount:   resp.Data.Len(),
		Intent:     string(resp.Metadata.Intent),
		SourceDocs: resp.Metadata.SourceDocs,
		Error:      resp.ErrorMessage,
	}
	if records := resp.Data.Records(); len(records) > 0 {
		if len(records) > maxRows {
			records = records[:maxRows]
			out.Truncated = true
		}
		out.Rows = records
	}
	return out
}
