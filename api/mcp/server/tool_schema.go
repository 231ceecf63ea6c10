package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/malbeclabs/datachat/api/metrics"
	"github.com/malbeclabs/datachat/pkg/pipeline"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const schemaToolName = "schema"

type SchemaInput struct{}

type SchemaOutput struct {
	SourceName string   `json:"source_name"`
	SourceType string   `json:"source_type"`
	Tables     []string `json:"tables"`
	Summary    string   `json:"summary"`
}

func RegisterSchemaTool(log *slog.Logger, server *mcp.Server, orch *pipeline.Orchestrator) error {
	if orch == nil {
		return fmt.Errorf("orchestrator is required")
	}
	req, err := jsonschema.For[SchemaInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create schema input schema: %w", err)
	}
	res, err := jsonschema.For[SchemaOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create schema output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         schemaToolName,
		Description:  "Describe the connected database: tables, columns with types and keys, sample categorical values and relationships.",
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ SchemaInput) (*mcp.CallToolResult, SchemaOutput, error) {
		start := time.Now()
		log.Debug("mcp/tool: handling schema")
		out, err := handleSchema(ctx, orch)
		metrics.ObserveToolCall(schemaToolName, start, err)
		if err != nil {
			return nil, SchemaOutput{}, err
		}
		return nil, out, nil
	})
	return nil
}

func handleSchema(ctx context.Context, orch *pipeline.Orchestrator) (SchemaOutput, error) {
	schema, err := orch.Connector().Schema(ctx)
	if err != nil {
		return SchemaOutput{}, fmt.Errorf("failed to get schema: %w", err)
	}
	summary, err := orch.SchemaSummary(ctx)
	if err != nil {
		return SchemaOutput{}, fmt.Errorf("failed to build schema summary: %w", err)
	}
	return SchemaOutput{
		SourceName: schema.SourceName,
		SourceType: schema.SourceType,
		Tables:     schema.TableNames(),
		Summary:    summary,
	}, nil
}
