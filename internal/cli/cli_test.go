package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/malbeclabs/datachat/pkg/config"
	"github.com/malbeclabs/datachat/pkg/connector"
	"github.com/malbeclabs/datachat/pkg/pipeline"
	"github.com/malbeclabs/datachat/pkg/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLI_RootCommandRegistersSubcommands(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"ask", "schema", "ingest", "sources", "metrics"} {
		assert.Contains(t, names, want)
	}

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Ask questions of your data")
}

func TestCLI_AskRequiresQuestion(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"ask"})
	require.Error(t, root.Execute())
}

func TestCLI_ReadQuestions(t *testing.T) {
	t.Parallel()

	in := strings.NewReader("# warmup\nHow many customers?\n\n   \n  top 5 orders by total  \n#skip\n")
	got, err := readQuestions(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"How many customers?", "top 5 orders by total"}, got)

	got, err = readQuestions(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCLI_RenderResponseSuccess(t *testing.T) {
	t.Parallel()

	resp := &pipeline.QueryResponse{
		Question: "customers by region",
		Success:  true,
		SQL:      "SELECT name, region FROM customers",
		Data: &connector.Frame{
			Columns: []string{"name", "region", "score"},
			Rows: [][]any{
				{"Ada", "EU", 1.5},
				{"Grace", "US", nil},
				{"Linus", "EU", int64(3)},
			},
		},
		Interpretation: "Two customers are in the EU.",
		Metadata: pipeline.Metadata{
			Intent:     pipeline.IntentSQLData,
			RowCount:   3,
			Attempts:   1,
			TokensUsed: 42,
			Cost:       0.0012,
		},
	}

	var out bytes.Buffer
	renderResponse(&out, resp, 2)
	s := out.String()

	assert.True(t, strings.HasPrefix(s, "Two customers are in the EU.\n"))
	assert.Contains(t, s, "SQL:\nSELECT name, region FROM customers\n")
	assert.Contains(t, s, "Ada")
	assert.Contains(t, s, "1.5")
	assert.Contains(t, s, "NULL")
	assert.NotContains(t, s, "Linus")
	assert.Contains(t, s, "(2 of 3 rows shown)")
	assert.Contains(t, s, "[intent=SQL_DATA rows=3 attempts=1 tokens=42 cost=$0.0012]")
}

func TestCLI_RenderResponseFailure(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	renderResponse(&out, &pipeline.QueryResponse{
		Success:      false,
		SQL:          "DELETE FROM customers",
		ErrorMessage: "Validation failed: Only SELECT queries are allowed",
	}, 10)

	assert.Equal(t, "Error: Validation failed: Only SELECT queries are allowed\n\nLast SQL:\nDELETE FROM customers\n", out.String())
}

func TestCLI_RenderResponseDocuments(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	renderResponse(&out, &pipeline.QueryResponse{
		Success:        true,
		Interpretation: "Refunds take 5 days.",
		Metadata: pipeline.Metadata{
			Intent:     pipeline.IntentKnowledgeBase,
			RAGMode:    true,
			SourceDocs: []string{"docs/refunds.md", "docs/faq.md"},
		},
	}, 10)

	s := out.String()
	assert.Contains(t, s, "Sources: docs/refunds.md, docs/faq.md")
	assert.NotContains(t, s, "SQL:")
}

func TestCLI_RenderMetrics(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	renderMetrics(&out, pipeline.MetricsSummary{
		TotalQueries:      3,
		SuccessfulQueries: 2,
		FailedQueries:     1,
		SuccessRate:       "66.7%",
		AvgQueryTime:      "1.23s",
		P95QueryTime:      "2.00s",
		TotalTokens:       150,
		TotalCost:         "$0.0015",
	})

	s := out.String()
	for _, want := range []string{"Total queries", "66.7%", "1.23s", "2.00s", "150", "$0.0015"} {
		assert.Contains(t, s, want)
	}
}

func TestCLI_SourceListing(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		ActiveSource: "warehouse",
		Sources: map[string]config.Source{
			"warehouse": {Name: "warehouse", Type: "duckdb", Description: "analytics"},
			"app":       {Name: "app", Type: "postgres"},
		},
	}
	l := newSourceListing(cfg, map[string]int{"docs/z.md": 2, "docs/a.md": 5})

	require.Len(t, l.Sources, 2)
	assert.Equal(t, "app", l.Sources[0].Name)
	assert.False(t, l.Sources[0].Active)
	assert.Equal(t, "warehouse", l.Sources[1].Name)
	assert.True(t, l.Sources[1].Active)
	assert.Equal(t, []documentEntry{{Source: "docs/a.md", Chunks: 5}, {Source: "docs/z.md", Chunks: 2}}, l.Documents)

	var out bytes.Buffer
	renderSources(&out, l)
	assert.Contains(t, out.String(), "analytics")
	assert.Contains(t, out.String(), "docs/a.md")

	var js bytes.Buffer
	require.NoError(t, encodeJSON(&js, newSourceListing(cfg, nil)))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, []any{}, decoded["documents"])

	out.Reset()
	renderSources(&out, newSourceListing(cfg, nil))
	assert.Contains(t, out.String(), "No documents ingested.")
}

func TestCLI_DocumentCounts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.db")
	counts, err := documentCounts(ctx, missing)
	require.NoError(t, err)
	assert.Nil(t, counts)
	assert.NoFileExists(t, missing)

	counts, err = documentCounts(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, counts)

	path := filepath.Join(dir, "vectors.db")
	store, err := retrieval.OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, []retrieval.Record{
		{Chunk: retrieval.Chunk{ID: "a0", Source: "docs/a.md", Text: "a"}, Embedding: []float32{1, 0}},
		{Chunk: retrieval.Chunk{ID: "a1", Source: "docs/a.md", Index: 1, Text: "b"}, Embedding: []float32{0, 1}},
		{Chunk: retrieval.Chunk{ID: "b0", Source: "docs/b.md", Text: "c"}, Embedding: []float32{1, 1}},
	}))
	require.NoError(t, store.Close())

	counts, err = documentCounts(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"docs/a.md": 2, "docs/b.md": 1}, counts)
}
