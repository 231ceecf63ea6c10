package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/malbeclabs/datachat/pkg/config"
	"github.com/malbeclabs/datachat/pkg/connector"
	"github.com/malbeclabs/datachat/pkg/pipeline"
	"github.com/malbeclabs/datachat/pkg/retrieval"
	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader(header)
	return table
}

func renderResponse(w io.Writer, resp *pipeline.QueryResponse, maxRows int) {
	if !resp.Success {
		fmt.Fprintf(w, "Error: %s\n", resp.ErrorMessage)
		if resp.SQL != "" {
			fmt.Fprintf(w, "\nLast SQL:\n%s\n", resp.SQL)
		}
		return
	}

	if resp.Interpretation != "" {
		fmt.Fprintf(w, "%s\n", resp.Interpretation)
	}
	if resp.SQL != "" {
		fmt.Fprintf(w, "\nSQL:\n%s\n", resp.SQL)
	}
	if resp.Data.Len() > 0 {
		fmt.Fprintln(w)
		renderFrame(w, resp.Data, maxRows)
	}
	if len(resp.Metadata.SourceDocs) > 0 {
		fmt.Fprintf(w, "\nSources: %s\n", strings.Join(resp.Metadata.SourceDocs, ", "))
	}

	m := resp.Metadata
	fmt.Fprintf(w, "\n[intent=%s rows=%d attempts=%d tokens=%d cost=$%.4f]\n", m.Intent, m.RowCount, m.Attempts, m.TokensUsed, m.Cost)
}

func renderFrame(w io.Writer, frame *connector.Frame, maxRows int) {
	table := newTable(w, frame.Columns)
	for i, row := range frame.Rows {
		if maxRows > 0 && i >= maxRows {
			break
		}
		cells := make([]string, len(frame.Columns))
		for j := range frame.Columns {
			if j < len(row) {
				cells[j] = formatCell(row[j])
			}
		}
		table.Append(cells)
	}
	table.Render()
	if maxRows > 0 && frame.Len() > maxRows {
		fmt.Fprintf(w, "(%d of %d rows shown)\n", maxRows, frame.Len())
	}
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func renderMetrics(w io.Writer, s pipeline.MetricsSummary) {
	table := newTable(w, []string{"Metric", "Value"})
	table.AppendBulk([][]string{
		{"Total queries", strconv.FormatInt(s.TotalQueries, 10)},
		{"Successful", strconv.FormatInt(s.SuccessfulQueries, 10)},
		{"Failed", strconv.FormatInt(s.FailedQueries, 10)},
		{"Success rate", s.SuccessRate},
		{"Avg query time", s.AvgQueryTime},
		{"P95 query time", s.P95QueryTime},
		{"Total tokens", strconv.FormatInt(s.TotalTokens, 10)},
		{"Total cost", s.TotalCost},
	})
	table.Render()
}

type sourceEntry struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
}

type documentEntry struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

type sourceListing struct {
	Sources   []sourceEntry   `json:"sources"`
	Documents []documentEntry `json:"documents"`
}

func newSourceListing(cfg *config.Config, docs map[string]int) sourceListing {
	l := sourceListing{Sources: []sourceEntry{}, Documents: []documentEntry{}}
	for name, src := range cfg.Sources {
		l.Sources = append(l.Sources, sourceEntry{
			Name:        name,
			Type:        src.Type,
			Description: src.Description,
			Active:      name == cfg.ActiveSource,
		})
	}
	sort.Slice(l.Sources, func(i, j int) bool { return l.Sources[i].Name < l.Sources[j].Name })

	for src, n := range docs {
		l.Documents = append(l.Documents, documentEntry{Source: src, Chunks: n})
	}
	sort.Slice(l.Documents, func(i, j int) bool { return l.Documents[i].Source < l.Documents[j].Source })
	return l
}

func renderSources(w io.Writer, l sourceListing) {
	table := newTable(w, []string{"", "Name", "Type", "Description"})
	for _, s := range l.Sources {
		marker := ""
		if s.Active {
			marker = "*"
		}
		table.Append([]string{marker, s.Name, s.Type, s.Description})
	}
	table.Render()

	if len(l.Documents) == 0 {
		fmt.Fprintln(w, "\nNo documents ingested.")
		return
	}
	fmt.Fprintln(w)
	table = newTable(w, []string{"Document", "Chunks"})
	for _, d := range l.Documents {
		table.Append([]string{d.Source, strconv.Itoa(d.Chunks)})
	}
	table.Render()
}

// documentCounts reads chunk counts per source from the vector database
// without creating it.
func documentCounts(ctx context.Context, path string) (map[string]int, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	store, err := retrieval.OpenSQLiteStore(ctx, path)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Sources(ctx)
}
