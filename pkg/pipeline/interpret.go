package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/malbeclabs/datachat/pkg/connector"
	"github.com/malbeclabs/datachat/pkg/llm"
	"github.com/olekukonko/tablewriter"
)

const (
	NoResultsSummary = "No results found."
	previewRows      = 10
)

// Interpreter turns a result frame into a textual summary and asks the LLM
// to explain it.
type Interpreter struct {
	llm LLM
}

// NewInterpreter creates a new Interpreter.
func NewInterpreter(llm LLM) *Interpreter {
	return &Interpreter{llm: llm}
}

// Interpret asks the LLM to explain the rows returned for question.
func (i *Interpreter) Interpret(ctx context.Context, question, sql string, frame *connector.Frame) (llm.Response, error) {
	resp, err := i.llm.InterpretResults(ctx, question, sql, Summarize(frame))
	if err != nil {
		return llm.Response{}, fmt.Errorf("failed to interpret results: %w", err)
	}
	return resp, nil
}

// Summarize describes frame: row count, columns, the first rows as a table
// and min/max/avg for numeric columns.
func Summarize(frame *connector.Frame) string {
	if frame.Len() == 0 {
		return NoResultsSummary
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Returned %d rows\n", frame.Len())
	fmt.Fprintf(&sb, "Columns: %s\n", strings.Join(frame.Columns, ", "))
	sb.WriteString("\nFirst rows:\n")

	table := tablewriter.NewWriter(&sb)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader(frame.Columns)
	for i, row := range frame.Rows {
		if i >= previewRows {
			break
		}
		cells := make([]string, len(frame.Columns))
		for j := range frame.Columns {
			if j < len(row) {
				cells[j] = formatValue(row[j])
			}
		}
		table.Append(cells)
	}
	table.Render()

	var stats []string
	for _, col := range frame.Columns {
		if s, ok := numericStats(frame.Column(col)); ok {
			stats = append(stats, fmt.Sprintf("  %s: min=%s, max=%s, avg=%.2f", col, formatNumber(s.min, s.integral), formatNumber(s.max, s.integral), s.avg))
		}
	}
	if len(stats) > 0 {
		sb.WriteString("\nNumeric column statistics:\n")
		sb.WriteString(strings.Join(stats, "\n"))
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

type columnStats struct {
	min, max, avg float64
	integral      bool
}

// numericStats reports statistics when every non-null value is a number and
// at least one value is present.
func numericStats(values []any) (columnStats, bool) {
	s := columnStats{min: math.Inf(1), max: math.Inf(-1), integral: true}
	var sum float64
	n := 0
	for _, v := range values {
		if v == nil {
			continue
		}
		f, integral, ok := toFloat(v)
		if !ok {
			return columnStats{}, false
		}
		s.integral = s.integral && integral
		s.min = math.Min(s.min, f)
		s.max = math.Max(s.max, f)
		sum += f
		n++
	}
	if n == 0 {
		return columnStats{}, false
	}
	s.avg = sum / float64(n)
	return s, true
}

func toFloat(v any) (float64, bool, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true, true
	case int8:
		return float64(x), true, true
	case int16:
		return float64(x), true, true
	case int32:
		return float64(x), true, true
	case int64:
		return float64(x), true, true
	case uint:
		return float64(x), true, true
	case uint8:
		return float64(x), true, true
	case uint16:
		return float64(x), true, true
	case uint32:
		return float64(x), true, true
	case uint64:
		return float64(x), true, true
	case float32:
		return float64(x), false, true
	case float64:
		return x, false, true
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return float64(i), true, true
		}
		f, err := x.Float64()
		return f, false, err == nil
	default:
		return 0, false, false
	}
}

func formatNumber(f float64, integral bool) string {
	if integral {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatValue renders one cell; long values are truncated and floats
// rounded to two decimals.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case float64:
		if val == math.Trunc(val) {
			return fmt.Sprintf("%.0f", val)
		}
		return fmt.Sprintf("%.2f", val)
	case float32:
		return formatValue(float64(val))
	default:
		s := fmt.Sprint(v)
		if len(s) > 100 {
			s = s[:97] + "..."
		}
		return s
	}
}
