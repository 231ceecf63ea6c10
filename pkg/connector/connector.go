package connector

import (
	"context"
	"errors"
	"math/big"
	"time"
)

// DefaultRowLimit caps the number of rows a connector materializes per query.
const DefaultRowLimit = 5000

var ErrUnsupportedSource = errors.New("unsupported source type")

// Connector is the data source contract used by the pipeline.
//
// Validate and Execute report SQL-level problems through their result values.
// A non-nil error means the source itself could not be reached.
type Connector interface {
	Name() string
	Type() string

	Validate(ctx context.Context, sql string) (ValidationResult, error)
	Execute(ctx context.Context, sql string) (QueryResult, error)
	Schema(ctx context.Context) (*Schema, error)
	UniqueValues(ctx context.Context, table, column string, limit int) ([]any, error)

	Ping(ctx context.Context) error
	Close() error
}

type ValidationResult struct {
	Valid        bool     `json:"valid"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

func Invalid(msg string) ValidationResult {
	return ValidationResult{Valid: false, ErrorMessage: msg}
}

type QueryResult struct {
	Success       bool
	Data          *Frame
	RowCount      int
	ExecutionTime time.Duration
	ErrorMessage  string
	SQLExecuted   string
}

// Failed builds an unsuccessful result for sql.
func Failed(sql, msg string, elapsed time.Duration) QueryResult {
	return QueryResult{
		Success:       false,
		ErrorMessage:  msg,
		SQLExecuted:   sql,
		ExecutionTime: elapsed,
	}
}

// Frame is a tabular result with ordered rows and named columns.
type Frame struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// Records returns the rows keyed by column name.
func (f *Frame) Records() []map[string]any {
	if f == nil {
		return []map[string]any{}
	}
	out := make([]map[string]any, 0, len(f.Rows))
	for _, row := range f.Rows {
		rec := make(map[string]any, len(f.Columns))
		for i, col := range f.Columns {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// Column returns the values of the named column, or nil if it does not exist.
func (f *Frame) Column(name string) []any {
	if f == nil {
		return nil
	}
	idx := -1
	for i, c := range f.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	vals := make([]any, 0, len(f.Rows))
	for _, row := range f.Rows {
		if idx < len(row) {
			vals = append(vals, row[idx])
		}
	}
	return vals
}

type Schema struct {
	SourceName    string         `json:"source_name"`
	SourceType    string         `json:"source_type"`
	Tables        []Table        `json:"tables"`
	Relationships []Relationship `json:"relationships,omitempty"`
}

func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	return names
}

type Table struct {
	Name     string   `json:"name"`
	RowCount *int64   `json:"row_count,omitempty"`
	Columns  []Column `json:"columns"`
}

type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
	// ForeignKey is "table.column" when the column references another table.
	ForeignKey string `json:"foreign_key,omitempty"`
}

type Relationship struct {
	FromTable  string `json:"from_table"`
	FromColumn string `json:"from_column"`
	ToTable    string `json:"to_table"`
	ToColumn   string `json:"to_column"`
}

// NormalizeValue converts driver-specific scan values into JSON-friendly ones.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case *big.Int:
		return bigIntValue(x)
	case big.Int:
		return bigIntValue(&x)
	default:
		return v
	}
}

// bigIntValue returns an int64 when n fits, otherwise the nearest float64.
func bigIntValue(n *big.Int) any {
	if n == nil {
		return nil
	}
	if n.IsInt64() {
		return n.Int64()
	}
	f, _ := new(big.Float).SetInt(n).Float64()
	return f
}
