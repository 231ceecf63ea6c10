package sqldb

import (
	"context"
	"strings"

	"github.com/malbeclabs/datachat/pkg/connector"
)

// Dialect supplies the source-specific parts of a database/sql connector.
type Dialect interface {
	// Type is the source type reported in schema context, e.g. "sqlite".
	Type() string
	BlockedKeywords() []string
	// ExplainPrefix is prepended to a query for a syntax check. Empty disables it.
	ExplainPrefix() string
	QuoteIdent(name string) string

	Tables(ctx context.Context, q Querier) ([]string, error)
	Describe(ctx context.Context, q Querier, table string) (connector.Table, []connector.Relationship, error)
}

// RowCounter is implemented by dialects that can estimate row counts more
// cheaply than COUNT(*).
type RowCounter interface {
	RowCount(ctx context.Context, q Querier, table string) (*int64, error)
}

// ValueNormalizer is implemented by dialects whose driver returns values
// that connector.NormalizeValue does not understand.
type ValueNormalizer interface {
	NormalizeValue(v any) any
}

// QuoteDouble quotes an identifier with ANSI double quotes.
func QuoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteBacktick quotes an identifier with backticks.
func QuoteBacktick(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
