package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/malbeclabs/datachat/pkg/connector"
	"github.com/malbeclabs/datachat/pkg/pipeline/metrics"
)

const (
	DefaultSchemaCacheTTL         = 300 * time.Second
	DefaultCategoricalValuesLimit = 10
)

// SchemaContextBuilder renders the connector's schema as LLM prompt context
// and keeps the rendering for a TTL.
type SchemaContextBuilder struct {
	log         *slog.Logger
	clock       clockwork.Clock
	conn        connector.Connector
	ttl         time.Duration
	valuesLimit int

	mu        sync.Mutex
	cached    string
	fetchedAt time.Time
	valid     bool
}

// NewSchemaContextBuilder creates a builder that reuses its context for ttl.
func NewSchemaContextBuilder(log *slog.Logger, clock clockwork.Clock, conn connector.Connector, ttl time.Duration, valuesLimit int) *SchemaContextBuilder {
	if ttl <= 0 {
		ttl = DefaultSchemaCacheTTL
	}
	if valuesLimit <= 0 {
		valuesLimit = DefaultCategoricalValuesLimit
	}
	return &SchemaContextBuilder{
		log:         log,
		clock:       clock,
		conn:        conn,
		ttl:         ttl,
		valuesLimit: valuesLimit,
	}
}

func (b *SchemaContextBuilder) Context(ctx context.Context) (string, error) {
	b.mu.Lock()
	if b.valid && b.clock.Since(b.fetchedAt) < b.ttl {
		s := b.cached
		b.mu.Unlock()
		metrics.SchemaContextBuildsTotal.WithLabelValues("cached").Inc()
		return s, nil
	}
	b.mu.Unlock()

	schema, err := b.conn.Schema(ctx)
	if err != nil {
		metrics.SchemaContextBuildsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to fetch schema: %w", err)
	}
	values := b.categoricalValues(ctx, schema)
	s := FormatSchemaContext(schema, values)

	b.mu.Lock()
	b.cached = s
	b.fetchedAt = b.clock.Now()
	b.valid = true
	b.mu.Unlock()

	metrics.SchemaContextBuildsTotal.WithLabelValues("built").Inc()
	b.log.Debug("pipeline: schema context built", "source", schema.SourceName, "tables", len(schema.Tables), "length", len(s))
	return s, nil
}

// Invalidate forces the next Context call to refetch the schema.
func (b *SchemaContextBuilder) Invalidate() {
	b.mu.Lock()
	b.valid = false
	b.cached = ""
	b.mu.Unlock()
}

func isCategorical(col connector.Column) bool {
	if col.PrimaryKey || col.ForeignKey != "" {
		return false
	}
	t := strings.ToUpper(col.DataType)
	return strings.Contains(t, "CHAR") || strings.Contains(t, "TEXT") || strings.Contains(t, "STRING")
}

// categoricalValues returns sample values keyed by "table.column".
func (b *SchemaContextBuilder) categoricalValues(ctx context.Context, schema *connector.Schema) map[string][]any {
	out := make(map[string][]any)
	for _, table := range schema.Tables {
		for _, col := range table.Columns {
			if !isCategorical(col) {
				continue
			}
			vals, err := b.conn.UniqueValues(ctx, table.Name, col.Name, b.valuesLimit)
			if err != nil {
				b.log.Warn("pipeline: failed to fetch column values", "table", table.Name, "column", col.Name, "error", err)
				continue
			}
			if len(vals) > 0 {
				out[table.Name+"."+col.Name] = vals
			}
		}
	}
	return out
}

// FormatSchemaContext renders schema in the layout the SQL prompts expect.
func FormatSchemaContext(schema *connector.Schema, values map[string][]any) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Database: %s\n", schema.SourceName)
	fmt.Fprintf(&sb, "Type: %s\n", schema.SourceType)
	sb.WriteString("\nTables:\n")

	for _, table := range schema.Tables {
		fmt.Fprintf(&sb, "\nTable: %s\n", table.Name)
		if table.RowCount != nil && *table.RowCount > 0 {
			fmt.Fprintf(&sb, "  Rows: ~%d\n", *table.RowCount)
		}
		sb.WriteString("  Columns:\n")
		for _, col := range table.Columns {
			nullable := "NOT NULL"
			if col.Nullable {
				nullable = "NULL"
			}
			fmt.Fprintf(&sb, "    - %s: %s %s", col.Name, col.DataType, nullable)
			if col.PrimaryKey {
				sb.WriteString(" [PK]")
			}
			if col.ForeignKey != "" {
				fmt.Fprintf(&sb, " [FK -> %s]", col.ForeignKey)
			}
			if vals := values[table.Name+"."+col.Name]; len(vals) > 0 {
				strs := make([]string, len(vals))
				for i, v := range vals {
					strs[i] = fmt.Sprint(v)
				}
				fmt.Fprintf(&sb, " [Values: %s]", strings.Join(strs, ", "))
			}
			sb.WriteString("\n")
		}
	}

	if len(schema.Relationships) > 0 {
		sb.WriteString("\nRelationships:\n")
		for _, rel := range schema.Relationships {
			fmt.Fprintf(&sb, "  - %s.%s -> %s.%s\n", rel.FromTable, rel.FromColumn, rel.ToTable, rel.ToColumn)
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}
