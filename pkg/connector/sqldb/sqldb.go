package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/malbeclabs/datachat/pkg/connector"
)

const defaultQueryTimeout = 30 * time.Second

type Config struct {
	Logger  *slog.Logger
	Clock   clockwork.Clock
	Name    string
	DB      *sql.DB
	Dialect Dialect

	QueryTimeout time.Duration
	RowLimit     int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.DB == nil {
		return errors.New("database is required")
	}
	if cfg.Dialect == nil {
		return errors.New("dialect is required")
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Dialect.Type()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = defaultQueryTimeout
	}
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = connector.DefaultRowLimit
	}
	return nil
}

// Connector implements connector.Connector over database/sql.
type Connector struct {
	log       *slog.Logger
	cfg       Config
	validator *connector.Validator
}

var _ connector.Connector = (*Connector)(nil)

func New(cfg Config) (*Connector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate sqldb config: %w", err)
	}
	return &Connector{
		log:       cfg.Logger,
		cfg:       cfg,
		validator: connector.NewValidator(cfg.Dialect.BlockedKeywords()...),
	}, nil
}

func (c *Connector) Name() string { return c.cfg.Name }
func (c *Connector) Type() string { return c.cfg.Dialect.Type() }
func (c *Connector) DB() *sql.DB  { return c.cfg.DB }

func (c *Connector) Ping(ctx context.Context) error {
	return c.cfg.DB.PingContext(ctx)
}

func (c *Connector) Close() error {
	return c.cfg.DB.Close()
}

func (c *Connector) Validate(ctx context.Context, query string) (connector.ValidationResult, error) {
	res := c.validator.Check(query)
	prefix := c.cfg.Dialect.ExplainPrefix()
	if !res.Valid || prefix == "" {
		return res, nil
	}

	qctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()

	rows, err := c.cfg.DB.QueryContext(qctx, prefix+" "+connector.TrimStatement(query))
	if err != nil {
		if connector.IsUnavailable(ctx, err) {
			return connector.ValidationResult{}, fmt.Errorf("failed to validate query: %w", err)
		}
		return connector.Invalid(fmt.Sprintf("Syntax error: %s", err)), nil
	}
	defer rows.Close()
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return connector.Invalid(fmt.Sprintf("Syntax error: %s", err)), nil
	}
	return res, nil
}

func (c *Connector) Execute(ctx context.Context, query string) (connector.QueryResult, error) {
	query = connector.TrimStatement(query)
	start := c.cfg.Clock.Now()

	qctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()

	frame, err := c.query(qctx, query)
	elapsed := c.cfg.Clock.Since(start)
	if err != nil {
		if connector.IsUnavailable(ctx, err) {
			return connector.QueryResult{}, fmt.Errorf("failed to execute query: %w", err)
		}
		c.log.Debug("sqldb: query failed", "source", c.cfg.Name, "error", err)
		return connector.Failed(query, err.Error(), elapsed), nil
	}

	return connector.QueryResult{
		Success:       true,
		Data:          frame,
		RowCount:      frame.Len(),
		ExecutionTime: elapsed,
		SQLExecuted:   query,
	}, nil
}

func (c *Connector) query(ctx context.Context, query string) (*connector.Frame, error) {
	rows, err := c.cfg.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	frame := &connector.Frame{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		if len(frame.Rows) >= c.cfg.RowLimit {
			c.log.Warn("sqldb: result truncated", "source", c.cfg.Name, "limit", c.cfg.RowLimit)
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			values[i] = c.normalize(v)
		}
		frame.Rows = append(frame.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return frame, nil
}

func (c *Connector) normalize(v any) any {
	if n, ok := c.cfg.Dialect.(ValueNormalizer); ok {
		return n.NormalizeValue(v)
	}
	return connector.NormalizeValue(v)
}

func (c *Connector) UniqueValues(ctx context.Context, table, column string, limit int) ([]any, error) {
	d := c.cfg.Dialect
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL LIMIT %d",
		d.QuoteIdent(column), d.QuoteIdent(table), d.QuoteIdent(column), limit)

	frame, err := c.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get unique values of %s.%s: %w", table, column, err)
	}
	vals := make([]any, 0, frame.Len())
	for _, row := range frame.Rows {
		vals = append(vals, row[0])
	}
	return vals, nil
}

func (c *Connector) Schema(ctx context.Context) (*connector.Schema, error) {
	q := DBQuerier{DB: c.cfg.DB}
	d := c.cfg.Dialect

	tables, err := d.Tables(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}

	schema := &connector.Schema{
		SourceName: c.cfg.Name,
		SourceType: d.Type(),
	}
	for _, name := range tables {
		table, rels, err := d.Describe(ctx, q, name)
		if err != nil {
			return nil, err
		}
		table.RowCount = c.rowCount(ctx, q, name)
		schema.Tables = append(schema.Tables, table)
		schema.Relationships = append(schema.Relationships, rels...)
	}
	return schema, nil
}

func (c *Connector) rowCount(ctx context.Context, q Querier, table string) *int64 {
	if rc, ok := c.cfg.Dialect.(RowCounter); ok {
		n, err := rc.RowCount(ctx, q, table)
		if err != nil {
			c.log.Warn("sqldb: failed to estimate row count", "table", table, "error", err)
			return nil
		}
		return n
	}
	var n int64
	err := c.cfg.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.cfg.Dialect.QuoteIdent(table)).Scan(&n)
	if err != nil {
		c.log.Warn("sqldb: failed to count rows", "table", table, "error", err)
		return nil
	}
	return &n
}
