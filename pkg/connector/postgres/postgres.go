package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/malbeclabs/datachat/pkg/connector"
	"github.com/malbeclabs/datachat/pkg/connector/sqldb"
)

const (
	Type = "postgresql"

	defaultQueryTimeout = 30 * time.Second
)

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Name   string
	// URL is a postgres:// connection string.
	URL    string
	Schema string

	QueryTimeout time.Duration
	RowLimit     int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.URL == "" {
		return errors.New("connection url is required")
	}
	if cfg.Name == "" {
		cfg.Name = Type
	}
	if cfg.Schema == "" {
		cfg.Schema = "public"
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

// Connector queries PostgreSQL through a pgx connection pool.
type Connector struct {
	log       *slog.Logger
	cfg       Config
	pool      *pgxpool.Pool
	validator *connector.Validator
	info      sqldb.InformationSchema
}

var _ connector.Connector = (*Connector)(nil)

func New(ctx context.Context, cfg Config) (*Connector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate postgres config: %w", err)
	}
	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return &Connector{
		log:       cfg.Logger,
		cfg:       cfg,
		pool:      pool,
		validator: connector.NewValidator(connector.PostgresBlockedKeywords...),
		info:      sqldb.InformationSchema{Schema: cfg.Schema, ForeignKeys: true},
	}, nil
}

func (c *Connector) Name() string { return c.cfg.Name }
func (c *Connector) Type() string { return Type }

func (c *Connector) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *Connector) Close() error {
	c.pool.Close()
	return nil
}

// isQueryError reports whether err is the server rejecting the statement.
func isQueryError(parent context.Context, err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return true
	}
	return parent.Err() == nil && errors.Is(err, context.DeadlineExceeded)
}

func (c *Connector) Validate(ctx context.Context, query string) (connector.ValidationResult, error) {
	res := c.validator.Check(query)
	if !res.Valid {
		return res, nil
	}

	qctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()

	rows, err := c.pool.Query(qctx, "EXPLAIN "+connector.TrimStatement(query))
	if err == nil {
		rows.Close()
		err = rows.Err()
	}
	if err != nil {
		if isQueryError(ctx, err) {
			return connector.Invalid(fmt.Sprintf("Syntax error: %s", err)), nil
		}
		return connector.ValidationResult{}, fmt.Errorf("failed to validate query: %w", err)
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
		if isQueryError(ctx, err) {
			return connector.Failed(query, err.Error(), elapsed), nil
		}
		return connector.QueryResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return connector.QueryResult{
		Success:       true,
		Data:          frame,
		RowCount:      frame.Len(),
		ExecutionTime: elapsed,
		SQLExecuted:   query,
	}, nil
}

func (c *Connector) query(ctx context.Context, query string, args ...any) (*connector.Frame, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	frame := &connector.Frame{Columns: make([]string, len(fields)), Rows: [][]any{}}
	for i, f := range fields {
		frame.Columns[i] = f.Name
	}

	for rows.Next() {
		if len(frame.Rows) >= c.cfg.RowLimit {
			c.log.Warn("postgres: result truncated", "source", c.cfg.Name, "limit", c.cfg.RowLimit)
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		for i, v := range values {
			values[i] = normalize(v)
		}
		frame.Rows = append(frame.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return frame, nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", x[0:4], x[4:6], x[6:8], x[8:10], x[10:16])
	default:
		return connector.NormalizeValue(v)
	}
}

func (c *Connector) UniqueValues(ctx context.Context, table, column string, limit int) ([]any, error) {
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s.%s WHERE %s IS NOT NULL LIMIT %d",
		sqldb.QuoteDouble(column), sqldb.QuoteDouble(c.cfg.Schema), sqldb.QuoteDouble(table), sqldb.QuoteDouble(column), limit)
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
	q := poolQuerier{c}
	tables, err := c.info.Tables(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}

	schema := &connector.Schema{SourceName: c.cfg.Name, SourceType: Type}
	for _, name := range tables {
		table, rels, err := c.info.Describe(ctx, q, name)
		if err != nil {
			return nil, err
		}
		table.RowCount = c.estimateRows(ctx, q, name)
		schema.Tables = append(schema.Tables, table)
		schema.Relationships = append(schema.Relationships, rels...)
	}
	return schema, nil
}

// estimateRows uses the planner statistics; -1 means the table was never analyzed.
func (c *Connector) estimateRows(ctx context.Context, q sqldb.Querier, table string) *int64 {
	rows, err := q.QueryStrings(ctx,
		`SELECT reltuples::bigint::text FROM pg_class WHERE oid = to_regclass($1)`,
		sqldb.QuoteDouble(c.cfg.Schema)+"."+sqldb.QuoteDouble(table))
	if err != nil || len(rows) == 0 {
		if err != nil {
			c.log.Warn("postgres: failed to estimate row count", "table", table, "error", err)
		}
		return nil
	}
	n, err := strconv.ParseInt(rows[0][0], 10, 64)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

type poolQuerier struct {
	c *Connector
}

func (q poolQuerier) QueryStrings(ctx context.Context, query string, args ...any) ([][]string, error) {
	frame, err := q.c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, frame.Len())
	for _, row := range frame.Rows {
		strs := make([]string, len(row))
		for i, v := range row {
			if v != nil {
				strs[i] = fmt.Sprint(v)
			}
		}
		out = append(out, strs)
	}
	return out, nil
}
