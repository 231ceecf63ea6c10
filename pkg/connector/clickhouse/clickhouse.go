package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jonboulle/clockwork"
	"github.com/malbeclabs/datachat/pkg/connector"
	"github.com/malbeclabs/datachat/pkg/connector/sqldb"
	"github.com/shopspring/decimal"
)

const Type = "clickhouse"

type Config struct {
	Logger   *slog.Logger
	Clock    clockwork.Clock
	Name     string
	Addr     string
	Database string
	Username string
	Password string

	MaxExecutionTime time.Duration
	RowLimit         int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Addr == "" {
		return errors.New("addr is required")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Database
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.MaxExecutionTime <= 0 {
		cfg.MaxExecutionTime = 60 * time.Second
	}
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = connector.DefaultRowLimit
	}
	return nil
}

// Connector queries ClickHouse over the native protocol.
type Connector struct {
	log       *slog.Logger
	cfg       Config
	conn      driver.Conn
	validator *connector.Validator
}

var _ connector.Connector = (*Connector)(nil)

func New(ctx context.Context, cfg Config) (*Connector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate clickhouse config: %w", err)
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": int(cfg.MaxExecutionTime.Seconds()),
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	cfg.Logger.Info("ClickHouse connector initialized", "addr", cfg.Addr, "database", cfg.Database)

	return &Connector{
		log:       cfg.Logger,
		cfg:       cfg,
		conn:      conn,
		validator: connector.NewValidator(connector.ClickHouseBlockedKeywords...),
	}, nil
}

func (c *Connector) Name() string { return c.cfg.Name }
func (c *Connector) Type() string { return Type }

func (c *Connector) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *Connector) Close() error {
	return c.conn.Close()
}

func isQueryError(err error) bool {
	var exc *clickhouse.Exception
	return errors.As(err, &exc)
}

func (c *Connector) Validate(ctx context.Context, query string) (connector.ValidationResult, error) {
	res := c.validator.Check(query)
	if !res.Valid {
		return res, nil
	}
	rows, err := c.conn.Query(ctx, "EXPLAIN SYNTAX "+connector.TrimStatement(query))
	if err == nil {
		for rows.Next() {
		}
		err = rows.Err()
		rows.Close()
	}
	if err != nil {
		if isQueryError(err) {
			return connector.Invalid(fmt.Sprintf("Syntax error: %s", err)), nil
		}
		return connector.ValidationResult{}, fmt.Errorf("failed to validate query: %w", err)
	}
	return res, nil
}

func (c *Connector) Execute(ctx context.Context, query string) (connector.QueryResult, error) {
	query = connector.TrimStatement(query)
	start := c.cfg.Clock.Now()

	frame, err := c.query(ctx, query)
	elapsed := c.cfg.Clock.Since(start)
	if err != nil {
		if isQueryError(err) {
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
	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	colTypes := rows.ColumnTypes()
	frame := &connector.Frame{Columns: make([]string, len(colTypes)), Rows: [][]any{}}
	for i, ct := range colTypes {
		frame.Columns[i] = ct.Name()
	}

	for rows.Next() {
		if len(frame.Rows) >= c.cfg.RowLimit {
			c.log.Warn("clickhouse: result truncated", "source", c.cfg.Name, "limit", c.cfg.RowLimit)
			break
		}
		ptrs := make([]any, len(colTypes))
		for i, ct := range colTypes {
			ptrs[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		values := make([]any, len(ptrs))
		for i, p := range ptrs {
			values[i] = normalize(deref(p))
		}
		frame.Rows = append(frame.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return frame, nil
}

func normalize(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return connector.NormalizeValue(v)
}

// deref follows pointers produced for Nullable columns down to the value.
func deref(p any) any {
	v := reflect.ValueOf(p)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	return v.Interface()
}

func (c *Connector) UniqueValues(ctx context.Context, table, column string, limit int) ([]any, error) {
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL LIMIT %d",
		sqldb.QuoteBacktick(column), sqldb.QuoteBacktick(table), sqldb.QuoteBacktick(column), limit)
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
	tables, err := c.query(ctx,
		`SELECT name, total_rows FROM system.tables WHERE database = currentDatabase() AND NOT is_temporary ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	schema := &connector.Schema{SourceName: c.cfg.Name, SourceType: Type}
	for _, row := range tables.Rows {
		name, _ := row[0].(string)
		table := connector.Table{Name: name}
		if n, ok := row[1].(uint64); ok {
			count := int64(n)
			table.RowCount = &count
		}

		cols, err := c.query(ctx,
			`SELECT name, type, is_in_primary_key FROM system.columns WHERE database = currentDatabase() AND table = ? ORDER BY position`,
			name)
		if err != nil {
			return nil, fmt.Errorf("failed to describe %s: %w", name, err)
		}
		for _, col := range cols.Rows {
			colName, _ := col[0].(string)
			colType, _ := col[1].(string)
			pk, _ := col[2].(uint8)
			table.Columns = append(table.Columns, connector.Column{
				Name:       colName,
				DataType:   colType,
				Nullable:   strings.HasPrefix(colType, "Nullable("),
				PrimaryKey: pk == 1,
			})
		}
		schema.Tables = append(schema.Tables, table)
	}
	return schema, nil
}
