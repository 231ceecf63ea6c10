package redshift

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/malbeclabs/datachat/pkg/connector"
	"github.com/malbeclabs/datachat/pkg/connector/sqldb"

	_ "github.com/lib/pq"
)

const Type = "redshift"

type Config struct {
	Logger   *slog.Logger
	Name     string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Schema   string
	SSLMode  string
}

func (cfg *Config) DSN() string {
	port := cfg.Port
	if port == 0 {
		port = 5439
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + strconv.Itoa(port),
		Path:     "/" + cfg.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

func Open(cfg Config) (*sqldb.Connector, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("redshift host is required")
	}
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open redshift connection: %w", err)
	}
	return New(cfg.Logger, cfg.Name, cfg.Schema, db)
}

func New(log *slog.Logger, name, schema string, db *sql.DB) (*sqldb.Connector, error) {
	if schema == "" {
		schema = "public"
	}
	return sqldb.New(sqldb.Config{
		Logger:  log,
		Name:    name,
		DB:      db,
		Dialect: Dialect{InformationSchema: sqldb.InformationSchema{Schema: schema, ForeignKeys: true}},
	})
}

type Dialect struct {
	sqldb.InformationSchema
}

func (Dialect) Type() string                  { return Type }
func (Dialect) BlockedKeywords() []string     { return connector.RedshiftBlockedKeywords }
func (Dialect) ExplainPrefix() string         { return "EXPLAIN" }
func (Dialect) QuoteIdent(name string) string { return sqldb.QuoteDouble(name) }

// RowCount reads the planner estimate from SVV_TABLE_INFO instead of scanning.
func (d Dialect) RowCount(ctx context.Context, q sqldb.Querier, table string) (*int64, error) {
	rows, err := q.QueryStrings(ctx,
		`SELECT tbl_rows::bigint::text FROM svv_table_info WHERE "schema" = $1 AND "table" = $2`,
		d.Schema, table)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	n, err := strconv.ParseInt(rows[0][0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse row count %q: %w", rows[0][0], err)
	}
	return &n, nil
}
