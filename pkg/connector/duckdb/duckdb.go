package duckdb

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/malbeclabs/datachat/pkg/connector"
	"github.com/malbeclabs/datachat/pkg/connector/sqldb"
)

const Type = "duckdb"

type Config struct {
	Logger *slog.Logger
	Name   string
	// Path is the database file; empty opens an in-memory database.
	Path   string
	Schema string
}

func Open(cfg Config) (*sqldb.Connector, error) {
	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb database: %w", err)
	}
	if cfg.Path == "" {
		db.SetMaxOpenConns(1)
	}
	schema := cfg.Schema
	if schema == "" {
		schema = "main"
	}
	return sqldb.New(sqldb.Config{
		Logger:  cfg.Logger,
		Name:    cfg.Name,
		DB:      db,
		Dialect: Dialect{InformationSchema: sqldb.InformationSchema{Schema: schema}},
	})
}

// Dialect introspects through information_schema. DuckDB does not expose
// constraint_column_usage, so relationships are not discovered.
type Dialect struct {
	sqldb.InformationSchema
}

func (Dialect) Type() string                  { return Type }
func (Dialect) BlockedKeywords() []string     { return connector.DuckDBBlockedKeywords }
func (Dialect) ExplainPrefix() string         { return "EXPLAIN" }
func (Dialect) QuoteIdent(name string) string { return sqldb.QuoteDouble(name) }

// NormalizeValue converts DECIMAL to float64. HUGEINT results such as
// SUM(INTEGER) arrive as *big.Int and are handled by connector.NormalizeValue.
func (Dialect) NormalizeValue(v any) any {
	switch x := v.(type) {
	case duckdb.Decimal:
		if x.Value == nil {
			return nil
		}
		return x.Float64()
	default:
		return connector.NormalizeValue(v)
	}
}
