package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/malbeclabs/datachat/pkg/connector"
	"github.com/malbeclabs/datachat/pkg/connector/sqldb"

	_ "modernc.org/sqlite"
)

const Type = "sqlite"

type Config struct {
	Logger *slog.Logger
	Name   string
	// Path is the database file, or ":memory:".
	Path string
}

// Open opens the SQLite database at cfg.Path as a read-only query source.
func Open(cfg Config) (*sqldb.Connector, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if cfg.Path == ":memory:" {
		// Every connection to :memory: is a distinct database.
		db.SetMaxOpenConns(1)
	}
	return New(cfg.Logger, cfg.Name, db)
}

// New wraps an existing SQLite handle.
func New(log *slog.Logger, name string, db *sql.DB) (*sqldb.Connector, error) {
	return sqldb.New(sqldb.Config{
		Logger:  log,
		Name:    name,
		DB:      db,
		Dialect: Dialect{},
	})
}

type Dialect struct{}

func (Dialect) Type() string                  { return Type }
func (Dialect) BlockedKeywords() []string     { return connector.SQLiteBlockedKeywords }
func (Dialect) ExplainPrefix() string         { return "EXPLAIN QUERY PLAN" }
func (Dialect) QuoteIdent(name string) string { return sqldb.QuoteDouble(name) }

func (Dialect) Tables(ctx context.Context, q sqldb.Querier) ([]string, error) {
	rows, err := q.QueryStrings(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r[0])
	}
	return names, nil
}

func (d Dialect) Describe(ctx context.Context, q sqldb.Querier, table string) (connector.Table, []connector.Relationship, error) {
	t := connector.Table{Name: table}

	// cid, name, type, notnull, dflt_value, pk
	cols, err := q.QueryStrings(ctx, fmt.Sprintf("PRAGMA table_info(%s)", d.QuoteIdent(table)))
	if err != nil {
		return t, nil, fmt.Errorf("failed to describe %s: %w", table, err)
	}

	// id, seq, table, from, to, on_update, on_delete, match
	fkRows, err := q.QueryStrings(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", d.QuoteIdent(table)))
	if err != nil {
		return t, nil, fmt.Errorf("failed to get foreign keys of %s: %w", table, err)
	}
	fks := make(map[string]string, len(fkRows))
	rels := make([]connector.Relationship, 0, len(fkRows))
	for _, r := range fkRows {
		fks[r[3]] = r[2] + "." + r[4]
		rels = append(rels, connector.Relationship{
			FromTable:  table,
			FromColumn: r[3],
			ToTable:    r[2],
			ToColumn:   r[4],
		})
	}

	for _, r := range cols {
		notNull, _ := strconv.Atoi(r[3])
		pk, _ := strconv.Atoi(r[5])
		dataType := strings.ToUpper(r[2])
		if dataType == "" {
			dataType = "ANY"
		}
		t.Columns = append(t.Columns, connector.Column{
			Name:       r[1],
			DataType:   dataType,
			Nullable:   notNull == 0 && pk == 0,
			PrimaryKey: pk > 0,
			ForeignKey: fks[r[1]],
		})
	}
	return t, rels, nil
}
