package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/malbeclabs/datachat/pkg/connector"
)

// Querier runs introspection queries whose selected columns are all text.
type Querier interface {
	QueryStrings(ctx context.Context, query string, args ...any) ([][]string, error)
}

// DBQuerier adapts a *sql.DB to Querier.
type DBQuerier struct {
	DB *sql.DB
}

func (q DBQuerier) QueryStrings(ctx context.Context, query string, args ...any) ([][]string, error) {
	rows, err := q.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var out [][]string
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = v.String
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// InformationSchema introspects sources exposing the ANSI information_schema
// views (PostgreSQL, Redshift, DuckDB). Queries use $n placeholders.
type InformationSchema struct {
	Schema string
	// ForeignKeys enables relationship discovery through constraint_column_usage.
	ForeignKeys bool
}

const (
	infoTablesSQL = `SELECT table_name::text FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE' ORDER BY table_name`

	infoColumnsSQL = `SELECT column_name::text, data_type::text, is_nullable::text
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

	infoPrimaryKeySQL = `SELECT kcu.column_name::text
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema AND tc.table_name = kcu.table_name
WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1 AND tc.table_name = $2`

	infoForeignKeySQL = `SELECT kcu.column_name::text, ccu.table_name::text, ccu.column_name::text
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1 AND tc.table_name = $2`
)

func (s InformationSchema) Tables(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryStrings(ctx, infoTablesSQL, s.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r[0])
	}
	return names, nil
}

func (s InformationSchema) Describe(ctx context.Context, q Querier, table string) (connector.Table, []connector.Relationship, error) {
	t := connector.Table{Name: table}

	cols, err := q.QueryStrings(ctx, infoColumnsSQL, s.Schema, table)
	if err != nil {
		return t, nil, fmt.Errorf("failed to describe columns of %s: %w", table, err)
	}
	pks, err := q.QueryStrings(ctx, infoPrimaryKeySQL, s.Schema, table)
	if err != nil {
		return t, nil, fmt.Errorf("failed to get primary key of %s: %w", table, err)
	}
	isPK := make(map[string]bool, len(pks))
	for _, r := range pks {
		isPK[r[0]] = true
	}

	fks := make(map[string]string)
	var rels []connector.Relationship
	if s.ForeignKeys {
		rows, err := q.QueryStrings(ctx, infoForeignKeySQL, s.Schema, table)
		if err != nil {
			return t, nil, fmt.Errorf("failed to get foreign keys of %s: %w", table, err)
		}
		for _, r := range rows {
			fks[r[0]] = r[1] + "." + r[2]
			rels = append(rels, connector.Relationship{
				FromTable:  table,
				FromColumn: r[0],
				ToTable:    r[1],
				ToColumn:   r[2],
			})
		}
	}

	for _, r := range cols {
		t.Columns = append(t.Columns, connector.Column{
			Name:       r[0],
			DataType:   strings.ToUpper(r[1]),
			Nullable:   strings.EqualFold(r[2], "YES"),
			PrimaryKey: isPK[r[0]],
			ForeignKey: fks[r[0]],
		})
	}
	return t, rels, nil
}
