package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/malbeclabs/datachat/pkg/connector"
	"github.com/malbeclabs/datachat/pkg/connector/sqldb"
	"github.com/malbeclabs/datachat/pkg/connector/sqlite"
	"github.com/malbeclabs/datachat/pkg/logger"
	"github.com/stretchr/testify/require"
)

func newTestConnector(t *testing.T) *sqldb.Connector {
	t.Helper()
	conn, err := sqlite.Open(sqlite.Config{
		Logger: logger.Discard(),
		Name:   "shop",
		Path:   filepath.Join(t.TempDir(), "shop.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = conn.DB().Exec(`
		CREATE TABLE customers (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			region VARCHAR(20)
		);
		CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			customer_id INTEGER NOT NULL REFERENCES customers(id),
			status TEXT,
			amount REAL
		);
		INSERT INTO customers (id, name, region) VALUES (1, 'Ada', 'EU'), (2, 'Grace', 'US'), (3, 'Linus', 'EU');
		INSERT INTO orders (id, customer_id, status, amount) VALUES
			(1, 1, 'shipped', 10.5),
			(2, 1, 'pending', 20),
			(3, 2, 'shipped', 7.25);
	`)
	require.NoError(t, err)
	return conn
}

func TestSQLite_Schema(t *testing.T) {
	t.Parallel()

	conn := newTestConnector(t)
	schema, err := conn.Schema(context.Background())
	require.NoError(t, err)

	require.Equal(t, "shop", schema.SourceName)
	require.Equal(t, "sqlite", schema.SourceType)
	require.Equal(t, []string{"customers", "orders"}, schema.TableNames())

	orders := schema.Tables[1]
	require.NotNil(t, orders.RowCount)
	require.EqualValues(t, 3, *orders.RowCount)

	want := []connector.Column{
		{Name: "id", DataType: "INTEGER", Nullable: false, PrimaryKey: true},
		{Name: "customer_id", DataType: "INTEGER", Nullable: false, ForeignKey: "customers.id"},
		{Name: "status", DataType: "TEXT", Nullable: true},
		{Name: "amount", DataType: "REAL", Nullable: true},
	}
	if diff := cmp.Diff(want, orders.Columns); diff != "" {
		t.Fatalf("unexpected columns (-want +got):\n%s", diff)
	}

	require.Equal(t, []connector.Relationship{
		{FromTable: "orders", FromColumn: "customer_id", ToTable: "customers", ToColumn: "id"},
	}, schema.Relationships)
}

func TestSQLite_Validate(t *testing.T) {
	t.Parallel()

	conn := newTestConnector(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		sql     string
		valid   bool
		message string
	}{
		{name: "select", sql: "SELECT * FROM orders LIMIT 5", valid: true},
		{name: "cte", sql: "WITH o AS (SELECT * FROM orders) SELECT count(*) FROM o", valid: true},
		{name: "delete", sql: "DELETE FROM orders", valid: false, message: "Only SELECT queries are allowed"},
		{name: "attach", sql: "SELECT 1; ATTACH DATABASE 'x' AS y", valid: false, message: "Forbidden keyword detected: ATTACH"},
		{name: "unknown table", sql: "SELECT * FROM nope", valid: false},
		{name: "bad syntax", sql: "SELECT FROM WHERE", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := conn.Validate(ctx, tt.sql)
			require.NoError(t, err)
			require.Equal(t, tt.valid, res.Valid, res.ErrorMessage)
			if tt.message != "" {
				require.Equal(t, tt.message, res.ErrorMessage)
			}
			if !tt.valid {
				require.NotEmpty(t, res.ErrorMessage)
			}
		})
	}
}

func TestSQLite_Execute(t *testing.T) {
	t.Parallel()

	conn := newTestConnector(t)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		res, err := conn.Execute(ctx, "SELECT status, COUNT(*) AS n FROM orders GROUP BY status ORDER BY status;")
		require.NoError(t, err)
		require.True(t, res.Success)
		require.Equal(t, 2, res.RowCount)
		require.Equal(t, []string{"status", "n"}, res.Data.Columns)
		require.Equal(t, []any{"pending", int64(1)}, res.Data.Rows[0])
		require.Equal(t, "SELECT status, COUNT(*) AS n FROM orders GROUP BY status ORDER BY status", res.SQLExecuted)
	})

	t.Run("sql error is a failed result", func(t *testing.T) {
		res, err := conn.Execute(ctx, "SELECT missing FROM orders")
		require.NoError(t, err)
		require.False(t, res.Success)
		require.Contains(t, res.ErrorMessage, "missing")
		require.Equal(t, "SELECT missing FROM orders", res.SQLExecuted)
	})

	t.Run("empty result", func(t *testing.T) {
		res, err := conn.Execute(ctx, "SELECT * FROM orders WHERE amount > 1000")
		require.NoError(t, err)
		require.True(t, res.Success)
		require.Equal(t, 0, res.RowCount)
		require.Len(t, res.Data.Columns, 4)
	})
}

func TestSQLite_UniqueValues(t *testing.T) {
	t.Parallel()

	conn := newTestConnector(t)
	vals, err := conn.UniqueValues(context.Background(), "customers", "region", 10)
	require.NoError(t, err)
	require.ElementsMatch(t, []any{"EU", "US"}, vals)

	vals, err = conn.UniqueValues(context.Background(), "orders", "status", 1)
	require.NoError(t, err)
	require.Len(t, vals, 1)
}
