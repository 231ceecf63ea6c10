package postgres_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/malbeclabs/datachat/pkg/connector"
	"github.com/malbeclabs/datachat/pkg/connector/postgres"
	"github.com/malbeclabs/datachat/pkg/logger"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func newTestConnector(t *testing.T) *postgres.Connector {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("shop"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := postgres.New(ctx, postgres.Config{
		Logger: logger.Discard(),
		Name:   "shop",
		URL:    url,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	setup := `
		CREATE TABLE customers (id SERIAL PRIMARY KEY, name TEXT NOT NULL, tier VARCHAR(10));
		CREATE TABLE orders (
			id SERIAL PRIMARY KEY,
			customer_id INTEGER NOT NULL REFERENCES customers(id),
			amount NUMERIC(10, 2)
		);
		INSERT INTO customers (name, tier) VALUES ('ada', 'gold'), ('grace', 'silver');
		INSERT INTO orders (customer_id, amount) VALUES (1, 10.50), (2, 3.25);
	`
	raw, err := pgx.Connect(ctx, url)
	require.NoError(t, err)
	defer raw.Close(ctx)
	_, err = raw.Exec(ctx, setup)
	require.NoError(t, err)
	return conn
}

func TestPostgres_Integration(t *testing.T) {
	conn := newTestConnector(t)
	ctx := context.Background()

	t.Run("schema", func(t *testing.T) {
		schema, err := conn.Schema(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"customers", "orders"}, schema.TableNames())
		require.Contains(t, schema.Relationships, connector.Relationship{
			FromTable: "orders", FromColumn: "customer_id", ToTable: "customers", ToColumn: "id",
		})
		require.True(t, schema.Tables[0].Columns[0].PrimaryKey)
	})

	t.Run("execute", func(t *testing.T) {
		res, err := conn.Execute(ctx, "SELECT SUM(amount) AS total FROM orders")
		require.NoError(t, err)
		require.True(t, res.Success)
		require.InDelta(t, 13.75, res.Data.Rows[0][0], 0.001)
	})

	t.Run("validate rejects unknown table", func(t *testing.T) {
		res, err := conn.Validate(ctx, "SELECT * FROM nope LIMIT 1")
		require.NoError(t, err)
		require.False(t, res.Valid)
		require.Contains(t, res.ErrorMessage, "nope")
	})

	t.Run("unique values", func(t *testing.T) {
		vals, err := conn.UniqueValues(ctx, "customers", "tier", 10)
		require.NoError(t, err)
		require.ElementsMatch(t, []any{"gold", "silver"}, vals)
	})
}
