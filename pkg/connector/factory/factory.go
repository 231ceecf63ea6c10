package factory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/malbeclabs/datachat/pkg/config"
	"github.com/malbeclabs/datachat/pkg/connector"
	"github.com/malbeclabs/datachat/pkg/connector/clickhouse"
	"github.com/malbeclabs/datachat/pkg/connector/duckdb"
	"github.com/malbeclabs/datachat/pkg/connector/postgres"
	"github.com/malbeclabs/datachat/pkg/connector/redshift"
	"github.com/malbeclabs/datachat/pkg/connector/sqlite"
)

// New builds the connector described by src and checks that it is reachable.
func New(ctx context.Context, log *slog.Logger, src config.Source) (connector.Connector, error) {
	conn, err := open(ctx, log, src)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to source %s: %w", src.Name, err)
	}
	log.Info("connector: initialized", "source", src.Name, "type", conn.Type())
	return conn, nil
}

func open(ctx context.Context, log *slog.Logger, src config.Source) (connector.Connector, error) {
	switch strings.ToLower(src.Type) {
	case sqlite.Type:
		return sqlite.Open(sqlite.Config{
			Logger: log,
			Name:   src.Name,
			Path:   src.Param("path", ""),
		})

	case duckdb.Type:
		return duckdb.Open(duckdb.Config{
			Logger: log,
			Name:   src.Name,
			Path:   src.Param("path", ""),
			Schema: src.Param("schema", ""),
		})

	case postgres.Type, "postgres":
		return postgres.New(ctx, postgres.Config{
			Logger: log,
			Name:   src.Name,
			URL:    postgresURL(src),
			Schema: src.Param("schema", ""),
		})

	case redshift.Type:
		port, err := src.IntParam("port", 5439)
		if err != nil {
			return nil, err
		}
		return redshift.Open(redshift.Config{
			Logger:   log,
			Name:     src.Name,
			Host:     src.Param("host", ""),
			Port:     port,
			Database: src.Param("database", "dev"),
			User:     src.Param("user", ""),
			Password: src.Param("password", ""),
			Schema:   src.Param("schema", ""),
			SSLMode:  src.Param("sslmode", ""),
		})

	case clickhouse.Type:
		return clickhouse.New(ctx, clickhouse.Config{
			Logger:   log,
			Name:     src.Name,
			Addr:     src.Param("addr", "localhost:9000"),
			Database: src.Param("database", ""),
			Username: src.Param("user", ""),
			Password: src.Param("password", ""),
		})
	}
	return nil, fmt.Errorf("%w: %q", connector.ErrUnsupportedSource, src.Type)
}

func postgresURL(src config.Source) string {
	if url := src.Param("url", ""); url != "" {
		return url
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		src.Param("user", "postgres"),
		src.Param("password", ""),
		src.Param("host", "localhost"),
		src.Param("port", "5432"),
		src.Param("database", "postgres"),
		src.Param("sslmode", "prefer"),
	)
}
