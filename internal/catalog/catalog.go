// Package catalog is the Postgres-backed classification catalog.
//
// It implements [taxonomy.Store] for term lookups and adds the product
// membership writes an import run needs. Writes are grouped into one
// transaction per batch; nothing spans batches.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/taxonomy-import/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// ErrNodeNotFound is returned by Get when no term has the requested id.
var ErrNodeNotFound = errors.New("catalog: term not found")

// Catalog reads and writes terms and product memberships.
type Catalog struct {
	pool *pgxpool.Pool
}

// New creates a catalog on an open pool.
func New(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// Connect opens a connection pool using the database settings and verifies
// it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	return pool, nil
}

// Migrate creates any missing catalog tables and indexes.
func (c *Catalog) Migrate(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (c *Catalog) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}
