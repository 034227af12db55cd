// Package db persists built embedding indexes in PostgreSQL with the pgvector extension,
// so the offline build step and the serving processes can share one set of vectors.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS embedding_indexes (
	model            TEXT PRIMARY KEY,
	dimension        INTEGER NOT NULL,
	ontology_version TEXT NOT NULL DEFAULT '',
	built_at         TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS skill_embeddings (
	model     TEXT NOT NULL REFERENCES embedding_indexes(model) ON DELETE CASCADE,
	skill_id  TEXT NOT NULL,
	embedding vector NOT NULL,
	PRIMARY KEY (model, skill_id)
);`

// EnsureSchema creates the pgvector extension and index tables if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
