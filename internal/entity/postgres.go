package entity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the DDL for the context_entities table. Apply it with
// [PostgresBackend.Migrate] or during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS context_entities (
    id         TEXT PRIMARY KEY,
    type       TEXT NOT NULL,
    name       TEXT NOT NULL,
    body       JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_context_entities_type ON context_entities(type);
CREATE INDEX IF NOT EXISTS idx_context_entities_name ON context_entities(lower(name));
`

// DB is the subset of pgx used by [PostgresBackend]. *pgxpool.Pool and
// *pgx.Conn both satisfy it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ Backend = (*PostgresBackend)(nil)

// PostgresBackend stores each entity as a JSONB document keyed by id, with
// type and name duplicated into columns for ad-hoc querying.
type PostgresBackend struct {
	db DB
}

// NewPostgresBackend returns a backend using db. Call
// [PostgresBackend.Migrate] before first use.
func NewPostgresBackend(db DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// Migrate applies [Schema].
func (b *PostgresBackend) Migrate(ctx context.Context) error {
	if _, err := b.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("entity: migrate: %w", err)
	}
	return nil
}

// Load implements [Backend.Load].
func (b *PostgresBackend) Load(ctx context.Context) ([]Entity, error) {
	const query = `SELECT id, body FROM context_entities ORDER BY id`

	rows, err := b.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("entity: load: %w", err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("entity: load scan: %w", err)
		}
		var e Entity
		if err := json.Unmarshal(body, &e); err != nil {
			return nil, fmt.Errorf("entity: unmarshal %q: %w", id, err)
		}
		e.ID = id
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("entity: load: %w", err)
	}
	return out, nil
}

// Save implements [Backend.Save] as an upsert.
func (b *PostgresBackend) Save(ctx context.Context, e Entity) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("entity: marshal %q: %w", e.ID, err)
	}

	const query = `
		INSERT INTO context_entities (id, type, name, body)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			name = EXCLUDED.name,
			body = EXCLUDED.body,
			updated_at = now()`

	if _, err := b.db.Exec(ctx, query, e.ID, string(e.Type), e.Name, body); err != nil {
		return fmt.Errorf("entity: save %q: %w", e.ID, err)
	}
	return nil
}
