package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// postgresSchema is applied in order on every start; each statement is
// idempotent.
var postgresSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`CREATE TABLE IF NOT EXISTS users (
		id              BIGSERIAL PRIMARY KEY,
		email           TEXT NOT NULL,
		hashed_password BYTEA NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT users_email_key UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS domains (
		id           BIGSERIAL PRIMARY KEY,
		domain       TEXT NOT NULL,
		is_active    BOOLEAN NOT NULL DEFAULT TRUE,
		owner_id     BIGINT REFERENCES users (id) ON DELETE SET NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_used_at TIMESTAMPTZ,
		CONSTRAINT domains_domain_key UNIQUE (domain)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_domains_owner ON domains (owner_id)`,
	`CREATE TABLE IF NOT EXISTS api_keys (
		id           BIGSERIAL PRIMARY KEY,
		domain_id    BIGINT NOT NULL REFERENCES domains (id) ON DELETE CASCADE,
		domain       TEXT NOT NULL,
		key_hash     TEXT NOT NULL,
		revoked      BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_used_at TIMESTAMPTZ,
		CONSTRAINT api_keys_key_hash_key UNIQUE (key_hash)
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		token_hash TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT refresh_tokens_token_hash_key UNIQUE (token_hash)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens (user_id) WHERE NOT revoked`,
	// The unique key catches two writers materializing the same visit; the
	// exclusion constraint additionally rejects any overlapping interval for
	// the same visitor, whatever its start.
	`CREATE TABLE IF NOT EXISTS sessions (
		id          BIGSERIAL PRIMARY KEY,
		session_id  TEXT NOT NULL,
		user_id     BIGINT NOT NULL,
		domain_id   BIGINT NOT NULL REFERENCES domains (id) ON DELETE CASCADE,
		start_at    TIMESTAMPTZ NOT NULL,
		end_at      TIMESTAMPTZ NOT NULL,
		duration    DOUBLE PRECISION NOT NULL,
		event_count INTEGER NOT NULL,
		device      TEXT NOT NULL,
		os          TEXT NOT NULL,
		browser     TEXT NOT NULL,
		country     TEXT,
		entry_path  TEXT NOT NULL,
		exit_path   TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT sessions_bounds_check CHECK (start_at <= end_at AND duration >= 0 AND event_count > 0),
		CONSTRAINT sessions_domain_session_start_key UNIQUE (domain_id, session_id, start_at),
		CONSTRAINT sessions_no_overlap EXCLUDE USING gist (
			domain_id WITH =,
			session_id WITH =,
			tstzrange(start_at, end_at, '[]') WITH &&
		)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_domain_range ON sessions (domain_id, start_at, end_at)`,
}

const clickHouseEventsTable = `
CREATE TABLE IF NOT EXISTS events (
	id            String,
	domain        LowCardinality(String),
	pathname      String,
	referrer      Nullable(String),
	user_agent    String,
	screen_width  Int32,
	screen_height Int32,
	session_id    String,
	event_type    LowCardinality(String),
	element       String,
	time_spent    Float64,
	ip_address    String,
	timestamp     DateTime64(3, 'UTC'),
	created_at    DateTime64(3, 'UTC'),
	user_id       Int64,
	domain_id     Int64
) ENGINE = MergeTree
PARTITION BY toYYYYMM(timestamp)
ORDER BY (domain, timestamp, session_id)
SETTINGS index_granularity = 8192
`

// MigratePostgres creates the relational tables if they do not exist yet.
func MigratePostgres(ctx context.Context, db *sql.DB) error {
	for i, stmt := range postgresSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migration step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// MigrateClickHouse creates the raw event table if it does not exist yet.
func MigrateClickHouse(ctx context.Context, conn driver.Conn) error {
	if err := conn.Exec(ctx, clickHouseEventsTable); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}
	return nil
}
