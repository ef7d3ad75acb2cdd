package store

import (
	"fmt"
	"strings"
)

type PostgresDialect struct{}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "pgx" }

func (d *PostgresDialect) NewParamBuilder() ParamBuilder {
	return &pgParamBuilder{}
}

func (d *PostgresDialect) NowExpr() string { return "NOW()" }

func (d *PostgresDialect) SystemTablesSQL() string {
	return pgSystemTablesSQL
}

func (d *PostgresDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	// With pgx/stdlib the underlying error message includes the PG code
	errStr := err.Error()
	if strings.Contains(errStr, "23505") || strings.Contains(errStr, "unique constraint") || strings.Contains(errStr, "duplicate key") {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}

const pgSystemTablesSQL = `
CREATE TABLE IF NOT EXISTS _form_fields (
    form_id     TEXT NOT NULL,
    field_name  TEXT NOT NULL,
    definition  JSONB NOT NULL,
    created_at  TIMESTAMPTZ DEFAULT NOW(),
    updated_at  TIMESTAMPTZ DEFAULT NOW(),
    PRIMARY KEY (form_id, field_name)
);

CREATE TABLE IF NOT EXISTS _field_connections (
    id          UUID PRIMARY KEY,
    form_id     TEXT NOT NULL,
    definition  JSONB NOT NULL,
    created_at  TIMESTAMPTZ DEFAULT NOW(),
    updated_at  TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_field_connections_form ON _field_connections(form_id);

CREATE TABLE IF NOT EXISTS _suggestions (
    form_id     TEXT NOT NULL,
    field_name  TEXT NOT NULL,
    value       TEXT NOT NULL,
    seen_count  INT NOT NULL DEFAULT 1,
    last_seen   TIMESTAMPTZ DEFAULT NOW(),
    PRIMARY KEY (form_id, field_name, value)
);

CREATE TABLE IF NOT EXISTS _related_values (
    source_field TEXT NOT NULL,
    source_value TEXT NOT NULL,
    target_field TEXT NOT NULL,
    value        TEXT NOT NULL,
    updated_at   TIMESTAMPTZ DEFAULT NOW(),
    PRIMARY KEY (source_field, source_value, target_field)
);

CREATE TABLE IF NOT EXISTS _offline_cache (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
`
