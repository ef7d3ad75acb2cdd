package store

import (
	"fmt"
	"strings"
)

type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string       { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }

func (d *SQLiteDialect) NewParamBuilder() ParamBuilder {
	return &sqliteParamBuilder{}
}

func (d *SQLiteDialect) NowExpr() string { return "CURRENT_TIMESTAMP" }

func (d *SQLiteDialect) SystemTablesSQL() string {
	return sqliteSystemTablesSQL
}

func (d *SQLiteDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	errStr := err.Error()
	if strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "constraint failed: UNIQUE") {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}

const sqliteSystemTablesSQL = `
CREATE TABLE IF NOT EXISTS _form_fields (
    form_id     TEXT NOT NULL,
    field_name  TEXT NOT NULL,
    definition  TEXT NOT NULL,
    created_at  TEXT DEFAULT CURRENT_TIMESTAMP,
    updated_at  TEXT DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (form_id, field_name)
);

CREATE TABLE IF NOT EXISTS _field_connections (
    id          TEXT PRIMARY KEY,
    form_id     TEXT NOT NULL,
    definition  TEXT NOT NULL,
    created_at  TEXT DEFAULT CURRENT_TIMESTAMP,
    updated_at  TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_field_connections_form ON _field_connections(form_id);

CREATE TABLE IF NOT EXISTS _suggestions (
    form_id     TEXT NOT NULL,
    field_name  TEXT NOT NULL,
    value       TEXT NOT NULL,
    seen_count  INTEGER NOT NULL DEFAULT 1,
    last_seen   TEXT DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (form_id, field_name, value)
);

CREATE TABLE IF NOT EXISTS _related_values (
    source_field TEXT NOT NULL,
    source_value TEXT NOT NULL,
    target_field TEXT NOT NULL,
    value        TEXT NOT NULL,
    updated_at   TEXT DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (source_field, source_value, target_field)
);

CREATE TABLE IF NOT EXISTS _offline_cache (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TEXT DEFAULT CURRENT_TIMESTAMP
);
`
