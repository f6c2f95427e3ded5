package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// sqliteMaxBindParams is SQLITE_MAX_VARIABLE_NUMBER for older builds; the
// modernc driver allows more, but 999 keeps batches portable across files
// produced by any SQLite version.
const sqliteMaxBindParams = 999

type sqliteEngine struct{}

func (s *sqliteEngine) Name() string { return "SQLite" }

func (s *sqliteEngine) Open(dsn string, readOnly bool) (*sql.DB, error) {
	uri := dsn
	if readOnly {
		var err error
		uri, err = sqliteReadOnlyURI(dsn)
		if err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func (s *sqliteEngine) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (s *sqliteEngine) Columns(ctx context.Context, db *sql.DB, table string) ([]ColumnInfo, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", s.QuoteIdentifier(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var cid, notnull, pk int
		var name, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		col := ColumnInfo{
			Name:         name,
			DeclaredType: colType,
			Nullable:     notnull == 0,
			PrimaryKey:   pk > 0,
			OrdinalPos:   cid + 1,
		}
		if dflt.Valid {
			col.Default = &dflt.String
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (s *sqliteEngine) QuoteIdentifier(name string) string {
	return fmt.Sprintf("\"%s\"", strings.ReplaceAll(name, "\"", "\"\""))
}

func (s *sqliteEngine) Placeholder(_ int) string { return "?" }

func (s *sqliteEngine) MaxBindParams() int { return sqliteMaxBindParams }

// sqliteReadOnlyURI rewrites a SQLite DSN into a file URI with mode=ro.
func sqliteReadOnlyURI(dsn string) (string, error) {
	// Reject in-memory databases
	if dsn == ":memory:" || dsn == "file::memory:" ||
		strings.Contains(dsn, "mode=memory") {
		return "", fmt.Errorf("in-memory SQLite databases are not supported (each sql.Open gets a separate DB)")
	}

	if !strings.HasPrefix(dsn, "file:") {
		// Plain file path → file URI with read-only mode
		return "file:" + dsn + "?mode=ro", nil
	}

	// URI form — add or override mode=ro
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse sqlite URI: %w", err)
	}
	q := u.Query()
	q.Set("mode", "ro")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
