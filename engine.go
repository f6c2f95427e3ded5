package main

import (
	"context"
	"database/sql"
	"fmt"
)

// DBEngine abstracts the engine-specific pieces of a database connection so
// the migration engine can run against SQLite files as well as server-hosted
// replicas of the same logical schema (MySQL, PostgreSQL).
type DBEngine interface {
	// Name returns a human-readable engine name ("SQLite", "MySQL", "PostgreSQL").
	Name() string

	// Open opens a database handle. readOnly is honored where the engine
	// supports it (SQLite mode=ro); the source side is always opened read-only.
	Open(dsn string, readOnly bool) (*sql.DB, error)

	// ListTables returns all base table names, unfiltered. Reserved-prefix
	// filtering is domain logic and lives in the introspector.
	ListTables(ctx context.Context, db *sql.DB) ([]string, error)

	// Columns returns column metadata for a table in declaration order.
	Columns(ctx context.Context, db *sql.DB, table string) ([]ColumnInfo, error)

	// QuoteIdentifier quotes a table or column name for use in SQL text.
	QuoteIdentifier(name string) string

	// Placeholder returns the bind-parameter placeholder for 1-based position i.
	Placeholder(i int) string

	// MaxBindParams returns the engine's maximum bound parameters per
	// statement; batch sizing must keep batch_size*len(columns) below it.
	MaxBindParams() int
}

// newDBEngine returns a DBEngine implementation for the given engine type.
func newDBEngine(engineType string) (DBEngine, error) {
	switch engineType {
	case "sqlite":
		return &sqliteEngine{}, nil
	case "mysql":
		return &mysqlEngine{}, nil
	case "postgres":
		return &postgresEngine{}, nil
	default:
		return nil, fmt.Errorf("unsupported engine %q (must be sqlite, mysql or postgres)", engineType)
	}
}
