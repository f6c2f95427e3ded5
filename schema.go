package main

import (
	"context"
	"database/sql"
	"log"
	"strings"
)

// Reserved table-name prefixes. Underscore-prefixed tables are ODK-X
// metadata; L__ tables are lookup/linked tables. Neither is ever migrated.
const (
	metadataTablePrefix = "_"
	lookupTablePrefix   = "L__"
)

// columnDefinitionsTable is the ODK-X side table mapping (table id, element
// key) to an element type — the pseudotype metadata consumed by the converter.
const columnDefinitionsTable = "_column_definitions"

// listTables returns the migratable table names of a database: all base
// tables except those starting with a reserved prefix.
func listTables(ctx context.Context, db *sql.DB, engine DBEngine) ([]string, error) {
	all, err := engine.ListTables(ctx, db)
	if err != nil {
		return nil, err
	}
	var tables []string
	for _, name := range all {
		if strings.HasPrefix(name, metadataTablePrefix) || strings.HasPrefix(name, lookupTablePrefix) {
			continue
		}
		tables = append(tables, name)
	}
	return tables, nil
}

// tableExists reports whether a base table with the given name exists.
// Unlike listTables it does not apply reserved-prefix filtering.
func tableExists(ctx context.Context, db *sql.DB, engine DBEngine, table string) (bool, error) {
	all, err := engine.ListTables(ctx, db)
	if err != nil {
		return false, err
	}
	for _, name := range all {
		if name == table {
			return true, nil
		}
	}
	return false, nil
}

// introspectTable reads column metadata and pseudotypes for one table.
func introspectTable(ctx context.Context, db *sql.DB, engine DBEngine, table string) (*TableSchema, error) {
	cols, err := engine.Columns(ctx, db, table)
	if err != nil {
		return nil, err
	}
	return &TableSchema{
		Name:        table,
		Columns:     cols,
		Pseudotypes: columnPseudotypes(ctx, db, engine, table),
	}, nil
}

// columnPseudotypes reads the pseudotype map for a table from
// _column_definitions. A missing metadata table or unregistered table id
// yields an empty map, not an error — callers default absent entries to
// "string".
func columnPseudotypes(ctx context.Context, db *sql.DB, engine DBEngine, table string) map[string]string {
	query := "SELECT _element_key, _element_type FROM " +
		engine.QuoteIdentifier(columnDefinitionsTable) +
		" WHERE _table_id = " + engine.Placeholder(1)

	rows, err := db.QueryContext(ctx, query, table)
	if err != nil {
		log.Printf("  WARN: no pseudotype metadata for table %s: %v", table, err)
		return map[string]string{}
	}
	defer rows.Close()

	pseudotypes := make(map[string]string)
	for rows.Next() {
		var key, elemType string
		if err := rows.Scan(&key, &elemType); err != nil {
			log.Printf("  WARN: reading pseudotype metadata for table %s: %v", table, err)
			return map[string]string{}
		}
		pseudotypes[key] = elemType
	}
	if err := rows.Err(); err != nil {
		log.Printf("  WARN: reading pseudotype metadata for table %s: %v", table, err)
		return map[string]string{}
	}
	return pseudotypes
}

// countRows returns the row count of a table.
func countRows(ctx context.Context, db *sql.DB, engine DBEngine, table string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+engine.QuoteIdentifier(table)).Scan(&n)
	return n, err
}
