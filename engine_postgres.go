package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql adapter for pgx
)

type postgresEngine struct{}

func (p *postgresEngine) Name() string { return "PostgreSQL" }

func (p *postgresEngine) Open(dsn string, _ bool) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func (p *postgresEngine) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		 ORDER BY table_name`)
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

func (p *postgresEngine) Columns(ctx context.Context, db *sql.DB, table string) ([]ColumnInfo, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT c.column_name, c.data_type, c.is_nullable, c.column_default, c.ordinal_position,
			EXISTS (
				SELECT 1 FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
					ON kcu.constraint_name = tc.constraint_name
					AND kcu.table_schema = tc.table_schema
				WHERE tc.constraint_type = 'PRIMARY KEY'
					AND tc.table_schema = c.table_schema
					AND tc.table_name = c.table_name
					AND kcu.column_name = c.column_name
			) AS is_pk
		 FROM information_schema.columns c
		 WHERE c.table_schema = current_schema() AND c.table_name = $1
		 ORDER BY c.ordinal_position`,
		table,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var name, dataType, nullable string
		var dflt sql.NullString
		var pos int
		var isPK bool
		if err := rows.Scan(&name, &dataType, &nullable, &dflt, &pos, &isPK); err != nil {
			return nil, err
		}
		col := ColumnInfo{
			Name:         name,
			DeclaredType: dataType,
			Nullable:     strings.EqualFold(nullable, "YES"),
			PrimaryKey:   isPK,
			OrdinalPos:   pos,
		}
		if dflt.Valid {
			col.Default = &dflt.String
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (p *postgresEngine) QuoteIdentifier(name string) string {
	return fmt.Sprintf("\"%s\"", strings.ReplaceAll(name, "\"", "\"\""))
}

func (p *postgresEngine) Placeholder(i int) string { return fmt.Sprintf("$%d", i) }

func (p *postgresEngine) MaxBindParams() int { return 65535 }
