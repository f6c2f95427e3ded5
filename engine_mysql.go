package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

type mysqlEngine struct {
	dbName string
}

func (m *mysqlEngine) Name() string { return "MySQL" }

func (m *mysqlEngine) Open(dsn string, _ bool) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	if cfg.DBName == "" {
		return nil, fmt.Errorf("mysql dsn must name a database")
	}
	cfg.ParseTime = true
	cfg.InterpolateParams = true
	cfg.Loc = time.UTC
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(1)
	m.dbName = cfg.DBName
	return db, nil
}

func (m *mysqlEngine) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		 WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		 ORDER BY TABLE_NAME`,
		m.dbName,
	)
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

func (m *mysqlEngine) Columns(ctx context.Context, db *sql.DB, table string) ([]ColumnInfo, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, COLUMN_KEY, ORDINAL_POSITION
		 FROM INFORMATION_SCHEMA.COLUMNS
		 WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		 ORDER BY ORDINAL_POSITION`,
		m.dbName, table,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var name, colType, nullable, key string
		var dflt sql.NullString
		var pos int
		if err := rows.Scan(&name, &colType, &nullable, &dflt, &key, &pos); err != nil {
			return nil, err
		}
		col := ColumnInfo{
			Name:         name,
			DeclaredType: colType,
			Nullable:     strings.EqualFold(nullable, "YES"),
			PrimaryKey:   key == "PRI",
			OrdinalPos:   pos,
		}
		if dflt.Valid {
			col.Default = &dflt.String
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (m *mysqlEngine) QuoteIdentifier(name string) string {
	return fmt.Sprintf("`%s`", strings.ReplaceAll(name, "`", "``"))
}

func (m *mysqlEngine) Placeholder(_ int) string { return "?" }

func (m *mysqlEngine) MaxBindParams() int { return 65535 }
