package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
)

// defaultBatchSize is the conservative per-transaction row count, assuming
// wide tables. Shrunk further when batch_size*len(columns) would reach the
// target engine's bind-parameter limit.
const defaultBatchSize = 100

// batchSizeFor returns the largest batch size not exceeding the default
// that keeps batchSize*numCols strictly below maxParams.
func batchSizeFor(numCols, maxParams int) int {
	bs := defaultBatchSize
	if numCols > 0 && bs*numCols >= maxParams {
		bs = (maxParams - 1) / numCols
	}
	if bs < 1 {
		bs = 1
	}
	return bs
}

// columnPlan is the precomputed per-column work for one table: whether the
// pseudotype changed between the two sides, and any custom transform.
type columnPlan struct {
	name       string
	sourceType string
	targetType string
	convert    bool
	transform  ColumnTransform
}

// migrateTable copies one table from source to target in bounded
// transactional batches. Empty sources and empty column intersections are
// soft skips; a failed batch insert is rolled back and reported as a failed
// result, leaving that table's earlier batches committed.
func (m *Migrator) migrateTable(ctx context.Context, table string) TableResult {
	log.Printf("processing table: %s", table)

	srcCount, err := countRows(ctx, m.sourceDB, m.sourceEngine, table)
	if err != nil {
		return TableResult{Table: table, Outcome: TableFailed, Err: fmt.Errorf("count %s: %w", table, err)}
	}
	if srcCount == 0 {
		log.Printf("  skipping %s - no records in source", table)
		m.stats.TablesSkipped++
		return TableResult{Table: table, Outcome: TableSkipped}
	}

	srcSchema, err := introspectTable(ctx, m.sourceDB, m.sourceEngine, table)
	if err != nil {
		return TableResult{Table: table, Outcome: TableFailed, Err: fmt.Errorf("introspect source %s: %w", table, err)}
	}
	tgtSchema, err := introspectTable(ctx, m.targetDB, m.targetEngine, table)
	if err != nil {
		return TableResult{Table: table, Outcome: TableFailed, Err: fmt.Errorf("introspect target %s: %w", table, err)}
	}

	diff := diffColumns(srcSchema.ColumnNames(), tgtSchema.ColumnNames())
	if len(diff.SourceOnly) > 0 {
		log.Printf("  columns in source but not in target: %s", strings.Join(diff.SourceOnly, ", "))
		m.stats.SourceOnlyColumns[table] = diff.SourceOnly
	}
	if len(diff.TargetOnly) > 0 {
		log.Printf("  columns in target but not in source: %s", strings.Join(diff.TargetOnly, ", "))
		m.stats.TargetOnlyColumns[table] = diff.TargetOnly
	}
	if len(diff.Matching) == 0 {
		log.Printf("  WARN: no matching columns for table %s", table)
		m.stats.TablesSkipped++
		return TableResult{Table: table, Outcome: TableSkipped}
	}

	plans := make([]columnPlan, len(diff.Matching))
	for i, col := range diff.Matching {
		st := srcSchema.Pseudotype(col)
		tt := tgtSchema.Pseudotype(col)
		plans[i] = columnPlan{
			name:       col,
			sourceType: st,
			targetType: tt,
			convert:    st != tt,
			transform:  m.transforms[col],
		}
	}

	allCols := srcSchema.ColumnNames()
	records, err := m.fetchSourceRows(ctx, table, allCols)
	if err != nil {
		return TableResult{Table: table, Outcome: TableFailed, Err: fmt.Errorf("fetch %s: %w", table, err)}
	}
	if len(records) == 0 {
		// Rows vanished between the count and the fetch; treat as empty source.
		m.stats.TablesSkipped++
		return TableResult{Table: table, Outcome: TableSkipped}
	}
	log.Printf("  inserting %d records into %s", len(records), table)

	batchSize := batchSizeFor(len(diff.Matching), m.targetEngine.MaxBindParams())
	inserted := 0
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		if err := m.insertBatch(ctx, table, allCols, plans, batch); err != nil {
			return TableResult{Table: table, Outcome: TableFailed, Rows: inserted,
				Err: fmt.Errorf("insert into %s: %w", table, err)}
		}
		inserted += len(batch)
		log.Printf("  inserted batch of %d records", len(batch))
	}

	m.stats.TotalRecordsMigrated += inserted
	log.Printf("  migrated %d records", inserted)
	return TableResult{Table: table, Outcome: TableMigrated, Rows: inserted}
}

// fetchSourceRows reads the source table's rows in column-declaration order,
// capped at the configured maximum when test mode is active.
func (m *Migrator) fetchSourceRows(ctx context.Context, table string, columns []string) ([][]any, error) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = m.sourceEngine.QuoteIdentifier(c)
	}
	query := "SELECT " + strings.Join(quoted, ", ") + " FROM " + m.sourceEngine.QuoteIdentifier(table)
	if m.cfg.TestMode && m.cfg.MaxRowsPerTable > 0 {
		query += " LIMIT " + strconv.Itoa(m.cfg.MaxRowsPerTable)
	}

	rows, err := m.sourceDB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		records = append(records, values)
	}
	return records, rows.Err()
}

// insertBatch converts and inserts one batch of rows inside a dedicated
// transaction. The transaction is rolled back on any statement error.
func (m *Migrator) insertBatch(ctx context.Context, table string, allCols []string, plans []columnPlan, batch [][]any) error {
	colIndex := make(map[string]int, len(allCols))
	for i, c := range allCols {
		colIndex[c] = i
	}

	quotedCols := make([]string, len(plans))
	for i, p := range plans {
		quotedCols[i] = m.targetEngine.QuoteIdentifier(p.name)
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(m.targetEngine.QuoteIdentifier(table))
	sb.WriteString(" (")
	sb.WriteString(strings.Join(quotedCols, ", "))
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(batch)*len(plans))
	param := 1
	for r, record := range batch {
		row := make(map[string]any, len(allCols))
		for i, c := range allCols {
			row[c] = record[i]
		}

		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for i, p := range plans {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(m.targetEngine.Placeholder(param))
			param++

			value := record[colIndex[p.name]]
			if p.convert {
				converted, supported := convertPseudotype(value, p.sourceType, p.targetType, p.name)
				if supported {
					if value != nil {
						m.stats.recordConversion(table, p.name, p.sourceType, p.targetType, value, converted)
					}
					value = converted
				} else {
					m.stats.recordUnsupported(table, p.name, p.sourceType, p.targetType, value)
				}
			}
			if p.transform != nil {
				transformed, err := p.transform.Apply(ctx, value, row)
				if err != nil {
					return fmt.Errorf("transform column %s: %w", p.name, err)
				}
				value = transformed
			}
			args = append(args, value)
		}
		sb.WriteString(")")
	}

	tx, err := m.targetDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
