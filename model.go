package main

// ColumnInfo describes a single column as reported by the engine's
// schema introspection (PRAGMA table_info / INFORMATION_SCHEMA).
type ColumnInfo struct {
	Name         string
	DeclaredType string
	Nullable     bool
	Default      *string
	PrimaryKey   bool
	OrdinalPos   int
}

// TableSchema holds everything the executor needs to know about one table
// on one side of the migration. Derived on demand, never cached across the
// run — metadata queries are cheap relative to row volume.
type TableSchema struct {
	Name        string
	Columns     []ColumnInfo
	Pseudotypes map[string]string
}

// ColumnNames returns the column names in declaration order.
func (t *TableSchema) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Pseudotype returns the logical type for a column, defaulting to "string"
// when the column has no _column_definitions entry.
func (t *TableSchema) Pseudotype(column string) string {
	if pt, ok := t.Pseudotypes[column]; ok && pt != "" {
		return pt
	}
	return pseudotypeString
}

// ColumnDiff is the three-way split of two column-name sets for one table.
// Matching preserves source declaration order so that generated SQL is
// deterministic; SourceOnly and TargetOnly are sorted.
type ColumnDiff struct {
	Matching   []string
	SourceOnly []string
	TargetOnly []string
}

// TableOutcome classifies how a single table's migration ended.
type TableOutcome int

const (
	TableMigrated TableOutcome = iota
	TableSkipped
	TableFailed
)

// TableResult is what the orchestrator's per-table dispatch returns instead
// of letting errors escape the loop; the run-level failure policy decides
// whether a failed table aborts the remaining tables.
type TableResult struct {
	Table   string
	Outcome TableOutcome
	Rows    int
	Err     error
}
