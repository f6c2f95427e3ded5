package main

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"
)

// newTestMigrator seeds a source and target SQLite database and opens a
// migrator over them.
func newTestMigrator(t *testing.T, cfg *MigrationConfig, sourceStmts, targetStmts []string) *Migrator {
	t.Helper()
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "source.db")
	targetPath := filepath.Join(dir, "target.db")
	seedDB(t, sourcePath, sourceStmts)
	seedDB(t, targetPath, targetStmts)

	if cfg == nil {
		cfg = &MigrationConfig{OnTableFailure: failureAbort}
	}
	cfg.Source = EndpointConfig{Engine: "sqlite", DSN: sourcePath}
	cfg.Target = EndpointConfig{Engine: "sqlite", DSN: targetPath}

	m, err := newMigrator(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newMigrator: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func queryInt(t *testing.T, db *sql.DB, query string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query).Scan(&n); err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	return n
}

func queryString(t *testing.T, db *sql.DB, query string) string {
	t.Helper()
	var s sql.NullString
	if err := db.QueryRow(query).Scan(&s); err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	return s.String
}

func TestMigrateTableCopiesMatchingColumns(t *testing.T) {
	m := newTestMigrator(t, nil,
		[]string{
			"CREATE TABLE person (id INTEGER, name TEXT, age INTEGER)",
			"INSERT INTO person VALUES (1, 'ada', 36), (2, 'grace', 40), (3, 'joan', 28)",
		},
		[]string{
			"CREATE TABLE person (id INTEGER, name TEXT, age INTEGER, village TEXT DEFAULT 'unknown')",
		},
	)

	res := m.migrateTable(context.Background(), "person")
	if res.Outcome != TableMigrated || res.Err != nil {
		t.Fatalf("migrateTable = %+v", res)
	}
	if res.Rows != 3 {
		t.Errorf("Rows = %d, want 3", res.Rows)
	}
	if m.stats.TotalRecordsMigrated != 3 {
		t.Errorf("TotalRecordsMigrated = %d, want 3", m.stats.TotalRecordsMigrated)
	}

	if n := queryInt(t, m.targetDB, "SELECT COUNT(*) FROM person"); n != 3 {
		t.Errorf("target rows = %d, want 3", n)
	}
	if name := queryString(t, m.targetDB, "SELECT name FROM person WHERE id = 2"); name != "grace" {
		t.Errorf("name = %q", name)
	}
	// The target-only column keeps its target-side default.
	if v := queryString(t, m.targetDB, "SELECT village FROM person WHERE id = 1"); v != "unknown" {
		t.Errorf("village = %q, want default", v)
	}
	if got := m.stats.TargetOnlyColumns["person"]; !reflect.DeepEqual(got, []string{"village"}) {
		t.Errorf("TargetOnlyColumns = %v", got)
	}
}

func TestMigrateTableEmptySourceSkips(t *testing.T) {
	m := newTestMigrator(t, nil,
		[]string{"CREATE TABLE person (id INTEGER)"},
		[]string{"CREATE TABLE person (id INTEGER)"},
	)

	res := m.migrateTable(context.Background(), "person")
	if res.Outcome != TableSkipped || res.Err != nil {
		t.Fatalf("migrateTable = %+v", res)
	}
	if m.stats.TablesSkipped != 1 {
		t.Errorf("TablesSkipped = %d, want 1", m.stats.TablesSkipped)
	}
	if n := queryInt(t, m.targetDB, "SELECT COUNT(*) FROM person"); n != 0 {
		t.Errorf("target rows = %d, want 0", n)
	}
}

func TestMigrateTableNoMatchingColumnsSkips(t *testing.T) {
	m := newTestMigrator(t, nil,
		[]string{
			"CREATE TABLE person (old_a TEXT, old_b TEXT)",
			"INSERT INTO person VALUES ('x', 'y')",
		},
		[]string{"CREATE TABLE person (new_a TEXT, new_b TEXT)"},
	)

	res := m.migrateTable(context.Background(), "person")
	if res.Outcome != TableSkipped || res.Err != nil {
		t.Fatalf("migrateTable = %+v", res)
	}
	if m.stats.TablesSkipped != 1 {
		t.Errorf("TablesSkipped = %d, want 1", m.stats.TablesSkipped)
	}
	if n := queryInt(t, m.targetDB, "SELECT COUNT(*) FROM person"); n != 0 {
		t.Errorf("target rows = %d, want 0", n)
	}
	if got := m.stats.SourceOnlyColumns["person"]; !reflect.DeepEqual(got, []string{"old_a", "old_b"}) {
		t.Errorf("SourceOnlyColumns = %v", got)
	}
}

func TestMigrateTablePseudotypeConversions(t *testing.T) {
	m := newTestMigrator(t, nil,
		[]string{
			"CREATE TABLE survey (id INTEGER, tags TEXT, category TEXT)",
			`INSERT INTO survey VALUES (1, 'red', '["x","y"]'), (2, 'blue', '[]'), (3, NULL, 'plain')`,
			"CREATE TABLE _column_definitions (_table_id TEXT, _element_key TEXT, _element_type TEXT)",
			"INSERT INTO _column_definitions VALUES ('survey', 'tags', 'string')",
			"INSERT INTO _column_definitions VALUES ('survey', 'category', 'array')",
		},
		[]string{
			"CREATE TABLE survey (id INTEGER, tags TEXT, category TEXT)",
			"CREATE TABLE _column_definitions (_table_id TEXT, _element_key TEXT, _element_type TEXT)",
			"INSERT INTO _column_definitions VALUES ('survey', 'tags', 'array')",
			"INSERT INTO _column_definitions VALUES ('survey', 'category', 'string')",
		},
	)

	res := m.migrateTable(context.Background(), "survey")
	if res.Outcome != TableMigrated || res.Err != nil {
		t.Fatalf("migrateTable = %+v", res)
	}

	// string→array wraps the scalar in a one-element JSON array.
	if v := queryString(t, m.targetDB, "SELECT tags FROM survey WHERE id = 1"); v != `["red"]` {
		t.Errorf("tags = %q, want [\"red\"]", v)
	}
	// array→string takes element 0, empty string for an empty array.
	if v := queryString(t, m.targetDB, "SELECT category FROM survey WHERE id = 1"); v != "x" {
		t.Errorf("category = %q, want x", v)
	}
	if v := queryString(t, m.targetDB, "SELECT category FROM survey WHERE id = 2"); v != "" {
		t.Errorf("category(empty array) = %q, want empty", v)
	}
	// NULL is never converted.
	var tags any
	if err := m.targetDB.QueryRow("SELECT tags FROM survey WHERE id = 3").Scan(&tags); err != nil {
		t.Fatal(err)
	}
	if tags != nil {
		t.Errorf("NULL tags converted to %v", tags)
	}

	rec := m.stats.Conversions["survey"]["tags"]
	if rec == nil {
		t.Fatal("conversion record for tags missing")
	}
	if rec.SourceType != "string" || rec.TargetType != "array" {
		t.Errorf("conversion record = %+v", rec)
	}
	if len(rec.Examples) != 2 {
		t.Errorf("examples = %d, want 2 (NULL rows are not recorded)", len(rec.Examples))
	}
}

func TestMigrateTableConversionExamplesCapped(t *testing.T) {
	sourceStmts := []string{
		"CREATE TABLE survey (id INTEGER, tags TEXT)",
		"CREATE TABLE _column_definitions (_table_id TEXT, _element_key TEXT, _element_type TEXT)",
		"INSERT INTO _column_definitions VALUES ('survey', 'tags', 'string')",
	}
	for i := 0; i < 10; i++ {
		sourceStmts = append(sourceStmts, fmt.Sprintf("INSERT INTO survey VALUES (%d, 'v%d')", i, i))
	}
	m := newTestMigrator(t, nil, sourceStmts, []string{
		"CREATE TABLE survey (id INTEGER, tags TEXT)",
		"CREATE TABLE _column_definitions (_table_id TEXT, _element_key TEXT, _element_type TEXT)",
		"INSERT INTO _column_definitions VALUES ('survey', 'tags', 'array')",
	})

	res := m.migrateTable(context.Background(), "survey")
	if res.Outcome != TableMigrated {
		t.Fatalf("migrateTable = %+v", res)
	}
	if got := len(m.stats.Conversions["survey"]["tags"].Examples); got != maxConversionExamples {
		t.Errorf("examples = %d, want %d", got, maxConversionExamples)
	}
}

func TestMigrateTableUnsupportedConversionRecordedOnce(t *testing.T) {
	m := newTestMigrator(t, nil,
		[]string{
			"CREATE TABLE survey (id INTEGER, flag INTEGER)",
			"INSERT INTO survey VALUES (1, 1), (2, 0), (3, 1)",
			"CREATE TABLE _column_definitions (_table_id TEXT, _element_key TEXT, _element_type TEXT)",
			"INSERT INTO _column_definitions VALUES ('survey', 'flag', 'boolean')",
		},
		[]string{
			"CREATE TABLE survey (id INTEGER, flag INTEGER)",
			"CREATE TABLE _column_definitions (_table_id TEXT, _element_key TEXT, _element_type TEXT)",
			"INSERT INTO _column_definitions VALUES ('survey', 'flag', 'integer')",
		},
	)

	res := m.migrateTable(context.Background(), "survey")
	if res.Outcome != TableMigrated || res.Err != nil {
		t.Fatalf("migrateTable = %+v", res)
	}

	// Values pass through unchanged.
	if n := queryInt(t, m.targetDB, "SELECT flag FROM survey WHERE id = 1"); n != 1 {
		t.Errorf("flag = %d, want 1", n)
	}
	ucs := m.stats.UnsupportedConversions["survey"]
	if len(ucs) != 1 {
		t.Fatalf("unsupported conversions = %v, want exactly one column", ucs)
	}
	uc := ucs["flag"]
	if uc.SourceType != "boolean" || uc.TargetType != "integer" || uc.ExampleValue != "1" {
		t.Errorf("unsupported record = %+v", uc)
	}
	// No conversion examples for an unsupported pair.
	if _, ok := m.stats.Conversions["survey"]; ok {
		t.Error("unsupported pair must not appear in the conversions log")
	}
}

func TestMigrateTableBatching(t *testing.T) {
	sourceStmts := []string{"CREATE TABLE wide (id INTEGER, v TEXT)"}
	for i := 0; i < 250; i++ {
		sourceStmts = append(sourceStmts, fmt.Sprintf("INSERT INTO wide VALUES (%d, 'row%d')", i, i))
	}
	m := newTestMigrator(t, nil, sourceStmts, []string{"CREATE TABLE wide (id INTEGER, v TEXT)"})

	res := m.migrateTable(context.Background(), "wide")
	if res.Outcome != TableMigrated || res.Err != nil {
		t.Fatalf("migrateTable = %+v", res)
	}
	if res.Rows != 250 {
		t.Errorf("Rows = %d, want 250", res.Rows)
	}
	if n := queryInt(t, m.targetDB, "SELECT COUNT(*) FROM wide"); n != 250 {
		t.Errorf("target rows = %d, want 250", n)
	}
	if m.stats.TotalRecordsMigrated != 250 {
		t.Errorf("TotalRecordsMigrated = %d, want 250", m.stats.TotalRecordsMigrated)
	}
}

func TestMigrateTableBatchFailureKeepsPriorBatches(t *testing.T) {
	sourceStmts := []string{"CREATE TABLE person (id INTEGER, name TEXT)"}
	for i := 0; i < 150; i++ {
		id := i
		if i == 120 {
			id = 5 // duplicate PK, lands in the second batch
		}
		sourceStmts = append(sourceStmts, fmt.Sprintf("INSERT INTO person VALUES (%d, 'p%d')", id, i))
	}
	m := newTestMigrator(t, nil, sourceStmts,
		[]string{"CREATE TABLE person (id INTEGER PRIMARY KEY, name TEXT)"})

	res := m.migrateTable(context.Background(), "person")
	if res.Outcome != TableFailed || res.Err == nil {
		t.Fatalf("migrateTable = %+v, want failure", res)
	}

	// Batch 1 (100 rows) stays committed; batch 2 rolled back whole.
	if n := queryInt(t, m.targetDB, "SELECT COUNT(*) FROM person"); n != 100 {
		t.Errorf("target rows = %d, want 100", n)
	}
	if m.stats.TotalRecordsMigrated != 0 {
		t.Errorf("TotalRecordsMigrated = %d, want 0 (only counted on table success)", m.stats.TotalRecordsMigrated)
	}
}

func TestMigrateTableTestModeRowCap(t *testing.T) {
	sourceStmts := []string{"CREATE TABLE person (id INTEGER)"}
	for i := 0; i < 120; i++ {
		sourceStmts = append(sourceStmts, fmt.Sprintf("INSERT INTO person VALUES (%d)", i))
	}
	cfg := &MigrationConfig{OnTableFailure: failureAbort, TestMode: true, MaxRowsPerTable: 50}
	m := newTestMigrator(t, cfg, sourceStmts, []string{"CREATE TABLE person (id INTEGER)"})

	res := m.migrateTable(context.Background(), "person")
	if res.Outcome != TableMigrated || res.Err != nil {
		t.Fatalf("migrateTable = %+v", res)
	}
	if n := queryInt(t, m.targetDB, "SELECT COUNT(*) FROM person"); n != 50 {
		t.Errorf("target rows = %d, want 50", n)
	}
}

func TestMigrateTableCustomTransforms(t *testing.T) {
	cfg := &MigrationConfig{
		OnTableFailure: failureAbort,
		Transforms: []TransformConfig{
			{Column: "name", Func: "title_case"},
			{Column: "village", Lookup: &LookupConfig{
				Table:       "household",
				MatchColumn: "_id",
				ValueColumn: "village",
				LocalColumn: "hh_id",
			}},
		},
	}
	m := newTestMigrator(t, cfg,
		[]string{
			"CREATE TABLE hh_person (_id TEXT, hh_id TEXT, name TEXT, village TEXT)",
			"INSERT INTO hh_person VALUES ('p1', 'h1', 'ada lovelace', NULL)",
			"INSERT INTO hh_person VALUES ('p2', 'h2', 'grace hopper', NULL)",
			"INSERT INTO hh_person VALUES ('p3', NULL, 'joan clarke', NULL)",
			"CREATE TABLE household (_id TEXT, village TEXT)",
			"INSERT INTO household VALUES ('h1', 'north'), ('h2', 'south')",
		},
		[]string{
			"CREATE TABLE hh_person (_id TEXT, hh_id TEXT, name TEXT, village TEXT)",
		},
	)

	res := m.migrateTable(context.Background(), "hh_person")
	if res.Outcome != TableMigrated || res.Err != nil {
		t.Fatalf("migrateTable = %+v", res)
	}

	if name := queryString(t, m.targetDB, "SELECT name FROM hh_person WHERE _id = 'p1'"); name != "Ada Lovelace" {
		t.Errorf("name = %q, want Ada Lovelace", name)
	}
	if v := queryString(t, m.targetDB, "SELECT village FROM hh_person WHERE _id = 'p1'"); v != "north" {
		t.Errorf("village = %q, want north", v)
	}
	if v := queryString(t, m.targetDB, "SELECT village FROM hh_person WHERE _id = 'p2'"); v != "south" {
		t.Errorf("village = %q, want south", v)
	}
	// No hh_id: lookup leaves the original (NULL) value alone.
	var v any
	if err := m.targetDB.QueryRow("SELECT village FROM hh_person WHERE _id = 'p3'").Scan(&v); err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Errorf("village without hh_id = %v, want NULL", v)
	}
}
