package main

import (
	"log"
	"sort"
	"strings"
)

// maxConversionExamples caps how many before/after pairs are recorded per
// converted column.
const maxConversionExamples = 3

// ConversionExample is one before/after pair captured for the report.
type ConversionExample struct {
	Original  any
	Converted any
}

// ConversionRecord summarizes the pseudotype conversion applied to one
// column of one table.
type ConversionRecord struct {
	SourceType string
	TargetType string
	Examples   []ConversionExample
}

// UnsupportedConversion records a (source, target) pseudotype pair the
// converter has no rule for. Captured once per (table, column), with a
// truncated example of the first offending value.
type UnsupportedConversion struct {
	SourceType   string
	TargetType   string
	ExampleValue string
}

// MigrationStats is the mutable aggregate for one run. It is owned by the
// orchestrator, mutated by the executor on the single execution thread, and
// read once at run end by the report layer. A concurrent extension must
// serialize access.
type MigrationStats struct {
	TablesMigrated       int
	TablesSkipped        int
	TotalRecordsMigrated int

	SourceOnlyTables []string
	TargetOnlyTables []string
	FailedTables     map[string]string

	SourceOnlyColumns map[string][]string
	TargetOnlyColumns map[string][]string

	// table → column → record
	Conversions            map[string]map[string]*ConversionRecord
	UnsupportedConversions map[string]map[string]UnsupportedConversion

	TestMode        bool
	MaxRowsPerTable int
}

func newMigrationStats(cfg *MigrationConfig) *MigrationStats {
	return &MigrationStats{
		FailedTables:           make(map[string]string),
		SourceOnlyColumns:      make(map[string][]string),
		TargetOnlyColumns:      make(map[string][]string),
		Conversions:            make(map[string]map[string]*ConversionRecord),
		UnsupportedConversions: make(map[string]map[string]UnsupportedConversion),
		TestMode:               cfg.TestMode,
		MaxRowsPerTable:        cfg.MaxRowsPerTable,
	}
}

// recordConversion tracks a pseudotype conversion for the report, keeping at
// most maxConversionExamples before/after pairs per column.
func (s *MigrationStats) recordConversion(table, column, sourceType, targetType string, original, converted any) {
	cols, ok := s.Conversions[table]
	if !ok {
		cols = make(map[string]*ConversionRecord)
		s.Conversions[table] = cols
	}
	rec, ok := cols[column]
	if !ok {
		rec = &ConversionRecord{SourceType: sourceType, TargetType: targetType}
		cols[column] = rec
	}
	if len(rec.Examples) < maxConversionExamples {
		rec.Examples = append(rec.Examples, ConversionExample{Original: original, Converted: converted})
	}
}

// recordUnsupported logs an unsupported pseudotype pair, first occurrence
// per (table, column) only.
func (s *MigrationStats) recordUnsupported(table, column, sourceType, targetType string, value any) {
	cols, ok := s.UnsupportedConversions[table]
	if !ok {
		cols = make(map[string]UnsupportedConversion)
		s.UnsupportedConversions[table] = cols
	}
	if _, ok := cols[column]; ok {
		return
	}
	cols[column] = UnsupportedConversion{
		SourceType:   sourceType,
		TargetType:   targetType,
		ExampleValue: truncateValue(value),
	}
	log.Printf("  WARN: unsupported pseudotype conversion for column %s: %s -> %s", column, sourceType, targetType)
}

// logSummary renders the aggregate report at run end.
func (s *MigrationStats) logSummary() {
	log.Printf("=== Migration Summary ===")
	if s.TestMode {
		log.Printf("running in TEST MODE")
		if s.MaxRowsPerTable > 0 {
			log.Printf("row limit per table: %d", s.MaxRowsPerTable)
		}
	}

	log.Printf("tables migrated: %d", s.TablesMigrated)
	log.Printf("tables skipped: %d", s.TablesSkipped)
	log.Printf("total records migrated: %d", s.TotalRecordsMigrated)

	if len(s.SourceOnlyTables) > 0 {
		log.Printf("tables in source but not in target: %s", strings.Join(s.SourceOnlyTables, ", "))
	}
	if len(s.TargetOnlyTables) > 0 {
		log.Printf("tables in target but not in source: %s", strings.Join(s.TargetOnlyTables, ", "))
	}
	if len(s.FailedTables) > 0 {
		log.Printf("failed tables:")
		for _, table := range sortedKeys(s.FailedTables) {
			log.Printf("  %s: %s", table, s.FailedTables[table])
		}
	}

	if len(s.SourceOnlyColumns) > 0 {
		log.Printf("columns in source but not in target:")
		for _, table := range sortedKeys(s.SourceOnlyColumns) {
			log.Printf("  %s: %s", table, strings.Join(s.SourceOnlyColumns[table], ", "))
		}
	}
	if len(s.TargetOnlyColumns) > 0 {
		log.Printf("columns in target but not in source:")
		for _, table := range sortedKeys(s.TargetOnlyColumns) {
			log.Printf("  %s: %s", table, strings.Join(s.TargetOnlyColumns[table], ", "))
		}
	}

	if len(s.Conversions) > 0 {
		log.Printf("pseudotype conversions applied:")
		for _, table := range sortedKeys(s.Conversions) {
			log.Printf("  table %s:", table)
			for _, column := range sortedKeys(s.Conversions[table]) {
				rec := s.Conversions[table][column]
				log.Printf("    column %s (%s -> %s)", column, rec.SourceType, rec.TargetType)
				for _, ex := range rec.Examples {
					log.Printf("      example: %v -> %v", ex.Original, ex.Converted)
				}
			}
		}
	}

	if len(s.UnsupportedConversions) > 0 {
		log.Printf("unsupported pseudotype conversions (no conversion applied):")
		for _, table := range sortedKeys(s.UnsupportedConversions) {
			log.Printf("  table %s:", table)
			for _, column := range sortedKeys(s.UnsupportedConversions[table]) {
				uc := s.UnsupportedConversions[table][column]
				log.Printf("    column %s (%s -> %s), example value: %s",
					column, uc.SourceType, uc.TargetType, uc.ExampleValue)
			}
		}
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
