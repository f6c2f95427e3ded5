package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
)

// Migrator owns both connections, the stats aggregate and the per-table
// executor for one migration run. Single-threaded: neither connection is
// shared across goroutines and batches run strictly sequentially.
type Migrator struct {
	cfg *MigrationConfig

	sourceEngine DBEngine
	targetEngine DBEngine
	sourceDB     *sql.DB
	targetDB     *sql.DB

	transforms map[string]ColumnTransform
	stats      *MigrationStats

	// confirm gates a full-database run after the pre-run count snapshot.
	// A returned error aborts before any target mutation. Nil disables the gate.
	confirm func() error
}

// newMigrator opens both databases and fails fast on connectivity problems,
// before any table is touched. The source side is opened read-only where the
// engine supports it.
func newMigrator(ctx context.Context, cfg *MigrationConfig) (*Migrator, error) {
	sourceEngine, err := newDBEngine(cfg.Source.Engine)
	if err != nil {
		return nil, err
	}
	targetEngine, err := newDBEngine(cfg.Target.Engine)
	if err != nil {
		return nil, err
	}

	sourceDB, err := sourceEngine.Open(cfg.Source.DSN, true)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	if err := sourceDB.PingContext(ctx); err != nil {
		sourceDB.Close()
		return nil, fmt.Errorf("ping source: %w", err)
	}

	targetDB, err := targetEngine.Open(cfg.Target.DSN, false)
	if err != nil {
		sourceDB.Close()
		return nil, fmt.Errorf("open target: %w", err)
	}
	if err := targetDB.PingContext(ctx); err != nil {
		sourceDB.Close()
		targetDB.Close()
		return nil, fmt.Errorf("ping target: %w", err)
	}

	return &Migrator{
		cfg:          cfg,
		sourceEngine: sourceEngine,
		targetEngine: targetEngine,
		sourceDB:     sourceDB,
		targetDB:     targetDB,
		transforms:   buildColumnTransforms(cfg, sourceDB, sourceEngine),
		stats:        newMigrationStats(cfg),
	}, nil
}

// Stats exposes the run's aggregate for the report layer. Read it only
// after the run completes.
func (m *Migrator) Stats() *MigrationStats { return m.stats }

func (m *Migrator) Close() error {
	serr := m.sourceDB.Close()
	terr := m.targetDB.Close()
	if serr != nil {
		return serr
	}
	return terr
}

// RunAll migrates every table present in both databases, runs the fixed
// post-pass, and renders the aggregate summary. The pre-run count snapshot
// blocks on the confirmation gate before any mutation.
func (m *Migrator) RunAll(ctx context.Context) error {
	if err := m.logTableCounts(ctx, "before migration"); err != nil {
		return err
	}
	if m.confirm != nil {
		if err := m.confirm(); err != nil {
			return fmt.Errorf("aborted: %w", err)
		}
	}

	sourceTables, err := listTables(ctx, m.sourceDB, m.sourceEngine)
	if err != nil {
		return fmt.Errorf("list source tables: %w", err)
	}
	targetTables, err := listTables(ctx, m.targetDB, m.targetEngine)
	if err != nil {
		return fmt.Errorf("list target tables: %w", err)
	}

	common, sourceOnly, targetOnly := diffTables(sourceTables, targetTables)
	if len(sourceOnly) > 0 {
		log.Printf("tables in source but not in target: %v", sourceOnly)
		m.stats.SourceOnlyTables = sourceOnly
	}
	if len(targetOnly) > 0 {
		log.Printf("tables in target but not in source: %v", targetOnly)
		m.stats.TargetOnlyTables = targetOnly
	}

	if err := m.execHookFiles(ctx, m.cfg.Hooks.BeforeData, "before_data"); err != nil {
		return err
	}

	for _, table := range common {
		res := m.migrateTable(ctx, table)
		switch res.Outcome {
		case TableMigrated:
			m.stats.TablesMigrated++
		case TableFailed:
			m.stats.FailedTables[res.Table] = res.Err.Error()
			if m.cfg.OnTableFailure == failureAbort {
				return fmt.Errorf("table %s: %w", res.Table, res.Err)
			}
			log.Printf("  WARN: table %s failed, continuing: %v", res.Table, res.Err)
		}
	}

	if err := m.execHookFiles(ctx, m.cfg.Hooks.AfterData, "after_data"); err != nil {
		return err
	}

	if err := m.backfillPersonVillages(ctx); err != nil {
		return err
	}

	m.stats.logSummary()
	return m.logTableCounts(ctx, "after migration")
}

// RunOne migrates a single table: no table-set diff, no confirmation gate,
// no post-pass.
func (m *Migrator) RunOne(ctx context.Context, table string) error {
	if isReservedTable(table) {
		return fmt.Errorf("table %s is reserved and cannot be migrated", table)
	}

	res := m.migrateTable(ctx, table)
	switch res.Outcome {
	case TableMigrated:
		m.stats.TablesMigrated++
	case TableFailed:
		m.stats.FailedTables[res.Table] = res.Err.Error()
		return fmt.Errorf("table %s: %w", res.Table, res.Err)
	}

	m.stats.logSummary()
	return nil
}

func isReservedTable(table string) bool {
	return strings.HasPrefix(table, metadataTablePrefix) || strings.HasPrefix(table, lookupTablePrefix)
}

// logTableCounts renders a row-count snapshot of every table on either side.
func (m *Migrator) logTableCounts(ctx context.Context, stage string) error {
	sourceTables, err := listTables(ctx, m.sourceDB, m.sourceEngine)
	if err != nil {
		return fmt.Errorf("list source tables: %w", err)
	}
	targetTables, err := listTables(ctx, m.targetDB, m.targetEngine)
	if err != nil {
		return fmt.Errorf("list target tables: %w", err)
	}

	sourceSet := toSet(sourceTables)
	targetSet := toSet(targetTables)
	all := unionSorted(sourceTables, targetTables)

	width := len("table")
	for _, t := range all {
		if len(t) > width {
			width = len(t)
		}
	}

	log.Printf("=== table row counts (%s) ===", stage)
	log.Printf("%-*s  %10s  %10s", width, "table", "source", "target")
	for _, table := range all {
		srcCount := "-"
		tgtCount := "-"
		if _, ok := sourceSet[table]; ok {
			n, err := countRows(ctx, m.sourceDB, m.sourceEngine, table)
			if err != nil {
				return fmt.Errorf("count source %s: %w", table, err)
			}
			srcCount = strconv.Itoa(n)
		}
		if _, ok := targetSet[table]; ok {
			n, err := countRows(ctx, m.targetDB, m.targetEngine, table)
			if err != nil {
				return fmt.Errorf("count target %s: %w", table, err)
			}
			tgtCount = strconv.Itoa(n)
		}
		log.Printf("%-*s  %10s  %10s", width, table, srcCount, tgtCount)
	}
	return nil
}

func unionSorted(a, b []string) []string {
	seen := toSet(a)
	union := append([]string(nil), a...)
	for _, name := range b {
		if _, ok := seen[name]; !ok {
			union = append(union, name)
		}
	}
	sort.Strings(union)
	return union
}
