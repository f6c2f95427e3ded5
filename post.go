package main

import (
	"context"
	"fmt"
	"log"
)

// Denormalized-field backfill: hh_person carries a copy of its household's
// village, recomputed from the parent table after every table has been
// migrated. This is a fixed, single-purpose step outside the generic
// reconciliation path and must run exactly once, after the table loop.
const (
	personTable    = "hh_person"
	householdTable = "household"
)

// backfillPersonVillages rewrites hh_person.village from the joined
// household row. Skipped with a log line when either table is absent from
// the target, so the generic engine stays usable on datasets without the
// household hierarchy.
func (m *Migrator) backfillPersonVillages(ctx context.Context) error {
	for _, table := range []string{personTable, householdTable} {
		exists, err := tableExists(ctx, m.targetDB, m.targetEngine, table)
		if err != nil {
			return fmt.Errorf("check %s: %w", table, err)
		}
		if !exists {
			log.Printf("skipping village backfill: table %s not present in target", table)
			return nil
		}
	}

	log.Printf("updating village values in %s...", personTable)

	person := m.targetEngine.QuoteIdentifier(personTable)
	household := m.targetEngine.QuoteIdentifier(householdTable)
	updateSQL := fmt.Sprintf(`UPDATE %s SET village = (
		SELECT hh.village FROM %s hh WHERE %s.hh_id = hh._id
	) WHERE %s.hh_id IS NOT NULL`, person, household, person, person)

	tx, err := m.targetDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("village backfill: begin: %w", err)
	}
	res, err := tx.ExecContext(ctx, updateSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("village backfill: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("village backfill: commit: %w", err)
	}

	if updated, err := res.RowsAffected(); err == nil {
		log.Printf("updated village values for %d records in %s", updated, personTable)
	}
	return nil
}
