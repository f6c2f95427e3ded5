package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	configPath string
	tableName  string
	assumeYes  bool
)

var rootCmd = &cobra.Command{
	Use:   "odkmigrate [config.toml]",
	Short: "Schema-reconciling record migration between ODK-X database versions",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMigration,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to migration TOML config file")
	rootCmd.Flags().StringVar(&tableName, "table", "", "migrate a single table instead of the full database")
	rootCmd.Flags().BoolVar(&assumeYes, "yes", false, "skip the interactive confirmation prompt")
	rootCmd.Version = versionString()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMigration(cmd *cobra.Command, args []string) error {
	// Resolve config path: positional arg takes precedence over --config flag
	cfgPath := configPath
	if len(args) > 0 {
		cfgPath = args[0]
	}
	if cfgPath == "" {
		return fmt.Errorf("config file required: odkmigrate <config.toml> or odkmigrate --config <config.toml>")
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	start := time.Now()

	log.Printf("odkmigrate %s", versionString())
	log.Printf("config: source=%s(%s) target=%s(%s) test_mode=%t max_rows_per_table=%d on_table_failure=%s",
		cfg.Source.Engine, cfg.Source.DSN,
		cfg.Target.Engine, cfg.Target.DSN,
		cfg.TestMode, cfg.MaxRowsPerTable, cfg.OnTableFailure,
	)

	m, err := newMigrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if tableName != "" {
		if err := m.RunOne(ctx, tableName); err != nil {
			return err
		}
		log.Printf("table %s migrated in %s", tableName, time.Since(start).Round(time.Millisecond))
		return nil
	}

	if !assumeYes {
		m.confirm = promptConfirmation
	}

	if err := m.RunAll(ctx); err != nil {
		return err
	}
	log.Printf("migration completed in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

// promptConfirmation blocks until the user presses Enter. EOF (or an
// interrupt closing stdin) aborts the run before any target mutation.
func promptConfirmation() error {
	fmt.Fprint(os.Stderr, "\nPress [Enter] to continue or [CTRL]+C to abort... ")
	if _, err := bufio.NewReader(os.Stdin).ReadString('\n'); err != nil {
		return fmt.Errorf("no confirmation received: %w", err)
	}
	return nil
}
