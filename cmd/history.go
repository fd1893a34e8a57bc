package cmd

import (
	"fmt"
	"os"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/internal/history"
	"github.com/huangsam/repohealth/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// historyBackendConfig reads and validates only the history settings.
func historyBackendConfig() error {
	if err := readConfigFile(); err != nil {
		return err
	}
	backend, err := contract.ParseBackend(viper.GetString("history-backend"), viper.GetString("history-db-connect"))
	if err != nil {
		return err
	}
	cfg.HistoryBackend = backend
	cfg.HistoryDBConnect = viper.GetString("history-db-connect")
	cfg.OutputFile = viper.GetString("output-file")
	return nil
}

// historySetup loads minimal configuration and opens the history store.
// History commands skip sharedSetup because they never touch a repository.
func historySetup(_ *cobra.Command, _ []string) error {
	if err := historyBackendConfig(); err != nil {
		return err
	}
	if err := history.InitHistory(cfg.HistoryBackend, cfg.HistoryDBConnect); err != nil {
		return err
	}
	storeManager = history.Manager
	return nil
}

// historyMigrateSetup does not open the store, so migrations can run on a fresh database
// before any table exists.
func historyMigrateSetup(_ *cobra.Command, _ []string) error {
	if err := historyBackendConfig(); err != nil {
		return err
	}
	if cfg.HistoryBackend == schema.SQLiteBackend && cfg.HistoryDBConnect == "" {
		cfg.HistoryDBConnect = history.GetDBFilePath()
	}
	return nil
}

// historyCmd groups run history management.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage recorded analysis runs",
	Long: `Manage the run history used for regression checks and trend exports.

When --history-backend is sqlite, mysql or postgresql, every analysis records its
report. The latest run of the same path then serves as the prior report when no
--baseline is given.

Subcommands:
  status  - Show history statistics and connection info
  clear   - Remove all recorded runs
  export  - Write runs and findings to Parquet files
  migrate - Apply or roll back schema migrations`,
}

// historyStatusCmd shows history status.
var historyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display run history statistics and connection details",
	Long: `Show the history backend, run counts, the last and oldest run and the average score.

Examples:
  repohealth history status --history-backend sqlite`,
	PreRunE: historySetup,
	Run: func(_ *cobra.Command, _ []string) {
		store := storeManager.GetHistoryStore()
		if store == nil {
			history.PrintHistoryStatus(os.Stdout, schema.HistoryStatus{Backend: string(cfg.HistoryBackend)})
			return
		}
		status, err := store.GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get history status", err)
		}
		history.PrintHistoryStatus(os.Stdout, status)
	},
}

// historyClearCmd clears the history.
var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all recorded runs",
	Long: `Delete every recorded run and finding from the configured backend.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the history and migration tables

Examples:
  repohealth history clear --history-backend sqlite

  # Set the connection string via env variable
  REPOHEALTH_HISTORY_BACKEND=mysql REPOHEALTH_HISTORY_DB_CONNECT="..." repohealth history clear`,
	PreRunE: historyMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := history.ClearHistory(cfg.HistoryBackend, cfg.HistoryDBConnect, cfg.HistoryDBConnect); err != nil {
			contract.LogFatal("Failed to clear history", err)
		}
		fmt.Println("History cleared successfully.")
	},
}

// historyExportCmd exports history to Parquet.
var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded runs and findings to Parquet files",
	Long: `Write every recorded run and finding to two Parquet files:
<output-file>.runs.parquet and <output-file>.findings.parquet.

Examples:
  repohealth history export --history-backend sqlite --output-file health
  duckdb -c "SELECT analyzed_path, overall_score FROM read_parquet('health.runs.parquet')"`,
	PreRunE: historySetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := history.ExecuteHistoryExport(storeManager.GetHistoryStore(), cfg.OutputFile, os.Stdout); err != nil {
			contract.LogFatal("Failed to export run history", err)
		}
	},
}

// historyMigrateCmd runs database migrations for the history store.
var historyMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage schema versions of the run history store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  repohealth history migrate --history-backend postgresql

  # Roll back everything
  repohealth history migrate --history-backend sqlite --target-version 0`,
	PreRunE: historyMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := history.MigrateHistory(cfg.HistoryBackend, cfg.HistoryDBConnect, targetVersion, os.Stdout); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}
