package history

import (
	"errors"
	"fmt"
	"io"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/internal/parquet"
)

// ExportPaths returns the two Parquet files written for an export prefix.
func ExportPaths(outputFile string) (runsFile, findingsFile string) {
	return outputFile + ".runs.parquet", outputFile + ".findings.parquet"
}

// ExecuteHistoryExport exports every recorded run and finding to Parquet files, reporting progress to w.
func ExecuteHistoryExport(store contract.HistoryStore, outputFile string, w io.Writer) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}
	if store == nil {
		return errors.New("run history is disabled. Set --history-backend to sqlite, mysql or postgresql")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get history status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no run history found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Total runs: %d\n", status.TotalRuns)
	_, _ = fmt.Fprintf(w, "Total findings: %d\n", status.TableSizes[findingsTable])

	runs, err := store.GetAllRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve runs: %w", err)
	}
	findings, err := store.GetAllFindings()
	if err != nil {
		return fmt.Errorf("failed to retrieve findings: %w", err)
	}

	runsFile, findingsFile := ExportPaths(outputFile)

	parquetRuns := parquet.ConvertHealthRunRecords(runs)
	if err := parquet.WriteHealthRunsParquet(parquetRuns, runsFile); err != nil {
		return fmt.Errorf("failed to write runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d runs to: %s\n", len(parquetRuns), runsFile)

	parquetFindings := parquet.ConvertFindingRecords(findings)
	if err := parquet.WriteFindingsParquet(parquetFindings, findingsFile); err != nil {
		return fmt.Errorf("failed to write findings: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d findings to: %s\n", len(parquetFindings), findingsFile)

	_, _ = fmt.Fprintln(w, "\nExport complete! The Parquet files can be used with DuckDB, Pandas (via pyarrow), Spark or Arrow.")
	return nil
}
