// Package parquet provides data structures and functions for exporting repohealth
// run history to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/huangsam/repohealth/schema"
	"github.com/parquet-go/parquet-go"
)

// HealthRun represents a single recorded analysis run.
// This struct maps to the repohealth_runs database table.
type HealthRun struct {
	// RunID is the UUID assigned to the report
	RunID string `parquet:"run_id,snappy"`

	// AnalyzedPath is the absolute repository root that was scanned
	AnalyzedPath string `parquet:"analyzed_path,snappy"`

	// GeneratedAt is when the report was produced (stored as TIMESTAMP with nanosecond precision)
	GeneratedAt time.Time `parquet:"generated_at,snappy"`

	// OverallScore is the 0-100 health score
	OverallScore int32 `parquet:"overall_score,snappy"`

	// Grade is the letter grade derived from the score
	Grade string `parquet:"grade,snappy"`

	// CriticalIssues is the number of critical findings
	CriticalIssues int32 `parquet:"critical_issues,snappy"`

	// TotalFindings is the number of findings after deduplication
	TotalFindings int32 `parquet:"total_findings,snappy"`

	// DurationMs is the wall time of the run in milliseconds
	DurationMs int64 `parquet:"duration_ms,snappy"`

	// ReportJSON is the full JSON report (nullable)
	ReportJSON *string `parquet:"report_json,optional,snappy"`
}

// Finding represents one finding of a recorded run.
// This struct maps to the repohealth_findings database table.
type Finding struct {
	RunID    string  `parquet:"run_id,snappy"`
	Seq      int32   `parquet:"seq,snappy"`
	Kind     string  `parquet:"kind,snappy"`
	Severity string  `parquet:"severity,snappy"`
	Source   string  `parquet:"source,snappy"`
	Message  string  `parquet:"message,snappy"`
	Path     *string `parquet:"path,optional,snappy"`
	Line     *int32  `parquet:"line,optional,snappy"`
}

// WriteHealthRunsParquet writes a slice of HealthRun structs to a Parquet file.
func WriteHealthRunsParquet(data []HealthRun, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteFindingsParquet writes a slice of Finding structs to a Parquet file.
func WriteFindingsParquet(data []Finding, outputPath string) error {
	return writeParquet(data, outputPath)
}

// writeParquet creates outputPath and writes rows with a schema derived from the struct tags of T.
func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// ConvertHealthRunRecords converts schema.HealthRunRecord to HealthRun for Parquet export.
func ConvertHealthRunRecords(records []schema.HealthRunRecord) []HealthRun {
	result := make([]HealthRun, len(records))
	for i, record := range records {
		result[i] = HealthRun{
			RunID:          record.RunID,
			AnalyzedPath:   record.AnalyzedPath,
			GeneratedAt:    record.GeneratedAt,
			OverallScore:   record.OverallScore,
			Grade:          record.Grade,
			CriticalIssues: record.CriticalIssues,
			TotalFindings:  record.TotalFindings,
			DurationMs:     record.DurationMs,
			ReportJSON:     record.ReportJSON,
		}
	}
	return result
}

// ConvertFindingRecords converts schema.FindingRecord to Finding for Parquet export.
func ConvertFindingRecords(records []schema.FindingRecord) []Finding {
	result := make([]Finding, len(records))
	for i, record := range records {
		result[i] = Finding{
			RunID:    record.RunID,
			Seq:      record.Seq,
			Kind:     record.Kind,
			Severity: record.Severity,
			Source:   record.Source,
			Message:  record.Message,
			Path:     record.Path,
			Line:     record.Line,
		}
	}
	return result
}
