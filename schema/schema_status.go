package schema

import "time"

// HistoryStatus represents the status of the run history store.
type HistoryStatus struct {
	Backend       string           `json:"backend"`
	Connected     bool             `json:"connected"`
	TotalRuns     int              `json:"total_runs"`
	LastRunID     string           `json:"last_run_id"`
	LastRunTime   time.Time        `json:"last_run_time"`
	OldestRunTime time.Time        `json:"oldest_run_time"`
	AverageScore  float64          `json:"average_score"`
	TableSizes    map[string]int64 `json:"table_sizes"`
}

// HealthRunRecord represents a row from the repohealth_runs table.
type HealthRunRecord struct {
	RunID          string
	AnalyzedPath   string
	GeneratedAt    time.Time
	OverallScore   int32
	Grade          string
	CriticalIssues int32
	TotalFindings  int32
	DurationMs     int64
	ReportJSON     *string
}

// FindingRecord represents a row from the repohealth_findings table.
type FindingRecord struct {
	RunID    string
	Seq      int32
	Kind     string
	Severity string
	Source   string
	Message  string
	Path     *string
	Line     *int32
}
