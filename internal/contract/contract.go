// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"

	"github.com/huangsam/repohealth/schema"
)

// ToolRunner defines the operations needed to drive external analysis tools.
// This allows analyzers to be tested without the real linters and scanners installed.
type ToolRunner interface {
	// LookPath resolves a tool name to an executable path, failing when it is not installed.
	LookPath(name string) (string, error)

	// Run executes a tool inside dir and returns its stdout.
	// A non-zero exit is reported as a *ToolError that still carries stdout.
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// StoreManager defines the interface for managing persistence stores.
// This allows the history layer to be mocked for testing.
type StoreManager interface {
	GetHistoryStore() HistoryStore
}

// HistoryStore defines the interface for recording analysis runs and their findings.
type HistoryStore interface {
	// RecordReport stores a finished report and its findings
	RecordReport(report *schema.HealthReport) error

	// LatestReport returns the most recent report for an analyzed path, or nil when none exists
	LatestReport(analyzedPath string) (*schema.HealthReport, error)

	// GetStatus returns status information about the history store
	GetStatus() (schema.HistoryStatus, error)

	// GetAllRuns returns every stored run ordered by time
	GetAllRuns() ([]schema.HealthRunRecord, error)

	// GetAllFindings returns every stored finding ordered by run and sequence
	GetAllFindings() ([]schema.FindingRecord, error)

	// Close closes the underlying connection
	Close() error
}
