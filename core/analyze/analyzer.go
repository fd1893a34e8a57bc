// Package analyze has the analyzer abstraction, the capability-probing runner and the
// concrete language, security and performance analyzers.
package analyze

import (
	"context"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
)

// Analyzer produces findings for one concern. Implementations only read the snapshot,
// so any number of them may run in parallel.
type Analyzer interface {
	// Name is the stable identifier used in findings, reports and --disable.
	Name() string

	// Applies reports whether the analyzer has anything to look at in this snapshot.
	Applies(snap *schema.RepositorySnapshot) bool

	// Checks lists the individual checks to run against the snapshot.
	Checks(snap *schema.RepositorySnapshot) []Check
}

// CheckFunc runs a single check.
type CheckFunc func(ctx context.Context, env *Env) ([]schema.Finding, error)

// Check is one unit of analysis. Tool names the external binary it needs;
// an empty Tool means the check is built in and always runs.
type Check struct {
	Name string
	Tool string
	Run  CheckFunc
}

// Options are the analysis knobs shared by all checks.
type Options struct {
	LargeFileBytes   int64
	MaxScanBytes     int64
	AdvisoriesFile   string
	FindingsPerCheck int
}

// Env is what a check may read: the snapshot, the tool runner and the options.
type Env struct {
	Snapshot *schema.RepositorySnapshot
	Runner   contract.ToolRunner
	Options  Options
}

// Outcome is the raw result of running one analyzer.
type Outcome struct {
	Name     string
	Status   schema.AnalyzerStatus
	Findings []schema.Finding
	Duration int64 // milliseconds
}

// All returns every analyzer in run order. Names match contract.KnownAnalyzers.
func All() []Analyzer {
	return []Analyzer{
		NewDocsAnalyzer(),
		NewJavaScriptAnalyzer(),
		NewPythonAnalyzer(),
		NewGoAnalyzer(),
		NewShellAnalyzer(),
		NewSecurityAnalyzer(),
		NewPerformanceAnalyzer(),
	}
}

// Select returns All() minus the disabled names.
func Select(disabled []string) (enabled []Analyzer, skipped []string) {
	off := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		off[name] = true
	}
	for _, a := range All() {
		if off[a.Name()] {
			skipped = append(skipped, a.Name())
			continue
		}
		enabled = append(enabled, a)
	}
	return enabled, skipped
}
