package cmd

import (
	"github.com/huangsam/repohealth/core"
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/spf13/cobra"
)

// analyzeCmd runs the full health pipeline against a repository.
var analyzeCmd = &cobra.Command{
	Use:   "analyze [repo-path] [json|human|csv]",
	Short: "Analyze a repository and print its health report.",
	Long: `Walk the repository once, run every applicable analyzer and print a scored report.

The score starts at 100 and every finding deducts the weight of its severity
(critical 20, high 10, medium 5, low 2, info 0 by default), floored at 0.
Missing tools and slow analyzers degrade to info findings instead of failing the run.

The exit code is 0 whenever the analysis completes, whatever the score. It is
non-zero only when the repository root cannot be read. Gate CI on the
summary.critical_issues field of the JSON report.

Examples:
  # Human-readable summary of the current directory
  repohealth analyze

  # JSON for CI, mirroring the two-argument script call
  repohealth analyze . json

  # Skip slow ecosystems and compare against the last recorded run
  repohealth analyze --disable javascript --history-backend sqlite

  # Check for regressions against a stored report
  repohealth analyze . json --baseline main-report.json --output-file report.json`,
	Args:    cobra.MaximumNArgs(2),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteHealthAnalyze(rootCtx, cfg, storeManager); err != nil {
			contract.LogFatal("Cannot analyze repository", err)
		}
	},
}
