package cmd

import (
	"github.com/huangsam/repohealth/core"
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/spf13/cobra"
)

// weightsCmd displays the effective scoring model.
var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Display the severity weights used for scoring",
	Long: `Show how findings turn into the 0-100 health score.

Custom weights come from the weights section of .repohealth.yaml:

  weights:
    critical: 25
    low: 1

No repository analysis is performed - this is purely informational.

Examples:
  # Show default weights
  repohealth weights

  # Show weights from a specific config file as JSON
  repohealth weights --config .repohealth.yaml --output json`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteScoreModel(rootCtx, cfg, storeManager); err != nil {
			contract.LogFatal("Cannot display weights", err)
		}
	},
}
