// main is the entry point of the repohealth CLI.
package main

import (
	"fmt"
	"os"

	"github.com/huangsam/repohealth/cmd"
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/internal/history"
)

func main() {
	err := cmd.Execute()
	history.CloseHistory()
	if stopErr := cmd.StopProfiling(); stopErr != nil {
		contract.LogWarn("Failed to stop profiling", stopErr)
	}
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
