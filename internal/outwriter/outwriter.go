// Package outwriter renders health reports and writes them to stdout or a file.
package outwriter

import (
	"fmt"
	"io"
	"os"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	"golang.org/x/term"
)

// WriteHealthReport renders a report in the configured output format.
func WriteHealthReport(report *schema.HealthReport, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return RenderJSON(w, report)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return RenderCSV(w, report)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	default:
		opts := RenderOptions{Colors: cfg.UseColors, PathWidth: GetMaxTablePathWidth(cfg)}
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return RenderHuman(w, report, opts)
		}, "Wrote report")
	}
	return nil
}

// WriteScoreModel prints the effective scoring weights.
func WriteScoreModel(model schema.ScoreModel, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, model)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return RenderScoreModelCSV(w, model)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return RenderScoreModelHuman(w, model)
		}, "Wrote text")
	}
}

// GetMaxTablePathWidth calculates the maximum width for finding locations in table output
// based on terminal width.
func GetMaxTablePathWidth(cfg *contract.Config) int {
	termWidth := cfg.Width

	if termWidth == 0 { // Not set by override
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// # + Severity + Source columns, plus room for a readable message
	baseWidth := 30 + 40

	// Borders, separators and padding
	baseWidth += 15

	available := termWidth - baseWidth
	if available < 15 {
		return 15
	}
	if available > 70 {
		return 70
	}
	return available
}
