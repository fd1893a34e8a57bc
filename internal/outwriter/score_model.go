package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// RenderScoreModelHuman prints the deduction table and the formula it feeds.
func RenderScoreModelHuman(w io.Writer, model schema.ScoreModel) error {
	if _, err := fmt.Fprintf(w, "🧮 Repository Health Scoring\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Score = clamp(%d - sum(weight per finding), %d, %d)\n\n", model.Ceiling, model.Floor, model.Ceiling); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Severity", "Weight"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	var data [][]string
	for _, sev := range schema.AllSeverities {
		data = append(data, []string{contract.GetPlainLabel(sev), strconv.Itoa(model.Weight(sev))})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintln(w, "Grades: A >= 90, B >= 80, C >= 70, D >= 60, F below")
	return err
}

// RenderScoreModelCSV writes one severity,weight row per severity.
func RenderScoreModelCSV(w io.Writer, model schema.ScoreModel) error {
	return writeCSVWithHeader(w, []string{"severity", "weight"}, func(cw *csv.Writer) error {
		for _, sev := range schema.AllSeverities {
			if err := cw.Write([]string{string(sev), strconv.Itoa(model.Weight(sev))}); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		return nil
	})
}
