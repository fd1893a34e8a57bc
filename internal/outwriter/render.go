package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// RenderOptions tunes the human renderer. The zero value renders plain text with untruncated paths.
type RenderOptions struct {
	Colors    bool
	PathWidth int
}

// reportCSVHeader is the column layout of RenderCSV, one row per finding.
var reportCSVHeader = []string{"rank", "severity", "kind", "source", "path", "line", "message"}

// RenderJSON writes the machine-readable report. CI reads overall_score and summary.critical_issues from it.
func RenderJSON(w io.Writer, report *schema.HealthReport) error {
	return writeJSON(w, report)
}

// RenderCSV writes one row per finding in report order.
func RenderCSV(w io.Writer, report *schema.HealthReport) error {
	return writeCSVWithHeader(w, reportCSVHeader, func(cw *csv.Writer) error {
		for i, f := range report.Findings {
			line := ""
			if f.Line() > 0 {
				line = strconv.Itoa(f.Line())
			}
			rec := []string{
				strconv.Itoa(i + 1),
				string(f.Severity),
				string(f.Kind),
				f.Source,
				f.Path(),
				line,
				f.Message,
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		return nil
	})
}

// RenderHuman writes the multi-section summary used for CI step summaries and PR comments.
func RenderHuman(w io.Writer, report *schema.HealthReport, opts RenderOptions) error {
	if err := renderHeader(w, report, opts); err != nil {
		return err
	}
	if err := renderRepository(w, report.Repository); err != nil {
		return err
	}
	if err := renderAnalyzers(w, report.Analyzers); err != nil {
		return err
	}
	return renderFindings(w, report.Findings, opts)
}

func renderHeader(w io.Writer, report *schema.HealthReport, opts RenderOptions) error {
	score := schema.FormatScore(report.OverallScore)
	if opts.Colors {
		score = contract.GetScoreColor(report.OverallScore).Sprint(score)
	}
	if _, err := fmt.Fprintf(w, "🩺 Repository Health: %s\n", report.AnalyzedPath); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Score: %s | Critical issues: %d | Findings: %d\n",
		score, report.Summary.CriticalIssues, report.Summary.TotalFindings); err != nil {
		return err
	}

	var counts []string
	for _, sev := range schema.AllSeverities {
		label := contract.GetPlainLabel(sev)
		if opts.Colors {
			label = contract.GetColorLabel(sev)
		}
		counts = append(counts, fmt.Sprintf("%s %d", label, report.Summary.BySeverity[sev]))
	}
	if _, err := fmt.Fprintf(w, "By severity: %s\n", strings.Join(counts, ", ")); err != nil {
		return err
	}
	if report.Summary.DuplicatesRemoved > 0 {
		if _, err := fmt.Fprintf(w, "Duplicates removed: %d\n", report.Summary.DuplicatesRemoved); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Generated %s in %s\n",
		report.GeneratedAt.Format(time.RFC3339), time.Duration(report.DurationMs)*time.Millisecond)
	return err
}

func renderRepository(w io.Writer, repo schema.RepositoryInfo) error {
	if _, err := fmt.Fprintf(w, "\n📦 Repository\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "  Files: %d (%d source), %s\n",
		repo.TotalFiles, repo.SourceFiles, humanize.Bytes(uint64(max(repo.TotalBytes, 0)))); err != nil {
		return err
	}
	ecosystems := "none detected"
	if len(repo.Ecosystems) > 0 {
		names := make([]string, len(repo.Ecosystems))
		for i, e := range repo.Ecosystems {
			names[i] = string(e)
		}
		ecosystems = fmt.Sprintf("%s (primary: %s)", strings.Join(names, ", "), repo.Primary)
	}
	if _, err := fmt.Fprintf(w, "  Ecosystems: %s\n", ecosystems); err != nil {
		return err
	}
	if len(repo.ExcludedDirs) > 0 {
		if _, err := fmt.Fprintf(w, "  Excluded: %s\n", strings.Join(repo.ExcludedDirs, ", ")); err != nil {
			return err
		}
	}
	if repo.SkippedSymlinks > 0 {
		if _, err := fmt.Fprintf(w, "  Skipped symlinks: %d\n", repo.SkippedSymlinks); err != nil {
			return err
		}
	}
	if repo.Unreadable > 0 {
		if _, err := fmt.Fprintf(w, "  Unreadable paths: %d\n", repo.Unreadable); err != nil {
			return err
		}
	}
	return nil
}

func renderAnalyzers(w io.Writer, analyzers []schema.AnalyzerResult) error {
	if _, err := fmt.Fprintf(w, "\n🔎 Analyzers\n"); err != nil {
		return err
	}
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Analyzer", "Status", "Findings", "Score", "Duration"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, a := range analyzers {
		score := "-"
		if a.Status != schema.StatusNotApplicable {
			score = strconv.Itoa(a.SubScore)
		}
		data = append(data, []string{
			a.Name,
			string(a.Status),
			strconv.Itoa(a.Findings),
			score,
			(time.Duration(a.DurationMs) * time.Millisecond).String(),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func renderFindings(w io.Writer, findings []schema.Finding, opts RenderOptions) error {
	if _, err := fmt.Fprintf(w, "\n⚠️  Findings\n"); err != nil {
		return err
	}
	if len(findings) == 0 {
		_, err := fmt.Fprintln(w, "  No findings.")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"#", "Severity", "Source", "Location", "Message"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})

	var data [][]string
	for i, f := range findings {
		label := contract.GetPlainLabel(f.Severity)
		if opts.Colors {
			label = contract.GetColorLabel(f.Severity)
		}
		location := f.Location.String()
		if opts.PathWidth > 0 {
			location = contract.TruncatePath(location, opts.PathWidth)
		}
		data = append(data, []string{strconv.Itoa(i + 1), label, f.Source, location, f.Message})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
