package schema

import (
	"fmt"
	"maps"
	"time"
)

// ScoreModel maps each severity to the points it deducts from a perfect score.
type ScoreModel struct {
	Weights map[Severity]int `json:"weights"`
	Floor   int              `json:"floor"`
	Ceiling int              `json:"ceiling"`
}

// Default deduction weights per severity.
const (
	DefaultCriticalWeight = 20
	DefaultHighWeight     = 10
	DefaultMediumWeight   = 5
	DefaultLowWeight      = 2
	DefaultInfoWeight     = 0
)

// DefaultScoreModel returns the fixed default model: 100 minus weighted deductions, floored at 0.
func DefaultScoreModel() ScoreModel {
	return ScoreModel{
		Weights: map[Severity]int{
			SeverityCritical: DefaultCriticalWeight,
			SeverityHigh:     DefaultHighWeight,
			SeverityMedium:   DefaultMediumWeight,
			SeverityLow:      DefaultLowWeight,
			SeverityInfo:     DefaultInfoWeight,
		},
		Floor:   0,
		Ceiling: 100,
	}
}

// Weight returns the deduction for a severity. Unknown severities deduct nothing.
func (m ScoreModel) Weight(s Severity) int {
	return m.Weights[s]
}

// Clamp bounds v to [Floor, Ceiling].
func (m ScoreModel) Clamp(v int) int {
	if v < m.Floor {
		return m.Floor
	}
	if v > m.Ceiling {
		return m.Ceiling
	}
	return v
}

// Score computes clamp(Ceiling - sum(weights)) for a finding list.
func (m ScoreModel) Score(findings []Finding) (score int, deduction int) {
	for _, f := range findings {
		deduction += m.Weight(f.Severity)
	}
	return m.Clamp(m.Ceiling - deduction), deduction
}

// WithOverrides returns a copy of the model with the given weights replaced.
func (m ScoreModel) WithOverrides(overrides map[Severity]int) ScoreModel {
	clone := ScoreModel{
		Weights: make(map[Severity]int, len(m.Weights)),
		Floor:   m.Floor,
		Ceiling: m.Ceiling,
	}
	maps.Copy(clone.Weights, m.Weights)
	maps.Copy(clone.Weights, overrides)
	return clone
}

// Summary holds the aggregate counts CI depends on.
type Summary struct {
	CriticalIssues    int              `json:"critical_issues"`
	TotalFindings     int              `json:"total_findings"`
	BySeverity        map[Severity]int `json:"by_severity"`
	TotalDeduction    int              `json:"total_deduction"`
	DuplicatesRemoved int              `json:"duplicates_removed"`
}

// AnalyzerResult summarizes one analyzer's contribution to a report.
type AnalyzerResult struct {
	Name       string         `json:"name"`
	Status     AnalyzerStatus `json:"status"`
	Findings   int            `json:"findings"`
	SubScore   int            `json:"sub_score"`
	DurationMs int64          `json:"duration_ms"`
}

// RepositoryInfo is the part of the snapshot surfaced in the report.
type RepositoryInfo struct {
	TotalFiles      int         `json:"total_files"`
	SourceFiles     int         `json:"source_files"`
	TotalBytes      int64       `json:"total_bytes"`
	Primary         Ecosystem   `json:"primary_ecosystem"`
	Ecosystems      []Ecosystem `json:"ecosystems"`
	ExcludedDirs    []string    `json:"excluded_dirs"`
	SkippedSymlinks int         `json:"skipped_symlinks"`
	Unreadable      int         `json:"unreadable"`
}

// HealthReport is the terminal aggregate of one analysis run. It is never mutated after creation.
type HealthReport struct {
	RunID        string           `json:"run_id"`
	OverallScore int              `json:"overall_score"`
	Grade        string           `json:"grade"`
	Summary      Summary          `json:"summary"`
	Findings     []Finding        `json:"findings"`
	Analyzers    []AnalyzerResult `json:"analyzers"`
	Repository   RepositoryInfo   `json:"repository"`
	ScoreModel   ScoreModel       `json:"score_model"`
	GeneratedAt  time.Time        `json:"generated_at"`
	AnalyzedPath string           `json:"analyzed_path"`
	DurationMs   int64            `json:"duration_ms"`
}

// Analyzer returns the result entry for a named analyzer.
func (r *HealthReport) Analyzer(name string) (AnalyzerResult, bool) {
	for _, a := range r.Analyzers {
		if a.Name == name {
			return a, true
		}
	}
	return AnalyzerResult{}, false
}

// GradeFor converts a 0-100 score into a letter grade.
func GradeFor(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// FormatScore renders a score as "93/100 (A)".
func FormatScore(score int) string {
	return fmt.Sprintf("%d/100 (%s)", score, GradeFor(score))
}
