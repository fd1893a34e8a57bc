package core

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/repohealth/core/analyze"
	"github.com/huangsam/repohealth/schema"
)

// compareFindings is the deterministic report order: severity, kind, path, line, message, source.
func compareFindings(a, b schema.Finding) int {
	return cmp.Or(
		cmp.Compare(a.Severity.Rank(), b.Severity.Rank()),
		cmp.Compare(a.Kind, b.Kind),
		cmp.Compare(a.Path(), b.Path()),
		cmp.Compare(a.Line(), b.Line()),
		cmp.Compare(a.Message, b.Message),
		cmp.Compare(a.Source, b.Source),
	)
}

// sortAndDedupe orders findings and drops structural duplicates, keeping the first of each Key().
// The input slice is not modified.
func sortAndDedupe(findings []schema.Finding) (unique []schema.Finding, removed int) {
	sorted := slices.Clone(findings)
	slices.SortStableFunc(sorted, compareFindings)

	seen := make(map[string]struct{}, len(sorted))
	unique = make([]schema.Finding, 0, len(sorted))
	for _, f := range sorted {
		key := f.Key()
		if _, dup := seen[key]; dup {
			removed++
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, f)
	}
	return unique, removed
}

// aggregateInput is everything the aggregator needs from one run.
type aggregateInput struct {
	Snapshot *schema.RepositorySnapshot
	Outcomes []analyze.Outcome
	Extra    []schema.Finding // not owned by an analyzer, e.g. collector notices
	Model    schema.ScoreModel
	Started  time.Time
}

// aggregate merges analyzer outcomes into the final report. It is a pure function of
// its input apart from the run identifier and timestamps.
func aggregate(in aggregateInput) *schema.HealthReport {
	// 1. Gather every finding
	var all []schema.Finding
	for _, o := range in.Outcomes {
		all = append(all, o.Findings...)
	}
	all = append(all, in.Extra...)

	// 2. Sort and dedupe
	findings, removed := sortAndDedupe(all)

	// 3. Score
	score, deduction := in.Model.Score(findings)
	counts := schema.CountBySeverity(findings)

	// 4. Per-analyzer contributions, attributed by finding source
	bySource := make(map[string][]schema.Finding)
	for _, f := range findings {
		bySource[f.Source] = append(bySource[f.Source], f)
	}
	results := make([]schema.AnalyzerResult, 0, len(in.Outcomes))
	for _, o := range in.Outcomes {
		sub, _ := in.Model.Score(bySource[o.Name])
		results = append(results, schema.AnalyzerResult{
			Name:       o.Name,
			Status:     o.Status,
			Findings:   len(bySource[o.Name]),
			SubScore:   sub,
			DurationMs: o.Duration,
		})
	}

	report := &schema.HealthReport{
		RunID:        uuid.NewString(),
		OverallScore: score,
		Grade:        schema.GradeFor(score),
		Summary: schema.Summary{
			CriticalIssues:    counts[schema.SeverityCritical],
			TotalFindings:     len(findings),
			BySeverity:        counts,
			TotalDeduction:    deduction,
			DuplicatesRemoved: removed,
		},
		Findings:    findings,
		Analyzers:   results,
		ScoreModel:  in.Model,
		GeneratedAt: time.Now().UTC(),
	}
	if !in.Started.IsZero() {
		report.DurationMs = time.Since(in.Started).Milliseconds()
	}
	if snap := in.Snapshot; snap != nil {
		report.AnalyzedPath = snap.Root
		report.Repository = repositoryInfo(snap)
	}
	return report
}

func repositoryInfo(snap *schema.RepositorySnapshot) schema.RepositoryInfo {
	excluded := make([]string, 0, len(snap.ExcludedDirs))
	for _, d := range snap.ExcludedDirs {
		excluded = append(excluded, d.Path)
	}
	ecosystems := snap.Ecosystems
	if ecosystems == nil {
		ecosystems = []schema.Ecosystem{}
	}
	return schema.RepositoryInfo{
		TotalFiles:      snap.TotalFiles,
		SourceFiles:     snap.SourceFiles,
		TotalBytes:      snap.TotalBytes,
		Primary:         snap.Primary,
		Ecosystems:      ecosystems,
		ExcludedDirs:    excluded,
		SkippedSymlinks: len(snap.SkippedSymlinks),
		Unreadable:      len(snap.Unreadable),
	}
}
