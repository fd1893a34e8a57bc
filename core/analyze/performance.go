package analyze

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/repohealth/schema"
	"sigs.k8s.io/yaml"
)

// Setup actions that support built-in dependency caching through `with.cache`.
var cacheableSetupActions = []string{"actions/setup-node", "actions/setup-python", "actions/setup-java"}

// Build output directories that should never be committed. Go projects may commit vendor/.
var uncommittedDirs = []string{
	"node_modules", "dist", "build", "target", "out", "bin", "obj",
	".venv", "venv", "__pycache__", ".tox", ".gradle", ".next", "coverage",
}

// Regression thresholds against a prior report.
const (
	regressionFactor   = 2.0
	regressionMinDelta = time.Second
	growthFactor       = 3.0
)

type performanceAnalyzer struct{}

// NewPerformanceAnalyzer flags large files, missing CI caches and uncommitted build outputs.
func NewPerformanceAnalyzer() Analyzer { return performanceAnalyzer{} }

func (performanceAnalyzer) Name() string { return "performance" }

func (performanceAnalyzer) Applies(*schema.RepositorySnapshot) bool { return true }

func (a performanceAnalyzer) Checks(snap *schema.RepositorySnapshot) []Check {
	checks := []Check{
		{Name: "large files", Run: a.checkLargeFiles},
		{Name: "build outputs", Run: a.checkBuildOutputs},
	}
	if len(workflowFiles(snap)) > 0 {
		checks = append(checks, Check{Name: "ci cache", Run: a.checkWorkflowCache})
	}
	return checks
}

func (a performanceAnalyzer) checkLargeFiles(_ context.Context, env *Env) ([]schema.Finding, error) {
	limit := env.Options.LargeFileBytes
	if limit <= 0 {
		return nil, nil
	}
	var findings []schema.Finding
	for _, f := range env.Snapshot.Files {
		if f.Size <= limit {
			continue
		}
		sev := schema.SeverityLow
		if f.Size > 10*limit {
			sev = schema.SeverityMedium
		}
		findings = append(findings, schema.NewFinding(schema.LargeFileKind, sev, a.Name(),
			fmt.Sprintf("file is %s, above the %s threshold", humanize.Bytes(uint64(f.Size)), humanize.Bytes(uint64(limit)))).At(f.Path, 0))
	}
	return findings, nil
}

func (a performanceAnalyzer) checkBuildOutputs(_ context.Context, env *Env) ([]schema.Finding, error) {
	var findings []schema.Finding
	for _, dir := range env.Snapshot.ExcludedDirs {
		if dir.GitIgnore {
			continue
		}
		if !slices.Contains(uncommittedDirs, path.Base(dir.Path)) {
			continue
		}
		findings = append(findings, schema.NewFinding(schema.BuildRiskKind, schema.SeverityLow, a.Name(),
			fmt.Sprintf("%s/ is present but not covered by .gitignore", dir.Path)).At(dir.Path, 0))
	}
	return findings, nil
}

func workflowFiles(snap *schema.RepositorySnapshot) []schema.FileEntry {
	var out []schema.FileEntry
	for _, f := range snap.FilesByExt(".yml", ".yaml") {
		if strings.HasPrefix(f.Path, ".github/workflows/") {
			out = append(out, f)
		}
	}
	return out
}

type workflow struct {
	Jobs map[string]struct {
		Steps []struct {
			Uses string         `json:"uses"`
			With map[string]any `json:"with"`
		} `json:"steps"`
	} `json:"jobs"`
}

func (a performanceAnalyzer) checkWorkflowCache(_ context.Context, env *Env) ([]schema.Finding, error) {
	var findings []schema.Finding
	for _, f := range workflowFiles(env.Snapshot) {
		data, err := readFile(env, f.Path)
		if err != nil {
			continue
		}
		var wf workflow
		if err := yaml.Unmarshal(data, &wf); err != nil {
			findings = append(findings, schema.NewFinding(schema.ParseErrorKind, schema.SeverityLow, a.Name(),
				fmt.Sprintf("workflow is not valid YAML: %v", err)).At(f.Path, 0))
			continue
		}

		usesCache := false
		var uncached []string
		for _, job := range wf.Jobs {
			for _, step := range job.Steps {
				action, _, _ := strings.Cut(step.Uses, "@")
				if action == "actions/cache" {
					usesCache = true
				}
				if _, cached := step.With["cache"]; !cached && slices.Contains(cacheableSetupActions, action) {
					uncached = append(uncached, step.Uses)
				}
			}
		}
		if usesCache {
			continue
		}
		seen := make(map[string]bool)
		for _, uses := range uncached {
			if seen[uses] {
				continue
			}
			seen[uses] = true
			findings = append(findings, schema.NewFinding(schema.MissingCacheKind, schema.SeverityLow, a.Name(),
				fmt.Sprintf("%s runs without dependency caching", uses)).At(f.Path, lineOf(data, uses)))
		}
	}
	return findings, nil
}

// DetectRegressions compares a run against a prior report. It is heuristic only:
// analyzers that became much slower and a repository that grew sharply are flagged.
func DetectRegressions(prior *schema.HealthReport, outcomes []Outcome, snap *schema.RepositorySnapshot) []schema.Finding {
	if prior == nil {
		return nil
	}
	const source = "performance"
	var findings []schema.Finding
	for _, o := range outcomes {
		before, ok := prior.Analyzer(o.Name)
		if !ok || before.DurationMs <= 0 || o.Status == schema.StatusNotApplicable {
			continue
		}
		prev := time.Duration(before.DurationMs) * time.Millisecond
		cur := time.Duration(o.Duration) * time.Millisecond
		if float64(cur) > regressionFactor*float64(prev) && cur-prev >= regressionMinDelta {
			findings = append(findings, schema.NewFinding(schema.PerformanceRegressionKind, schema.SeverityLow, source,
				fmt.Sprintf("analyzer %s took %s, previously %s", o.Name, cur, prev)))
		}
	}
	if snap != nil && prior.Repository.TotalBytes > 0 && float64(snap.TotalBytes) > growthFactor*float64(prior.Repository.TotalBytes) {
		findings = append(findings, schema.NewFinding(schema.PerformanceRegressionKind, schema.SeverityInfo, source,
			fmt.Sprintf("repository grew from %s to %s since the previous run",
				humanize.Bytes(uint64(prior.Repository.TotalBytes)), humanize.Bytes(uint64(snap.TotalBytes)))))
	}
	return findings
}
