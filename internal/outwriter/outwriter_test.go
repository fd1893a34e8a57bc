package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *schema.HealthReport {
	findings := []schema.Finding{
		schema.NewFinding(schema.SecretExposureKind, schema.SeverityCritical, "security",
			"possible AWS access key committed").At("config/settings.py", 12),
		schema.NewFinding(schema.MissingDocKind, schema.SeverityMedium, "docs", "repository has no README"),
		schema.NewFinding(schema.SkippedCheckKind, schema.SeverityInfo, "python", "lint skipped: ruff is not installed"),
	}
	return &schema.HealthReport{
		RunID:        "run-1",
		OverallScore: 75,
		Grade:        "C",
		Summary: schema.Summary{
			CriticalIssues: 1,
			TotalFindings:  3,
			BySeverity:     schema.CountBySeverity(findings),
			TotalDeduction: 25,
		},
		Findings: findings,
		Analyzers: []schema.AnalyzerResult{
			{Name: "docs", Status: schema.StatusOK, Findings: 1, SubScore: 95, DurationMs: 2},
			{Name: "javascript", Status: schema.StatusNotApplicable},
			{Name: "python", Status: schema.StatusDegraded, Findings: 1, SubScore: 100, DurationMs: 40},
			{Name: "security", Status: schema.StatusOK, Findings: 1, SubScore: 80, DurationMs: 15},
		},
		Repository: schema.RepositoryInfo{
			TotalFiles:   10,
			SourceFiles:  6,
			TotalBytes:   2048,
			Primary:      schema.PythonEcosystem,
			Ecosystems:   []schema.Ecosystem{schema.PythonEcosystem},
			ExcludedDirs: []string{".git"},
		},
		ScoreModel:   schema.DefaultScoreModel(),
		GeneratedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		AnalyzedPath: "/src/app",
		DurationMs:   120,
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderJSON(&buf, sampleReport()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.EqualValues(t, 75, decoded["overall_score"])
	summary, ok := decoded["summary"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, summary["critical_issues"])
	assert.Len(t, decoded["findings"], 3)
	assert.Contains(t, buf.String(), "\n  \"run_id\": \"run-1\"")
}

func TestRenderJSONEmptyFindings(t *testing.T) {
	report := &schema.HealthReport{OverallScore: 100, Grade: "A", Findings: []schema.Finding{}}
	var buf bytes.Buffer
	require.NoError(t, RenderJSON(&buf, report))
	assert.Contains(t, buf.String(), `"findings": []`)
	assert.Contains(t, buf.String(), `"critical_issues": 0`)
}

func TestRenderCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderCSV(&buf, sampleReport()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, reportCSVHeader, records[0])
	assert.Equal(t, []string{"1", "critical", "secret-exposure", "security", "config/settings.py", "12",
		"possible AWS access key committed"}, records[1])
	assert.Equal(t, "", records[2][4])
	assert.Equal(t, "", records[2][5])
}

func TestRenderHuman(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHuman(&buf, sampleReport(), RenderOptions{}))
	out := buf.String()

	for _, want := range []string{
		"Repository Health: /src/app",
		"Score: 75/100 (C) | Critical issues: 1 | Findings: 3",
		"By severity: Critical 1, High 0, Medium 1, Low 0, Info 1",
		"Generated 2026-03-01T12:00:00Z in 120ms",
		"Files: 10 (6 source), 2.0 kB",
		"Ecosystems: python (primary: python)",
		"Excluded: .git",
		"Analyzers",
		"degraded",
		"Findings",
		"config/settings.py:12",
		"repository has no README",
	} {
		assert.Contains(t, out, want)
	}
	// Not-applicable analyzers have no sub-score
	assert.Regexp(t, `javascript\s*│\s*not-applicable\s*│\s*0\s*│\s*-`, out)
}

func TestRenderHumanNoFindings(t *testing.T) {
	report := &schema.HealthReport{OverallScore: 100, Grade: "A", AnalyzedPath: "."}
	var buf bytes.Buffer
	require.NoError(t, RenderHuman(&buf, report, RenderOptions{}))
	assert.Contains(t, buf.String(), "No findings.")
	assert.Contains(t, buf.String(), "Ecosystems: none detected")
	assert.NotContains(t, buf.String(), "Unreadable paths")
}

func TestRenderHumanUnreadablePaths(t *testing.T) {
	report := sampleReport()
	report.Repository.Unreadable = 2

	var buf bytes.Buffer
	require.NoError(t, RenderHuman(&buf, report, RenderOptions{}))
	assert.Contains(t, buf.String(), "Unreadable paths: 2")
}

func TestRenderHumanTruncatesLocations(t *testing.T) {
	report := sampleReport()
	report.Findings = report.Findings[:1]
	report.Findings[0] = report.Findings[0].At("a/very/deeply/nested/directory/structure/settings.py", 3)

	var buf bytes.Buffer
	require.NoError(t, RenderHuman(&buf, report, RenderOptions{PathWidth: 20}))
	assert.Contains(t, buf.String(), "...ure/settings.py:3")
	assert.NotContains(t, buf.String(), "a/very/deeply")
}

func TestRenderScoreModel(t *testing.T) {
	model := schema.DefaultScoreModel().WithOverrides(map[schema.Severity]int{schema.SeverityLow: 3})

	var human bytes.Buffer
	require.NoError(t, RenderScoreModelHuman(&human, model))
	assert.Contains(t, human.String(), "Score = clamp(100 - sum(weight per finding), 0, 100)")
	assert.Regexp(t, `Low\s*│\s*3`, human.String())

	var out bytes.Buffer
	require.NoError(t, RenderScoreModelCSV(&out, model))
	assert.Equal(t, "severity,weight\ncritical,20\nhigh,10\nmedium,5\nlow,3\ninfo,0\n", out.String())
}

func TestWriteHealthReportFormats(t *testing.T) {
	tests := []struct {
		output schema.OutputMode
		check  func(t *testing.T, content string)
	}{
		{schema.JSONOut, func(t *testing.T, content string) {
			assert.True(t, json.Valid([]byte(content)))
		}},
		{schema.CSVOut, func(t *testing.T, content string) {
			assert.True(t, strings.HasPrefix(content, "rank,severity,kind,source,path,line,message\n"))
		}},
		{schema.HumanOut, func(t *testing.T, content string) {
			assert.Contains(t, content, "Score: 75/100 (C)")
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.output), func(t *testing.T) {
			file := filepath.Join(t.TempDir(), "report.out")
			cfg := &contract.Config{Output: tt.output, OutputFile: file, Width: 120}
			require.NoError(t, WriteHealthReport(sampleReport(), cfg))

			content, err := os.ReadFile(file)
			require.NoError(t, err)
			tt.check(t, string(content))
		})
	}
}

func TestWriteHealthReportInvalidPath(t *testing.T) {
	cfg := &contract.Config{Output: schema.JSONOut, OutputFile: "/nonexistent/dir/report.json"}
	err := WriteHealthReport(sampleReport(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error writing JSON output")
}

func TestWriteScoreModelJSON(t *testing.T) {
	file := filepath.Join(t.TempDir(), "weights.json")
	cfg := &contract.Config{Output: schema.JSONOut, OutputFile: file}
	require.NoError(t, WriteScoreModel(schema.DefaultScoreModel(), cfg))

	content, err := os.ReadFile(file)
	require.NoError(t, err)
	var model schema.ScoreModel
	require.NoError(t, json.Unmarshal(content, &model))
	assert.Equal(t, schema.DefaultScoreModel(), model)
}

func TestGetMaxTablePathWidth(t *testing.T) {
	tests := []struct {
		width    int
		expected int
	}{
		{80, 15},
		{100, 15},
		{120, 35},
		{300, 70},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, GetMaxTablePathWidth(&contract.Config{Width: tt.width}))
	}
}
