package history

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/repohealth/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) (*HistoryStoreImpl, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := NewHistoryStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, dbPath
}

func sampleReport(runID, path string, score int, at time.Time) *schema.HealthReport {
	findings := []schema.Finding{
		schema.NewFinding(schema.SecretExposureKind, schema.SeverityCritical, "security",
			"possible AWS access key ID committed to the repository (aws-access-key)").At("config.py", 2),
		schema.NewFinding(schema.MissingDocKind, schema.SeverityLow, "docs", "repository has no LICENSE file"),
	}
	return &schema.HealthReport{
		RunID:        runID,
		OverallScore: score,
		Grade:        schema.GradeFor(score),
		Summary: schema.Summary{
			CriticalIssues: 1,
			TotalFindings:  len(findings),
			BySeverity:     schema.CountBySeverity(findings),
		},
		Findings:     findings,
		Analyzers:    []schema.AnalyzerResult{{Name: "security", Status: schema.StatusOK, Findings: 1, SubScore: 80, DurationMs: 1200}},
		ScoreModel:   schema.DefaultScoreModel(),
		GeneratedAt:  at,
		AnalyzedPath: path,
		DurationMs:   1500,
	}
}

func TestHistoryStore_NoneBackend(t *testing.T) {
	store, err := NewHistoryStore(schema.NoneBackend, "")
	require.NoError(t, err)

	assert.NoError(t, store.RecordReport(sampleReport("r1", "/repo", 78, time.Now())))

	latest, err := store.LatestReport("/repo")
	assert.NoError(t, err)
	assert.Nil(t, latest)

	status, err := store.GetStatus()
	assert.NoError(t, err)
	assert.False(t, status.Connected)
	assert.Equal(t, "none", status.Backend)

	runs, err := store.GetAllRuns()
	assert.NoError(t, err)
	assert.Empty(t, runs)

	assert.NoError(t, store.Close())
}

func TestHistoryStore_UnsupportedBackend(t *testing.T) {
	_, err := NewHistoryStore("oracle", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported history backend")
}

func TestHistoryStore_SQLiteRecordAndLatest(t *testing.T) {
	store, _ := newSQLiteStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordReport(sampleReport("run-old", "/src/app", 78, base)))
	require.NoError(t, store.RecordReport(sampleReport("run-new", "/src/app", 88, base.Add(90*time.Millisecond))))
	require.NoError(t, store.RecordReport(sampleReport("run-other", "/src/lib", 60, base.Add(time.Hour))))

	latest, err := store.LatestReport("/src/app")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "run-new", latest.RunID)
	assert.Equal(t, 88, latest.OverallScore)
	require.Len(t, latest.Findings, 2)
	assert.Equal(t, "config.py", latest.Findings[0].Path())
	analyzer, ok := latest.Analyzer("security")
	require.True(t, ok)
	assert.Equal(t, int64(1200), analyzer.DurationMs)

	missing, err := store.LatestReport("/nowhere")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestHistoryStore_SQLiteDuplicateRunFails(t *testing.T) {
	store, _ := newSQLiteStore(t)
	report := sampleReport("run-1", "/src/app", 78, time.Now())
	require.NoError(t, store.RecordReport(report))
	assert.Error(t, store.RecordReport(report))

	// the failed insert is rolled back as a whole
	findings, err := store.GetAllFindings()
	require.NoError(t, err)
	assert.Len(t, findings, 2)
}

func TestHistoryStore_SQLiteStatusAndListing(t *testing.T) {
	store, _ := newSQLiteStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordReport(sampleReport("run-a", "/src/app", 70, base)))
	require.NoError(t, store.RecordReport(sampleReport("run-b", "/src/app", 90, base.Add(time.Minute))))

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, "sqlite", status.Backend)
	assert.Equal(t, 2, status.TotalRuns)
	assert.Equal(t, "run-b", status.LastRunID)
	assert.True(t, status.LastRunTime.Equal(base.Add(time.Minute)))
	assert.True(t, status.OldestRunTime.Equal(base))
	assert.InDelta(t, 80.0, status.AverageScore, 0.001)
	assert.Equal(t, int64(2), status.TableSizes[runsTable])
	assert.Equal(t, int64(4), status.TableSizes[findingsTable])

	runs, err := store.GetAllRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].RunID)
	assert.Equal(t, int32(70), runs[0].OverallScore)
	assert.Equal(t, "C", runs[0].Grade)
	assert.Equal(t, int32(1), runs[0].CriticalIssues)
	require.NotNil(t, runs[0].ReportJSON)
	assert.Contains(t, *runs[0].ReportJSON, `"overall_score":70`)

	findings, err := store.GetAllFindings()
	require.NoError(t, err)
	require.Len(t, findings, 4)
	assert.Equal(t, "run-a", findings[0].RunID)
	assert.Equal(t, int32(0), findings[0].Seq)
	assert.Equal(t, "secret-exposure", findings[0].Kind)
	require.NotNil(t, findings[0].Path)
	assert.Equal(t, "config.py", *findings[0].Path)
	require.NotNil(t, findings[0].Line)
	assert.Equal(t, int32(2), *findings[0].Line)
	assert.Nil(t, findings[1].Path)
	assert.Nil(t, findings[1].Line)
}

func TestClearHistory(t *testing.T) {
	store, dbPath := newSQLiteStore(t)
	require.NoError(t, store.RecordReport(sampleReport("run-1", "/src/app", 78, time.Now())))
	require.NoError(t, store.Close())

	require.NoError(t, ClearHistory(schema.SQLiteBackend, dbPath, ""))
	_, err := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err))

	// clearing twice is fine
	assert.NoError(t, ClearHistory(schema.SQLiteBackend, dbPath, ""))
	assert.NoError(t, ClearHistory(schema.NoneBackend, "", ""))
	assert.Error(t, ClearHistory(schema.SQLiteBackend, "", ""))
	assert.Error(t, ClearHistory("oracle", "", ""))
}

func TestMigrateHistory_NoneBackend(t *testing.T) {
	err := MigrateHistory(schema.NoneBackend, "", -1, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestMigrateHistory_SQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migrate.db")
	var out bytes.Buffer

	require.NoError(t, MigrateHistory(schema.SQLiteBackend, dbPath, -1, &out))
	assert.Contains(t, out.String(), "to version 3")
	assert.Equal(t, 3, appliedVersion(t, dbPath))

	out.Reset()
	require.NoError(t, MigrateHistory(schema.SQLiteBackend, dbPath, -1, &out))
	assert.Contains(t, out.String(), "No migration needed")

	require.NoError(t, MigrateHistory(schema.SQLiteBackend, dbPath, 1, &out))
	assert.Equal(t, 1, appliedVersion(t, dbPath))

	require.NoError(t, MigrateHistory(schema.SQLiteBackend, dbPath, 0, &out))
	assert.Equal(t, 0, appliedVersion(t, dbPath))
}

func TestMigrateHistory_ExistingStore(t *testing.T) {
	store, dbPath := newSQLiteStore(t)
	require.NoError(t, store.RecordReport(sampleReport("run-1", "/src/app", 78, time.Now())))
	require.NoError(t, store.Close())

	require.NoError(t, MigrateHistory(schema.SQLiteBackend, dbPath, -1, &bytes.Buffer{}))

	reopened, err := NewHistoryStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	latest, err := reopened.LatestReport("/src/app")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "run-1", latest.RunID)
}

// appliedVersion reads the golang-migrate bookkeeping table; 0 means nothing applied.
func appliedVersion(t *testing.T, dbPath string) int {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var version int
	err = db.QueryRow("SELECT version FROM " + migrationsTable + " LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0
	}
	require.NoError(t, err)
	return version
}

func TestExecuteHistoryExport(t *testing.T) {
	store, _ := newSQLiteStore(t)
	require.NoError(t, store.RecordReport(sampleReport("run-1", "/src/app", 78, time.Now())))

	prefix := filepath.Join(t.TempDir(), "export")
	var out bytes.Buffer
	require.NoError(t, ExecuteHistoryExport(store, prefix, &out))

	runsFile, findingsFile := ExportPaths(prefix)
	for _, f := range []string{runsFile, findingsFile} {
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
	assert.Contains(t, out.String(), "Exported 1 runs")
	assert.Contains(t, out.String(), "Exported 2 findings")
}

func TestExecuteHistoryExportErrors(t *testing.T) {
	store, _ := newSQLiteStore(t)

	err := ExecuteHistoryExport(store, "", &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output-file")

	err = ExecuteHistoryExport(nil, "out", &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")

	err = ExecuteHistoryExport(store, filepath.Join(t.TempDir(), "out"), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no run history")
}

func TestExecuteHistoryExportWithMock(t *testing.T) {
	store := &MockHistoryStore{}
	store.On("GetStatus").Return(schema.HistoryStatus{Backend: "postgresql", Connected: true, TotalRuns: 1,
		TableSizes: map[string]int64{findingsTable: 0}}, nil)
	store.On("GetAllRuns").Return([]schema.HealthRunRecord{{RunID: "r1", AnalyzedPath: "/repo", OverallScore: 100, Grade: "A"}}, nil)
	store.On("GetAllFindings").Return([]schema.FindingRecord{}, nil)

	prefix := filepath.Join(t.TempDir(), "mock")
	var out bytes.Buffer
	require.NoError(t, ExecuteHistoryExport(store, prefix, &out))
	assert.Contains(t, out.String(), "postgresql backend")
	store.AssertExpectations(t)
}

func TestPrintHistoryStatus(t *testing.T) {
	var out bytes.Buffer
	PrintHistoryStatus(&out, schema.HistoryStatus{Backend: "none"})
	assert.Equal(t, "History Backend: none\nConnected: false\n", out.String())

	out.Reset()
	PrintHistoryStatus(&out, schema.HistoryStatus{
		Backend:       "sqlite",
		Connected:     true,
		TotalRuns:     2,
		LastRunID:     "run-b",
		LastRunTime:   time.Now().Add(-time.Hour),
		OldestRunTime: time.Now().Add(-2 * time.Hour),
		AverageScore:  80,
		TableSizes:    map[string]int64{findingsTable: 4, runsTable: 2},
	})
	text := out.String()
	assert.Contains(t, text, "Total Runs: 2")
	assert.Contains(t, text, "Last Run ID: run-b")
	assert.Contains(t, text, "1 hour ago")
	assert.Contains(t, text, "Average Score: 80.0")
	assert.Less(t, bytes.Index(out.Bytes(), []byte(findingsTable)), bytes.Index(out.Bytes(), []byte(runsTable+":")))
}

func TestManagerLifecycle(t *testing.T) {
	mgr := &HistoryStoreManager{}
	assert.Nil(t, mgr.GetHistoryStore())

	store, _ := newSQLiteStore(t)
	mgr.history = store
	assert.Same(t, store, mgr.GetHistoryStore())
}

func TestHelpers(t *testing.T) {
	pg := &HistoryStoreImpl{backend: schema.PostgreSQLBackend}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.bind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &HistoryStoreImpl{backend: schema.SQLiteBackend}
	assert.Equal(t, "x = ?", lite.bind("x = ?"))

	assert.Equal(t, "`repohealth_runs`", quoteTableName(runsTable, schema.MySQLBackend))
	assert.Equal(t, `"repohealth_runs"`, quoteTableName(runsTable, schema.PostgreSQLBackend))

	assert.NoError(t, validateTableName(findingsTable))
	assert.Error(t, validateTableName("runs; DROP TABLE x"))
	assert.Error(t, validateTableName(""))

	dsn, err := withParseTime("user:pw@tcp(localhost:3306)/health")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	_, err = withParseTime("not a dsn")
	assert.Error(t, err)

	assert.Equal(t, "migrations/postgres", migrationDir(schema.PostgreSQLBackend))
	assert.Equal(t, "pgx", driverFor(schema.PostgreSQLBackend))
}
