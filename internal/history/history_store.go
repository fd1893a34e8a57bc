package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// sqliteTimeLayout is fixed-width so that stored timestamps sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// HistoryStoreImpl implements the HistoryStore interface on top of database/sql.
type HistoryStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
	connStr string
}

var _ contract.HistoryStore = &HistoryStoreImpl{} // Compile-time check

// NewHistoryStore opens the backend and makes sure the history tables exist.
func NewHistoryStore(backend schema.DatabaseBackend, connStr string) (*HistoryStoreImpl, error) {
	var db *sql.DB
	var err error

	switch backend {
	case schema.SQLiteBackend:
		dbPath := connStr
		if dbPath == "" {
			dbPath = GetDBFilePath()
		}
		db, err = sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database at %q: %w. Check that the directory is writable", dbPath, err)
		}
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)

	case schema.MySQLBackend:
		dsn, dsnErr := withParseTime(connStr)
		if dsnErr != nil {
			return nil, fmt.Errorf("invalid MySQL connection string: %w. Check format: user:password@tcp(host:port)/dbname", dsnErr)
		}
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open MySQL database: %w. Check connection string format: user:password@tcp(host:port)/dbname", err)
		}

	case schema.PostgreSQLBackend:
		db, err = sql.Open("pgx", connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL database: %w. Check connection string format: host=localhost port=5432 user=postgres dbname=mydb", err)
		}

	case schema.NoneBackend:
		// No-op store for disabled history
		return &HistoryStoreImpl{backend: backend}, nil

	default:
		return nil, fmt.Errorf("unsupported history backend: %s. Must be sqlite, mysql, postgresql, or none", backend)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database. Check that the server is running and connection parameters are valid: %w", backend, err)
	}

	if err := createHistoryTables(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history tables: %w", err)
	}

	return &HistoryStoreImpl{db: db, backend: backend, connStr: connStr}, nil
}

// withParseTime makes the MySQL driver scan DATETIME columns into time.Time.
func withParseTime(connStr string) (string, error) {
	cfg, err := mysql.ParseDSN(connStr)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// createHistoryTables creates the run and finding tables. Later schema changes go through MigrateHistory.
func createHistoryTables(db *sql.DB, backend schema.DatabaseBackend) error {
	tables := []struct {
		name  string
		query string
	}{
		{runsTable, getCreateRunsQuery(backend)},
		{findingsTable, getCreateFindingsQuery(backend)},
	}
	for _, table := range tables {
		if _, err := db.Exec(table.query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
	}
	return nil
}

// getCreateRunsQuery returns the CREATE TABLE query for repohealth_runs.
func getCreateRunsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(runsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id VARCHAR(36) PRIMARY KEY,
				analyzed_path VARCHAR(512) NOT NULL,
				generated_at DATETIME(6) NOT NULL,
				overall_score INT NOT NULL,
				grade VARCHAR(2) NOT NULL,
				critical_issues INT NOT NULL,
				total_findings INT NOT NULL,
				duration_ms BIGINT NOT NULL,
				report_json LONGTEXT
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id TEXT PRIMARY KEY,
				analyzed_path TEXT NOT NULL,
				generated_at TIMESTAMPTZ NOT NULL,
				overall_score INT NOT NULL,
				grade TEXT NOT NULL,
				critical_issues INT NOT NULL,
				total_findings INT NOT NULL,
				duration_ms BIGINT NOT NULL,
				report_json TEXT
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id TEXT PRIMARY KEY,
				analyzed_path TEXT NOT NULL,
				generated_at TEXT NOT NULL,
				overall_score INTEGER NOT NULL,
				grade TEXT NOT NULL,
				critical_issues INTEGER NOT NULL,
				total_findings INTEGER NOT NULL,
				duration_ms INTEGER NOT NULL,
				report_json TEXT
			);
		`, quotedTableName)
	}
}

// getCreateFindingsQuery returns the CREATE TABLE query for repohealth_findings.
func getCreateFindingsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(findingsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id VARCHAR(36) NOT NULL,
				seq INT NOT NULL,
				kind VARCHAR(64) NOT NULL,
				severity VARCHAR(16) NOT NULL,
				source VARCHAR(64) NOT NULL,
				message TEXT NOT NULL,
				path VARCHAR(1024),
				line INT,
				PRIMARY KEY (run_id, seq)
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id TEXT NOT NULL,
				seq INT NOT NULL,
				kind TEXT NOT NULL,
				severity TEXT NOT NULL,
				source TEXT NOT NULL,
				message TEXT NOT NULL,
				path TEXT,
				line INT,
				PRIMARY KEY (run_id, seq)
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id TEXT NOT NULL,
				seq INTEGER NOT NULL,
				kind TEXT NOT NULL,
				severity TEXT NOT NULL,
				source TEXT NOT NULL,
				message TEXT NOT NULL,
				path TEXT,
				line INTEGER,
				PRIMARY KEY (run_id, seq)
			);
		`, quotedTableName)
	}
}

// RecordReport stores the run row and one row per finding in a single transaction.
func (hs *HistoryStoreImpl) RecordReport(report *schema.HealthReport) error {
	if hs.backend == schema.NoneBackend || hs.db == nil || report == nil {
		return nil
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tx, err := hs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after Commit

	runQuery := hs.bind(fmt.Sprintf(`
		INSERT INTO %s (run_id, analyzed_path, generated_at, overall_score, grade,
		                critical_issues, total_findings, duration_ms, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, quoteTableName(runsTable, hs.backend)))
	if _, err := tx.Exec(runQuery,
		report.RunID, report.AnalyzedPath, formatTime(report.GeneratedAt, hs.backend),
		report.OverallScore, report.Grade, report.Summary.CriticalIssues, report.Summary.TotalFindings,
		report.DurationMs, string(reportJSON),
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.RunID, err)
	}

	findingQuery := hs.bind(fmt.Sprintf(`
		INSERT INTO %s (run_id, seq, kind, severity, source, message, path, line)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, quoteTableName(findingsTable, hs.backend)))
	stmt, err := tx.Prepare(findingQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare finding insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, f := range report.Findings {
		var path, line any
		if f.Location != nil {
			path = f.Location.Path
			if f.Location.Line > 0 {
				line = f.Location.Line
			}
		}
		if _, err := stmt.Exec(report.RunID, i, string(f.Kind), string(f.Severity), f.Source, f.Message, path, line); err != nil {
			return fmt.Errorf("failed to insert finding %d of run %s: %w", i, report.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", report.RunID, err)
	}
	return nil
}

// LatestReport returns the newest stored report for analyzedPath, or nil when there is none.
func (hs *HistoryStoreImpl) LatestReport(analyzedPath string) (*schema.HealthReport, error) {
	if hs.backend == schema.NoneBackend || hs.db == nil {
		return nil, nil
	}

	query := hs.bind(fmt.Sprintf(`SELECT report_json FROM %s WHERE analyzed_path = ? ORDER BY generated_at DESC LIMIT 1`,
		quoteTableName(runsTable, hs.backend)))

	var reportJSON sql.NullString
	err := hs.db.QueryRow(query, analyzedPath).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	if !reportJSON.Valid || reportJSON.String == "" {
		return nil, nil
	}

	var report schema.HealthReport
	if err := json.Unmarshal([]byte(reportJSON.String), &report); err != nil {
		return nil, fmt.Errorf("failed to decode stored report: %w", err)
	}
	return &report, nil
}

// Close closes the underlying connection.
func (hs *HistoryStoreImpl) Close() error {
	if hs.db != nil {
		return hs.db.Close()
	}
	return nil
}

// GetStatus returns status information about the history store.
func (hs *HistoryStoreImpl) GetStatus() (schema.HistoryStatus, error) {
	status := schema.HistoryStatus{
		Backend:    string(hs.backend),
		Connected:  hs.db != nil,
		TableSizes: make(map[string]int64),
	}

	if hs.backend == schema.NoneBackend || hs.db == nil {
		return status, nil
	}

	runs := quoteTableName(runsTable, hs.backend)

	row := hs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", runs))
	if err := row.Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		var lastRunTime any
		row = hs.db.QueryRow(fmt.Sprintf("SELECT run_id, generated_at FROM %s ORDER BY generated_at DESC LIMIT 1", runs))
		if err := row.Scan(&status.LastRunID, &lastRunTime); err != nil {
			return status, fmt.Errorf("failed to get last run info: %w", err)
		}
		t, err := parseTime(lastRunTime)
		if err != nil {
			return status, fmt.Errorf("failed to parse last run time: %w", err)
		}
		status.LastRunTime = t

		var oldestRunTime any
		row = hs.db.QueryRow(fmt.Sprintf("SELECT generated_at FROM %s ORDER BY generated_at ASC LIMIT 1", runs))
		if err := row.Scan(&oldestRunTime); err != nil {
			return status, fmt.Errorf("failed to get oldest run time: %w", err)
		}
		if status.OldestRunTime, err = parseTime(oldestRunTime); err != nil {
			return status, fmt.Errorf("failed to parse oldest run time: %w", err)
		}

		row = hs.db.QueryRow(fmt.Sprintf("SELECT COALESCE(AVG(overall_score), 0) FROM %s", runs))
		var avg any
		if err := row.Scan(&avg); err != nil {
			return status, fmt.Errorf("failed to get average score: %w", err)
		}
		status.AverageScore = toFloat(avg)
	}

	for _, table := range []string{runsTable, findingsTable} {
		row = hs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, hs.backend)))
		var count int64
		if err := row.Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}

	return status, nil
}

// GetAllRuns retrieves every stored run, oldest first.
func (hs *HistoryStoreImpl) GetAllRuns() ([]schema.HealthRunRecord, error) {
	if hs.backend == schema.NoneBackend || hs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, analyzed_path, generated_at, overall_score, grade,
		critical_issues, total_findings, duration_ms, report_json
		FROM %s ORDER BY generated_at, run_id`, quoteTableName(runsTable, hs.backend))

	rows, err := hs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.HealthRunRecord
	for rows.Next() {
		var record schema.HealthRunRecord
		var generatedAt any
		if err := rows.Scan(&record.RunID, &record.AnalyzedPath, &generatedAt, &record.OverallScore, &record.Grade,
			&record.CriticalIssues, &record.TotalFindings, &record.DurationMs, &record.ReportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if record.GeneratedAt, err = parseTime(generatedAt); err != nil {
			return nil, fmt.Errorf("failed to parse generated_at: %w", err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return results, nil
}

// GetAllFindings retrieves every stored finding ordered by run and sequence.
func (hs *HistoryStoreImpl) GetAllFindings() ([]schema.FindingRecord, error) {
	if hs.backend == schema.NoneBackend || hs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, seq, kind, severity, source, message, path, line
		FROM %s ORDER BY run_id, seq`, quoteTableName(findingsTable, hs.backend))

	rows, err := hs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.FindingRecord
	for rows.Next() {
		var record schema.FindingRecord
		if err := rows.Scan(&record.RunID, &record.Seq, &record.Kind, &record.Severity, &record.Source,
			&record.Message, &record.Path, &record.Line); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating findings: %w", err)
	}
	return results, nil
}

// bind rewrites ? placeholders into $n for PostgreSQL.
func (hs *HistoryStoreImpl) bind(query string) string {
	if hs.backend != schema.PostgreSQLBackend {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// validateTableName checks if the table name is a valid SQL identifier.
func validateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid table name: %q (must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$)", name)
	}
	return nil
}

// quoteTableName returns the properly quoted table name for the given backend.
func quoteTableName(name string, backend schema.DatabaseBackend) string {
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf("`%s`", name)
	default: // PostgreSQL and SQLite
		return fmt.Sprintf("%q", name)
	}
}

// formatTime converts a time.Time to the storage format of the backend.
func formatTime(t time.Time, backend schema.DatabaseBackend) any {
	switch backend {
	case schema.SQLiteBackend:
		return t.UTC().Format(sqliteTimeLayout)
	default:
		return t.UTC()
	}
}

// parseTime accepts the native time values of MySQL/PostgreSQL and the text format of SQLite.
func parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(time.RFC3339Nano, t)
	case []byte:
		return time.Parse(time.RFC3339Nano, string(t))
	default:
		return time.Time{}, fmt.Errorf("unexpected time value %T", v)
	}
}

// toFloat normalizes the driver-specific result of AVG().
func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case []byte:
		f, _ := strconv.ParseFloat(string(n), 64)
		return f
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}
