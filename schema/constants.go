package schema

// Custom string types for type safety.
type (
	// Severity represents how serious a finding is.
	Severity string

	// FindingKind represents the category of a finding.
	FindingKind string

	// Ecosystem represents a language or tooling stack detected in a repository.
	Ecosystem string

	// OutputMode represents the format of the output.
	OutputMode string

	// AnalyzerStatus represents how an analyzer run ended.
	AnalyzerStatus string

	// DatabaseBackend represents the database backend for run history.
	DatabaseBackend string
)

// All severities supported, from most to least severe.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// All finding kinds supported.
const (
	MissingDocKind            FindingKind = "missing-doc"
	VulnerabilityKind         FindingKind = "vulnerability"
	StyleViolationKind        FindingKind = "style-violation"
	LintIssueKind             FindingKind = "lint-issue"
	LargeFileKind             FindingKind = "large-file"
	SecretExposureKind        FindingKind = "secret-exposure"
	OutdatedDependencyKind    FindingKind = "outdated-dependency"
	UnpinnedDependencyKind    FindingKind = "unpinned-dependency"
	InsecurePermissionKind    FindingKind = "insecure-permission"
	MissingCacheKind          FindingKind = "missing-cache"
	BuildRiskKind             FindingKind = "build-risk"
	PerformanceRegressionKind FindingKind = "performance-regression"
	ParseErrorKind            FindingKind = "parse-error"
	SkippedCheckKind          FindingKind = "skipped-check"
	AnalyzerTimeoutKind       FindingKind = "analyzer-timeout"
)

// All ecosystems supported.
const (
	JavaScriptEcosystem Ecosystem = "javascript"
	PythonEcosystem     Ecosystem = "python"
	GoEcosystem         Ecosystem = "go"
	ShellEcosystem      Ecosystem = "shell"
	RustEcosystem       Ecosystem = "rust"
	JavaEcosystem       Ecosystem = "java"
	RubyEcosystem       Ecosystem = "ruby"
	UnknownEcosystem    Ecosystem = "unknown"
)

// All output modes supported.
const (
	JSONOut  OutputMode = "json"
	HumanOut OutputMode = "human" // default
	CSVOut   OutputMode = "csv"
)

// All analyzer statuses supported.
const (
	StatusOK            AnalyzerStatus = "ok"
	StatusDegraded      AnalyzerStatus = "degraded"
	StatusTimedOut      AnalyzerStatus = "timed-out"
	StatusCanceled      AnalyzerStatus = "canceled"
	StatusNotApplicable AnalyzerStatus = "not-applicable"
)

// All history backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite"
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none" // default
)

// AllSeverities lists every severity, most severe first.
var AllSeverities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// EcosystemPriority is the fixed tie-break order used when two ecosystems
// own the same number of source files. Earlier entries win.
var EcosystemPriority = []Ecosystem{
	GoEcosystem,
	JavaScriptEcosystem,
	PythonEcosystem,
	RustEcosystem,
	JavaEcosystem,
	RubyEcosystem,
	ShellEcosystem,
}

// ValidSeverities lists all valid severities.
var ValidSeverities = map[Severity]struct{}{
	SeverityCritical: {},
	SeverityHigh:     {},
	SeverityMedium:   {},
	SeverityLow:      {},
	SeverityInfo:     {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	JSONOut:  {},
	HumanOut: {},
	CSVOut:   {},
}

// ValidDatabaseBackends lists all valid history backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}
