package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/repohealth/schema"
)

// Default values for configuration.
const (
	DefaultAnalyzerTimeout  = 2 * time.Minute
	DefaultTimeout          = 10 * time.Minute
	DefaultLargeFileSize    = "1MB"
	DefaultMaxScanSize      = "2MB"
	DefaultFindingsPerCheck = 25
)

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// KnownAnalyzers lists the analyzer names accepted by --disable, in run order.
var KnownAnalyzers = []string{"docs", "javascript", "python", "go", "shell", "security", "performance"}

// ProfileConfig holds profiling settings.
type ProfileConfig struct {
	Enabled bool
	Prefix  string
}

// WeightsRawInput holds custom severity weights from the YAML config file.
// Pointers distinguish "not provided" from an explicit zero.
type WeightsRawInput struct {
	Critical *int `mapstructure:"critical"`
	High     *int `mapstructure:"high"`
	Medium   *int `mapstructure:"medium"`
	Low      *int `mapstructure:"low"`
	Info     *int `mapstructure:"info"`
}

// Config holds the runtime configuration for the analysis.
// This struct remains the "final, validated" config.
type Config struct {
	RepoPath   string
	Output     schema.OutputMode
	OutputFile string
	Workers    int
	Width      int // Terminal width override (0 = auto-detect)

	AnalyzerTimeout time.Duration
	Timeout         time.Duration
	LargeFileBytes  int64
	MaxScanBytes    int64

	Excludes []string
	Disabled []string

	BaselineFile   string
	AdvisoriesFile string

	HistoryBackend   schema.DatabaseBackend
	HistoryDBConnect string // Please use env var as this is plaintext

	ScoreModel schema.ScoreModel

	UseColors bool
	Verbose   bool
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// These are set manually from positional args, so no tag
	RepoPathStr string
	FormatArg   string

	Output           string `mapstructure:"output"`
	OutputFile       string `mapstructure:"output-file"`
	Workers          int    `mapstructure:"workers"`
	AnalyzerTimeout  string `mapstructure:"analyzer-timeout"`
	Timeout          string `mapstructure:"timeout"`
	LargeFileSize    string `mapstructure:"large-file-size"`
	MaxScanSize      string `mapstructure:"max-scan-size"`
	Exclude          string `mapstructure:"exclude"`
	Disable          string `mapstructure:"disable"`
	Baseline         string `mapstructure:"baseline"`
	AdvisoriesFile   string `mapstructure:"advisories-file"`
	HistoryBackend   string `mapstructure:"history-backend"`
	HistoryDBConnect string `mapstructure:"history-db-connect"`
	Color            string `mapstructure:"color"`
	Verbose          bool   `mapstructure:"verbose"`
	Width            int    `mapstructure:"width"`

	// --- Custom weights from config file ---
	Weights WeightsRawInput `mapstructure:"weights"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Excludes = slices.Clone(c.Excludes)
	clone.Disabled = slices.Clone(c.Disabled)
	clone.ScoreModel = c.ScoreModel.WithOverrides(nil)
	return &clone
}

// IsDisabled reports whether the named analyzer was turned off.
func (c *Config) IsDisabled(name string) bool {
	return slices.Contains(c.Disabled, name)
}

// ProcessAndValidate performs all complex parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processLimits(cfg, input); err != nil {
		return err
	}
	if err := processAnalyzerSelection(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	if err := processCustomWeights(cfg, input); err != nil {
		return err
	}
	return resolveRepoPath(cfg, input)
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("history-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("history-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// ParseBackend validates a backend name and its connection string together.
func ParseBackend(name, connStr string) (schema.DatabaseBackend, error) {
	backend := schema.DatabaseBackend(strings.ToLower(strings.TrimSpace(name)))
	if backend == "" {
		backend = schema.NoneBackend
	}
	if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
		return "", fmt.Errorf("invalid history backend '%s'. must be sqlite, mysql, postgresql, none", name)
	}
	if err := ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", err
	}
	return backend, nil
}

// validateBackendConfigs validates the history backend configuration.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	backend, err := ParseBackend(input.HistoryBackend, input.HistoryDBConnect)
	if err != nil {
		return err
	}
	cfg.HistoryBackend = backend
	cfg.HistoryDBConnect = input.HistoryDBConnect
	return nil
}

// validateSimpleInputs processes and validates the output and presentation fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Verbose = input.Verbose
	cfg.BaselineFile = strings.TrimSpace(input.Baseline)
	cfg.AdvisoriesFile = strings.TrimSpace(input.AdvisoriesFile)

	colorStr := input.Color
	if colorStr == "" {
		colorStr = "yes"
	}
	colors, err := ParseBoolString(colorStr)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	if input.Width < 0 {
		return fmt.Errorf("width cannot be negative (received %d)", input.Width)
	}
	cfg.Width = input.Width

	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	// The positional format argument mirrors the two-argument CI call and wins over --output.
	output := input.Output
	if input.FormatArg != "" {
		output = input.FormatArg
	}
	cfg.Output = schema.OutputMode(strings.ToLower(strings.TrimSpace(output)))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be json, human, csv", output)
	}

	cfg.Excludes = SplitList(input.Exclude)
	return nil
}

// processLimits parses durations and byte sizes.
func processLimits(cfg *Config, input *ConfigRawInput) error {
	var err error
	if cfg.AnalyzerTimeout, err = parsePositiveDuration("analyzer-timeout", input.AnalyzerTimeout, DefaultAnalyzerTimeout); err != nil {
		return err
	}
	if cfg.Timeout, err = parsePositiveDuration("timeout", input.Timeout, DefaultTimeout); err != nil {
		return err
	}
	if cfg.LargeFileBytes, err = parsePositiveSize("large-file-size", input.LargeFileSize, DefaultLargeFileSize); err != nil {
		return err
	}
	if cfg.MaxScanBytes, err = parsePositiveSize("max-scan-size", input.MaxScanSize, DefaultMaxScanSize); err != nil {
		return err
	}
	return nil
}

func parsePositiveDuration(key, raw string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s '%s': %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0 (received %s)", key, raw)
	}
	return d, nil
}

func parsePositiveSize(key, raw, fallback string) (int64, error) {
	if strings.TrimSpace(raw) == "" {
		raw = fallback
	}
	n, err := humanize.ParseBytes(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s '%s': %w", key, raw, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%s must be greater than 0 (received %s)", key, raw)
	}
	return int64(n), nil
}

// processAnalyzerSelection validates --disable against the known analyzer names.
func processAnalyzerSelection(cfg *Config, input *ConfigRawInput) error {
	cfg.Disabled = nil
	for _, name := range SplitList(input.Disable) {
		name = strings.ToLower(name)
		if !slices.Contains(KnownAnalyzers, name) {
			return fmt.Errorf("unknown analyzer '%s'. must be one of %s", name, strings.Join(KnownAnalyzers, ", "))
		}
		if !slices.Contains(cfg.Disabled, name) {
			cfg.Disabled = append(cfg.Disabled, name)
		}
	}
	return nil
}

// ProcessWeightsRawInput converts WeightsRawInput into a severity override map.
// Only provided fields appear in the result.
func ProcessWeightsRawInput(weights WeightsRawInput) (map[schema.Severity]int, error) {
	result := make(map[schema.Severity]int)
	raw := map[schema.Severity]*int{
		schema.SeverityCritical: weights.Critical,
		schema.SeverityHigh:     weights.High,
		schema.SeverityMedium:   weights.Medium,
		schema.SeverityLow:      weights.Low,
		schema.SeverityInfo:     weights.Info,
	}
	for _, sev := range schema.AllSeverities {
		w := raw[sev]
		if w == nil {
			continue
		}
		if *w < 0 {
			return nil, fmt.Errorf("weight for severity %s must be >= 0 (received %d)", sev, *w)
		}
		result[sev] = *w
	}
	return result, nil
}

// processCustomWeights computes the effective ScoreModel from defaults plus overrides.
func processCustomWeights(cfg *Config, input *ConfigRawInput) error {
	overrides, err := ProcessWeightsRawInput(input.Weights)
	if err != nil {
		return err
	}
	cfg.ScoreModel = schema.DefaultScoreModel().WithOverrides(overrides)
	return nil
}

// ProcessProfilingConfig handles the profiling flag and sets up profiling configuration.
func ProcessProfilingConfig(profile *ProfileConfig, profilePrefix string) error {
	if profilePrefix != "" {
		profile.Enabled = true
		profile.Prefix = profilePrefix
	}
	return nil
}

// resolveRepoPath stores the positional path as a clean absolute path.
// Existence is checked by the collector so that its error taxonomy applies.
func resolveRepoPath(cfg *Config, input *ConfigRawInput) error {
	abs, err := ResolveRepoPath(input.RepoPathStr)
	if err != nil {
		return err
	}
	cfg.RepoPath = abs
	return nil
}

// ResolveRepoPath expands "~/" and makes p absolute. An empty path means the working directory.
// Run history is keyed by this form, so every entry point resolves paths through it.
func ResolveRepoPath(p string) (string, error) {
	if p == "" {
		p = "."
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}
