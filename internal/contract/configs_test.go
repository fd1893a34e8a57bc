package contract

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/repohealth/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() *ConfigRawInput {
	return &ConfigRawInput{
		RepoPathStr:    ".",
		Output:         "human",
		Workers:        4,
		Color:          "yes",
		HistoryBackend: "none",
	}
}

func intPtr(v int) *int { return &v }

func TestProcessAndValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ConfigRawInput)
		expectError string
	}{
		{name: "valid minimal config", mutate: func(*ConfigRawInput) {}},
		{
			name:        "zero workers",
			mutate:      func(in *ConfigRawInput) { in.Workers = 0 },
			expectError: "workers must be greater than 0",
		},
		{
			name:        "invalid output",
			mutate:      func(in *ConfigRawInput) { in.Output = "xml" },
			expectError: "invalid output format",
		},
		{
			name:        "invalid color",
			mutate:      func(in *ConfigRawInput) { in.Color = "rainbow" },
			expectError: "invalid --color value",
		},
		{
			name:        "negative width",
			mutate:      func(in *ConfigRawInput) { in.Width = -1 },
			expectError: "width cannot be negative",
		},
		{
			name:        "bad analyzer timeout",
			mutate:      func(in *ConfigRawInput) { in.AnalyzerTimeout = "soon" },
			expectError: "invalid analyzer-timeout",
		},
		{
			name:        "non-positive timeout",
			mutate:      func(in *ConfigRawInput) { in.Timeout = "0s" },
			expectError: "timeout must be greater than 0",
		},
		{
			name:        "bad size",
			mutate:      func(in *ConfigRawInput) { in.LargeFileSize = "huge" },
			expectError: "invalid large-file-size",
		},
		{
			name:        "zero size",
			mutate:      func(in *ConfigRawInput) { in.MaxScanSize = "0" },
			expectError: "max-scan-size must be greater than 0",
		},
		{
			name:        "unknown analyzer",
			mutate:      func(in *ConfigRawInput) { in.Disable = "docs,lint" },
			expectError: "unknown analyzer 'lint'",
		},
		{
			name:        "invalid backend",
			mutate:      func(in *ConfigRawInput) { in.HistoryBackend = "redis" },
			expectError: "invalid history backend",
		},
		{
			name: "mysql without connection",
			mutate: func(in *ConfigRawInput) {
				in.HistoryBackend = "mysql"
			},
			expectError: "history-db-connect is required",
		},
		{
			name:        "negative weight",
			mutate:      func(in *ConfigRawInput) { in.Weights.High = intPtr(-1) },
			expectError: "weight for severity high must be >= 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(input)
			cfg := &Config{}
			err := ProcessAndValidate(cfg, input)
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestResolveRepoPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)

	tests := map[string]string{
		"":              dir,
		".":             dir,
		"svc":           filepath.Join(dir, "svc"),
		"svc/../api/":   filepath.Join(dir, "api"),
		"~/code/app":    filepath.Join(dir, "code", "app"),
		"/srv/repo/../": "/srv",
	}
	for in, want := range tests {
		got, err := ResolveRepoPath(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestProcessAndValidateDefaults(t *testing.T) {
	cfg := &Config{}
	input := validInput()
	input.Color = ""
	input.HistoryBackend = ""
	require.NoError(t, ProcessAndValidate(cfg, input))

	abs, err := filepath.Abs(".")
	require.NoError(t, err)
	assert.Equal(t, abs, cfg.RepoPath)
	assert.Equal(t, schema.HumanOut, cfg.Output)
	assert.Equal(t, DefaultAnalyzerTimeout, cfg.AnalyzerTimeout)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, int64(1000*1000), cfg.LargeFileBytes)
	assert.Equal(t, int64(2*1000*1000), cfg.MaxScanBytes)
	assert.Equal(t, schema.NoneBackend, cfg.HistoryBackend)
	assert.True(t, cfg.UseColors)
	assert.Equal(t, schema.DefaultScoreModel(), cfg.ScoreModel)
	assert.Empty(t, cfg.Disabled)
}

func TestProcessAndValidateOverrides(t *testing.T) {
	cfg := &Config{}
	input := validInput()
	input.FormatArg = "JSON"
	input.Output = "csv"
	input.AnalyzerTimeout = "30s"
	input.LargeFileSize = "512KiB"
	input.Exclude = "fixtures/, *.min.js"
	input.Disable = "shell,Shell,performance"
	input.Weights.Critical = intPtr(50)
	input.Weights.Info = intPtr(0)
	input.HistoryBackend = "PostgreSQL"
	input.HistoryDBConnect = "host=localhost dbname=health"

	require.NoError(t, ProcessAndValidate(cfg, input))
	assert.Equal(t, schema.JSONOut, cfg.Output, "positional format wins over --output")
	assert.Equal(t, 30*time.Second, cfg.AnalyzerTimeout)
	assert.Equal(t, int64(512*1024), cfg.LargeFileBytes)
	assert.Equal(t, []string{"fixtures/", "*.min.js"}, cfg.Excludes)
	assert.Equal(t, []string{"shell", "performance"}, cfg.Disabled)
	assert.True(t, cfg.IsDisabled("shell"))
	assert.False(t, cfg.IsDisabled("docs"))
	assert.Equal(t, 50, cfg.ScoreModel.Weight(schema.SeverityCritical))
	assert.Equal(t, schema.DefaultHighWeight, cfg.ScoreModel.Weight(schema.SeverityHigh))
	assert.Equal(t, schema.PostgreSQLBackend, cfg.HistoryBackend)
}

func TestConfigClone(t *testing.T) {
	cfg := &Config{Excludes: []string{"a"}, Disabled: []string{"docs"}, ScoreModel: schema.DefaultScoreModel()}
	clone := cfg.Clone()
	clone.Excludes[0] = "b"
	clone.Disabled = append(clone.Disabled, "go")
	clone.ScoreModel.Weights[schema.SeverityLow] = 99

	assert.Equal(t, "a", cfg.Excludes[0])
	assert.Equal(t, []string{"docs"}, cfg.Disabled)
	assert.Equal(t, schema.DefaultLowWeight, cfg.ScoreModel.Weight(schema.SeverityLow))
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	tests := []struct {
		name    string
		backend schema.DatabaseBackend
		conn    string
		wantErr bool
	}{
		{"sqlite any", schema.SQLiteBackend, "", false},
		{"none any", schema.NoneBackend, "whatever", false},
		{"mysql valid", schema.MySQLBackend, "user:pass@tcp(localhost:3306)/health", false},
		{"mysql missing tcp", schema.MySQLBackend, "user:pass@localhost/health", true},
		{"mysql empty", schema.MySQLBackend, "", true},
		{"postgres valid", schema.PostgreSQLBackend, "host=localhost port=5432 dbname=health", false},
		{"postgres missing dbname", schema.PostgreSQLBackend, "host=localhost", true},
		{"postgres missing host", schema.PostgreSQLBackend, "dbname=health", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDatabaseConnectionString(tt.backend, tt.conn)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProcessWeightsRawInput(t *testing.T) {
	got, err := ProcessWeightsRawInput(WeightsRawInput{Medium: intPtr(7)})
	require.NoError(t, err)
	assert.Equal(t, map[schema.Severity]int{schema.SeverityMedium: 7}, got)

	got, err = ProcessWeightsRawInput(WeightsRawInput{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestProcessProfilingConfig(t *testing.T) {
	profile := &ProfileConfig{}
	require.NoError(t, ProcessProfilingConfig(profile, ""))
	assert.False(t, profile.Enabled)

	require.NoError(t, ProcessProfilingConfig(profile, "prof"))
	assert.True(t, profile.Enabled)
	assert.Equal(t, "prof", profile.Prefix)
}
