package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/repohealth/schema"
)

// Color variables for console output.
var (
	CriticalColor = color.New(color.FgRed, color.Bold)     // CriticalColor represents standard danger.
	HighColor     = color.New(color.FgMagenta, color.Bold) // HighColor represents strong, distinct warning.
	MediumColor   = color.New(color.FgYellow)              // MediumColor represents standard caution, not bold.
	LowColor      = color.New(color.FgCyan)                // LowColor represents low-priority signal.
	InfoColor     = color.New(color.Faint)                 // InfoColor represents notes that cost no points.
)

// GetPlainLabel returns the display label of a severity, e.g. "Critical".
// This is the core logic used for CSV and table printing.
func GetPlainLabel(sev schema.Severity) string {
	s := string(sev)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// GetColorLabel returns a colored severity label for console output (table).
func GetColorLabel(sev schema.Severity) string {
	text := GetPlainLabel(sev)

	switch sev {
	case schema.SeverityCritical:
		return CriticalColor.Sprint(text)
	case schema.SeverityHigh:
		return HighColor.Sprint(text)
	case schema.SeverityMedium:
		return MediumColor.Sprint(text)
	case schema.SeverityLow:
		return LowColor.Sprint(text)
	default:
		return InfoColor.Sprint(text)
	}
}

// GetScoreColor picks the color used to print an overall score.
func GetScoreColor(score int) *color.Color {
	switch {
	case score >= 90:
		return color.New(color.FgGreen, color.Bold)
	case score >= 70:
		return MediumColor
	default:
		return CriticalColor
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. An empty path selects os.Stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// ShouldIgnore returns true if the given path matches any of the exclude patterns.
// It supports simple glob patterns (using filepath.Match) when the pattern
// contains wildcard characters (*, ?, [ ]). Patterns ending with '/' are treated
// as prefixes. Patterns starting with '.' are treated as suffix (extension) matches.
// A user can provide patterns like "fixtures/", "testdata/", "*.min.js".
func ShouldIgnore(path string, excludes []string) bool {
	for _, ex := range excludes {
		ex = strings.TrimSpace(ex)
		if ex == "" {
			continue
		}

		if strings.ContainsAny(ex, "*?[") {
			pat := strings.ReplaceAll(ex, "**", "*")
			if ok, err := filepath.Match(pat, path); err == nil && ok {
				return true
			}
			if ok, err := filepath.Match(pat, filepath.Base(path)); err == nil && ok {
				return true
			}
			continue
		}

		switch {
		case strings.HasSuffix(ex, "/"):
			if strings.HasPrefix(path+"/", ex) {
				return true
			}
		case strings.HasPrefix(ex, "."):
			if strings.HasSuffix(path, ex) {
				return true
			}
		case strings.Contains(path, ex):
			return true
		}
	}
	return false
}

// SplitList splits a comma-separated option into trimmed, non-empty parts.
func SplitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// GetHistoryDBFilePath returns the path to the SQLite DB file for run history.
func GetHistoryDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".repohealth_history.db"
	}
	return filepath.Join(homeDir, ".repohealth_history.db")
}

// TruncatePath truncates a file path to a maximum width with ellipsis prefix.
// Requires maxWidth > 3 so that the "..." prefix leaves room for content.
func TruncatePath(path string, maxWidth int) string {
	runes := []rune(path)
	if len(runes) > maxWidth && maxWidth > 3 {
		return "..." + string(runes[len(runes)-maxWidth+3:])
	}
	return path
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
