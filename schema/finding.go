package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Location points at a file, and optionally a line, relative to the analyzed root.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
}

// String renders the location as path or path:line.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Line > 0 {
		return l.Path + ":" + strconv.Itoa(l.Line)
	}
	return l.Path
}

// Finding is a single detected issue. Findings are values; copy them rather than mutate shared ones.
type Finding struct {
	Kind     FindingKind `json:"kind"`
	Severity Severity    `json:"severity"`
	Source   string      `json:"source"`
	Message  string      `json:"message"`
	Location *Location   `json:"location,omitempty"`
}

// NewFinding creates a finding without a location.
func NewFinding(kind FindingKind, severity Severity, source, message string) Finding {
	return Finding{
		Kind:     kind,
		Severity: severity,
		Source:   source,
		Message:  message,
	}
}

// At returns a copy of the finding located at path and line (0 = whole file).
func (f Finding) At(path string, line int) Finding {
	f.Location = &Location{Path: path, Line: line}
	return f
}

// Path returns the location path or an empty string.
func (f Finding) Path() string {
	if f.Location == nil {
		return ""
	}
	return f.Location.Path
}

// Line returns the location line or zero.
func (f Finding) Line() int {
	if f.Location == nil {
		return 0
	}
	return f.Location.Line
}

// Key is the structural identity used for deduplication: kind, location and message.
// Source and severity are not part of it.
func (f Finding) Key() string {
	return fmt.Sprintf("%s|%s|%d|%s", f.Kind, f.Path(), f.Line(), f.Message)
}

// Rank orders severities, 0 being the most severe. Unknown values sort last.
func (s Severity) Rank() int {
	for i, sev := range AllSeverities {
		if sev == s {
			return i
		}
	}
	return len(AllSeverities)
}

// ParseSeverity converts a case-insensitive string into a Severity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := ValidSeverities[sev]; !ok {
		return "", fmt.Errorf("invalid severity '%s'. must be critical, high, medium, low, info", s)
	}
	return sev, nil
}

// CountBySeverity tallies findings per severity. Every severity is present in the result.
func CountBySeverity(findings []Finding) map[Severity]int {
	counts := make(map[Severity]int, len(AllSeverities))
	for _, sev := range AllSeverities {
		counts[sev] = 0
	}
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}
