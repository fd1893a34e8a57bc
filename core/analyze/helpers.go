package analyze

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/huangsam/repohealth/schema"
)

// readFile loads a snapshot file, refusing anything above the scan limit.
func readFile(env *Env, rel string) ([]byte, error) {
	if entry, ok := env.Snapshot.Lookup(rel); ok && env.Options.MaxScanBytes > 0 && entry.Size > env.Options.MaxScanBytes {
		return nil, fmt.Errorf("%s exceeds the scan limit", rel)
	}
	return os.ReadFile(env.Snapshot.Abs(rel))
}

// isBinary applies the usual heuristic: a NUL byte in the first 8000 bytes.
func isBinary(data []byte) bool {
	head := data
	if len(head) > 8000 {
		head = head[:8000]
	}
	return bytes.IndexByte(head, 0) >= 0
}

// lineOf returns the 1-based line of the first occurrence of needle, or 0.
func lineOf(data []byte, needle string) int {
	idx := bytes.Index(data, []byte(needle))
	if idx < 0 {
		return 0
	}
	return bytes.Count(data[:idx], []byte("\n")) + 1
}

// dirOf returns the snapshot-relative directory of a file ("." for the root).
func dirOf(rel string) string {
	return path.Dir(rel)
}

// rootLevel reports whether the path sits directly in the repository root.
func rootLevel(rel string) bool {
	return !strings.Contains(rel, "/")
}

// relTo converts a tool-reported path into a snapshot-relative one.
func relTo(root, reported string) string {
	reported = strings.TrimPrefix(reported, "./")
	if strings.HasPrefix(reported, root) {
		reported = strings.TrimPrefix(strings.TrimPrefix(reported, root), string(os.PathSeparator))
	}
	return strings.ReplaceAll(reported, string(os.PathSeparator), "/")
}

// MapAdvisorySeverity clamps an advisory source's severity label onto the five-level scale.
// Unknown labels map to medium.
func MapAdvisorySeverity(label string) schema.Severity {
	if sev, err := schema.ParseSeverity(label); err == nil {
		return sev
	}
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "moderate":
		return schema.SeverityMedium
	case "none", "negligible":
		return schema.SeverityInfo
	default:
		return schema.SeverityMedium
	}
}

// MapCVSS maps a numeric CVSS base score onto the five-level scale.
func MapCVSS(score float64) schema.Severity {
	switch {
	case score >= 9.0:
		return schema.SeverityCritical
	case score >= 7.0:
		return schema.SeverityHigh
	case score >= 4.0:
		return schema.SeverityMedium
	case score > 0:
		return schema.SeverityLow
	default:
		return schema.SeverityInfo
	}
}

// batches splits items into chunks of at most n.
func batches(items []string, n int) [][]string {
	var out [][]string
	for len(items) > n {
		out = append(out, items[:n])
		items = items[n:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}

func paths(entries []schema.FileEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Path)
	}
	return out
}
