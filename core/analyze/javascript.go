package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
)

// Lockfiles that pin a package.json dependency tree.
var jsLockfiles = []string{"package-lock.json", "npm-shrinkwrap.json", "yarn.lock", "pnpm-lock.yaml", "bun.lockb"}

type packageManifest struct {
	Name                 string            `json:"name"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
}

// allDependencies returns name -> spec across the dependency sections, sorted by name.
func (m packageManifest) allDependencies() [][2]string {
	merged := make(map[string]string)
	for _, section := range []map[string]string{m.OptionalDependencies, m.DevDependencies, m.Dependencies} {
		for name, spec := range section {
			merged[name] = spec
		}
	}
	out := make([][2]string, 0, len(merged))
	for name, spec := range merged {
		out = append(out, [2]string{name, spec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

type javascriptAnalyzer struct{}

// NewJavaScriptAnalyzer checks package.json manifests and outdated npm packages.
func NewJavaScriptAnalyzer() Analyzer { return javascriptAnalyzer{} }

func (javascriptAnalyzer) Name() string { return string(schema.JavaScriptEcosystem) }

func (javascriptAnalyzer) Applies(snap *schema.RepositorySnapshot) bool {
	return snap.Has(schema.JavaScriptEcosystem)
}

func (a javascriptAnalyzer) Checks(snap *schema.RepositorySnapshot) []Check {
	if len(snap.FilesNamed("package.json")) == 0 {
		return nil
	}
	return []Check{
		{Name: "package.json", Run: a.checkManifests},
		{Name: "npm outdated", Tool: "npm", Run: a.checkOutdated},
	}
}

func (a javascriptAnalyzer) checkManifests(_ context.Context, env *Env) ([]schema.Finding, error) {
	var findings []schema.Finding
	for _, f := range env.Snapshot.FilesNamed("package.json") {
		data, err := readFile(env, f.Path)
		if err != nil {
			return nil, err
		}
		var manifest packageManifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			findings = append(findings, schema.NewFinding(schema.ParseErrorKind, schema.SeverityLow, a.Name(),
				fmt.Sprintf("package.json is not valid JSON: %v", err)).At(f.Path, 0))
			continue
		}

		deps := manifest.allDependencies()
		for _, dep := range deps {
			if isUnpinnedNpmSpec(dep[1]) {
				findings = append(findings, schema.NewFinding(schema.UnpinnedDependencyKind, schema.SeverityLow, a.Name(),
					fmt.Sprintf("dependency %s uses unpinned version %q", dep[0], dep[1])).At(f.Path, lineOf(data, `"`+dep[0]+`"`)))
			}
		}

		if len(deps) > 0 && !hasSibling(env.Snapshot, f.Path, jsLockfiles...) {
			findings = append(findings, schema.NewFinding(schema.BuildRiskKind, schema.SeverityLow, a.Name(),
				fmt.Sprintf("package.json declares %d dependencies but no lockfile is committed", len(deps))).At(f.Path, 0))
		}
	}
	return findings, nil
}

func isUnpinnedNpmSpec(spec string) bool {
	switch strings.TrimSpace(strings.ToLower(spec)) {
	case "", "*", "latest", "x", "next":
		return true
	}
	return false
}

// hasSibling reports whether any of names exists next to rel.
func hasSibling(snap *schema.RepositorySnapshot, rel string, names ...string) bool {
	dir := dirOf(rel)
	for _, name := range names {
		if snap.HasFile(path.Join(dir, name)) {
			return true
		}
	}
	return false
}

type npmOutdatedEntry struct {
	Current string `json:"current"`
	Wanted  string `json:"wanted"`
	Latest  string `json:"latest"`
}

func (a javascriptAnalyzer) checkOutdated(ctx context.Context, env *Env) ([]schema.Finding, error) {
	var findings []schema.Finding
	for _, f := range env.Snapshot.FilesNamed("package.json") {
		dir := env.Snapshot.Abs(dirOf(f.Path))
		// npm outdated exits 1 when something is outdated.
		out, err := contract.OutputDespiteExit(env.Runner.Run(ctx, dir, "npm", "outdated", "--json"))
		if err != nil {
			return nil, err
		}
		entries, err := parseNpmOutdated(out)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Path, err)
		}
		names := make([]string, 0, len(entries))
		for name := range entries {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if finding, ok := a.outdatedFinding(name, entries[name]); ok {
				findings = append(findings, finding.At(f.Path, 0))
			}
		}
	}
	return findings, nil
}

func parseNpmOutdated(out []byte) (map[string]npmOutdatedEntry, error) {
	entries := make(map[string]npmOutdatedEntry)
	if len(strings.TrimSpace(string(out))) == 0 {
		return entries, nil
	}
	if err := npmFailure("npm outdated", out); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, fmt.Errorf("parse npm outdated output: %w", err)
	}
	return entries, nil
}

// npmErrorReport is what npm prints with --json when the command itself fails.
type npmErrorReport struct {
	Error *struct {
		Code    string `json:"code"`
		Summary string `json:"summary"`
		Detail  string `json:"detail"`
	} `json:"error"`
}

// npmFailure returns an error when out is npm's JSON error payload (ENOLOCK, E404, ...).
func npmFailure(command string, out []byte) error {
	var report npmErrorReport
	if err := json.Unmarshal(out, &report); err != nil || report.Error == nil {
		return nil
	}
	e := report.Error
	if e.Code == "" && e.Summary == "" && e.Detail == "" {
		return nil
	}
	reason := e.Summary
	if reason == "" {
		reason = e.Detail
	}
	if e.Code == "" {
		return fmt.Errorf("%s failed: %s", command, reason)
	}
	if reason == "" {
		return fmt.Errorf("%s failed: %s", command, e.Code)
	}
	return fmt.Errorf("%s failed: %s: %s", command, e.Code, reason)
}

// outdatedFinding grades an outdated package: a major version behind is medium, anything else low.
func (a javascriptAnalyzer) outdatedFinding(name string, e npmOutdatedEntry) (schema.Finding, bool) {
	current := e.Current
	if current == "" {
		current = e.Wanted
	}
	if current == "" || e.Latest == "" || current == e.Latest {
		return schema.Finding{}, false
	}
	sev := schema.SeverityLow
	cur, errCur := semver.NewVersion(current)
	latest, errLatest := semver.NewVersion(e.Latest)
	if errCur == nil && errLatest == nil {
		if !latest.GreaterThan(cur) {
			return schema.Finding{}, false
		}
		if latest.Major() > cur.Major() {
			sev = schema.SeverityMedium
		}
	}
	return schema.NewFinding(schema.OutdatedDependencyKind, sev, a.Name(),
		fmt.Sprintf("%s is outdated (%s -> %s)", name, current, e.Latest)), true
}
