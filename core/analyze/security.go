package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
)

// Generated files that are not scanned for secrets.
var generatedFiles = []string{
	"package-lock.json", "npm-shrinkwrap.json", "yarn.lock", "pnpm-lock.yaml",
	"go.sum", "poetry.lock", "Pipfile.lock", "Cargo.lock", "Gemfile.lock",
}

type securityAnalyzer struct {
	detector *SecretDetector
}

// NewSecurityAnalyzer scans for secrets, insecure permissions and vulnerable dependencies.
func NewSecurityAnalyzer() Analyzer { return securityAnalyzer{detector: NewSecretDetector()} }

func (securityAnalyzer) Name() string { return "security" }

func (securityAnalyzer) Applies(*schema.RepositorySnapshot) bool { return true }

func (a securityAnalyzer) Checks(snap *schema.RepositorySnapshot) []Check {
	checks := []Check{
		{Name: "secrets", Run: a.checkSecrets},
		{Name: "permissions", Run: a.checkPermissions},
		{Name: "advisories", Run: a.checkAdvisories},
	}
	if len(snap.FilesNamed("package.json")) > 0 {
		checks = append(checks, Check{Name: "npm audit", Tool: "npm", Run: a.checkNpmAudit})
	}
	if len(snap.Markers) > 0 {
		checks = append(checks, Check{Name: "osv-scanner", Tool: "osv-scanner", Run: a.checkOSV})
	}
	return checks
}

func (a securityAnalyzer) checkSecrets(ctx context.Context, env *Env) ([]schema.Finding, error) {
	var findings []schema.Finding
	var skipped secretScanSkips
	for _, f := range env.Snapshot.Files {
		if err := ctx.Err(); err != nil {
			return findings, err
		}
		if env.Options.MaxScanBytes > 0 && f.Size > env.Options.MaxScanBytes {
			skipped.add(f.Path, &skipped.oversized)
			continue
		}
		if isGenerated(f.Path) {
			skipped.add(f.Path, &skipped.generated)
			continue
		}
		data, err := readFile(env, f.Path)
		if err != nil {
			skipped.add(f.Path, &skipped.unreadable)
			continue
		}
		if isBinary(data) {
			continue
		}
		for _, hit := range a.detector.ScanLines(string(data)) {
			findings = append(findings, schema.NewFinding(schema.SecretExposureKind, schema.SeverityCritical, a.Name(),
				fmt.Sprintf("possible %s committed to the repository (%s)", hit.Pattern.Description, hit.Pattern.Name)).At(f.Path, hit.Line))
		}
	}
	if notice, ok := skipped.finding(a.Name()); ok {
		findings = append(findings, notice)
	}
	return findings, nil
}

// maxSkippedPaths bounds how many unscanned paths a notice lists.
const maxSkippedPaths = 3

// secretScanSkips tallies files the secret scan could not read.
type secretScanSkips struct {
	paths                            []string
	oversized, generated, unreadable int
}

func (s *secretScanSkips) add(rel string, counter *int) {
	*counter++
	s.paths = append(s.paths, rel)
}

func (s *secretScanSkips) finding(source string) (schema.Finding, bool) {
	if len(s.paths) == 0 {
		return schema.Finding{}, false
	}
	var reasons []string
	if s.oversized > 0 {
		reasons = append(reasons, fmt.Sprintf("%d above max-scan-size", s.oversized))
	}
	if s.unreadable > 0 {
		reasons = append(reasons, fmt.Sprintf("%d unreadable", s.unreadable))
	}
	if s.generated > 0 {
		reasons = append(reasons, fmt.Sprintf("%d generated lockfiles", s.generated))
	}
	listed := s.paths
	if len(listed) > maxSkippedPaths {
		listed = listed[:maxSkippedPaths]
	}
	msg := fmt.Sprintf("secret scan skipped %d files (%s): %s", len(s.paths), strings.Join(reasons, ", "), strings.Join(listed, ", "))
	if more := len(s.paths) - len(listed); more > 0 {
		msg += fmt.Sprintf(" and %d more", more)
	}
	return schema.NewFinding(schema.SkippedCheckKind, schema.SeverityInfo, source, msg), true
}

func isGenerated(rel string) bool {
	base := path.Base(rel)
	for _, name := range generatedFiles {
		if base == name {
			return true
		}
	}
	return false
}

func (a securityAnalyzer) checkPermissions(_ context.Context, env *Env) ([]schema.Finding, error) {
	var findings []schema.Finding
	for _, f := range env.Snapshot.Files {
		if f.Mode.IsRegular() && f.Mode.Perm()&0o002 != 0 {
			findings = append(findings, schema.NewFinding(schema.InsecurePermissionKind, schema.SeverityHigh, a.Name(),
				fmt.Sprintf("file is world-writable (mode %s)", f.Mode.Perm())).At(f.Path, 0))
		}
	}
	return findings, nil
}

func (a securityAnalyzer) checkAdvisories(_ context.Context, env *Env) ([]schema.Finding, error) {
	if env.Options.AdvisoriesFile == "" {
		return nil, nil
	}
	db, err := LoadAdvisories(env.Options.AdvisoriesFile)
	if err != nil {
		return nil, err
	}
	return MatchAdvisories(db, installedPackages(env), a.Name()), nil
}

type npmAuditReport struct {
	// npm 7 and later
	Vulnerabilities map[string]struct {
		Name     string `json:"name"`
		Severity string `json:"severity"`
		Range    string `json:"range"`
	} `json:"vulnerabilities"`
	// npm 6
	Advisories map[string]struct {
		ModuleName string `json:"module_name"`
		Severity   string `json:"severity"`
		Title      string `json:"title"`
	} `json:"advisories"`
}

func (a securityAnalyzer) checkNpmAudit(ctx context.Context, env *Env) ([]schema.Finding, error) {
	var findings []schema.Finding
	for _, f := range env.Snapshot.FilesNamed("package.json") {
		dir := env.Snapshot.Abs(dirOf(f.Path))
		// npm audit exits 1 when it finds vulnerabilities.
		out, err := contract.OutputDespiteExit(env.Runner.Run(ctx, dir, "npm", "audit", "--json"))
		if err != nil {
			return nil, err
		}
		found, err := a.parseNpmAudit(out, f.Path)
		if err != nil {
			return nil, err
		}
		findings = append(findings, found...)
	}
	return findings, nil
}

func (a securityAnalyzer) parseNpmAudit(out []byte, manifest string) ([]schema.Finding, error) {
	if len(strings.TrimSpace(string(out))) == 0 {
		return nil, nil
	}
	if err := npmFailure("npm audit", out); err != nil {
		return nil, err
	}
	var report npmAuditReport
	if err := json.Unmarshal(out, &report); err != nil {
		return nil, fmt.Errorf("parse npm audit output: %w", err)
	}

	var findings []schema.Finding
	for _, key := range sortedKeys(report.Vulnerabilities) {
		v := report.Vulnerabilities[key]
		name := v.Name
		if name == "" {
			name = key
		}
		findings = append(findings, schema.NewFinding(schema.VulnerabilityKind, MapAdvisorySeverity(v.Severity), a.Name(),
			fmt.Sprintf("%s has a known %s vulnerability (affected %s)", name, strings.ToLower(v.Severity), v.Range)).At(manifest, 0))
	}
	for _, key := range sortedKeys(report.Advisories) {
		adv := report.Advisories[key]
		findings = append(findings, schema.NewFinding(schema.VulnerabilityKind, MapAdvisorySeverity(adv.Severity), a.Name(),
			fmt.Sprintf("%s: %s", adv.ModuleName, adv.Title)).At(manifest, 0))
	}
	return findings, nil
}

type osvReport struct {
	Results []struct {
		Source struct {
			Path string `json:"path"`
		} `json:"source"`
		Packages []struct {
			Package struct {
				Name    string `json:"name"`
				Version string `json:"version"`
			} `json:"package"`
			Vulnerabilities []struct {
				ID               string `json:"id"`
				Summary          string `json:"summary"`
				DatabaseSpecific struct {
					Severity string `json:"severity"`
				} `json:"database_specific"`
			} `json:"vulnerabilities"`
			Groups []struct {
				IDs         []string `json:"ids"`
				MaxSeverity string   `json:"max_severity"`
			} `json:"groups"`
		} `json:"packages"`
	} `json:"results"`
}

func (a securityAnalyzer) checkOSV(ctx context.Context, env *Env) ([]schema.Finding, error) {
	// osv-scanner exits 1 when vulnerabilities are found.
	out, err := contract.OutputDespiteExit(env.Runner.Run(ctx, env.Snapshot.Root, "osv-scanner", "--format", "json", "-r", "."))
	if err != nil {
		return nil, err
	}
	return a.parseOSV(out, env.Snapshot.Root)
}

func (a securityAnalyzer) parseOSV(out []byte, root string) ([]schema.Finding, error) {
	if len(strings.TrimSpace(string(out))) == 0 {
		return nil, nil
	}
	var report osvReport
	if err := json.Unmarshal(out, &report); err != nil {
		return nil, fmt.Errorf("parse osv-scanner output: %w", err)
	}

	var findings []schema.Finding
	for _, res := range report.Results {
		rel := relTo(root, res.Source.Path)
		for _, pkg := range res.Packages {
			labels := make(map[string]string)
			for _, v := range pkg.Vulnerabilities {
				labels[v.ID] = v.DatabaseSpecific.Severity
			}
			// Groups collapse aliases of one vulnerability into a single finding.
			for _, g := range pkg.Groups {
				if len(g.IDs) == 0 {
					continue
				}
				sev := MapAdvisorySeverity(labels[g.IDs[0]])
				if score, err := strconv.ParseFloat(g.MaxSeverity, 64); err == nil {
					sev = MapCVSS(score)
				}
				findings = append(findings, schema.NewFinding(schema.VulnerabilityKind, sev, a.Name(),
					fmt.Sprintf("%s %s is affected by %s", pkg.Package.Name, pkg.Package.Version, strings.Join(g.IDs, ", "))).At(rel, 0))
			}
		}
	}
	return findings, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
