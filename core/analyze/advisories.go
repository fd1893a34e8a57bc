package analyze

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/huangsam/repohealth/schema"
	"sigs.k8s.io/yaml"
)

// Advisory is one entry of the local advisory database.
type Advisory struct {
	ID        string           `json:"id"`
	Ecosystem schema.Ecosystem `json:"ecosystem"`
	Package   string           `json:"package"`
	Affected  string           `json:"affected"` // semver constraint, e.g. "< 4.17.21"
	Severity  string           `json:"severity,omitempty"`
	CVSS      float64          `json:"cvss,omitempty"`
	Summary   string           `json:"summary,omitempty"`
}

// AdvisoryDatabase is the YAML document behind --advisories-file.
type AdvisoryDatabase struct {
	Advisories []Advisory `json:"advisories"`
}

// LoadAdvisories reads and validates an advisory database file.
func LoadAdvisories(file string) (*AdvisoryDatabase, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read advisories: %w", err)
	}
	var db AdvisoryDatabase
	if err := yaml.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("parse advisories %s: %w", file, err)
	}
	for i, adv := range db.Advisories {
		if adv.ID == "" || adv.Package == "" || adv.Affected == "" {
			return nil, fmt.Errorf("advisory #%d must set id, package and affected", i+1)
		}
		if _, err := semver.NewConstraint(adv.Affected); err != nil {
			return nil, fmt.Errorf("advisory %s has invalid affected range %q: %w", adv.ID, adv.Affected, err)
		}
	}
	return &db, nil
}

// SeverityOf maps the advisory onto the five-level scale. A label wins over a CVSS score.
func (a Advisory) SeverityOf() schema.Severity {
	if a.Severity == "" && a.CVSS > 0 {
		return MapCVSS(a.CVSS)
	}
	return MapAdvisorySeverity(a.Severity)
}

// Matches reports whether the advisory affects the given package version.
func (a Advisory) Matches(eco schema.Ecosystem, pkg string, version *semver.Version) bool {
	if a.Ecosystem != "" && a.Ecosystem != eco {
		return false
	}
	if !strings.EqualFold(a.Package, pkg) {
		return false
	}
	c, err := semver.NewConstraint(a.Affected)
	if err != nil {
		return false
	}
	return c.Check(version)
}

// InstalledPackage is a dependency version resolved from a manifest.
type InstalledPackage struct {
	Ecosystem schema.Ecosystem
	Name      string
	Version   *semver.Version
	Path      string
	Line      int
}

// installedPackages resolves the versions declared in package.json files,
// pinned requirements and go.mod requires. Unparseable versions are skipped.
func installedPackages(env *Env) []InstalledPackage {
	var pkgs []InstalledPackage
	snap := env.Snapshot

	for _, f := range snap.FilesNamed("package.json") {
		data, err := readFile(env, f.Path)
		if err != nil {
			continue
		}
		var manifest packageManifest
		if json.Unmarshal(data, &manifest) != nil {
			continue
		}
		for _, dep := range manifest.allDependencies() {
			v, err := semver.NewVersion(strings.TrimLeft(strings.TrimSpace(dep[1]), "^~=v<> "))
			if err != nil {
				continue
			}
			pkgs = append(pkgs, InstalledPackage{
				Ecosystem: schema.JavaScriptEcosystem, Name: dep[0], Version: v,
				Path: f.Path, Line: lineOf(data, `"`+dep[0]+`"`),
			})
		}
	}

	for _, f := range requirementsFiles(snap) {
		data, err := readFile(env, f.Path)
		if err != nil {
			continue
		}
		for _, req := range parseRequirements(data) {
			if req.Version == "" {
				continue
			}
			v, err := semver.NewVersion(req.Version)
			if err != nil {
				continue
			}
			pkgs = append(pkgs, InstalledPackage{
				Ecosystem: schema.PythonEcosystem, Name: req.Name, Version: v, Path: f.Path, Line: req.Line,
			})
		}
	}

	for _, f := range snap.FilesNamed("go.mod") {
		mod, err := parseGoMod(env, f.Path)
		if err != nil {
			continue
		}
		for _, r := range mod.Require {
			v, err := semver.NewVersion(r.Mod.Version)
			if err != nil {
				continue
			}
			line := 0
			if r.Syntax != nil {
				line = r.Syntax.Start.Line
			}
			pkgs = append(pkgs, InstalledPackage{
				Ecosystem: schema.GoEcosystem, Name: r.Mod.Path, Version: v, Path: f.Path, Line: line,
			})
		}
	}
	return pkgs
}

// MatchAdvisories returns one vulnerability finding per affected package and advisory.
func MatchAdvisories(db *AdvisoryDatabase, pkgs []InstalledPackage, source string) []schema.Finding {
	var findings []schema.Finding
	for _, pkg := range pkgs {
		for _, adv := range db.Advisories {
			if !adv.Matches(pkg.Ecosystem, pkg.Name, pkg.Version) {
				continue
			}
			msg := fmt.Sprintf("%s %s is affected by %s", pkg.Name, pkg.Version.Original(), adv.ID)
			if adv.Summary != "" {
				msg += ": " + adv.Summary
			}
			findings = append(findings, schema.NewFinding(schema.VulnerabilityKind, adv.SeverityOf(), source, msg).At(pkg.Path, pkg.Line))
		}
	}
	return findings
}
