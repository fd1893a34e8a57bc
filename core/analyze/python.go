package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	"github.com/pelletier/go-toml/v2"
)

// requirement is one parsed line of a requirements file.
type requirement struct {
	Name    string
	Version string // exact pin, empty when unpinned
	Line    int
}

// parseRequirements reads pip requirement lines. Options, includes, URLs and
// editable installs are skipped.
func parseRequirements(data []byte) []requirement {
	var reqs []requirement
	for i, raw := range strings.Split(string(data), "\n") {
		line := raw
		if idx := strings.Index(line, " #"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") || strings.Contains(line, "://") {
			continue
		}
		if idx := strings.Index(line, ";"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}

		name := line
		if idx := strings.IndexAny(line, "<>=!~[ @"); idx >= 0 {
			name = line[:idx]
		}
		req := requirement{Name: strings.ToLower(strings.TrimSpace(name)), Line: i + 1}
		if idx := strings.Index(line, "=="); idx >= 0 && !strings.ContainsAny(line[idx+2:], "*,") {
			req.Version = strings.TrimSpace(strings.TrimPrefix(line[idx+2:], "="))
		}
		if req.Name != "" {
			reqs = append(reqs, req)
		}
	}
	return reqs
}

func isRequirementsFile(rel string) bool {
	base := path.Base(rel)
	return strings.HasPrefix(base, "requirements") && strings.HasSuffix(base, ".txt")
}

func requirementsFiles(snap *schema.RepositorySnapshot) []schema.FileEntry {
	var out []schema.FileEntry
	for _, f := range snap.FilesByExt(".txt") {
		if isRequirementsFile(f.Path) {
			out = append(out, f)
		}
	}
	return out
}

type pyProject struct {
	Project *struct {
		Name           string   `toml:"name"`
		RequiresPython string   `toml:"requires-python"`
		Dependencies   []string `toml:"dependencies"`
	} `toml:"project"`
}

type pythonAnalyzer struct{}

// NewPythonAnalyzer checks requirement pins, pyproject metadata and ruff lint results.
func NewPythonAnalyzer() Analyzer { return pythonAnalyzer{} }

func (pythonAnalyzer) Name() string { return string(schema.PythonEcosystem) }

func (pythonAnalyzer) Applies(snap *schema.RepositorySnapshot) bool {
	return snap.Has(schema.PythonEcosystem)
}

func (a pythonAnalyzer) Checks(snap *schema.RepositorySnapshot) []Check {
	var checks []Check
	if len(requirementsFiles(snap)) > 0 {
		checks = append(checks, Check{Name: "requirements", Run: a.checkRequirements})
	}
	if len(snap.FilesNamed("pyproject.toml")) > 0 {
		checks = append(checks, Check{Name: "pyproject.toml", Run: a.checkPyProject})
	}
	if len(snap.FilesByExt(".py")) > 0 {
		checks = append(checks, Check{Name: "ruff", Tool: "ruff", Run: a.checkRuff})
	}
	return checks
}

func (a pythonAnalyzer) checkRequirements(_ context.Context, env *Env) ([]schema.Finding, error) {
	var findings []schema.Finding
	for _, f := range requirementsFiles(env.Snapshot) {
		data, err := readFile(env, f.Path)
		if err != nil {
			return nil, err
		}
		for _, req := range parseRequirements(data) {
			if req.Version == "" {
				findings = append(findings, schema.NewFinding(schema.UnpinnedDependencyKind, schema.SeverityLow, a.Name(),
					fmt.Sprintf("requirement %s is not pinned to an exact version", req.Name)).At(f.Path, req.Line))
			}
		}
	}
	return findings, nil
}

func (a pythonAnalyzer) checkPyProject(_ context.Context, env *Env) ([]schema.Finding, error) {
	var findings []schema.Finding
	for _, f := range env.Snapshot.FilesNamed("pyproject.toml") {
		data, err := readFile(env, f.Path)
		if err != nil {
			return nil, err
		}
		var project pyProject
		if err := toml.Unmarshal(data, &project); err != nil {
			findings = append(findings, schema.NewFinding(schema.ParseErrorKind, schema.SeverityLow, a.Name(),
				fmt.Sprintf("pyproject.toml is not valid TOML: %v", err)).At(f.Path, 0))
			continue
		}
		if project.Project != nil && strings.TrimSpace(project.Project.RequiresPython) == "" {
			findings = append(findings, schema.NewFinding(schema.BuildRiskKind, schema.SeverityLow, a.Name(),
				"[project] does not declare requires-python").At(f.Path, lineOf(data, "[project]")))
		}
	}
	return findings, nil
}

type ruffDiagnostic struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Filename string `json:"filename"`
	Location struct {
		Row int `json:"row"`
	} `json:"location"`
}

func (a pythonAnalyzer) checkRuff(ctx context.Context, env *Env) ([]schema.Finding, error) {
	out, err := contract.OutputDespiteExit(env.Runner.Run(ctx, env.Snapshot.Root, "ruff", "check", "--output-format", "json", "--exit-zero", "."))
	if err != nil {
		return nil, err
	}
	var diags []ruffDiagnostic
	if len(strings.TrimSpace(string(out))) > 0 {
		if err := json.Unmarshal(out, &diags); err != nil {
			return nil, fmt.Errorf("parse ruff output: %w", err)
		}
	}

	var findings []schema.Finding
	for _, d := range diags {
		rel := relTo(env.Snapshot.Root, d.Filename)
		if !env.Snapshot.HasFile(rel) {
			continue
		}
		findings = append(findings, schema.NewFinding(schema.LintIssueKind, ruffSeverity(d.Code), a.Name(),
			fmt.Sprintf("%s %s", d.Code, d.Message)).At(rel, d.Location.Row))
	}
	return findings, nil
}

// ruffSeverity treats syntax errors (E9) and pyflakes (F) codes as likely bugs.
func ruffSeverity(code string) schema.Severity {
	if strings.HasPrefix(code, "E9") || strings.HasPrefix(code, "F") {
		return schema.SeverityMedium
	}
	return schema.SeverityLow
}
