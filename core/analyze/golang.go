package analyze

import (
	"context"
	"fmt"
	"strings"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	"golang.org/x/mod/modfile"
)

type goAnalyzer struct{}

// NewGoAnalyzer checks go.mod files and gofmt conformance.
func NewGoAnalyzer() Analyzer { return goAnalyzer{} }

func (goAnalyzer) Name() string { return string(schema.GoEcosystem) }

func (goAnalyzer) Applies(snap *schema.RepositorySnapshot) bool {
	return snap.Has(schema.GoEcosystem)
}

func (a goAnalyzer) Checks(snap *schema.RepositorySnapshot) []Check {
	var checks []Check
	if len(snap.FilesNamed("go.mod")) > 0 {
		checks = append(checks, Check{Name: "go.mod", Run: a.checkModules})
	}
	if len(snap.FilesByExt(".go")) > 0 {
		checks = append(checks, Check{Name: "gofmt", Tool: "gofmt", Run: a.checkFormat})
	}
	return checks
}

// parseGoMod parses a module file. Callers report parse errors themselves.
func parseGoMod(env *Env, rel string) (*modfile.File, error) {
	data, err := readFile(env, rel)
	if err != nil {
		return nil, err
	}
	return modfile.Parse(rel, data, nil)
}

func (a goAnalyzer) checkModules(_ context.Context, env *Env) ([]schema.Finding, error) {
	var findings []schema.Finding
	for _, f := range env.Snapshot.FilesNamed("go.mod") {
		mod, err := parseGoMod(env, f.Path)
		if err != nil {
			findings = append(findings, schema.NewFinding(schema.ParseErrorKind, schema.SeverityLow, a.Name(),
				fmt.Sprintf("go.mod could not be parsed: %v", err)).At(f.Path, 0))
			continue
		}
		if mod.Go == nil {
			findings = append(findings, schema.NewFinding(schema.BuildRiskKind, schema.SeverityLow, a.Name(),
				"go.mod has no go directive").At(f.Path, 0))
		}
		for _, r := range mod.Replace {
			if r.New.Version != "" {
				continue
			}
			line := 0
			if r.Syntax != nil {
				line = r.Syntax.Start.Line
			}
			findings = append(findings, schema.NewFinding(schema.BuildRiskKind, schema.SeverityLow, a.Name(),
				fmt.Sprintf("replace directive points %s at local path %s", r.Old.Path, r.New.Path)).At(f.Path, line))
		}
	}
	return findings, nil
}

func (a goAnalyzer) checkFormat(ctx context.Context, env *Env) ([]schema.Finding, error) {
	var findings []schema.Finding
	for _, batch := range batches(paths(env.Snapshot.FilesByExt(".go")), 200) {
		args := append([]string{"-l"}, batch...)
		// gofmt exits 2 on syntax errors but still lists the files it could format-check.
		out, err := contract.OutputDespiteExit(env.Runner.Run(ctx, env.Snapshot.Root, "gofmt", args...))
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(string(out), "\n") {
			rel := relTo(env.Snapshot.Root, strings.TrimSpace(line))
			if rel == "" || !env.Snapshot.HasFile(rel) {
				continue
			}
			findings = append(findings, schema.NewFinding(schema.StyleViolationKind, schema.SeverityLow, a.Name(),
				"file is not gofmt-formatted").At(rel, 0))
		}
	}
	return findings, nil
}
