package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
)

var shellExtensions = []string{".sh", ".bash"}

type shellAnalyzer struct{}

// NewShellAnalyzer checks shell scripts for shebangs and shellcheck diagnostics.
func NewShellAnalyzer() Analyzer { return shellAnalyzer{} }

func (shellAnalyzer) Name() string { return string(schema.ShellEcosystem) }

func (shellAnalyzer) Applies(snap *schema.RepositorySnapshot) bool {
	return snap.Has(schema.ShellEcosystem)
}

func (a shellAnalyzer) Checks(snap *schema.RepositorySnapshot) []Check {
	if len(snap.FilesByExt(shellExtensions...)) == 0 {
		return nil
	}
	return []Check{
		{Name: "shebang", Run: a.checkShebang},
		{Name: "shellcheck", Tool: "shellcheck", Run: a.checkShellcheck},
	}
}

func (a shellAnalyzer) checkShebang(_ context.Context, env *Env) ([]schema.Finding, error) {
	var findings []schema.Finding
	for _, f := range env.Snapshot.FilesByExt(shellExtensions...) {
		data, err := readFile(env, f.Path)
		if err != nil {
			continue
		}
		if !bytes.HasPrefix(data, []byte("#!")) {
			findings = append(findings, schema.NewFinding(schema.StyleViolationKind, schema.SeverityLow, a.Name(),
				"script has no shebang line").At(f.Path, 1))
		}
	}
	return findings, nil
}

type shellcheckComment struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Level   string `json:"level"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (a shellAnalyzer) checkShellcheck(ctx context.Context, env *Env) ([]schema.Finding, error) {
	var findings []schema.Finding
	for _, batch := range batches(paths(env.Snapshot.FilesByExt(shellExtensions...)), 100) {
		args := append([]string{"-f", "json"}, batch...)
		// shellcheck exits 1 when it reports anything.
		out, err := contract.OutputDespiteExit(env.Runner.Run(ctx, env.Snapshot.Root, "shellcheck", args...))
		if err != nil {
			return nil, err
		}
		var comments []shellcheckComment
		if len(strings.TrimSpace(string(out))) > 0 {
			if err := json.Unmarshal(out, &comments); err != nil {
				return nil, fmt.Errorf("parse shellcheck output: %w", err)
			}
		}
		for _, c := range comments {
			findings = append(findings, schema.NewFinding(schema.LintIssueKind, shellcheckSeverity(c.Level), a.Name(),
				fmt.Sprintf("SC%d: %s", c.Code, c.Message)).At(relTo(env.Snapshot.Root, c.File), c.Line))
		}
	}
	return findings, nil
}

func shellcheckSeverity(level string) schema.Severity {
	switch level {
	case "error":
		return schema.SeverityMedium
	case "warning":
		return schema.SeverityLow
	default:
		return schema.SeverityInfo
	}
}
