package analyze

import (
	"context"
	"path"
	"strings"

	"github.com/huangsam/repohealth/schema"
)

type docsAnalyzer struct{}

// NewDocsAnalyzer checks that the repository carries a README and a license.
func NewDocsAnalyzer() Analyzer { return docsAnalyzer{} }

func (docsAnalyzer) Name() string { return "docs" }

func (docsAnalyzer) Applies(*schema.RepositorySnapshot) bool { return true }

func (a docsAnalyzer) Checks(*schema.RepositorySnapshot) []Check {
	return []Check{
		{Name: "readme", Run: a.checkReadme},
		{Name: "license", Run: a.checkLicense},
	}
}

// rootDoc finds the first root-level file whose upper-cased name starts with one of prefixes.
func rootDoc(snap *schema.RepositorySnapshot, prefixes ...string) (schema.FileEntry, bool) {
	for _, f := range snap.Files {
		if !rootLevel(f.Path) {
			continue
		}
		name := strings.ToUpper(path.Base(f.Path))
		for _, p := range prefixes {
			if strings.HasPrefix(name, p) {
				return f, true
			}
		}
	}
	return schema.FileEntry{}, false
}

func (a docsAnalyzer) checkReadme(_ context.Context, env *Env) ([]schema.Finding, error) {
	readme, ok := rootDoc(env.Snapshot, "README")
	if !ok {
		return []schema.Finding{schema.NewFinding(schema.MissingDocKind, schema.SeverityMedium, a.Name(),
			"repository has no README")}, nil
	}
	empty := readme.Size == 0
	if !empty {
		data, err := readFile(env, readme.Path)
		if err == nil {
			empty = strings.TrimSpace(string(data)) == ""
		}
	}
	if empty {
		return []schema.Finding{schema.NewFinding(schema.MissingDocKind, schema.SeverityLow, a.Name(),
			"README is empty").At(readme.Path, 0)}, nil
	}
	return nil, nil
}

func (a docsAnalyzer) checkLicense(_ context.Context, env *Env) ([]schema.Finding, error) {
	if _, ok := rootDoc(env.Snapshot, "LICENSE", "LICENCE", "COPYING"); ok {
		return nil, nil
	}
	return []schema.Finding{schema.NewFinding(schema.MissingDocKind, schema.SeverityLow, a.Name(),
		"repository has no LICENSE file")}, nil
}
