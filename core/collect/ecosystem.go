package collect

import (
	"path"

	"github.com/huangsam/repohealth/schema"
)

// markerFiles maps manifest, lockfile and module-definition names to their ecosystem.
var markerFiles = map[string]schema.Ecosystem{
	"package.json":        schema.JavaScriptEcosystem,
	"package-lock.json":   schema.JavaScriptEcosystem,
	"npm-shrinkwrap.json": schema.JavaScriptEcosystem,
	"yarn.lock":           schema.JavaScriptEcosystem,
	"pnpm-lock.yaml":      schema.JavaScriptEcosystem,
	"tsconfig.json":       schema.JavaScriptEcosystem,
	"requirements.txt":    schema.PythonEcosystem,
	"pyproject.toml":      schema.PythonEcosystem,
	"setup.py":            schema.PythonEcosystem,
	"setup.cfg":           schema.PythonEcosystem,
	"Pipfile":             schema.PythonEcosystem,
	"Pipfile.lock":        schema.PythonEcosystem,
	"poetry.lock":         schema.PythonEcosystem,
	"go.mod":              schema.GoEcosystem,
	"go.sum":              schema.GoEcosystem,
	"Cargo.toml":          schema.RustEcosystem,
	"Cargo.lock":          schema.RustEcosystem,
	"pom.xml":             schema.JavaEcosystem,
	"build.gradle":        schema.JavaEcosystem,
	"build.gradle.kts":    schema.JavaEcosystem,
	"Gemfile":             schema.RubyEcosystem,
	"Gemfile.lock":        schema.RubyEcosystem,
}

// sourceExtensions maps source-file extensions to the ecosystem they count towards.
var sourceExtensions = map[string]schema.Ecosystem{
	".js":   schema.JavaScriptEcosystem,
	".jsx":  schema.JavaScriptEcosystem,
	".mjs":  schema.JavaScriptEcosystem,
	".cjs":  schema.JavaScriptEcosystem,
	".ts":   schema.JavaScriptEcosystem,
	".tsx":  schema.JavaScriptEcosystem,
	".py":   schema.PythonEcosystem,
	".go":   schema.GoEcosystem,
	".sh":   schema.ShellEcosystem,
	".bash": schema.ShellEcosystem,
	".rs":   schema.RustEcosystem,
	".java": schema.JavaEcosystem,
	".kt":   schema.JavaEcosystem,
	".rb":   schema.RubyEcosystem,
}

// MarkerEcosystem returns the ecosystem a file name marks, if any.
func MarkerEcosystem(name string) (schema.Ecosystem, bool) {
	eco, ok := markerFiles[path.Base(name)]
	return eco, ok
}

// SourceEcosystem returns the ecosystem a source extension counts towards, if any.
func SourceEcosystem(ext string) (schema.Ecosystem, bool) {
	eco, ok := sourceExtensions[ext]
	return eco, ok
}

// detectEcosystems fills markers, source shares, the detected set and the primary ecosystem.
// The primary is the largest source share; ties and marker-only repositories fall back to
// schema.EcosystemPriority.
func detectEcosystems(snap *schema.RepositorySnapshot) {
	present := make(map[schema.Ecosystem]bool)
	for _, f := range snap.Files {
		if eco, ok := MarkerEcosystem(f.Path); ok {
			snap.Markers[f.Path] = eco
			present[eco] = true
		}
		if eco, ok := SourceEcosystem(f.Ext); ok {
			snap.SourceShares[eco]++
			snap.SourceFiles++
			present[eco] = true
		}
	}

	snap.Ecosystems = nil
	for _, eco := range schema.EcosystemPriority {
		if present[eco] {
			snap.Ecosystems = append(snap.Ecosystems, eco)
		}
	}

	snap.Primary = schema.UnknownEcosystem
	best := 0
	for _, eco := range schema.EcosystemPriority {
		if share := snap.SourceShares[eco]; share > best {
			best = share
			snap.Primary = eco
		}
	}
	if snap.Primary == schema.UnknownEcosystem && len(snap.Ecosystems) > 0 {
		snap.Primary = snap.Ecosystems[0]
	}
}
