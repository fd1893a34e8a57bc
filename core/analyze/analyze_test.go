package analyze

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/huangsam/repohealth/core/collect"
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	"github.com/stretchr/testify/require"
)

// fakeRunner simulates installed tools: a tool is "installed" when it has an output entry.
type fakeRunner struct {
	mu      sync.Mutex
	outputs map[string][]byte
	errs    map[string]error
	probes  map[string]int
	calls   [][]string
}

var _ contract.ToolRunner = &fakeRunner{}

func newFakeRunner(outputs map[string]string) *fakeRunner {
	f := &fakeRunner{outputs: map[string][]byte{}, errs: map[string]error{}, probes: map[string]int{}}
	for tool, out := range outputs {
		f.outputs[tool] = []byte(out)
	}
	return f
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes[name]++
	if _, ok := f.outputs[name]; ok {
		return "/usr/bin/" + name, nil
	}
	return "", fmt.Errorf("%s not found on PATH", name)
}

func (f *fakeRunner) Run(_ context.Context, dir string, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{dir, name}, args...))
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	return f.outputs[name], nil
}

// writeTree creates files (relative path -> content) under a fresh temp dir.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

// newEnv collects a tree and wraps it in an analysis environment.
func newEnv(t *testing.T, files map[string]string, runner contract.ToolRunner) *Env {
	t.Helper()
	root := writeTree(t, files)
	snap, err := collect.Collect(context.Background(), root, collect.Options{})
	require.NoError(t, err)
	if runner == nil {
		runner = newFakeRunner(nil)
	}
	return &Env{
		Snapshot: snap,
		Runner:   runner,
		Options: Options{
			LargeFileBytes:   1000,
			MaxScanBytes:     1 << 20,
			FindingsPerCheck: contract.DefaultFindingsPerCheck,
		},
	}
}

// runAnalyzer runs one analyzer through a runner without a timeout.
func runAnalyzer(t *testing.T, a Analyzer, env *Env) Outcome {
	t.Helper()
	return NewRunner(env, 0).Run(context.Background(), a)
}

func kinds(findings []schema.Finding) []schema.FindingKind {
	out := make([]schema.FindingKind, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Kind)
	}
	return out
}

func withoutKind(findings []schema.Finding, kind schema.FindingKind) []schema.Finding {
	var out []schema.Finding
	for _, f := range findings {
		if f.Kind != kind {
			out = append(out, f)
		}
	}
	return out
}
