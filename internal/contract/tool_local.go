package contract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	log "github.com/sirupsen/logrus"
)

// LocalToolRunner implements the ToolRunner interface by executing
// binaries installed on the machine.
type LocalToolRunner struct {
	mu    sync.Mutex
	paths map[string]lookResult
}

type lookResult struct {
	path string
	err  error
}

var _ ToolRunner = &LocalToolRunner{} // Compile-time check

// NewLocalToolRunner creates a new instance of the local tool runner.
func NewLocalToolRunner() *LocalToolRunner {
	return &LocalToolRunner{paths: make(map[string]lookResult)}
}

// LookPath implements the ToolRunner interface. Results are memoized per tool name.
func (r *LocalToolRunner) LookPath(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.paths[name]; ok {
		return res.path, res.err
	}
	path, err := exec.LookPath(name)
	if err != nil {
		err = fmt.Errorf("%s not found on PATH: %w", name, err)
	}
	r.paths[name] = lookResult{path: path, err: err}
	log.WithField("tool", name).WithField("available", err == nil).Debug("Probed external tool")
	return path, err
}

// Run implements the ToolRunner interface.
func (r *LocalToolRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	path, err := r.LookPath(name)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.WithField("tool", name).WithField("args", args).Debug("Running external tool")
	err = cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s interrupted: %w", name, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil, &ToolError{
			Tool:     name,
			ExitCode: exitErr.ExitCode(),
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.String(),
		}
	} else if err != nil {
		return nil, fmt.Errorf("%s failed to start: %w", name, err)
	}
	return stdout.Bytes(), nil
}
