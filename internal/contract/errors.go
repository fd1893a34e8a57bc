package contract

import (
	"errors"
	"fmt"
	"strings"
)

// Collector failures. These are the only errors that abort an analysis.
var (
	ErrPathNotFound     = errors.New("path not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotDirectory     = errors.New("not a directory")
)

// ToolError describes an external tool that ran but exited unsuccessfully.
type ToolError struct {
	Tool     string
	ExitCode int
	Stdout   []byte
	Stderr   string
}

func (e *ToolError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.ExitCode, stderr)
}

// OutputDespiteExit returns stdout when a tool exited non-zero but still printed a report.
// Linters and auditors signal "issues found" through their exit status.
func OutputDespiteExit(out []byte, err error) ([]byte, error) {
	if err == nil {
		return out, nil
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) && len(strings.TrimSpace(string(toolErr.Stdout))) > 0 {
		return toolErr.Stdout, nil
	}
	return nil, err
}
