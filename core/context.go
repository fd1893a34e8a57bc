package core

import (
	"context"

	"github.com/huangsam/repohealth/internal/contract"
)

// Context keys for pipeline collaborators
type contextKey string

const toolRunnerKey contextKey = "toolRunner"

// WithToolRunner sets the runner used to invoke external analysis tools
func WithToolRunner(ctx context.Context, runner contract.ToolRunner) context.Context {
	return context.WithValue(ctx, toolRunnerKey, runner)
}

// toolRunnerFrom returns the runner from context, defaulting to the local machine
func toolRunnerFrom(ctx context.Context) contract.ToolRunner {
	if runner, ok := ctx.Value(toolRunnerKey).(contract.ToolRunner); ok && runner != nil {
		return runner
	}
	return contract.NewLocalToolRunner()
}
