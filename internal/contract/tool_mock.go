package contract

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockToolRunner is a mock implementation of ToolRunner for testing.
type MockToolRunner struct {
	mock.Mock
}

var _ ToolRunner = &MockToolRunner{} // Compile-time check

// LookPath implements the ToolRunner interface.
func (m *MockToolRunner) LookPath(name string) (string, error) {
	args := m.Called(name)
	return args.String(0), args.Error(1)
}

// Run implements the ToolRunner interface.
func (m *MockToolRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	ret := m.Called(ctx, dir, name, args)
	out, _ := ret.Get(0).([]byte)
	return out, ret.Error(1)
}
