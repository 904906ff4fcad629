package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner executes system commands. Tests substitute MockCommandRunner.
type CommandRunner interface {
	// RunInDir executes a command in dir and returns its standard output.
	RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// RealCommandRunner is the production implementation using os/exec
type RealCommandRunner struct{}

// RunInDir executes a command using os/exec. On a non-zero exit the error
// carries the command's trimmed stderr.
func (r *RealCommandRunner) RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, &CommandError{
				Args:     append([]string{name}, args...),
				ExitCode: exitErr.ExitCode(),
				Stderr:   strings.TrimSpace(stderr.String()),
			}
		}
		return out, fmt.Errorf("run %s: %w", name, err)
	}
	return out, nil
}

// CommandError reports a command that exited unsuccessfully.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// MockCommandRunner is a test implementation that returns predefined responses
type MockCommandRunner struct {
	// RunInDirFunc is called when RunInDir is invoked
	RunInDirFunc func(dir, name string, args ...string) ([]byte, error)

	// Calls tracks all command invocations
	Calls []MockCall
}

// MockCall represents a single command invocation
type MockCall struct {
	Name string
	Args []string
	Dir  string
}

// RunInDir records the call and executes the mock function.
func (m *MockCommandRunner) RunInDir(_ context.Context, dir, name string, args ...string) ([]byte, error) {
	m.Calls = append(m.Calls, MockCall{Name: name, Args: args, Dir: dir})

	if m.RunInDirFunc != nil {
		return m.RunInDirFunc(dir, name, args...)
	}

	return []byte(""), nil
}

// NewMockCommandRunner creates a new mock with default behavior
func NewMockCommandRunner() *MockCommandRunner {
	return &MockCommandRunner{
		Calls: make([]MockCall, 0),
	}
}

// Subcommands returns the git subcommand of every recorded call, in order.
func (m *MockCommandRunner) Subcommands() []string {
	out := make([]string, 0, len(m.Calls))
	for _, c := range m.Calls {
		if len(c.Args) > 0 {
			out = append(out, c.Args[0])
		}
	}
	return out
}
