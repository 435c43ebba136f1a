package codec

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Runner executes a subprocess and returns its combined output.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

func (f RunnerFunc) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	return f(ctx, dir, name, args...)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

const defaultToolCacheSize = 64

// Toolchain resolves tool commands to executables and runs them. Resolved
// paths are cached; a command that fails to resolve is not cached.
type Toolchain struct {
	runner   Runner
	resolved *lru.Cache[string, string]

	// LookPath resolves an executable name. Defaults to exec.LookPath.
	LookPath func(file string) (string, error)
}

// NewToolchain creates a Toolchain. A nil runner means ExecRunner; a
// non-positive cacheSize uses the default.
func NewToolchain(runner Runner, cacheSize int) (*Toolchain, error) {
	if runner == nil {
		runner = ExecRunner{}
	}
	if cacheSize <= 0 {
		cacheSize = defaultToolCacheSize
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("tool cache: %w", err)
	}
	return &Toolchain{runner: runner, resolved: cache, LookPath: exec.LookPath}, nil
}

// Resolve returns the executable for the first word of command.
func (tc *Toolchain) Resolve(command []string) (string, error) {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return "", fmt.Errorf("tool command is empty")
	}
	name := command[0]
	if p, ok := tc.resolved.Get(name); ok {
		return p, nil
	}
	lookPath := tc.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	p, err := lookPath(name)
	if err != nil {
		return "", fmt.Errorf("tool %q not found: %w", name, err)
	}
	tc.resolved.Add(name, p)
	return p, nil
}

// Exec runs command (executable plus fixed leading arguments) with args
// appended.
func (tc *Toolchain) Exec(ctx context.Context, dir string, command []string, args ...string) ([]byte, error) {
	bin, err := tc.Resolve(command)
	if err != nil {
		return nil, err
	}
	full := make([]string, 0, len(command)-1+len(args))
	full = append(full, command[1:]...)
	full = append(full, args...)
	return tc.runner.Run(ctx, dir, bin, full...)
}

// SplitCommand splits a configured command line on whitespace.
func SplitCommand(line string) []string {
	return strings.Fields(line)
}
