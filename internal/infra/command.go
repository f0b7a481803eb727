// Package infra implements infrastructure concerns (hosts file, scheduler, state, history).
package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/eliteGoblin/enough/internal/domain"
)

// DefaultCommandTimeout bounds every call into the OS service manager.
const DefaultCommandTimeout = 30 * time.Second

// CommandRunner abstracts command execution for testing
type CommandRunner interface {
	// Run executes a command. A non-zero exit is returned wrapped in
	// domain.ErrExternalCommand together with the command's stderr.
	Run(ctx context.Context, name string, args ...string) error

	// Output executes a command and returns its stdout
	Output(ctx context.Context, name string, args ...string) ([]byte, error)

	// LookPath reports whether a binary is available
	LookPath(name string) (string, error)
}

// RealCommandRunner executes real system commands
type RealCommandRunner struct {
	Timeout time.Duration
}

// NewCommandRunner creates a runner bounding each command by timeout.
func NewCommandRunner(timeout time.Duration) *RealCommandRunner {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &RealCommandRunner{Timeout: timeout}
}

// Run executes a command and waits for it to complete
func (r *RealCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	_, err := r.exec(ctx, name, args...)
	return err
}

// Output executes a command and returns its stdout
func (r *RealCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return r.exec(ctx, name, args...)
}

// LookPath searches PATH for the binary
func (r *RealCommandRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (r *RealCommandRunner) exec(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = nil // Prevent any interactive prompts
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s timed out after %s", domain.ErrExternalCommand, commandLine(name, args), r.Timeout)
		}
		return nil, fmt.Errorf("%w: %s: %v: %s",
			domain.ErrExternalCommand, commandLine(name, args), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func commandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// Ensure RealCommandRunner implements CommandRunner.
var _ CommandRunner = (*RealCommandRunner)(nil)
