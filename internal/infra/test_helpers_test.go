package infra

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/eliteGoblin/enough/internal/domain"
)

// fakeCommandRunner records every invocation instead of executing it.
type fakeCommandRunner struct {
	mu       sync.Mutex
	calls    []string
	failOn   map[string]error // command line prefix -> error
	paths    map[string]bool  // binaries LookPath finds
	outputFn func(line string) []byte
}

func newFakeCommandRunner() *fakeCommandRunner {
	return &fakeCommandRunner{
		failOn: make(map[string]error),
		paths:  make(map[string]bool),
	}
}

func (f *fakeCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	_, err := f.Output(ctx, name, args...)
	return err
}

func (f *fakeCommandRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	line := commandLine(name, args)
	f.calls = append(f.calls, line)
	for prefix, err := range f.failOn {
		if strings.HasPrefix(line, prefix) {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrExternalCommand, line, err)
		}
	}
	if f.outputFn != nil {
		return f.outputFn(line), nil
	}
	return nil, nil
}

func (f *fakeCommandRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paths[name] {
		return "/usr/bin/" + name, nil
	}
	return "", fmt.Errorf("%s: not found", name)
}

func (f *fakeCommandRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// mockProcessManager is a test double for domain.ProcessManager
type mockProcessManager struct {
	names map[int]string
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{names: make(map[int]string)}
}

func (m *mockProcessManager) NameOf(pid int) (string, error) {
	if name, ok := m.names[pid]; ok {
		return name, nil
	}
	return "", fmt.Errorf("process %d not found", pid)
}

func (m *mockProcessManager) SetName(pid int, name string) {
	m.names[pid] = name
}

var (
	_ CommandRunner         = (*fakeCommandRunner)(nil)
	_ domain.ProcessManager = (*mockProcessManager)(nil)
)
