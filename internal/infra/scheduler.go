package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/enough/internal/domain"
)

// DefaultUnblockLog receives the output of the scheduled unblock run.
const DefaultUnblockLog = "/var/tmp/enough-unblock.log"

// SchedulerConfig carries what every scheduler backend needs.
type SchedulerConfig struct {
	StateDir string            // where daemon_id / daemon_home live
	ExecPath string            // binary the unit re-invokes; defaults to os.Executable
	LogPath  string            // unit stdout/stderr
	Mode     *ExecModeConfig   // defaults to DetectExecMode
	Env      map[string]string // exported to the unblock run
	Runner   CommandRunner
	Logger   *zap.Logger
}

func (c SchedulerConfig) withDefaults() (SchedulerConfig, error) {
	if c.StateDir == "" {
		return c, fmt.Errorf("scheduler: state dir is required")
	}
	if c.ExecPath == "" {
		exe, err := currentExecutable()
		if err != nil {
			return c, err
		}
		c.ExecPath = exe
	}
	if c.LogPath == "" {
		c.LogPath = DefaultUnblockLog
	}
	if c.Mode == nil {
		c.Mode = DetectExecMode()
	}
	if c.Runner == nil {
		c.Runner = NewCommandRunner(DefaultCommandTimeout)
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c, nil
}

// NewDaemonScheduler returns the scheduler for the running platform:
// launchd on macOS, systemd on Linux, an always-failing one elsewhere.
func NewDaemonScheduler(cfg SchedulerConfig) (domain.DaemonScheduler, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return newPlatformScheduler(cfg), nil
}

type envVar struct {
	Key   string
	Value string
}

// sortedEnv returns env ordered by key so rendered units are stable.
func sortedEnv(env map[string]string) []envVar {
	vars := make([]envVar, 0, len(env))
	for k, v := range env {
		vars = append(vars, envVar{Key: k, Value: v})
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Key < vars[j].Key })
	return vars
}

// unblockArgs is the argv tail the scheduled unit runs.
func unblockArgs() []string {
	return []string{domain.UnblockCommand, domain.UnblockFixFlag}
}

func currentExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return exe, nil
}

// unsupportedScheduler fails every Schedule so a block is never started
// without a way to lift it.
type unsupportedScheduler struct{}

func (unsupportedScheduler) Schedule(_ context.Context, _ time.Time) error {
	return fmt.Errorf("%w: no service manager integration for this OS", domain.ErrUnsupportedPlatform)
}

func (unsupportedScheduler) Remove(_ context.Context) error { return nil }

func (unsupportedScheduler) ScheduledID() (string, error) { return "", nil }

func (unsupportedScheduler) Name() string { return "unsupported" }
