package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/enough/internal/domain"
)

const (
	// DefaultLockTimeout bounds how long a mutating command waits for another one.
	DefaultLockTimeout = 10 * time.Second

	lockPollInterval = 100 * time.Millisecond
)

// FileLock implements domain.Locker with an advisory flock on a file that
// records the holder's PID.
type FileLock struct {
	path           string
	timeout        time.Duration
	processManager domain.ProcessManager
	logger         *zap.Logger
}

// LockPathFor returns the lock file guarding stateDir. It lives beside the
// directory because clearing state removes the directory itself.
func LockPathFor(stateDir string) string {
	return filepath.Clean(stateDir) + ".lock"
}

// NewFileLock creates a lock on path. pm may be nil.
func NewFileLock(path string, timeout time.Duration, pm domain.ProcessManager, logger *zap.Logger) *FileLock {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileLock{
		path:           path,
		timeout:        timeout,
		processManager: pm,
		logger:         logger,
	}
}

// Lock waits until the lock is held, the timeout elapses or ctx is done.
// The returned func releases the lock.
func (l *FileLock) Lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return nil, classifyFSError("create", filepath.Dir(l.path), err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, classifyFSError("open", l.path, err)
	}

	deadline := time.NewTimer(l.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	logged := false
	for {
		acquired, err := tryFlock(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to acquire lock %s: %w", l.path, err)
		}
		if acquired {
			break
		}
		if !logged {
			l.logger.Info("waiting for another enough invocation", zap.String("holder", l.holder()))
			logged = true
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, fmt.Errorf("%w (%s): %v", domain.ErrLocked, l.holder(), ctx.Err())
		case <-deadline.C:
			holder := l.holder()
			f.Close()
			return nil, fmt.Errorf("%w (%s)", domain.ErrLocked, holder)
		case <-ticker.C:
		}
	}

	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}

	return func() {
		_ = f.Truncate(0)
		funlock(f)
		f.Close()
	}, nil
}

// holder describes the process recorded in the lock file.
func (l *FileLock) holder() string {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return "holder unknown"
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return "holder unknown"
	}
	if l.processManager != nil {
		if name, err := l.processManager.NameOf(pid); err == nil && name != "" {
			return fmt.Sprintf("held by %s, pid %d", name, pid)
		}
	}
	return fmt.Sprintf("held by pid %d", pid)
}

// Ensure FileLock implements domain.Locker.
var _ domain.Locker = (*FileLock)(nil)
