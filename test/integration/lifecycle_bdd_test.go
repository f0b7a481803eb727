//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/enough/internal/domain"
	"github.com/eliteGoblin/enough/internal/infra"
	"github.com/eliteGoblin/enough/internal/usecase"
)

const originalHosts = "127.0.0.1 localhost\n::1 localhost\n"

// recordingRunner stands in for launchctl/systemctl and records every call.
// Failures are wrapped like RealCommandRunner wraps a non-zero exit.
type recordingRunner struct {
	mu    sync.Mutex
	calls []string
	fail  string
}

func (r *recordingRunner) Run(ctx context.Context, name string, args ...string) error {
	_, err := r.Output(ctx, name, args...)
	return err
}

func (r *recordingRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	line := strings.Join(append([]string{name}, args...), " ")
	r.calls = append(r.calls, line)
	if r.fail != "" && strings.HasPrefix(line, r.fail) {
		return nil, fmt.Errorf("%w: %s: exit status 1", domain.ErrExternalCommand, line)
	}
	return nil, nil
}

func (r *recordingRunner) LookPath(name string) (string, error) {
	return "", errors.New("not found")
}

func (r *recordingRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

var lockIn = domain.Profile{
	Duration: 125 * time.Second,
	Websites: []string{"https://www.youtube.com", "https://www.reddit.com"},
}

var _ = Describe("Block lifecycle", func() {
	var (
		tmpDir    string
		hostsPath string
		stateDir  string
		home      string
		runner    *recordingRunner
		scheduler domain.DaemonScheduler
		store     *infra.FileStateStore
		clock     *infra.MockClock
		history   *infra.EncryptedHistory
		manager   *usecase.BlockManagerImpl
		ctx       context.Context
	)

	unitFiles := func() []string {
		var dir string
		switch runtime.GOOS {
		case "darwin":
			dir = filepath.Join(home, "Library", "LaunchAgents")
		default:
			dir = filepath.Join(home, ".config", "systemd", "user")
		}
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			return nil
		}
		Expect(err).NotTo(HaveOccurred())
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		return names
	}

	hostsContent := func() string {
		data, err := os.ReadFile(hostsPath)
		Expect(err).NotTo(HaveOccurred())
		return string(data)
	}

	BeforeEach(func() {
		if runtime.GOOS != "darwin" && runtime.GOOS != "linux" {
			Skip("no scheduler backend on " + runtime.GOOS)
		}

		var err error
		tmpDir, err = os.MkdirTemp("", "enough-integration-*")
		Expect(err).NotTo(HaveOccurred())

		hostsPath = filepath.Join(tmpDir, "hosts")
		Expect(os.WriteFile(hostsPath, []byte(originalHosts), 0644)).To(Succeed())
		stateDir = filepath.Join(tmpDir, "state")
		home = filepath.Join(tmpDir, "home")
		ctx = context.Background()

		runner = &recordingRunner{}
		scheduler, err = infra.NewDaemonScheduler(infra.SchedulerConfig{
			StateDir: stateDir,
			ExecPath: "/usr/local/bin/enough",
			LogPath:  filepath.Join(tmpDir, "unblock.log"),
			Mode:     infra.NewExecModeConfig(false, home, 501),
			Runner:   runner,
		})
		Expect(err).NotTo(HaveOccurred())

		store = infra.NewFileStateStore(stateDir)
		clock = infra.NewMockClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.Local))
		lock := infra.NewFileLock(infra.LockPathFor(stateDir), time.Second, infra.NewProcessManager(), nil)

		history, err = infra.OpenHistory(filepath.Join(tmpDir, "data"))
		Expect(err).NotTo(HaveOccurred())

		manager = usecase.NewBlockManager(
			infra.NewHostsEditor(hostsPath, runner, nil),
			scheduler, store, lock, clock, nil,
		).WithHistory(history)
	})

	AfterEach(func() {
		if history != nil {
			history.Close()
		}
		os.RemoveAll(tmpDir)
	})

	Describe("starting a block", func() {
		It("should write the region, schedule one unit and persist the record", func() {
			Expect(manager.StartBlock(ctx, "lock-in", lockIn, lockIn.Duration)).To(Succeed())

			content := hostsContent()
			Expect(content).To(HavePrefix(originalHosts))
			Expect(content).To(ContainSubstring(domain.HostsMarkerStart))
			Expect(strings.Count(content, "0.0.0.0 ")).To(Equal(4))

			id, err := scheduler.ScheduledID()
			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeEmpty())
			Expect(unitFiles()).NotTo(BeEmpty())

			status, err := manager.GetStatus()
			Expect(err).NotTo(HaveOccurred())
			Expect(status.IsBlocked()).To(BeTrue())
			Expect(status.ProfileName).To(Equal("lock-in"))
			Expect(status.UnblockTime).To(BeTemporally("==", clock.Now().Add(125*time.Second)))
		})

		It("should refuse a second block while one is active", func() {
			Expect(manager.StartBlock(ctx, "lock-in", lockIn, lockIn.Duration)).To(Succeed())
			firstID, _ := scheduler.ScheduledID()

			err := manager.StartBlock(ctx, "lock-in", lockIn, time.Minute)
			Expect(err).To(MatchError(domain.ErrAlreadyBlocked))

			id, _ := scheduler.ScheduledID()
			Expect(id).To(Equal(firstID))
		})

		It("should replace an unreadable record instead of getting stuck", func() {
			Expect(os.MkdirAll(stateDir, 0755)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(stateDir, "current_block.yaml"), []byte("profile: [\n"), 0644)).To(Succeed())

			Expect(manager.StartBlock(ctx, "lock-in", lockIn, lockIn.Duration)).To(Succeed())

			status, err := manager.GetStatus()
			Expect(err).NotTo(HaveOccurred())
			Expect(status.ProfileName).To(Equal("lock-in"))
			Expect(strings.Count(hostsContent(), domain.HostsMarkerStart)).To(Equal(1))
		})

		It("should roll back when the service manager rejects the unit", func() {
			if runtime.GOOS == "darwin" {
				runner.fail = "launchctl bootstrap"
			} else {
				runner.fail = "systemctl --user enable"
			}

			err := manager.StartBlock(ctx, "lock-in", lockIn, lockIn.Duration)
			Expect(err).To(MatchError(domain.ErrExternalCommand))

			Expect(hostsContent()).To(Equal(originalHosts))
			Expect(unitFiles()).To(BeEmpty())
			state, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})
	})

	Describe("the scheduled unblock", func() {
		It("should restore everything", func() {
			Expect(manager.StartBlock(ctx, "lock-in", lockIn, lockIn.Duration)).To(Succeed())
			clock.Advance(126 * time.Second)

			Expect(manager.UnblockAll(ctx)).To(Succeed())

			Expect(hostsContent()).To(Equal(originalHosts))
			Expect(unitFiles()).To(BeEmpty())
			id, err := scheduler.ScheduledID()
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(BeEmpty())
			_, err = os.Stat(stateDir)
			Expect(os.IsNotExist(err)).To(BeTrue())

			status, err := manager.GetStatus()
			Expect(err).NotTo(HaveOccurred())
			Expect(status.State).To(Equal(domain.StatusUnblocked))
		})

		It("should report ErrNotBlocked when nothing is active", func() {
			Expect(manager.UnblockAll(ctx)).To(MatchError(domain.ErrNotBlocked))
			Expect(hostsContent()).To(Equal(originalHosts))
		})

		It("should journal the block and its end", func() {
			Expect(manager.StartBlock(ctx, "lock-in", lockIn, lockIn.Duration)).To(Succeed())
			Expect(manager.UnblockAll(ctx)).To(Succeed())

			entries, err := history.Recent(10)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(2))
			Expect(entries[0].Event).To(Equal(domain.EventUnblocked))
			Expect(entries[1].Event).To(Equal(domain.EventBlockStarted))
			Expect(entries[1].Websites).To(Equal(2))
		})
	})

	Describe("status", func() {
		It("should never mutate anything", func() {
			Expect(manager.StartBlock(ctx, "lock-in", lockIn, lockIn.Duration)).To(Succeed())
			before := hostsContent()
			calls := len(runner.Calls())

			for i := 0; i < 3; i++ {
				_, err := manager.GetStatus()
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(hostsContent()).To(Equal(before))
			Expect(runner.Calls()).To(HaveLen(calls))
		})
	})
})
