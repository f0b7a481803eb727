package infra

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eliteGoblin/enough/internal/domain"
)

const unblockServiceTemplate = `[Unit]
Description=Lift the active enough block

[Service]
Type=oneshot
{{- range .Environment}}
Environment={{.}}
{{- end}}
ExecStart={{.ExecStart}}
StandardOutput=append:{{.LogPath}}
StandardError=append:{{.LogPath}}
`

const unblockTimerTemplate = `[Unit]
Description=Lift the active enough block at {{.OnCalendar}}

[Timer]
OnCalendar={{.OnCalendar}}
AccuracySec=1s
Persistent=true
Unit={{.Unit}}.service

[Install]
WantedBy=timers.target
`

// onCalendarLayout is systemd's absolute timestamp form, in local time.
const onCalendarLayout = "2006-01-02 15:04:05"

var (
	serviceTmpl = template.Must(template.New("service").Parse(unblockServiceTemplate))
	timerTmpl   = template.Must(template.New("timer").Parse(unblockTimerTemplate))
)

type systemdUnitConfig struct {
	Unit        string
	ExecStart   string
	Environment []string
	OnCalendar  string
	LogPath     string
}

// SystemdScheduler implements domain.DaemonScheduler with a oneshot service
// and a persistent calendar timer.
type SystemdScheduler struct {
	mode      *ExecModeConfig
	record    unitRecord
	execPath  string
	logPath   string
	env       []envVar
	cmdRunner CommandRunner
	logger    *zap.Logger
}

// NewSystemdScheduler creates a systemd scheduler.
func NewSystemdScheduler(cfg SchedulerConfig) *SystemdScheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SystemdScheduler{
		mode:      cfg.Mode,
		record:    unitRecord{stateDir: cfg.StateDir},
		execPath:  cfg.ExecPath,
		logPath:   cfg.LogPath,
		env:       sortedEnv(cfg.Env),
		cmdRunner: cfg.Runner,
		logger:    logger,
	}
}

// Name returns the backend name.
func (s *SystemdScheduler) Name() string {
	return "systemd"
}

// ScheduledID returns the persisted unit name.
func (s *SystemdScheduler) ScheduledID() (string, error) {
	id, _, err := s.record.load()
	return id, err
}

// Schedule writes <id>.service and <id>.timer and enables the timer.
func (s *SystemdScheduler) Schedule(ctx context.Context, unblockTime time.Time) error {
	unit := newUnitID(SystemdUnitPrefix)
	home := s.mode.Home
	dir := s.mode.SystemdDir(home)

	service, timer, err := s.generateUnits(unit, unblockTime)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return classifyFSError("create", dir, err)
	}
	if err := writeFileAtomic(filepath.Join(dir, unit+".service"), service, 0644); err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(dir, unit+".timer"), timer, 0644); err != nil {
		return err
	}

	if err := s.record.save(unit, home); err != nil {
		return err
	}

	if err := s.systemctl(ctx, "daemon-reload"); err != nil {
		return fmt.Errorf("failed to reload systemd: %w", err)
	}
	if err := s.systemctl(ctx, "enable", "--now", unit+".timer"); err != nil {
		return fmt.Errorf("failed to enable timer %s: %w", unit, err)
	}

	s.logger.Info("scheduled unblock timer",
		zap.String("unit", unit),
		zap.String("dir", dir),
		zap.Time("unblock_time", unblockTime))
	return nil
}

// Remove disables the timer and deletes both unit files. No-op when none is persisted.
func (s *SystemdScheduler) Remove(ctx context.Context) error {
	unit, home, err := s.record.load()
	if err != nil {
		return err
	}
	if unit == "" {
		return nil
	}
	if err := validUnitID(unit, SystemdUnitPrefix); err != nil {
		return multierr.Append(err, s.record.clear())
	}
	if home == "" {
		home = s.mode.Home
	}
	dir := s.mode.SystemdDir(home)

	if err := s.systemctl(ctx, "disable", "--now", unit+".timer"); err != nil {
		s.logger.Warn("failed to disable timer", zap.String("unit", unit), zap.Error(err))
	}

	err = multierr.Combine(
		removeIfExists(filepath.Join(dir, unit+".timer")),
		removeIfExists(filepath.Join(dir, unit+".service")),
	)

	if rerr := s.systemctl(ctx, "daemon-reload"); rerr != nil {
		s.logger.Warn("failed to reload systemd", zap.Error(rerr))
	}

	err = multierr.Append(err, s.record.clear())
	if err == nil {
		s.logger.Info("removed unblock timer", zap.String("unit", unit))
	}
	return err
}

func (s *SystemdScheduler) systemctl(ctx context.Context, args ...string) error {
	return s.cmdRunner.Run(ctx, "systemctl", append(s.mode.SystemctlArgs(), args...)...)
}

func (s *SystemdScheduler) generateUnits(unit string, unblockTime time.Time) (service, timer []byte, err error) {
	config := systemdUnitConfig{
		Unit:        unit,
		ExecStart:   execStartLine(append([]string{s.execPath}, unblockArgs()...)),
		OnCalendar:  unblockTime.Local().Format(onCalendarLayout),
		LogPath:     s.logPath,
	}
	for _, v := range s.env {
		config.Environment = append(config.Environment, environmentLine(v))
	}

	var sbuf, tbuf bytes.Buffer
	if err := serviceTmpl.Execute(&sbuf, config); err != nil {
		return nil, nil, fmt.Errorf("failed to execute service template: %w", err)
	}
	if err := timerTmpl.Execute(&tbuf, config); err != nil {
		return nil, nil, fmt.Errorf("failed to execute timer template: %w", err)
	}
	return sbuf.Bytes(), tbuf.Bytes(), nil
}

// execStartLine quotes arguments containing whitespace the way systemd expects.
func execStartLine(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		if strings.ContainsAny(arg, " \t\"\\") {
			arg = `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(arg) + `"`
		}
		quoted[i] = arg
	}
	return strings.Join(quoted, " ")
}

// environmentLine renders one Environment= assignment, escaping systemd
// specifiers and quoting like ExecStart.
func environmentLine(v envVar) string {
	return execStartLine([]string{strings.ReplaceAll(v.Key+"="+v.Value, "%", "%%")})
}

// Ensure SystemdScheduler implements domain.DaemonScheduler.
var _ domain.DaemonScheduler = (*SystemdScheduler)(nil)
