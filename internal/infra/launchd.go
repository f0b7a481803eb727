package infra

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eliteGoblin/enough/internal/domain"
)

// One-shot unblock job. launchd documents no Second key for
// StartCalendarInterval; it is written anyway and ignored where unsupported,
// which delays the run to the enclosing minute at most.
const unblockPlistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{xml .Label}}</string>

    <key>ProgramArguments</key>
    <array>
{{- range .ProgramArguments}}
        <string>{{xml .}}</string>
{{- end}}
    </array>
{{- if .Environment}}

    <key>EnvironmentVariables</key>
    <dict>
{{- range .Environment}}
        <key>{{xml .Key}}</key>
        <string>{{xml .Value}}</string>
{{- end}}
    </dict>
{{- end}}

    <key>StartCalendarInterval</key>
    <dict>
        <key>Month</key>
        <integer>{{.Month}}</integer>
        <key>Day</key>
        <integer>{{.Day}}</integer>
        <key>Hour</key>
        <integer>{{.Hour}}</integer>
        <key>Minute</key>
        <integer>{{.Minute}}</integer>
        <key>Second</key>
        <integer>{{.Second}}</integer>
    </dict>

    <key>RunAtLoad</key>
    <false/>

    <key>StandardOutPath</key>
    <string>{{xml .LogPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{xml .LogPath}}</string>
</dict>
</plist>
`

const envBinary = "/usr/bin/env"

var plistTmpl = template.Must(template.New("plist").Funcs(template.FuncMap{
	"xml": xmlEscape,
}).Parse(unblockPlistTemplate))

type plistConfig struct {
	Label            string
	ProgramArguments []string
	Environment      []envVar
	Month            int
	Day              int
	Hour             int
	Minute           int
	Second           int
	LogPath          string
}

// LaunchdScheduler implements domain.DaemonScheduler with a launchd job.
// System mode installs a LaunchDaemon; user mode a LaunchAgent whose command
// is prefixed with sudo.
type LaunchdScheduler struct {
	mode      *ExecModeConfig
	record    unitRecord
	execPath  string
	logPath   string
	env       []envVar
	cmdRunner CommandRunner
	logger    *zap.Logger
}

// NewLaunchdScheduler creates a launchd scheduler.
func NewLaunchdScheduler(cfg SchedulerConfig) *LaunchdScheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LaunchdScheduler{
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
func (s *LaunchdScheduler) Name() string {
	return "launchd"
}

// ScheduledID returns the persisted job label.
func (s *LaunchdScheduler) ScheduledID() (string, error) {
	id, _, err := s.record.load()
	return id, err
}

// Schedule writes and bootstraps a job firing at unblockTime.
func (s *LaunchdScheduler) Schedule(ctx context.Context, unblockTime time.Time) error {
	label := newUnitID(LaunchdLabelPrefix)
	home := s.mode.Home
	dir := s.mode.LaunchdDir(home)

	content, err := s.generatePlistContent(label, unblockTime)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return classifyFSError("create", dir, err)
	}
	plistPath := filepath.Join(dir, label+".plist")
	if err := writeFileAtomic(plistPath, content, 0644); err != nil {
		return err
	}

	// Persist before loading so a failed bootstrap can still be cleaned up.
	if err := s.record.save(label, home); err != nil {
		return err
	}

	if err := s.cmdRunner.Run(ctx, "launchctl", "bootstrap", s.mode.LaunchctlDomain(), plistPath); err != nil {
		return fmt.Errorf("failed to load launchd job %s: %w", label, err)
	}

	s.logger.Info("scheduled unblock job",
		zap.String("label", label),
		zap.String("plist", plistPath),
		zap.Time("unblock_time", unblockTime))
	return nil
}

// Remove boots out and deletes the persisted job. No-op when none is persisted.
func (s *LaunchdScheduler) Remove(ctx context.Context) error {
	label, home, err := s.record.load()
	if err != nil {
		return err
	}
	if label == "" {
		return nil
	}
	if err := validUnitID(label, LaunchdLabelPrefix); err != nil {
		return multierr.Append(err, s.record.clear())
	}
	if home == "" {
		home = s.mode.Home
	}

	plistPath := filepath.Join(s.mode.LaunchdDir(home), label+".plist")
	if err := s.cmdRunner.Run(ctx, "launchctl", "bootout", s.mode.LaunchctlDomain(), plistPath); err != nil {
		// Already fired jobs may be gone from launchd; the file still has to go.
		s.logger.Warn("failed to unload launchd job",
			zap.String("label", label),
			zap.Error(err))
	}

	err = multierr.Append(removeIfExists(plistPath), s.record.clear())
	if err == nil {
		s.logger.Info("removed unblock job", zap.String("label", label))
	}
	return err
}

// generatePlistContent renders the job for label firing at unblockTime (local time).
func (s *LaunchdScheduler) generatePlistContent(label string, unblockTime time.Time) ([]byte, error) {
	args := append([]string{s.execPath}, unblockArgs()...)
	if s.mode.Mode == ExecModeUser {
		// sudo resets the environment, so overrides go through env(1).
		if len(s.env) > 0 {
			prefix := []string{envBinary}
			for _, v := range s.env {
				prefix = append(prefix, v.Key+"="+v.Value)
			}
			args = append(prefix, args...)
		}
		args = append([]string{"sudo"}, args...)
	}

	local := unblockTime.Local()
	config := plistConfig{
		Label:            label,
		ProgramArguments: args,
		Environment:      s.env,
		Month:            int(local.Month()),
		Day:              local.Day(),
		Hour:             local.Hour(),
		Minute:           local.Minute(),
		Second:           local.Second(),
		LogPath:          s.logPath,
	}

	var buf bytes.Buffer
	if err := plistTmpl.Execute(&buf, config); err != nil {
		return nil, fmt.Errorf("failed to execute plist template: %w", err)
	}
	return buf.Bytes(), nil
}

func xmlEscape(s string) (string, error) {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Ensure LaunchdScheduler implements domain.DaemonScheduler.
var _ domain.DaemonScheduler = (*LaunchdScheduler)(nil)
