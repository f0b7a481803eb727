package main

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/enough/internal/config"
	"github.com/eliteGoblin/enough/internal/domain"
	"github.com/eliteGoblin/enough/internal/infra"
	"github.com/eliteGoblin/enough/internal/usecase"
)

// app bundles the wired components one command needs.
type app struct {
	cfg     *config.AppConfig
	manager *usecase.BlockManagerImpl
	history domain.HistoryStore
	logger  *zap.Logger
}

// newApp wires config, hosts editor, scheduler, store, lock and history.
// History is optional: when it cannot be opened the app runs without it.
func newApp(cfg *config.AppConfig, logger *zap.Logger, withHistory bool) (*app, error) {
	runner := infra.NewCommandRunner(cfg.CommandTimeout)

	scheduler, err := infra.NewDaemonScheduler(infra.SchedulerConfig{
		StateDir: cfg.StateDir,
		LogPath:  cfg.UnblockLog,
		Env:      config.EnvOverrides(),
		Runner:   runner,
		Logger:   logger.Named("scheduler"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	lock := infra.NewFileLock(cfg.LockPath(), cfg.LockTimeout, infra.NewProcessManager(), logger.Named("lock"))

	manager := usecase.NewBlockManager(
		infra.NewHostsEditor(cfg.HostsFile, runner, logger.Named("hosts")),
		scheduler,
		infra.NewFileStateStore(cfg.StateDir),
		lock,
		infra.RealClock{},
		logger,
	)

	a := &app{cfg: cfg, manager: manager, logger: logger}
	if withHistory {
		h, err := infra.OpenHistory(cfg.DataDir)
		if err != nil {
			logger.Warn("block history unavailable", zap.String("dir", cfg.DataDir), zap.Error(err))
		} else {
			a.history = h
			manager.WithHistory(h)
		}
	}
	return a, nil
}

func (a *app) Close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("failed to close history", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// createLogger logs human-readable lines to stderr for interactive commands.
func createLogger(level string) *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(parseLevel(level))
	config.DisableStacktrace = true
	config.DisableCaller = true
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")

	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// createUnblockLogger logs JSON to the unblock log, which is the only place
// output of the scheduled run can be read back from.
func createUnblockLogger(cfg *config.AppConfig) *zap.Logger {
	logCfg := zap.NewProductionConfig()
	logCfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.LogLevel))
	logCfg.OutputPaths = []string{cfg.UnblockLog}
	logCfg.ErrorOutputPaths = []string{cfg.UnblockLog}
	logCfg.EncoderConfig.TimeKey = "time"
	logCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := logCfg.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func parseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}
