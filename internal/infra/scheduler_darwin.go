//go:build darwin

package infra

import "github.com/eliteGoblin/enough/internal/domain"

func newPlatformScheduler(cfg SchedulerConfig) domain.DaemonScheduler {
	return NewLaunchdScheduler(cfg)
}
