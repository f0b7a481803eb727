//go:build linux

package infra

import "github.com/eliteGoblin/enough/internal/domain"

func newPlatformScheduler(cfg SchedulerConfig) domain.DaemonScheduler {
	return NewSystemdScheduler(cfg)
}
