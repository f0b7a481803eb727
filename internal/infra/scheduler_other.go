//go:build !darwin && !linux

package infra

import "github.com/eliteGoblin/enough/internal/domain"

func newPlatformScheduler(_ SchedulerConfig) domain.DaemonScheduler {
	return unsupportedScheduler{}
}
