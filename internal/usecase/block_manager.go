// Package usecase contains application business logic.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eliteGoblin/enough/internal/domain"
)

// BlockManagerImpl implements domain.BlockManager.
type BlockManagerImpl struct {
	hosts     domain.HostsEditor
	scheduler domain.DaemonScheduler
	store     domain.BlockStateStore
	locker    domain.Locker
	history   domain.HistoryStore // optional
	clock     domain.Clock
	logger    *zap.Logger
}

// NewBlockManager creates the lifecycle engine.
func NewBlockManager(
	hosts domain.HostsEditor,
	scheduler domain.DaemonScheduler,
	store domain.BlockStateStore,
	locker domain.Locker,
	clock domain.Clock,
	logger *zap.Logger,
) *BlockManagerImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlockManagerImpl{
		hosts:     hosts,
		scheduler: scheduler,
		store:     store,
		locker:    locker,
		clock:     clock,
		logger:    logger,
	}
}

// WithHistory journals block starts and completions into h.
func (m *BlockManagerImpl) WithHistory(h domain.HistoryStore) *BlockManagerImpl {
	m.history = h
	return m
}

// StartBlock is BlockItems for user requests: it refuses to replace an
// existing record, checked under the same lock as the block itself.
func (m *BlockManagerImpl) StartBlock(ctx context.Context, name string, profile domain.Profile, duration time.Duration) error {
	return m.block(ctx, name, profile, duration, true)
}

// BlockItems starts a block, replacing any stale one.
func (m *BlockManagerImpl) BlockItems(ctx context.Context, name string, profile domain.Profile, duration time.Duration) error {
	return m.block(ctx, name, profile, duration, false)
}

func (m *BlockManagerImpl) block(ctx context.Context, name string, profile domain.Profile, duration time.Duration, exclusive bool) error {
	if duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %s", domain.ErrInvalidProfile, duration)
	}

	unlock, err := m.locker.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if exclusive {
		state, err := m.store.Load()
		switch {
		case errors.Is(err, domain.ErrCorruptState):
			m.logger.Warn("block record unreadable, treating it as stale", zap.Error(err))
		case err != nil:
			return err
		case state != nil:
			return domain.ErrAlreadyBlocked
		}
	}

	if err := m.unblockLocked(ctx); err != nil && !errors.Is(err, domain.ErrNotBlocked) {
		return fmt.Errorf("failed to clear previous block: %w", err)
	}

	if len(profile.Websites) > 0 {
		if err := m.hosts.Apply(ctx, profile.Websites); err != nil {
			if !errors.Is(err, domain.ErrCacheFlushFailed) {
				return fmt.Errorf("failed to block websites: %w", err)
			}
			m.logger.Warn("websites blocked but cache flush failed; open tabs may still resolve", zap.Error(err))
		}
	}

	unblockTime := m.clock.Now().Add(duration)

	if err := m.scheduler.Schedule(ctx, unblockTime); err != nil {
		m.rollback(ctx)
		return fmt.Errorf("failed to schedule unblock with %s: %w", m.scheduler.Name(), err)
	}

	snapshot := profile.Clone()
	snapshot.Duration = duration
	if err := m.store.Save(name, snapshot, unblockTime); err != nil {
		m.rollback(ctx)
		return fmt.Errorf("failed to save block state: %w", err)
	}

	m.logger.Info("block started",
		zap.String("profile", name),
		zap.Int("websites", len(profile.Websites)),
		zap.Int("apps", len(profile.Apps)),
		zap.Duration("duration", duration),
		zap.Time("unblock_time", unblockTime))

	m.record(domain.HistoryEntry{
		Event:       domain.EventBlockStarted,
		ProfileName: name,
		Websites:    len(profile.Websites),
		UnblockTime: unblockTime,
	})
	return nil
}

// rollback undoes a half-started block so no block runs without a way to end it.
func (m *BlockManagerImpl) rollback(ctx context.Context) {
	if err := m.hosts.Revert(ctx); err != nil && !errors.Is(err, domain.ErrCacheFlushFailed) {
		m.logger.Error("rollback: failed to revert hosts file", zap.Error(err))
	}
	if err := m.scheduler.Remove(ctx); err != nil {
		m.logger.Warn("rollback: failed to remove unblock unit", zap.Error(err))
	}
	if err := m.store.Clear(); err != nil {
		m.logger.Warn("rollback: failed to clear state", zap.Error(err))
	}
}

// UnblockAll lifts any block. Every step runs even when an earlier one
// fails. Returns domain.ErrNotBlocked, after cleaning up, when no record existed.
// An undecodable record counts as a block and is discarded.
func (m *BlockManagerImpl) UnblockAll(ctx context.Context) error {
	unlock, err := m.locker.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return m.unblockLocked(ctx)
}

func (m *BlockManagerImpl) unblockLocked(ctx context.Context) error {
	state, loadErr := m.store.Load()
	var errs error
	corrupt := errors.Is(loadErr, domain.ErrCorruptState)
	if corrupt {
		m.logger.Warn("discarding unreadable block record", zap.Error(loadErr))
	} else {
		errs = loadErr
	}

	if err := m.hosts.Revert(ctx); err != nil {
		if errors.Is(err, domain.ErrCacheFlushFailed) {
			m.logger.Warn("websites unblocked but cache flush failed", zap.Error(err))
		} else {
			errs = multierr.Append(errs, fmt.Errorf("failed to revert hosts file: %w", err))
		}
	}
	if err := m.scheduler.Remove(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("failed to remove unblock unit: %w", err))
	}
	if err := m.store.Clear(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("failed to clear block state: %w", err))
	}

	if errs != nil {
		return errs
	}
	if corrupt {
		m.logger.Info("block lifted", zap.String("profile", "unknown"))
		return nil
	}
	if state == nil {
		return domain.ErrNotBlocked
	}

	m.logger.Info("block lifted", zap.String("profile", state.ProfileName))
	m.record(domain.HistoryEntry{
		Event:       domain.EventUnblocked,
		ProfileName: state.ProfileName,
		Websites:    len(state.Profile.Websites),
		UnblockTime: state.UnblockTime,
	})
	return nil
}

// GetStatus reports the persisted record and the scheduled unit id without
// touching anything.
func (m *BlockManagerImpl) GetStatus() (domain.Status, error) {
	state, err := m.store.Load()
	if err != nil {
		return domain.Status{}, err
	}
	if state == nil {
		return domain.Status{State: domain.StatusUnblocked}, nil
	}
	unitID, err := m.scheduler.ScheduledID()
	if err != nil {
		m.logger.Warn("failed to read scheduled unit id", zap.Error(err))
	}
	return domain.Status{
		State:       domain.StatusBlocked,
		ProfileName: state.ProfileName,
		Profile:     state.Profile,
		UnblockTime: state.UnblockTime,
		Scheduler:   m.scheduler.Name(),
		UnitID:      unitID,
	}, nil
}

// record journals entry; history is advisory and never fails the lifecycle.
func (m *BlockManagerImpl) record(entry domain.HistoryEntry) {
	if m.history == nil {
		return
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = m.clock.Now()
	}
	if err := m.history.Record(entry); err != nil {
		m.logger.Warn("failed to record history", zap.String("event", string(entry.Event)), zap.Error(err))
	}
}

// Ensure BlockManagerImpl implements domain.BlockManager.
var _ domain.BlockManager = (*BlockManagerImpl)(nil)
