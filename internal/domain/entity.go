// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

const (
	// HostsMarkerStart opens the block region inside the hosts file.
	HostsMarkerStart = "# ENOUGH BLOCK START"
	// HostsMarkerEnd closes the block region inside the hosts file.
	HostsMarkerEnd = "# ENOUGH BLOCK END"

	// UnblockCommand is the hidden subcommand the scheduled unit invokes.
	UnblockCommand = "___zzzunblock"
	// UnblockFixFlag must accompany UnblockCommand for it to act.
	UnblockFixFlag = "--fix"
)

// Profile is a named blocking policy, borrowed from the configuration layer.
type Profile struct {
	Duration time.Duration
	Websites []string // http/https URLs, order preserved
	Apps     []string // validated to exist, not enforced
}

// Clone returns a deep copy so a block keeps its own snapshot even if the
// configuration file changes while the block is active.
func (p Profile) Clone() Profile {
	out := Profile{Duration: p.Duration}
	if p.Websites != nil {
		out.Websites = append([]string(nil), p.Websites...)
	}
	if p.Apps != nil {
		out.Apps = append([]string(nil), p.Apps...)
	}
	return out
}

// BlockState is the single persisted record of the active block.
type BlockState struct {
	ProfileName string
	Profile     Profile
	UnblockTime time.Time // absolute, survives process exit
}

// BlockStatus is the explicit two-state machine of the engine.
type BlockStatus int

const (
	StatusUnblocked BlockStatus = iota
	StatusBlocked
)

// String returns a human-readable status name.
func (s BlockStatus) String() string {
	switch s {
	case StatusBlocked:
		return "blocked"
	case StatusUnblocked:
		return "unblocked"
	default:
		return "unknown"
	}
}

// Status is what status queries report.
// Every field but State is only set when State is StatusBlocked.
type Status struct {
	State       BlockStatus
	ProfileName string
	Profile     Profile
	UnblockTime time.Time

	Scheduler string // backend name, e.g. "systemd"
	UnitID    string // persisted unit identifier; empty if the unit record is missing
}

// IsBlocked reports whether a block record exists.
func (s Status) IsBlocked() bool {
	return s.State == StatusBlocked
}

// Remaining returns unblock time minus now. It may be zero or negative when
// the scheduled unit has not fired yet.
func (s Status) Remaining(now time.Time) time.Duration {
	if !s.IsBlocked() {
		return 0
	}
	return s.UnblockTime.Sub(now)
}

// HistoryEvent identifies what a history entry records.
type HistoryEvent string

const (
	EventBlockStarted HistoryEvent = "block_started"
	EventUnblocked    HistoryEvent = "unblocked"
)

// HistoryEntry is one row of the block history journal.
type HistoryEntry struct {
	ID          int64
	Event       HistoryEvent
	ProfileName string
	Websites    int
	UnblockTime time.Time
	RecordedAt  time.Time
}
