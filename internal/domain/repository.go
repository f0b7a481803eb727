package domain

import (
	"context"
	"time"
)

// HostsEditor owns the delimited block region inside the system hosts file.
type HostsEditor interface {
	// Apply replaces any existing region with one denying the given websites,
	// then flushes the name-resolution cache. A cache flush failure is
	// reported wrapped in ErrCacheFlushFailed after the file has been written.
	Apply(ctx context.Context, websites []string) error

	// Revert removes any region and flushes the cache. No-op on content when
	// no region exists.
	Revert(ctx context.Context) error
}

// DaemonScheduler installs and removes the OS-native one-shot unit that
// re-invokes this binary to lift the block.
// Implementations: launchd (macOS), systemd (Linux).
type DaemonScheduler interface {
	// Schedule installs a unit firing at unblockTime and persists its identifier.
	Schedule(ctx context.Context, unblockTime time.Time) error

	// Remove tears down the unit named by the persisted identifier.
	// No-op when no identifier is persisted.
	Remove(ctx context.Context) error

	// ScheduledID returns the persisted identifier, empty when none.
	ScheduledID() (string, error)

	// Name returns the backend name (e.g. "launchd", "systemd").
	Name() string
}

// BlockStateStore persists the single active block record.
// Implementation: YAML file in a well-known temporary directory.
type BlockStateStore interface {
	// Save overwrites the record.
	Save(name string, profile Profile, unblockTime time.Time) error

	// Load returns nil, nil when no record exists and wraps ErrCorruptState
	// when the record cannot be decoded.
	Load() (*BlockState, error)

	// Clear removes the state directory. Safe when absent.
	Clear() error

	// Dir returns the state directory.
	Dir() string
}

// BlockManager orchestrates the block/unblock lifecycle.
type BlockManager interface {
	// BlockItems starts a block. Callers check that no block is active first.
	BlockItems(ctx context.Context, name string, profile Profile, duration time.Duration) error

	// UnblockAll lifts any block. Returns ErrNotBlocked, after performing the
	// cleanup anyway, when no record existed.
	UnblockAll(ctx context.Context) error

	// GetStatus never mutates state.
	GetStatus() (Status, error)
}

// Locker provides cross-process mutual exclusion for mutating operations.
type Locker interface {
	// Lock blocks until the lock is held or ctx/timeout expires.
	Lock(ctx context.Context) (unlock func(), err error)
}

// HistoryStore journals block starts and completions.
// Implementation: SQLCipher encrypted SQLite database.
type HistoryStore interface {
	// Record appends an entry.
	Record(entry HistoryEntry) error

	// Recent returns up to limit entries, newest first.
	Recent(limit int) ([]HistoryEntry, error)

	// Close releases resources (e.g., database connection).
	Close() error
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// ProcessManager handles OS process lookups.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// NameOf returns the process name for a PID.
	NameOf(pid int) (string, error)
}

// Clock abstracts time for the lifecycle engine.
type Clock interface {
	Now() time.Time
}
