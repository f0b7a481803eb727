package domain

import "errors"

var (
	// ErrPermissionDenied is returned when a protected file (hosts file, unit
	// directory) cannot be read or written. Expected when not run with sudo.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrExternalCommand is returned when an OS command exits non-zero.
	ErrExternalCommand = errors.New("external command failed")

	// ErrCacheFlushFailed is warning-class: the hosts file was already written.
	ErrCacheFlushFailed = errors.New("failed to flush DNS cache")

	// ErrCorruptState is returned when the block record exists but cannot be decoded.
	ErrCorruptState = errors.New("corrupt block state")

	// ErrNotBlocked means no active block record exists.
	ErrNotBlocked = errors.New("no active block")

	// ErrAlreadyBlocked is returned when a block start is requested while one is active.
	ErrAlreadyBlocked = errors.New("a block is already active, please wait until it expires")

	// ErrInvalidProfile is returned for profiles rejected at the configuration boundary.
	ErrInvalidProfile = errors.New("invalid profile")

	// ErrLocked is returned when another invocation holds the state lock.
	ErrLocked = errors.New("another enough invocation is in progress")

	// ErrUnsupportedPlatform is returned by the scheduler on platforms without an implementation.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)
