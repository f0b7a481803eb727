package infra

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/google/renameio/v2"

	"github.com/eliteGoblin/enough/internal/domain"
)

// writeFileAtomic writes data with full durability guarantees using renameio:
// temp file in the same directory, fsync, then rename over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := renameio.WriteFile(path, data, perm); err != nil {
		return classifyFSError("write", path, err)
	}
	return nil
}

// replaceFile is writeFileAtomic for files that may not be replaceable by
// rename, e.g. a bind-mounted /etc/hosts inside a container. In that case the
// file is rewritten in place.
func replaceFile(path string, data []byte, perm os.FileMode) error {
	err := renameio.WriteFile(path, data, perm)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EBUSY) && !errors.Is(err, syscall.EXDEV) {
		return classifyFSError("write", path, err)
	}

	f, openErr := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, perm)
	if openErr != nil {
		return classifyFSError("write", path, openErr)
	}
	if _, werr := f.Write(data); werr != nil {
		f.Close()
		return classifyFSError("write", path, werr)
	}
	if serr := f.Sync(); serr != nil {
		f.Close()
		return classifyFSError("sync", path, serr)
	}
	return f.Close()
}

// fileMode returns the permission bits of path, or fallback when it cannot be stat'ed.
func fileMode(path string, fallback os.FileMode) os.FileMode {
	info, err := os.Stat(path)
	if err != nil {
		return fallback
	}
	return info.Mode().Perm()
}

// removeIfExists deletes path, ignoring a missing file.
func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return classifyFSError("remove", path, err)
	}
	return nil
}

// classifyFSError maps permission failures onto domain.ErrPermissionDenied.
func classifyFSError(op, path string, err error) error {
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: cannot %s %s (run with sudo): %v", domain.ErrPermissionDenied, op, path, err)
	}
	return fmt.Errorf("failed to %s %s: %w", op, path, err)
}
