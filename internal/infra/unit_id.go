package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	// LaunchdLabelPrefix prefixes every unblock job label.
	LaunchdLabelPrefix = "com.enough.unblock."
	// SystemdUnitPrefix prefixes every unblock unit name.
	SystemdUnitPrefix = "enough-unblock-"

	daemonIDFile   = "daemon_id"
	daemonHomeFile = "daemon_home"
)

// newUnitID returns a fresh identifier like "com.enough.unblock.<uuid>".
func newUnitID(prefix string) string {
	return prefix + uuid.NewString()
}

// unitRecord persists the identifier and owning home of the scheduled unit
// inside the state directory, so a later invocation can tear it down.
type unitRecord struct {
	stateDir string
}

func (r unitRecord) idPath() string   { return filepath.Join(r.stateDir, daemonIDFile) }
func (r unitRecord) homePath() string { return filepath.Join(r.stateDir, daemonHomeFile) }

func (r unitRecord) save(id, home string) error {
	if err := os.MkdirAll(r.stateDir, 0755); err != nil {
		return classifyFSError("create", r.stateDir, err)
	}
	if err := writeFileAtomic(r.idPath(), []byte(id+"\n"), 0644); err != nil {
		return err
	}
	return writeFileAtomic(r.homePath(), []byte(home+"\n"), 0644)
}

// load returns empty strings when nothing is persisted.
func (r unitRecord) load() (id, home string, err error) {
	id, err = readTrimmed(r.idPath())
	if err != nil {
		return "", "", err
	}
	if id == "" {
		return "", "", nil
	}
	home, err = readTrimmed(r.homePath())
	if err != nil {
		return "", "", err
	}
	return id, home, nil
}

func (r unitRecord) clear() error {
	if err := removeIfExists(r.idPath()); err != nil {
		return err
	}
	return removeIfExists(r.homePath())
}

func readTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", classifyFSError("read", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// validUnitID guards against a tampered id file steering file removal
// outside the unit directory.
func validUnitID(id, prefix string) error {
	if !strings.HasPrefix(id, prefix) || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("unexpected unit identifier %q", id)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(id, prefix)); err != nil {
		return fmt.Errorf("unexpected unit identifier %q: %w", id, err)
	}
	return nil
}
