package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/enough/internal/domain"
)

const (
	// DefaultStateDir holds the active block record and the unit identifier.
	DefaultStateDir = "/tmp/enough"

	stateFileName = "current_block.yaml"
)

// blockStateFile is the on-disk shape of current_block.yaml.
type blockStateFile struct {
	ProfileName     string      `yaml:"profile_name"`
	Profile         profileFile `yaml:"profile"`
	UnblockTimeSecs int64       `yaml:"unblock_time_secs"`
}

type profileFile struct {
	Duration string   `yaml:"duration"`
	Websites []string `yaml:"websites,omitempty"`
	Apps     []string `yaml:"apps,omitempty"`
}

// FileStateStore implements domain.BlockStateStore with a YAML file.
type FileStateStore struct {
	dir string
}

// NewFileStateStore creates a store rooted at dir.
func NewFileStateStore(dir string) *FileStateStore {
	return &FileStateStore{dir: dir}
}

// Dir returns the state directory.
func (s *FileStateStore) Dir() string {
	return s.dir
}

func (s *FileStateStore) path() string {
	return filepath.Join(s.dir, stateFileName)
}

// Save atomically overwrites the record.
func (s *FileStateStore) Save(name string, profile domain.Profile, unblockTime time.Time) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return classifyFSError("create", s.dir, err)
	}

	data, err := yaml.Marshal(blockStateFile{
		ProfileName: name,
		Profile: profileFile{
			Duration: profile.Duration.String(),
			Websites: profile.Websites,
			Apps:     profile.Apps,
		},
		UnblockTimeSecs: unblockTime.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode block state: %w", err)
	}
	return writeFileAtomic(s.path(), data, 0644)
}

// Load returns nil, nil when no record exists.
func (s *FileStateStore) Load() (*domain.BlockState, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, classifyFSError("read", s.path(), err)
	}

	var file blockStateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w %s: %v", domain.ErrCorruptState, s.path(), err)
	}

	var duration time.Duration
	if file.Profile.Duration != "" {
		duration, err = time.ParseDuration(file.Profile.Duration)
		if err != nil {
			return nil, fmt.Errorf("%w %s: %v", domain.ErrCorruptState, s.path(), err)
		}
	}

	return &domain.BlockState{
		ProfileName: file.ProfileName,
		Profile: domain.Profile{
			Duration: duration,
			Websites: file.Profile.Websites,
			Apps:     file.Profile.Apps,
		},
		UnblockTime: time.Unix(file.UnblockTimeSecs, 0),
	}, nil
}

// Clear removes the whole state directory. Safe when absent.
func (s *FileStateStore) Clear() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return classifyFSError("remove", s.dir, err)
	}
	return nil
}

// Ensure FileStateStore implements domain.BlockStateStore.
var _ domain.BlockStateStore = (*FileStateStore)(nil)
