package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/enough/internal/domain"
)

func TestFileStateStore(t *testing.T) {
	profile := domain.Profile{
		Duration: 125 * time.Second,
		Websites: []string{"https://www.youtube.com", "https://www.reddit.com"},
		Apps:     []string{"/Applications/Slack.app"},
	}
	unblock := time.Unix(1_800_000_125, 0)

	tests := []struct {
		name string
		test func(t *testing.T, store *FileStateStore)
	}{
		{
			name: "load without record returns nil",
			test: func(t *testing.T, store *FileStateStore) {
				state, err := store.Load()
				require.NoError(t, err)
				assert.Nil(t, state)
			},
		},
		{
			name: "save then load round-trips",
			test: func(t *testing.T, store *FileStateStore) {
				require.NoError(t, store.Save("lock-in", profile, unblock))

				state, err := store.Load()
				require.NoError(t, err)
				require.NotNil(t, state)
				assert.Equal(t, "lock-in", state.ProfileName)
				assert.Equal(t, profile, state.Profile)
				assert.True(t, unblock.Equal(state.UnblockTime))
			},
		},
		{
			name: "record uses unix seconds",
			test: func(t *testing.T, store *FileStateStore) {
				require.NoError(t, store.Save("lock-in", profile, unblock))

				data, err := os.ReadFile(filepath.Join(store.Dir(), "current_block.yaml"))
				require.NoError(t, err)
				assert.Contains(t, string(data), "unblock_time_secs: 1800000125")
				assert.Contains(t, string(data), "profile_name: lock-in")
			},
		},
		{
			name: "save overwrites",
			test: func(t *testing.T, store *FileStateStore) {
				require.NoError(t, store.Save("a", profile, unblock))
				require.NoError(t, store.Save("b", profile, unblock.Add(time.Minute)))

				state, err := store.Load()
				require.NoError(t, err)
				assert.Equal(t, "b", state.ProfileName)
			},
		},
		{
			name: "clear removes directory and is idempotent",
			test: func(t *testing.T, store *FileStateStore) {
				require.NoError(t, store.Save("a", profile, unblock))
				require.NoError(t, store.Clear())
				require.NoError(t, store.Clear())

				_, err := os.Stat(store.Dir())
				assert.True(t, os.IsNotExist(err))
				state, err := store.Load()
				require.NoError(t, err)
				assert.Nil(t, state)
			},
		},
		{
			name: "corrupt record is an error",
			test: func(t *testing.T, store *FileStateStore) {
				require.NoError(t, os.MkdirAll(store.Dir(), 0755))
				require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "current_block.yaml"), []byte("profile: [\n"), 0644))

				_, err := store.Load()
				assert.ErrorIs(t, err, domain.ErrCorruptState)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.test(t, NewFileStateStore(filepath.Join(t.TempDir(), "enough")))
		})
	}
}
