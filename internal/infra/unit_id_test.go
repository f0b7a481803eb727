package infra

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnitID(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{
			name: "has correct prefix and valid uuid",
			test: func(t *testing.T) {
				id := newUnitID(LaunchdLabelPrefix)
				assert.True(t, strings.HasPrefix(id, LaunchdLabelPrefix))
				assert.NoError(t, validUnitID(id, LaunchdLabelPrefix))
			},
		},
		{
			name: "generates unique ids",
			test: func(t *testing.T) {
				seen := make(map[string]bool)
				for i := 0; i < 100; i++ {
					id := newUnitID(SystemdUnitPrefix)
					assert.False(t, seen[id], "duplicate id: %s", id)
					seen[id] = true
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func TestValidUnitID_RejectsForeignIDs(t *testing.T) {
	for _, id := range []string{
		"",
		"com.apple.something",
		SystemdUnitPrefix + "../../etc/passwd",
		SystemdUnitPrefix + "not-a-uuid",
	} {
		assert.Error(t, validUnitID(id, SystemdUnitPrefix), id)
	}
}

func TestUnitRecord(t *testing.T) {
	t.Run("load is empty when nothing persisted", func(t *testing.T) {
		rec := unitRecord{stateDir: t.TempDir()}
		id, home, err := rec.load()
		require.NoError(t, err)
		assert.Empty(t, id)
		assert.Empty(t, home)
	})

	t.Run("save creates state dir and round-trips", func(t *testing.T) {
		rec := unitRecord{stateDir: t.TempDir() + "/nested/state"}
		require.NoError(t, rec.save("enough-unblock-x", "/home/alice"))

		id, home, err := rec.load()
		require.NoError(t, err)
		assert.Equal(t, "enough-unblock-x", id)
		assert.Equal(t, "/home/alice", home)
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		rec := unitRecord{stateDir: t.TempDir()}
		require.NoError(t, rec.save("id", "/home"))
		require.NoError(t, rec.clear())
		require.NoError(t, rec.clear())

		id, _, err := rec.load()
		require.NoError(t, err)
		assert.Empty(t, id)
	})
}
