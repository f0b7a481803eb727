package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/enough/internal/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCompletionHidesUnblockCommand(t *testing.T) {
	out, err := execute(t, "__complete", "")
	require.NoError(t, err)

	assert.Contains(t, out, "block")
	assert.Contains(t, out, "status")
	assert.NotContains(t, out, domain.UnblockCommand)
}

func TestCompletionsRejectsUnknownShell(t *testing.T) {
	_, err := execute(t, "completions", "tcsh")
	assert.Error(t, err)
}

func TestInitWritesSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "enough.yaml")

	out, err := execute(t, "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "default-profile: lock-in")
	assert.FileExists(t, path)

	_, err = execute(t, "init", "-o", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestProfilesListsSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enough.yaml")
	_, err := execute(t, "init", "-o", path)
	require.NoError(t, err)

	out, err := execute(t, "profiles", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "lock-in")
	assert.Contains(t, out, "(default)")
	assert.Contains(t, out, "wind-down")
}

func TestStatusAgainstTempState(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ENOUGH_STATE_DIR", filepath.Join(dir, "state"))
	t.Setenv("ENOUGH_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("ENOUGH_HOSTS_FILE", filepath.Join(dir, "hosts"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hosts"), nil, 0644))

	out, err := execute(t, "status", "--line")
	require.NoError(t, err)
	assert.Equal(t, "🟢 Unblocked", out)
	statusLineFlag = false
}
