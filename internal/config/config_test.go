package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/etc/hosts", cfg.HostsFile)
	assert.Equal(t, "/tmp/enough", cfg.StateDir)
	assert.Equal(t, "/var/lib/enough", cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.CommandTimeout)
	assert.Equal(t, 10*time.Second, cfg.LockTimeout)
	assert.Equal(t, "/var/tmp/enough-unblock.log", cfg.UnblockLog)
	assert.Equal(t, "/tmp/enough.lock", cfg.LockPath())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ENOUGH_HOSTS_FILE", "/tmp/test/hosts")
	t.Setenv("ENOUGH_STATE_DIR", "/tmp/test/state")
	t.Setenv("ENOUGH_LOG_LEVEL", "debug")
	t.Setenv("ENOUGH_COMMAND_TIMEOUT", "5s")
	t.Setenv("ENOUGH_LOCK_TIMEOUT", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test/hosts", cfg.HostsFile)
	assert.Equal(t, "/tmp/test/state", cfg.StateDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.CommandTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, "/var/lib/enough", cfg.DataDir, "untouched fields keep defaults")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ENOUGH_STATE_DIR", "/tmp/test/state")
	t.Setenv("ENOUGH_HOSTS_FILE", "/tmp/test/hosts=1")
	t.Setenv("NOT_ENOUGH_STATE_DIR", "/elsewhere")

	env := EnvOverrides()

	assert.Equal(t, "/tmp/test/state", env["ENOUGH_STATE_DIR"])
	assert.Equal(t, "/tmp/test/hosts=1", env["ENOUGH_HOSTS_FILE"])
	assert.NotContains(t, env, "NOT_ENOUGH_STATE_DIR")
	for key := range env {
		assert.True(t, strings.HasPrefix(key, "ENOUGH_"), key)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad log level", "ENOUGH_LOG_LEVEL", "verbose"},
		{"relative hosts file", "ENOUGH_HOSTS_FILE", "hosts"},
		{"root state dir", "ENOUGH_STATE_DIR", "/"},
		{"zero timeout", "ENOUGH_COMMAND_TIMEOUT", "0s"},
		{"unparsable timeout", "ENOUGH_LOCK_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_LoaderErrors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("default loader", func(t *testing.T) {
		orig := defaultLoader
		defer func() { defaultLoader = orig }()
		defaultLoader = func(*koanf.Koanf) error { return boom }

		_, err := Load()
		assert.ErrorIs(t, err, boom)
	})

	t.Run("env loader", func(t *testing.T) {
		orig := envLoader
		defer func() { envLoader = orig }()
		envLoader = func(*koanf.Koanf) error { return boom }

		_, err := Load()
		assert.ErrorIs(t, err, boom)
	})

	t.Run("validation registration", func(t *testing.T) {
		orig := registerValidation
		defer func() { registerValidation = orig }()
		registerValidation = func(*validator.Validate) error { return boom }

		_, err := Load()
		assert.ErrorIs(t, err, boom)
	})
}
