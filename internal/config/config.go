// Package config loads the runtime settings and the user's profiles file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/eliteGoblin/enough/internal/infra"
)

const envPrefix = "ENOUGH_"

// AppConfig holds runtime settings. Defaults target a real machine; every
// field can be overridden with an ENOUGH_<FIELD> environment variable, which
// is how tests point the engine at temporary files.
type AppConfig struct {
	// HostsFile is the hosts file the block region is written into.
	HostsFile string `koanf:"hosts_file" validate:"required,abs_path"`

	// StateDir holds the active block record. It is removed wholesale on unblock.
	StateDir string `koanf:"state_dir" validate:"required,abs_path,not_root"`

	// DataDir holds the encrypted history database and its key.
	DataDir string `koanf:"data_dir" validate:"required,abs_path,not_root"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// CommandTimeout bounds each launchctl/systemctl/cache flush call.
	CommandTimeout time.Duration `koanf:"command_timeout" validate:"required,gt=0"`

	// LockTimeout bounds how long a command waits for a concurrent one.
	LockTimeout time.Duration `koanf:"lock_timeout" validate:"required,gt=0"`

	// UnblockLog receives the output of the scheduled unblock run.
	UnblockLog string `koanf:"unblock_log" validate:"required,abs_path"`
}

// DEFAULT_APP_CONFIG is used for every field not overridden from the environment.
var DEFAULT_APP_CONFIG = AppConfig{
	HostsFile:      infra.DefaultHostsFile,
	StateDir:       infra.DefaultStateDir,
	DataDir:        infra.DefaultDataDir,
	LogLevel:       "info",
	CommandTimeout: infra.DefaultCommandTimeout,
	LockTimeout:    infra.DefaultLockTimeout,
	UnblockLog:     infra.DefaultUnblockLog,
}

func validAbsPath(fl validator.FieldLevel) bool {
	return filepath.IsAbs(fl.Field().String())
}

// notRoot rejects "/" so a RemoveAll of the directory stays contained.
func notRoot(fl validator.FieldLevel) bool {
	return filepath.Clean(fl.Field().String()) != string(filepath.Separator)
}

var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), strings.TrimSpace(value)
		},
	}), nil)
}

var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

var registerValidation = func(v *validator.Validate) error {
	if err := v.RegisterValidation("abs_path", validAbsPath); err != nil {
		return err
	}
	return v.RegisterValidation("not_root", notRoot)
}

// Load applies defaults, then environment overrides, then validates.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

// EnvOverrides returns the ENOUGH_* variables set in the environment. The
// scheduled unblock run is given the same ones so it resolves the same paths
// as the command that started the block.
func EnvOverrides() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(key, envPrefix) {
			out[key] = value
		}
	}
	return out
}

// LockPath returns the lock file guarding StateDir.
func (c *AppConfig) LockPath() string {
	return infra.LockPathFor(c.StateDir)
}
