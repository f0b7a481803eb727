package infra

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

// ExecMode represents the privilege level the unblock unit is installed with.
type ExecMode string

const (
	// ExecModeUser installs per-user units (LaunchAgent / systemd --user).
	ExecModeUser ExecMode = "user"
	// ExecModeSystem installs system units (LaunchDaemon / system systemd), root required.
	ExecModeSystem ExecMode = "system"
)

const (
	systemLaunchdDir = "/Library/LaunchDaemons"
	systemSystemdDir = "/etc/systemd/system"
)

// ExecModeConfig holds unit locations and service-manager arguments for a mode.
type ExecModeConfig struct {
	Mode   ExecMode
	IsRoot bool
	UID    int    // uid of the real user, used for the gui/<uid> launchd domain
	Home   string // real user's home, even under sudo

	// System unit directories. Only consulted in system mode; overridable in tests.
	LaunchDaemonsDir string
	SystemUnitDir    string
}

// DetectExecMode determines the execution mode based on effective UID.
func DetectExecMode() *ExecModeConfig {
	return NewExecModeConfig(os.Geteuid() == 0, GetRealUserHome(), realUID())
}

// NewExecModeConfig builds the config for an explicit privilege level.
func NewExecModeConfig(isRoot bool, home string, uid int) *ExecModeConfig {
	mode := ExecModeUser
	if isRoot {
		mode = ExecModeSystem
	}
	return &ExecModeConfig{
		Mode:             mode,
		IsRoot:           isRoot,
		UID:              uid,
		Home:             home,
		LaunchDaemonsDir: systemLaunchdDir,
		SystemUnitDir:    systemSystemdDir,
	}
}

// LaunchdDir returns the plist directory for units owned by home.
func (c *ExecModeConfig) LaunchdDir(home string) string {
	if c.Mode == ExecModeSystem {
		return c.LaunchDaemonsDir
	}
	return filepath.Join(home, "Library", "LaunchAgents")
}

// LaunchctlDomain returns the launchctl bootstrap domain target.
func (c *ExecModeConfig) LaunchctlDomain() string {
	if c.Mode == ExecModeSystem {
		return "system"
	}
	return "gui/" + strconv.Itoa(c.UID)
}

// SystemdDir returns the unit directory for units owned by home.
func (c *ExecModeConfig) SystemdDir(home string) string {
	if c.Mode == ExecModeSystem {
		return c.SystemUnitDir
	}
	return filepath.Join(home, ".config", "systemd", "user")
}

// SystemctlArgs returns the scope arguments prepended to every systemctl call.
func (c *ExecModeConfig) SystemctlArgs() []string {
	if c.Mode == ExecModeSystem {
		return nil
	}
	return []string{"--user"}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// HasRootPrivileges reports whether the process runs through sudo or as root.
func HasRootPrivileges() bool {
	return os.Getenv("SUDO_USER") != "" || os.Geteuid() == 0
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns /var/root, so we use SUDO_USER to find the real user.
// Symlinks are resolved so the persisted path stays valid for the scheduled unit.
func GetRealUserHome() string {
	home := ""
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			home = u.HomeDir
		}
	}
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	if resolved, err := filepath.EvalSymlinks(home); err == nil {
		return resolved
	}
	return home
}

func realUID() int {
	if uid := os.Getenv("SUDO_UID"); uid != "" {
		if n, err := strconv.Atoi(uid); err == nil {
			return n
		}
	}
	return os.Getuid()
}
