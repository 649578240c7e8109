// Package config handles settings persistence and path management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const (
	// AppDirName is the per-user configuration directory name.
	AppDirName = "rivaltray"

	// SettingsFileName is the settings file within the config directory.
	SettingsFileName = "settings.yaml"

	// PIDFileName is the liveness marker inside a session runtime
	// directory. The startup sweep spares directories whose recorded
	// process is still running.
	PIDFileName = "rivaltray.pid"

	// runtimePrefix prefixes per-session runtime directories so stale
	// ones from crashed runs are recognizable.
	runtimePrefix = "rivaltray-"
)

// Dir returns the path to the rivaltray config directory
// (~/.config/rivaltray on XDG systems).
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, AppDirName), nil
}

// SettingsFile returns the path to settings.yaml.
func SettingsFile() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SettingsFileName), nil
}

// EnsureDir creates the config directory if it doesn't exist.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// RuntimeBaseDir returns the per-user runtime storage location,
// preferring $XDG_RUNTIME_DIR and falling back to the system temp dir.
func RuntimeBaseDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}

// SessionRuntimeDir returns the icon cache directory for one session.
// The directory itself is created (0700) by the icon cache.
func SessionRuntimeDir(sessionID string) string {
	return filepath.Join(RuntimeBaseDir(), runtimePrefix+sessionID)
}

// WritePIDFile records the owning process id inside a session runtime
// directory so later sweeps can tell live sessions from abandoned ones.
func WritePIDFile(dir string) error {
	path := filepath.Join(dir, PIDFileName)
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

// sessionAlive reports whether the pid recorded in dir still belongs to
// a running process. A missing or unreadable marker counts as dead.
func sessionAlive(dir string) bool {
	raw, err := os.ReadFile(filepath.Join(dir, PIDFileName))
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// StaleRuntimeDirs lists runtime directories left behind by previous
// sessions (crashed runs never remove theirs). The current session's
// directory and directories whose pid marker names a live process are
// excluded.
func StaleRuntimeDirs(currentSessionID string) ([]string, error) {
	entries, err := os.ReadDir(RuntimeBaseDir())
	if err != nil {
		return nil, fmt.Errorf("read runtime base dir: %w", err)
	}

	current := runtimePrefix + currentSessionID
	var stale []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == current {
			continue
		}
		if !strings.HasPrefix(e.Name(), runtimePrefix) || e.Name() == runtimePrefix {
			continue
		}
		path := filepath.Join(RuntimeBaseDir(), e.Name())
		if sessionAlive(path) {
			continue
		}
		stale = append(stale, path)
	}
	return stale, nil
}
