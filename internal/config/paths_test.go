package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRuntimeDir(t *testing.T, base, sessionID string) string {
	t.Helper()
	dir := filepath.Join(base, runtimePrefix+sessionID)
	require.NoError(t, os.MkdirAll(dir, 0o700))
	return dir
}

func TestStaleRuntimeDirsExcludesCurrent(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", base)

	makeRuntimeDir(t, base, "current")
	dead := makeRuntimeDir(t, base, "dead")

	stale, err := StaleRuntimeDirs("current")
	require.NoError(t, err)
	assert.Equal(t, []string{dead}, stale)
}

func TestStaleRuntimeDirsSkipsLiveSessions(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", base)

	// A directory whose pid marker names a running process (this test
	// process) belongs to a live session and must be spared.
	live := makeRuntimeDir(t, base, "live")
	require.NoError(t, WritePIDFile(live))

	// A marker naming a long-dead pid does not protect the directory.
	dead := makeRuntimeDir(t, base, "dead")
	require.NoError(t, os.WriteFile(filepath.Join(dead, PIDFileName), []byte("999999999"), 0o600))

	garbled := makeRuntimeDir(t, base, "garbled")
	require.NoError(t, os.WriteFile(filepath.Join(garbled, PIDFileName), []byte("not-a-pid"), 0o600))

	stale, err := StaleRuntimeDirs("current")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{dead, garbled}, stale)
}

func TestStaleRuntimeDirsIgnoresForeignEntries(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", base)

	require.NoError(t, os.MkdirAll(filepath.Join(base, "other-app"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(base, runtimePrefix+"file"), nil, 0o600))

	stale, err := StaleRuntimeDirs("current")
	require.NoError(t, err)
	assert.Empty(t, stale)
}
