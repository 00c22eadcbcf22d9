package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devtrack/internal/platform/config"
)

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := filepath.Join(dir, "store", "data.json")
	content := "data_file: " + data + "\naddr: 127.0.0.1:4000\nlock_timeout: 2s\nlog_level: warn\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, data, cfg.DataFile)
	assert.Equal(t, filepath.Join(dir, "store", "devtrack.db"), cfg.DBPath)
	assert.Equal(t, "127.0.0.1:4000", cfg.Addr)
	assert.Equal(t, 2*time.Second, cfg.LockTimeout)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, data+".lock", cfg.LockPath())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: 127.0.0.1:4000\n"), 0o644))
	t.Setenv("DEVTRACK_ADDR", "0.0.0.0:9999")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.Addr)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestWithDataFileKeepsExplicitDBPath(t *testing.T) {
	cfg := config.Config{DataFile: "/a/data.json", DBPath: "/custom/x.db"}
	next, err := cfg.WithDataFile("/b/data.json")
	require.NoError(t, err)
	assert.Equal(t, "/custom/x.db", next.DBPath)

	derived, err := config.Config{DataFile: "/a/data.json"}.WithDataFile("/b/data.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/b", "devtrack.db"), derived.DBPath)

	_, err = cfg.WithDataFile(" ")
	assert.Error(t, err)
}

func TestLocation(t *testing.T) {
	loc, err := config.Config{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = config.Config{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	_, err = config.Config{Timezone: "Mars/Olympus"}.Location()
	assert.Error(t, err)
}
