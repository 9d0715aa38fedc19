package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://api.github.com/graphql", cfg.Endpoint)
	assert.Equal(t, 60, cfg.AutoSyncSeconds)
	assert.Equal(t, time.Minute, cfg.AutoSyncInterval())
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 4, cfg.PushConcurrency)
	assert.Equal(t, 10, cfg.Log.MaxSizeMB)
	assert.Empty(t, cfg.Log.File)
}

func TestLoad_DefaultFileInConfigDir(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	dir := filepath.Join(xdg, "ghpsync")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeConfig(t, dir, "owner: octo-org\nproject: 7\n")

	loader := NewLoader()
	cfg, err := loader.Load("")
	require.NoError(t, err)

	assert.Equal(t, "octo-org", cfg.Owner)
	assert.Equal(t, 7, cfg.Project)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), loader.FileUsed())
}

func TestLoad_ExplicitFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
owner: octo-org
project: 3
auto_sync_seconds: 0
cache_ttl: 90s
log:
  file: /tmp/ghpsync.log
  verbose: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "octo-org", cfg.Owner)
	assert.Equal(t, 3, cfg.Project)
	assert.Equal(t, 0, cfg.AutoSyncSeconds)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.Equal(t, "/tmp/ghpsync.log", cfg.Log.File)
	assert.True(t, cfg.Log.Verbose)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "owner: from-file\nlog:\n  max_backups: 1\n")
	t.Setenv("GHPSYNC_OWNER", "from-env")
	t.Setenv("GHPSYNC_LOG_MAX_BACKUPS", "9")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Owner)
	assert.Equal(t, 9, cfg.Log.MaxBackups)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("GHPSYNC_OWNER", "from-env")
	t.Setenv("GHPSYNC_PROJECT", "2")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("owner", "", "")
	flags.Int("project", 0, "")
	require.NoError(t, flags.Parse([]string{"--owner", "from-flag"}))

	loader := NewLoader()
	require.NoError(t, loader.BindFlags(flags))
	cfg, err := loader.Load("")
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.Owner)
	// Unset flags leave lower layers alone.
	assert.Equal(t, 2, cfg.Project)
}

func TestValidate(t *testing.T) {
	cfg := Config{Project: -1, CacheTTL: 0, RequestTimeout: time.Second, PushConcurrency: 0}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project")
	assert.Contains(t, err.Error(), "cache_ttl")
	assert.Contains(t, err.Error(), "push_concurrency")
	assert.NotContains(t, err.Error(), "request_timeout")
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "push_concurrency: 0\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "push_concurrency")
}

func TestWatch_RequiresFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	loader := NewLoader()
	_, err := loader.Load("")
	require.NoError(t, err)

	assert.Error(t, loader.Watch(func(*Config) {}, nil))
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "auto_sync_seconds: 60\n")

	loader := NewLoader()
	_, err := loader.Load(path)
	require.NoError(t, err)

	var mu sync.Mutex
	var latest *Config
	require.NoError(t, loader.Watch(func(cfg *Config) {
		mu.Lock()
		latest = cfg
		mu.Unlock()
	}, nil))
	assert.Error(t, loader.Watch(func(*Config) {}, nil))

	writeConfig(t, dir, "auto_sync_seconds: 15\n")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return latest != nil && latest.AutoSyncSeconds == 15
	}, 5*time.Second, 20*time.Millisecond)
}
