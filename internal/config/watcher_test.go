package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600))

	initial, err := Load(path)
	require.NoError(t, err)

	reloaded := make(chan *Config, 1)
	watcher, err := NewWatcher(path, initial, zap.NewNop(), func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, err)
	defer func() { _ = watcher.Close() }()

	assert.Equal(t, 9000, watcher.Current().Server.Port)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9001\n"), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 9001, cfg.Server.Port)
		assert.Equal(t, 9001, watcher.Current().Server.Port)
	case <-time.After(5 * time.Second):
		t.Fatal("config reload was not observed")
	}
}

func TestWatcher_KeepsLastGoodConfigOnParseFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600))

	initial, err := Load(path)
	require.NoError(t, err)

	watcher, err := NewWatcher(path, initial, zap.NewNop(), nil)
	require.NoError(t, err)
	defer func() { _ = watcher.Close() }()

	require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o600))

	// Give the watcher time to observe and reject the bad write.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 9000, watcher.Current().Server.Port)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600))

	initial, err := Load(path)
	require.NoError(t, err)

	watcher, err := NewWatcher(path, initial, zap.NewNop(), nil)
	require.NoError(t, err)
	defer func() { _ = watcher.Close() }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("server:\n  port: 1\n"), 0o600))

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 9000, watcher.Current().Server.Port)
}
