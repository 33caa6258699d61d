package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "retrolog.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadEffectiveDefaults(t *testing.T) {
	cfg, envUsed, err := LoadEffective("")
	require.NoError(t, err)
	assert.False(t, envUsed)
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
	assert.Equal(t, "embedded", cfg.Remote.Mode)
	assert.Equal(t, DefaultDBPath, cfg.Remote.DBPath)
	assert.Equal(t, DefaultCooldown, cfg.Feed.Cooldown)
	assert.Equal(t, DefaultQueueCapacity, cfg.Feed.QueueCapacity)
	assert.Equal(t, "retrolog", cfg.Remote.Redis.Keyspace)
}

func TestLoadEffectiveFileThenEnvOverride(t *testing.T) {
	p := writeConfig(t, `
server:
  address: 0.0.0.0
  port: 9000
remote:
  mode: websocket
  url: ws://example.com/feed
feed:
  cooldown: 10s
  known_tags: ["#news", "#music"]
`)
	t.Setenv("RETROLOG_REMOTE_MODE", "redis")
	t.Setenv("RETROLOG_REDIS_ADDR", "localhost:6379")
	t.Setenv("RETROLOG_ADDR", "127.0.0.1:7777")
	t.Setenv("RETROLOG_ADMIN_EMAILS", "a@x.com, b@x.com ,")

	cfg, envUsed, err := LoadEffective(p)
	require.NoError(t, err)
	assert.True(t, envUsed)
	assert.Equal(t, "redis", cfg.Remote.Mode)
	assert.Equal(t, "localhost:6379", cfg.Remote.Redis.Addr)
	assert.Equal(t, "127.0.0.1:7777", cfg.Addr())
	assert.Equal(t, "10s", cfg.Feed.Cooldown)
	assert.Equal(t, []string{"#news", "#music"}, cfg.Feed.KnownTags)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, cfg.Identity.AdminEmails)
}

func TestLoadEffectiveMissingFileIsNotFatal(t *testing.T) {
	cfg, _, err := LoadEffective(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "embedded", cfg.Remote.Mode)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	p := writeConfig(t, "server: [not a map")
	_, err := Load(p)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, _, err := LoadEffective("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	cfg.Remote.Mode = "websocket"
	require.Error(t, cfg.Validate())
	cfg.Remote.URL = "ws://example.com/feed"
	require.NoError(t, cfg.Validate())

	cfg.Remote.Mode = "redis"
	require.Error(t, cfg.Validate())
	cfg.Remote.Redis.Addr = "localhost:6379"
	require.NoError(t, cfg.Validate())

	// retention sweeps only run against the embedded database
	cfg.Retention.Enabled = true
	require.Error(t, cfg.Validate())
	cfg.Remote.Mode = "embedded"
	require.NoError(t, cfg.Validate())

	cfg.Remote.Mode = "carrier-pigeon"
	require.Error(t, cfg.Validate())
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, ParseDuration("", 5*time.Second))
	assert.Equal(t, 10*time.Second, ParseDuration("10s", time.Second))
	assert.Equal(t, time.Second, ParseDuration("garbage", time.Second))
	assert.Equal(t, time.Second, ParseDuration("-3s", time.Second))
}

func TestParseSize(t *testing.T) {
	assert.Equal(t, uint64(262144), ParseSize("256KiB", 1))
	assert.Equal(t, uint64(256000), ParseSize("256KB", 1))
	assert.Equal(t, uint64(42), ParseSize("", 42))
	assert.Equal(t, uint64(42), ParseSize("garbage", 42))
}
