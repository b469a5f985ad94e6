package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
upstream:
  host: "10.0.0.5"
  port: 7000
  max_reconnect_attempts: 3
  connect_timeout: 2s
  reconnect_interval: 250ms
api:
  port: 9090
broadcast:
  mode: queued
  queue_size: 8
  overflow_policy: disconnect
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", cfg.Upstream.Host)
	assert.Equal(t, 7000, cfg.Upstream.Port)
	assert.Equal(t, 3, cfg.Upstream.MaxReconnectAttempts)
	assert.Equal(t, 2*time.Second, cfg.Upstream.ConnectTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Upstream.ReconnectInterval)
	assert.Equal(t, "10.0.0.5:7000", cfg.Upstream.Address())
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, BroadcastModeQueued, cfg.Broadcast.Mode)
	assert.Equal(t, OverflowDisconnect, cfg.Broadcast.OverflowPolicy)

	// Untouched sections keep their defaults
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, "/api/flashlight/ws", cfg.WebSocket.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
upstream:
  host: ""
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream.host is required")
}

func TestLoadOrDefault_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("FLASHLIGHT_UPSTREAM_PORT", "9100")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Upstream.Port)
	assert.Equal(t, 5, cfg.Upstream.MaxReconnectAttempts)
}

func TestLoadOrDefault_InvalidFileStillFails(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := LoadOrDefault(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "missing upstream host", mutate: func(c *Config) { c.Upstream.Host = "" }, wantErr: true},
		{name: "upstream port zero", mutate: func(c *Config) { c.Upstream.Port = 0 }, wantErr: true},
		{name: "upstream port too high", mutate: func(c *Config) { c.Upstream.Port = 70000 }, wantErr: true},
		{name: "negative reconnect attempts", mutate: func(c *Config) { c.Upstream.MaxReconnectAttempts = -1 }, wantErr: true},
		{name: "zero reconnect attempts allowed", mutate: func(c *Config) { c.Upstream.MaxReconnectAttempts = 0 }},
		{name: "invalid api port", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "unknown broadcast mode", mutate: func(c *Config) { c.Broadcast.Mode = "fanout" }, wantErr: true},
		{name: "queued without queue size", mutate: func(c *Config) {
			c.Broadcast.Mode = BroadcastModeQueued
			c.Broadcast.QueueSize = 0
		}, wantErr: true},
		{name: "queued with bad policy", mutate: func(c *Config) {
			c.Broadcast.Mode = BroadcastModeQueued
			c.Broadcast.OverflowPolicy = "block"
		}, wantErr: true},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "zero history limit", mutate: func(c *Config) { c.Database.HistoryLimit = 0 }, wantErr: true},
		{name: "invalid mqtt qos when enabled", mutate: func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.QoS = 3
		}, wantErr: true},
		{name: "invalid mqtt qos ignored when disabled", mutate: func(c *Config) { c.MQTT.QoS = 3 }},
		{name: "influxdb enabled without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	assert.Equal(t, 30*time.Second, cfg.GetReadTimeout())
	assert.Equal(t, 45*time.Second, cfg.GetWriteTimeout())
	assert.Equal(t, 60*time.Second, cfg.GetIdleTimeout())
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	t.Setenv("FLASHLIGHT_UPSTREAM_HOST", "upstream.example.com")
	t.Setenv("FLASHLIGHT_UPSTREAM_PORT", "7777")
	t.Setenv("FLASHLIGHT_UPSTREAM_MAX_RECONNECT_ATTEMPTS", "9")
	t.Setenv("FLASHLIGHT_API_HOST", "192.168.1.1")
	t.Setenv("FLASHLIGHT_DATABASE_PATH", "/custom/path.db")
	t.Setenv("FLASHLIGHT_DATABASE_HISTORY_LIMIT", "250")
	t.Setenv("FLASHLIGHT_MQTT_HOST", "mqtt.example.com")
	t.Setenv("FLASHLIGHT_MQTT_USERNAME", "testuser")
	t.Setenv("FLASHLIGHT_MQTT_PASSWORD", "testpass")
	t.Setenv("FLASHLIGHT_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("FLASHLIGHT_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	assert.Equal(t, "upstream.example.com", cfg.Upstream.Host)
	assert.Equal(t, 7777, cfg.Upstream.Port)
	assert.Equal(t, 9, cfg.Upstream.MaxReconnectAttempts)
	assert.Equal(t, "192.168.1.1", cfg.API.Host)
	assert.Equal(t, "/custom/path.db", cfg.Database.Path)
	assert.Equal(t, 250, cfg.Database.HistoryLimit)
	assert.Equal(t, "mqtt.example.com", cfg.MQTT.Broker.Host)
	assert.Equal(t, "testuser", cfg.MQTT.Auth.Username)
	assert.Equal(t, "testpass", cfg.MQTT.Auth.Password)
	assert.Equal(t, "secret-token", cfg.InfluxDB.Token)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestApplyEnvOverrides_IgnoresBadNumbers(t *testing.T) {
	cfg := Default()
	t.Setenv("FLASHLIGHT_UPSTREAM_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	assert.Equal(t, 9999, cfg.Upstream.Port)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1", cfg.Upstream.Host)
	assert.Equal(t, 9999, cfg.Upstream.Port)
	assert.Equal(t, 5, cfg.Upstream.MaxReconnectAttempts)
	assert.Equal(t, BroadcastModeBlocking, cfg.Broadcast.Mode)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, 1000, cfg.Database.HistoryLimit)
	assert.False(t, cfg.MQTT.Enabled)
	assert.False(t, cfg.InfluxDB.Enabled)
}

func TestLoad_ShippedConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Upstream, cfg.Upstream)
	assert.Equal(t, def.WebSocket, cfg.WebSocket)
	assert.Equal(t, def.Broadcast, cfg.Broadcast)
	assert.Equal(t, def.Database.Path, cfg.Database.Path)
	assert.Equal(t, def.Database.HistoryLimit, cfg.Database.HistoryLimit)
	assert.False(t, cfg.MQTT.Enabled)
	assert.False(t, cfg.InfluxDB.Enabled)
}
