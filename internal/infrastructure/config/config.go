package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Flashlight Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Upstream  UpstreamConfig  `yaml:"upstream"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// UpstreamConfig describes the single command source the pipeline reads from.
type UpstreamConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// MaxReconnectAttempts is the number of consecutive reconnect cycles
	// allowed before the command stream is declared dead.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`

	// ConnectTimeout bounds a single dial.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// ReconnectInterval is the initial delay after a failed reconnect dial.
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`

	// MaxReconnectInterval caps the reconnect backoff.
	MaxReconnectInterval time.Duration `yaml:"max_reconnect_interval"`
}

// Address returns the host:port dial address.
func (u UpstreamConfig) Address() string {
	return fmt.Sprintf("%s:%d", u.Host, u.Port)
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// Broadcast delivery modes.
const (
	BroadcastModeBlocking = "blocking"
	BroadcastModeQueued   = "queued"
)

// Queue overflow policies for queued broadcast mode.
const (
	OverflowDrop       = "drop"
	OverflowDisconnect = "disconnect"
)

// BroadcastConfig selects how state changes are pushed to observers.
type BroadcastConfig struct {
	// Mode is "blocking" (one sink at a time, default) or "queued".
	Mode string `yaml:"mode"`

	// QueueSize is the per-observer buffer in queued mode.
	QueueSize int `yaml:"queue_size"`

	// OverflowPolicy is "drop" or "disconnect" in queued mode.
	OverflowPolicy string `yaml:"overflow_policy"`
}

// DatabaseConfig contains SQLite settings for the in-process state history.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryLimit is the number of most recent state changes kept.
	HistoryLimit int `yaml:"history_limit"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FLASHLIGHT_SECTION_KEY
// For example: FLASHLIGHT_UPSTREAM_HOST, FLASHLIGHT_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to defaults (plus environment
// overrides) when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg = Default()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with sensible defaults.
// The upstream defaults match the development mock commands server.
func Default() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			Host:                 "127.0.0.1",
			Port:                 9999,
			MaxReconnectAttempts: 5,
			ConnectTimeout:       10 * time.Second,
			ReconnectInterval:    time.Second,
			MaxReconnectInterval: 30 * time.Second,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/flashlight/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Broadcast: BroadcastConfig{
			Mode:           BroadcastModeBlocking,
			QueueSize:      64,
			OverflowPolicy: OverflowDrop,
		},
		Database: DatabaseConfig{
			Path:         ":memory:",
			BusyTimeout:  5,
			HistoryLimit: 1000,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "flashlight-core",
			},
			QoS:         1,
			TopicPrefix: "flashlight",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FLASHLIGHT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Upstream
	if v := os.Getenv("FLASHLIGHT_UPSTREAM_HOST"); v != "" {
		cfg.Upstream.Host = v
	}
	if v := os.Getenv("FLASHLIGHT_UPSTREAM_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Upstream.Port = port
		}
	}
	if v := os.Getenv("FLASHLIGHT_UPSTREAM_MAX_RECONNECT_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Upstream.MaxReconnectAttempts = n
		}
	}

	// API
	if v := os.Getenv("FLASHLIGHT_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("FLASHLIGHT_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Database
	if v := os.Getenv("FLASHLIGHT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FLASHLIGHT_DATABASE_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.HistoryLimit = n
		}
	}

	// MQTT
	if v := os.Getenv("FLASHLIGHT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FLASHLIGHT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FLASHLIGHT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("FLASHLIGHT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("FLASHLIGHT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Upstream is required before the pipeline can start
	if c.Upstream.Host == "" {
		errs = append(errs, "upstream.host is required")
	}
	if c.Upstream.Port < 1 || c.Upstream.Port > 65535 {
		errs = append(errs, "upstream.port must be between 1 and 65535")
	}
	if c.Upstream.MaxReconnectAttempts < 0 {
		errs = append(errs, "upstream.max_reconnect_attempts must not be negative")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	switch c.Broadcast.Mode {
	case BroadcastModeBlocking:
	case BroadcastModeQueued:
		if c.Broadcast.QueueSize < 1 {
			errs = append(errs, "broadcast.queue_size must be positive in queued mode")
		}
		if c.Broadcast.OverflowPolicy != OverflowDrop && c.Broadcast.OverflowPolicy != OverflowDisconnect {
			errs = append(errs, "broadcast.overflow_policy must be drop or disconnect")
		}
	default:
		errs = append(errs, "broadcast.mode must be blocking or queued")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.HistoryLimit <= 0 {
		errs = append(errs, "database.history_limit must be positive")
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
