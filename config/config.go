// Package config loads collabd's configuration via viper: defaults, a TOML
// file, and COLLAB_-prefixed environment overrides, in that precedence order.
package config

import (
	"github.com/spf13/viper"

	"github.com/nodius/graphsync/errors"
)

// Config is the root configuration for a collabd process.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cluster ClusterConfig `mapstructure:"cluster"`
	Auth    AuthConfig    `mapstructure:"auth"`
}

// ServerConfig configures the WebSocket session endpoint.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	JSONLogs       bool     `mapstructure:"json_logs"`
	Verbosity      int      `mapstructure:"verbosity"`
	FlushInterval  int      `mapstructure:"flush_interval_seconds"`
	EvictInterval  int      `mapstructure:"evict_interval_seconds"`
	// HistoryRetentionHours is how long a flushed undo/redo entry is kept
	// before CompactHistory prunes it; zero disables compaction.
	HistoryRetentionHours int `mapstructure:"history_retention_hours"`
}

// DatabaseConfig configures the SQLite-backed Store adapter.
type DatabaseConfig struct {
	Path            string `mapstructure:"path"`
	BusyTimeoutMS   int    `mapstructure:"busy_timeout_ms"`
	JournalMode     string `mapstructure:"journal_mode"`
}

// ClusterConfig configures cluster coordination: this node's identity and
// the ports peers publish on.
type ClusterConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	NodeID            string `mapstructure:"node_id"`
	BasePort          int    `mapstructure:"base_port"` // broadcast = base+1000, direct = base+1001
	HeartbeatSeconds  int    `mapstructure:"heartbeat_seconds"`
	DiscoverySeconds  int    `mapstructure:"discovery_seconds"`
	StaleAfterSeconds int    `mapstructure:"stale_after_seconds"`
	BroadcastRatePerS int    `mapstructure:"broadcast_rate_per_second"`
}

// AuthConfig configures JWT validation for incoming WebSocket connections.
type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// SetDefaults installs default values on v before a config file or
// environment overrides are applied.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8770)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
	})
	v.SetDefault("server.json_logs", false)
	v.SetDefault("server.verbosity", 0)
	v.SetDefault("server.flush_interval_seconds", 30)
	v.SetDefault("server.evict_interval_seconds", 10)
	v.SetDefault("server.history_retention_hours", 0)

	v.SetDefault("database.path", "collab.db")
	v.SetDefault("database.busy_timeout_ms", 5000)
	v.SetDefault("database.journal_mode", "WAL")

	v.SetDefault("cluster.enabled", false)
	v.SetDefault("cluster.base_port", 9770)
	v.SetDefault("cluster.heartbeat_seconds", 60)
	v.SetDefault("cluster.discovery_seconds", 30)
	v.SetDefault("cluster.stale_after_seconds", 150)
	v.SetDefault("cluster.broadcast_rate_per_second", 50)

	v.SetDefault("auth.enabled", false)
}

// Load reads configuration from configPath (if non-empty), layered over
// defaults, and applies COLLAB_ environment overrides. A non-empty
// configPath that cannot be read is an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("COLLAB")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", configPath)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshalling config")
	}
	return &cfg, nil
}

// BroadcastPort is the TCP port the cluster coordinator publishes
// ownership-change broadcasts on.
func (c *ClusterConfig) BroadcastPort() int {
	return c.BasePort + 1000
}

// DirectPort is the TCP port the cluster coordinator accepts direct
// request/response connections on.
func (c *ClusterConfig) DirectPort() int {
	return c.BasePort + 1001
}
