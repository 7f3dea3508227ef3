// Package config loads the node configuration from a YAML file, applies
// environment overrides and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-coord/pkg/cluster"
	"github.com/dd0wney/cluso-coord/pkg/database"
)

// Environment variables that override file settings
const (
	EnvNodeID      = "CLUSO_NODE_ID"
	EnvDatabaseURL = "CLUSO_DATABASE_URL"
	EnvSharedHome  = "CLUSO_SHARED_HOME"
	EnvClustered   = "CLUSO_CLUSTERED"
	EnvPort        = "PORT"
	EnvLogLevel    = "LOG_LEVEL"
)

// Config is the full node configuration
type Config struct {
	Cluster  ClusterConfig  `yaml:"cluster"`
	Database DatabaseConfig `yaml:"database"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ClusterConfig identifies this node and sets liveness timing
type ClusterConfig struct {
	NodeID            string        `yaml:"node_id" validate:"required,max=255,excludesall=/\\"`
	Clustered         bool          `yaml:"clustered"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" validate:"gt=0"`
	LivenessThreshold time.Duration `yaml:"liveness_threshold" validate:"gtfield=HeartbeatInterval"`
	SharedHome        string        `yaml:"shared_home" validate:"required_if=Clustered true"`

	// GeneratedNodeID is set when NodeID was not configured and a random one
	// was generated for this run
	GeneratedNodeID bool `yaml:"-"`
}

// DatabaseConfig configures the PostgreSQL pool
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConns        int32         `yaml:"max_conns" validate:"gte=1"`
	MinConns        int32         `yaml:"min_conns" validate:"gte=0,ltefield=MaxConns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" validate:"gt=0"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" validate:"gt=0"`
	Migrate         bool          `yaml:"migrate"`
}

// HTTPConfig configures the admin API listener
type HTTPConfig struct {
	Port         int           `yaml:"port" validate:"gte=0,lte=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gt=0"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" validate:"gt=0"`
}

// LoggingConfig sets the log level
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// Default returns the configuration used for anything not set
func Default() *Config {
	pool := database.DefaultPoolConfig()
	membership := cluster.DefaultClusterConfig()
	return &Config{
		Cluster: ClusterConfig{
			Clustered:         membership.Clustered,
			HeartbeatInterval: membership.HeartbeatInterval,
			LivenessThreshold: membership.LivenessThreshold,
		},
		Database: DatabaseConfig{
			MaxConns:        pool.MaxConns,
			MinConns:        pool.MinConns,
			MaxConnLifetime: pool.MaxConnLifetime,
			MaxConnIdleTime: pool.MaxConnIdleTime,
			Migrate:         true,
		},
		HTTP: HTTPConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s not found", path)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if cfg.Cluster.NodeID == "" {
		cfg.Cluster.NodeID = uuid.NewString()
		cfg.Cluster.GeneratedNodeID = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvNodeID); ok && v != "" {
		cfg.Cluster.NodeID = v
	}
	if v, ok := lookup(EnvDatabaseURL); ok && v != "" {
		cfg.Database.URL = v
	}
	if v, ok := lookup(EnvSharedHome); ok && v != "" {
		cfg.Cluster.SharedHome = v
	}
	if v, ok := lookup(EnvClustered); ok && v != "" {
		clustered, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvClustered, err)
		}
		cfg.Cluster.Clustered = clustered
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		cfg.HTTP.Port = port
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// Membership returns the settings of the cluster membership manager
func (c *Config) Membership() cluster.ClusterConfig {
	return cluster.ClusterConfig{
		NodeID:            c.Cluster.NodeID,
		Clustered:         c.Cluster.Clustered,
		HeartbeatInterval: c.Cluster.HeartbeatInterval,
		LivenessThreshold: c.Cluster.LivenessThreshold,
	}
}

// Pool returns the settings of the pgx pool
func (c *Config) Pool() database.PoolConfig {
	return database.PoolConfig{
		URL:             c.Database.URL,
		MaxConns:        c.Database.MaxConns,
		MinConns:        c.Database.MinConns,
		MaxConnLifetime: c.Database.MaxConnLifetime,
		MaxConnIdleTime: c.Database.MaxConnIdleTime,
	}
}
