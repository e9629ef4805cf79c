// Package config handles configuration loading and validation for filemesh.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// IdentityConfig holds configuration for the external identity-lookup service
// used to resolve an owner email address to a client id.
type IdentityConfig struct {
	URL     string `yaml:"url"`
	Timeout string `yaml:"timeout"` // Duration string, e.g. "10s"
}

// MetricsConfig holds configuration for the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ServerConfig holds configuration for the directory service.
type ServerConfig struct {
	Listen         string         `yaml:"listen"`
	ServerKey      string         `yaml:"server_key"` // Hex-encoded 32-byte ticket encryption key
	NodeToken      string         `yaml:"node_token"` // Bearer token for storage-node notify endpoints
	Coordinators   []string       `yaml:"coordinators"`
	StorageNodes   []string       `yaml:"storage_nodes"`
	DataDir        string         `yaml:"data_dir"`        // Directory store persistence (default: /var/lib/filemesh)
	DefaultPrivate bool           `yaml:"default_private"` // Visibility when a new-file notification omits it
	StoreTimeout   string         `yaml:"store_timeout"`   // Per-request persistence deadline, e.g. "5s"
	Identity       IdentityConfig `yaml:"identity"`
	Metrics        MetricsConfig  `yaml:"metrics"`
}

// LoadServerConfig loads server configuration from a YAML file.
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &ServerConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	// Apply defaults
	if cfg.Listen == "" {
		cfg.Listen = ":3001"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "/var/lib/filemesh"
	}
	if cfg.StoreTimeout == "" {
		cfg.StoreTimeout = "5s"
	}
	if cfg.Identity.Timeout == "" {
		cfg.Identity.Timeout = "10s"
	}
	// Metrics enabled by default
	cfg.Metrics.Enabled = true

	// Expand home directory in data dir
	if strings.HasPrefix(cfg.DataDir, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			cfg.DataDir = filepath.Join(homeDir, cfg.DataDir[2:])
		}
	}

	return cfg, nil
}

// Validate checks if the server configuration is valid.
func (c *ServerConfig) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if _, err := DecodeServerKey(c.ServerKey); err != nil {
		return fmt.Errorf("invalid server_key: %w", err)
	}
	if c.NodeToken == "" {
		return fmt.Errorf("node_token is required")
	}
	if len(c.Coordinators) == 0 {
		return fmt.Errorf("at least one coordinator is required")
	}
	if len(c.StorageNodes) == 0 {
		return fmt.Errorf("at least one storage node is required")
	}
	if _, err := time.ParseDuration(c.StoreTimeout); err != nil {
		return fmt.Errorf("invalid store_timeout: %w", err)
	}
	if c.Identity.URL != "" {
		if _, err := time.ParseDuration(c.Identity.Timeout); err != nil {
			return fmt.Errorf("invalid identity.timeout: %w", err)
		}
	}
	return nil
}

// StoreTimeoutDuration returns the parsed persistence deadline.
// Validate must have been called first.
func (c *ServerConfig) StoreTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.StoreTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}
