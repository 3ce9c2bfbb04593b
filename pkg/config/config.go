package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DefaultProviderURL      = "http://localhost:1234"
	DefaultRefreshInterval  = 5 * time.Minute
	DefaultDiscoveryTimeout = 10 * time.Second
	DefaultProbeTimeout     = 5 * time.Second
	DefaultHTTPAddr         = "127.0.0.1:8787"
)

type Config struct {
	ClaudeDir string         `yaml:"claude_dir" envconfig:"CLAUDE_DIR"`
	DataDir   string         `yaml:"data_dir" envconfig:"DATA_DIR"`
	Provider  ProviderConfig `yaml:"provider" envconfig:"PROVIDER"`
	HTTP      HTTPConfig     `yaml:"http" envconfig:"HTTP"`
}

type ProviderConfig struct {
	Type             string        `yaml:"type" envconfig:"TYPE"` // only "openai" compatible servers for now
	DefaultURL       string        `yaml:"default_url" envconfig:"DEFAULT_URL"`
	APIKey           string        `yaml:"api_key" envconfig:"API_KEY"`
	RefreshInterval  time.Duration `yaml:"refresh_interval" envconfig:"REFRESH_INTERVAL"`
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout" envconfig:"DISCOVERY_TIMEOUT"`
	ProbeTimeout     time.Duration `yaml:"probe_timeout" envconfig:"PROBE_TIMEOUT"`
}

type HTTPConfig struct {
	Addr   string `yaml:"addr" envconfig:"ADDR"`
	APIKey string `yaml:"api_key" envconfig:"API_KEY"`
}

// Load reads configuration from the specified path, or defaults if path is empty.
// It prioritizes:
// 1. Env Vars (GMSET_ prefix, optionally loaded from .env)
// 2. Config File
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	// Try loading .env files (ignore error if not present)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			defaultPath := filepath.Join(home, ".gm-settings", "config.yaml")
			if _, err := os.Stat(defaultPath); err == nil {
				path = defaultPath
			}
		}

		localPath := "config.yaml"
		if _, err := os.Stat(localPath); err == nil {
			path = localPath
		}
	}

	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Env overrides values from the config file
	if err := envconfig.Process("GMSET", cfg); err != nil {
		return nil, fmt.Errorf("failed to process env vars: %w", err)
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	home, _ := os.UserHomeDir()
	if c.ClaudeDir == "" {
		c.ClaudeDir = filepath.Join(home, ".claude")
	}
	if c.DataDir == "" {
		c.DataDir = filepath.Join(home, ".gm-settings")
	}
	if c.Provider.Type == "" {
		c.Provider.Type = "openai"
	}
	if c.Provider.DefaultURL == "" {
		c.Provider.DefaultURL = DefaultProviderURL
	}
	if c.Provider.RefreshInterval <= 0 {
		c.Provider.RefreshInterval = DefaultRefreshInterval
	}
	if c.Provider.DiscoveryTimeout <= 0 {
		c.Provider.DiscoveryTimeout = DefaultDiscoveryTimeout
	}
	if c.Provider.ProbeTimeout <= 0 {
		c.Provider.ProbeTimeout = DefaultProbeTimeout
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
}
