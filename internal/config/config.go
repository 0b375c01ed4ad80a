// Package config loads and validates the Ledgerline configuration file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for Ledgerline.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Assistant AssistantConfig `yaml:"assistant"`
	Limits    LimitsConfig    `yaml:"limits"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	HTTPPort int    `yaml:"http_port"`
}

type DatabaseConfig struct {
	// Path is the SQLite database file. ":memory:" runs fully in memory.
	Path string `yaml:"path"`
}

// AssistantConfig configures the remote conversational model service and the
// run state machine driving it.
type AssistantConfig struct {
	// APIKey authenticates against the remote service. Supports ${ENV}
	// expansion.
	APIKey string `yaml:"api_key"`

	// Model is the model identifier used when creating the assistant.
	Model string `yaml:"model"`

	// AssistantID pins an existing remote assistant. When empty, one is
	// created at startup and logged so it can be pinned for later runs.
	AssistantID string `yaml:"assistant_id"`

	// PollInterval is the run status polling cadence.
	PollInterval time.Duration `yaml:"poll_interval"`

	// RunTimeout bounds the wall-clock duration of one conversational turn.
	RunTimeout time.Duration `yaml:"run_timeout"`

	// MaxToolDepth bounds how many requires_action rounds a single turn may
	// go through before it is abandoned as too complex.
	MaxToolDepth int `yaml:"max_tool_depth"`

	// ToolConcurrency is the maximum number of concurrently executing tool
	// invocations within one batch.
	ToolConcurrency int `yaml:"tool_concurrency"`
}

type LimitsConfig struct {
	// FreeDocumentLimit caps invoices+estimates for non-subscribed users.
	FreeDocumentLimit int `yaml:"free_document_limit"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads, expands, defaults, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with all defaults applied and no API key.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with production defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	if c.Database.Path == "" {
		c.Database.Path = "ledgerline.db"
	}
	if c.Assistant.Model == "" {
		c.Assistant.Model = "gpt-4o"
	}
	if c.Assistant.PollInterval <= 0 {
		c.Assistant.PollInterval = time.Second
	}
	if c.Assistant.RunTimeout <= 0 {
		c.Assistant.RunTimeout = 45 * time.Second
	}
	if c.Assistant.MaxToolDepth <= 0 {
		c.Assistant.MaxToolDepth = 5
	}
	if c.Assistant.ToolConcurrency <= 0 {
		c.Assistant.ToolConcurrency = 4
	}
	if c.Limits.FreeDocumentLimit <= 0 {
		c.Limits.FreeDocumentLimit = 3
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.HTTPPort < 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port out of range: %d", c.Server.HTTPPort)
	}
	if c.Assistant.PollInterval > c.Assistant.RunTimeout {
		return fmt.Errorf("assistant.poll_interval %s exceeds assistant.run_timeout %s",
			c.Assistant.PollInterval, c.Assistant.RunTimeout)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json; got %q", c.Logging.Format)
	}
	return nil
}
