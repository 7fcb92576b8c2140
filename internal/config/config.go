// Package config loads and validates the railscope configuration file.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/railscope/railscope/internal/dedup"
	"github.com/railscope/railscope/internal/exporter"
	"github.com/railscope/railscope/internal/forward"
	"github.com/railscope/railscope/internal/loki"
	"github.com/railscope/railscope/internal/railway"
)

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "info"

// TokenEnvVar is the environment variable that overrides the Railway
// API token from the configuration file. Secrets stay off argv and out
// of world-readable config files this way.
const TokenEnvVar = "RAILWAY_API_TOKEN"

// Config is the top-level configuration shared by the forwarder and
// exporter processes. It aggregates all subsystem configurations and
// is populated from a YAML configuration file via Load.
type Config struct {
	// LogLevel is the log level: "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	Railway  railway.Config  `yaml:"railway"`
	Loki     loki.Config     `yaml:"loki"`
	Dedup    dedup.Config    `yaml:"dedup"`
	Forward  forward.Config  `yaml:"forward"`
	Exporter exporter.Config `yaml:"exporter"`

	// Projects lists the Railway projects to watch. At least one is
	// required for either process to do anything.
	Projects []railway.Project `yaml:"projects"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.Railway.ApplyDefaults()
	c.Loki.ApplyDefaults()
	c.Dedup.ApplyDefaults()
	c.Forward.ApplyDefaults()
	c.Exporter.ApplyDefaults()
	for i := range c.Projects {
		if c.Projects[i].EnvironmentName == "" {
			c.Projects[i].EnvironmentName = railway.DefaultEnvironmentName
		}
	}
}

// ValidateForwarder checks everything the log forwarding process needs.
func (c *Config) ValidateForwarder() error {
	if err := c.Railway.Validate(); err != nil {
		return err
	}
	if err := c.validateProjects(); err != nil {
		return err
	}
	if err := c.Loki.Validate(); err != nil {
		return err
	}
	if err := c.Dedup.Validate(); err != nil {
		return err
	}
	return c.Forward.Validate()
}

// ValidateExporter checks everything the metrics exporter process
// needs. The exporter never talks to Loki, so a config without a Loki
// section is valid here.
func (c *Config) ValidateExporter() error {
	if err := c.Railway.Validate(); err != nil {
		return err
	}
	if err := c.validateProjects(); err != nil {
		return err
	}
	return c.Exporter.Validate()
}

func (c *Config) validateProjects() error {
	if len(c.Projects) == 0 {
		return errors.New("config: at least one project is required")
	}
	for i, p := range c.Projects {
		if p.Name == "" {
			return fmt.Errorf("config: projects[%d]: name is required", i)
		}
		if p.EnvironmentID == "" {
			return fmt.Errorf("config: projects[%d]: environment is required", i)
		}
	}
	return nil
}

// Load reads a YAML configuration file, applies the token environment
// override and defaults, and returns the Config. Validation is left to
// the caller because the forwarder and exporter require different
// sections.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if token := os.Getenv(TokenEnvVar); token != "" {
		cfg.Railway.Token = token
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}
