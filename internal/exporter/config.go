// Package exporter serves Railway service resource metrics to Prometheus.
// It polls the Railway API for per-service CPU, memory, and network usage
// and exposes the latest samples as gauges on a /metrics endpoint.
package exporter

import (
	"errors"
	"time"
)

// DefaultListenAddress is the default metrics listen address.
const DefaultListenAddress = ":9090"

// DefaultScrapeInterval is the default interval between collection cycles.
const DefaultScrapeInterval = 60 * time.Second

// DefaultSampleWindow is the default lookback window for usage samples.
const DefaultSampleWindow = 5 * time.Minute

// DefaultReadTimeout is the default HTTP server read timeout.
const DefaultReadTimeout = 5 * time.Second

// DefaultWriteTimeout is the default HTTP server write timeout.
const DefaultWriteTimeout = 5 * time.Second

// DefaultIdleTimeout is the default HTTP server idle timeout.
const DefaultIdleTimeout = 60 * time.Second

// DefaultCPULimitCores is the per-service CPU allocation used for
// utilization ratios.
const DefaultCPULimitCores = 2.0

// DefaultMemoryLimitGB is the per-service memory allocation used for
// utilization ratios.
const DefaultMemoryLimitGB = 2.0

// Config holds the configuration for the metrics exporter.
type Config struct {
	// ListenAddress is the address the metrics HTTP server binds to.
	// Default: ":9090".
	ListenAddress string `yaml:"listen_address"`

	// ScrapeInterval is the interval between collection cycles.
	// Must be at least 1s. Default: 60s.
	ScrapeInterval time.Duration `yaml:"scrape_interval"`

	// SampleWindow is how far back each collection asks the API for
	// usage samples. The newest sample in the window wins.
	// Must be positive. Default: 5m.
	SampleWindow time.Duration `yaml:"sample_window"`

	// ReadTimeout is the HTTP server read timeout. Default: 5s.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the HTTP server write timeout. Default: 5s.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the HTTP server idle timeout. Default: 60s.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// CPULimitCores is the per-service CPU allocation that utilization
	// is computed against. Must be positive. Default: 2.
	CPULimitCores float64 `yaml:"cpu_limit_cores"`

	// MemoryLimitGB is the per-service memory allocation that
	// utilization is computed against. Must be positive. Default: 2.
	MemoryLimitGB float64 `yaml:"memory_limit_gb"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = DefaultListenAddress
	}
	if c.ScrapeInterval == 0 {
		c.ScrapeInterval = DefaultScrapeInterval
	}
	if c.SampleWindow == 0 {
		c.SampleWindow = DefaultSampleWindow
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.CPULimitCores == 0 {
		c.CPULimitCores = DefaultCPULimitCores
	}
	if c.MemoryLimitGB == 0 {
		c.MemoryLimitGB = DefaultMemoryLimitGB
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return errors.New("exporter: config: ListenAddress is required")
	}
	if c.ScrapeInterval < time.Second {
		return errors.New("exporter: config: ScrapeInterval must be at least 1s")
	}
	if c.SampleWindow <= 0 {
		return errors.New("exporter: config: SampleWindow must be positive")
	}
	if c.CPULimitCores <= 0 {
		return errors.New("exporter: config: CPULimitCores must be positive")
	}
	if c.MemoryLimitGB <= 0 {
		return errors.New("exporter: config: MemoryLimitGB must be positive")
	}
	return nil
}
