// Package forward implements the poll scheduler that drives the log
// pipeline: enumerate services, fetch deployment logs, classify
// through the dedup window, and push new records to Loki.
package forward

import (
	"errors"
	"time"
)

// DefaultPollInterval is the default sleep between poll cycles. The
// scheduler sleeps after a cycle completes, so the effective period is
// cycle duration plus this interval.
const DefaultPollInterval = 30 * time.Second

// DefaultFetchLimit is the default number of recent log records
// requested per deployment.
const DefaultFetchLimit = 100

// Config holds the configuration for the poll scheduler.
type Config struct {
	// PollInterval is the sleep between cycles. Default: 30s.
	PollInterval time.Duration `yaml:"poll_interval"`

	// FetchLimit is the per-deployment log fetch limit. Default: 100.
	FetchLimit int `yaml:"fetch_limit"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.FetchLimit == 0 {
		c.FetchLimit = DefaultFetchLimit
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.PollInterval < time.Second {
		return errors.New("forward: config: PollInterval must be at least 1s")
	}
	if c.FetchLimit < 1 {
		return errors.New("forward: config: FetchLimit must be at least 1")
	}
	return nil
}
