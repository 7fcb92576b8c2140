package loki

import (
	"errors"
	"time"
)

// DefaultConnectTimeout is the default TCP connect timeout.
const DefaultConnectTimeout = 5 * time.Second

// DefaultRequestTimeout is the default timeout for a push request.
const DefaultRequestTimeout = 10 * time.Second

// Config holds the configuration for the Loki push client.
type Config struct {
	// URL is the Loki base URL (required), without the push path.
	// Example: "http://loki.railway.internal:3100"
	URL string `yaml:"url"`

	// TenantID is sent as X-Scope-OrgID for multi-tenant Loki.
	// Empty disables the header.
	TenantID string `yaml:"tenant_id"`

	// ConnectTimeout is the maximum time to wait for a TCP connection.
	// Default: 5s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// RequestTimeout is the maximum time for a complete push cycle.
	// Default: 10s
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// Validate checks that required fields are set.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("loki: config: URL is required")
	}
	return nil
}
