package railway

import (
	"errors"
	"time"
)

// DefaultEndpoint is the Railway GraphQL API endpoint.
const DefaultEndpoint = "https://backboard.railway.app/graphql/v2"

// DefaultConnectTimeout is the default TCP connect timeout.
const DefaultConnectTimeout = 5 * time.Second

// DefaultRequestTimeout is the default timeout for a complete query.
// Every upstream call is bounded by this; a timed-out call is treated
// as a failure for that cycle, never retried within it.
const DefaultRequestTimeout = 10 * time.Second

// Config holds the configuration for the Railway API client.
type Config struct {
	// Endpoint is the GraphQL API URL.
	// Default: https://backboard.railway.app/graphql/v2
	Endpoint string `yaml:"endpoint"`

	// Token is the Railway API token (required). Usually supplied via
	// the RAILWAY_API_TOKEN environment variable rather than the
	// config file.
	Token string `yaml:"token"`

	// ConnectTimeout is the maximum time to wait for a TCP connection.
	// Default: 5s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// RequestTimeout is the maximum time for a complete query/response cycle.
	// Default: 10s
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// Validate checks that required fields are set.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("railway: config: Endpoint is required")
	}
	if c.Token == "" {
		return errors.New("railway: config: Token is required (set RAILWAY_API_TOKEN)")
	}
	return nil
}
