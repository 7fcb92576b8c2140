package dedup

import "errors"

// DefaultMaxSignatures is the default per-source signature cap.
const DefaultMaxSignatures = 500

// DefaultPruneTarget is the default number of signatures retained when
// a source crosses the cap.
const DefaultPruneTarget = 250

// DefaultMessagePrefixLen is the default number of message bytes that
// contribute to a signature.
const DefaultMessagePrefixLen = 100

// Config holds the configuration for the dedup window.
type Config struct {
	// MaxSignatures is the per-source cap on remembered signatures.
	// Crossing it triggers a prune. Default: 500.
	MaxSignatures int `yaml:"max_signatures"`

	// PruneTarget is the number of newest signatures kept by a prune.
	// Must be less than MaxSignatures. Default: 250.
	PruneTarget int `yaml:"prune_target"`

	// MessagePrefixLen is how many leading message bytes are hashed
	// into a signature. Bounds signature cost for huge lines and
	// tolerates tail truncation differences across fetches.
	// Default: 100.
	MessagePrefixLen int `yaml:"message_prefix_len"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.MaxSignatures == 0 {
		c.MaxSignatures = DefaultMaxSignatures
	}
	if c.PruneTarget == 0 {
		c.PruneTarget = DefaultPruneTarget
	}
	if c.MessagePrefixLen == 0 {
		c.MessagePrefixLen = DefaultMessagePrefixLen
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.MaxSignatures < 1 {
		return errors.New("dedup: config: MaxSignatures must be at least 1")
	}
	if c.PruneTarget < 1 {
		return errors.New("dedup: config: PruneTarget must be at least 1")
	}
	if c.PruneTarget >= c.MaxSignatures {
		return errors.New("dedup: config: PruneTarget must be less than MaxSignatures")
	}
	if c.MessagePrefixLen < 1 {
		return errors.New("dedup: config: MessagePrefixLen must be at least 1")
	}
	return nil
}
