package router

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Batch size bounds: the ceiling tracks block-gas-limit divided by per-claim
// cost on the reference deployment, and doubles as anti-grief and RPC-timeout
// protection.
const (
	MinBatchSize = 1
	MaxBatchSize = 100
)

// Config holds router configuration.
type Config struct {
	MaxBatchSize   int  `mapstructure:"max_batch_size"  yaml:"max_batch_size"`
	MetricsEnabled bool `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`

	// Owner gates the router's governance operations.
	Owner common.Address `mapstructure:"-" yaml:"-"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize: 50,
	}
}

// Validate checks the configuration is in range.
func (c *Config) Validate() error {
	if c.MaxBatchSize < MinBatchSize || c.MaxBatchSize > MaxBatchSize {
		return fmt.Errorf("max_batch_size %d out of range [%d, %d]", c.MaxBatchSize, MinBatchSize, MaxBatchSize)
	}
	if c.Owner == (common.Address{}) {
		return fmt.Errorf("owner address is required")
	}
	return nil
}
