package factory

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config fixes the factory's identity set and protocol windows. Address
// fields are wired by the application from its own configuration; scalar
// fields can come straight from a config file.
type Config struct {
	ChainID uint64 `mapstructure:"chain_id" yaml:"chain_id"`
	FeeBps  uint64 `mapstructure:"fee_bps"  yaml:"fee_bps"`

	// RotationGrace is the dual-trust window after a publisher rotation
	// during which the previous key still authorizes claims.
	RotationGrace time.Duration `mapstructure:"rotation_grace" yaml:"rotation_grace"`

	// SweepDormancy is how long a paused vault must have gone without claims
	// before an emergency sweep notice may be raised.
	SweepDormancy time.Duration `mapstructure:"sweep_dormancy" yaml:"sweep_dormancy"`

	// SweepNotice is the mandatory public-notice period before a sweep
	// executes.
	SweepNotice time.Duration `mapstructure:"sweep_notice" yaml:"sweep_notice"`

	// MaxDeadlineWindow bounds how far in the future a claim deadline may be.
	MaxDeadlineWindow time.Duration `mapstructure:"max_deadline_window" yaml:"max_deadline_window"`

	MetricsEnabled bool `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`

	// Protocol identities. The factory address doubles as the CREATE2
	// deployer in every address prediction.
	Address        common.Address `mapstructure:"-" yaml:"-"`
	Implementation common.Address `mapstructure:"-" yaml:"-"`
	Treasury       common.Address `mapstructure:"-" yaml:"-"`
	Guardian       common.Address `mapstructure:"-" yaml:"-"`
	Timelock       common.Address `mapstructure:"-" yaml:"-"`
	Publisher      common.Address `mapstructure:"-" yaml:"-"`
}

// DefaultConfig returns production protocol constants. The 10% fee matches
// the platform's published schedule.
func DefaultConfig() Config {
	return Config{
		FeeBps:            1000,
		RotationGrace:     48 * time.Hour,
		SweepDormancy:     90 * 24 * time.Hour,
		SweepNotice:       7 * 24 * time.Hour,
		MaxDeadlineWindow: 24 * time.Hour,
	}
}

// MaxFeeBps bounds the platform fee.
const MaxFeeBps = 2000

// Validate checks the configuration is complete and in range.
func (c *Config) Validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("chain_id is required")
	}
	if c.FeeBps > MaxFeeBps {
		return fmt.Errorf("fee_bps %d exceeds maximum %d", c.FeeBps, MaxFeeBps)
	}
	if c.RotationGrace <= 0 {
		return fmt.Errorf("rotation_grace must be positive")
	}
	if c.SweepDormancy <= 0 || c.SweepNotice <= 0 {
		return fmt.Errorf("sweep windows must be positive")
	}
	if c.MaxDeadlineWindow <= 0 {
		return fmt.Errorf("max_deadline_window must be positive")
	}

	for name, addr := range map[string]common.Address{
		"address":        c.Address,
		"implementation": c.Implementation,
		"treasury":       c.Treasury,
		"guardian":       c.Guardian,
		"timelock":       c.Timelock,
		"publisher":      c.Publisher,
	} {
		if addr == (common.Address{}) {
			return fmt.Errorf("%s address is required", name)
		}
	}

	return nil
}
