// Package config loads the node's configuration from file, environment, and
// defaults. Protocol identities arrive as hex address strings and are
// converted once here; the domain packages only ever see common.Address.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/clones-ai/factoryvault/server/api"
	"github.com/clones-ai/factoryvault/x/factory"
	"github.com/clones-ai/factoryvault/x/router"
)

// Config holds the complete application configuration.
type Config struct {
	Chain    ChainConfig    `mapstructure:"chain"    yaml:"chain"`
	API      api.Config     `mapstructure:"api"      yaml:"api"`
	Factory  FactoryConfig  `mapstructure:"factory"  yaml:"factory"`
	Router   RouterConfig   `mapstructure:"router"   yaml:"router"`
	Tokens   []TokenConfig  `mapstructure:"tokens"   yaml:"tokens"`
	Registry RegistryConfig `mapstructure:"registry" yaml:"registry"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
	Log      LogConfig      `mapstructure:"log"      yaml:"log"`
}

// ChainConfig identifies the network this node models.
type ChainConfig struct {
	ID      uint64 `mapstructure:"id"      yaml:"id"      env:"CHAIN_ID"`
	Network string `mapstructure:"network" yaml:"network" env:"CHAIN_NETWORK"`
}

// FactoryConfig extends the factory's protocol parameters with the identity
// set as hex strings.
type FactoryConfig struct {
	FeeBps            uint64        `mapstructure:"fee_bps"             yaml:"fee_bps"`
	RotationGrace     time.Duration `mapstructure:"rotation_grace"      yaml:"rotation_grace"`
	SweepDormancy     time.Duration `mapstructure:"sweep_dormancy"      yaml:"sweep_dormancy"`
	SweepNotice       time.Duration `mapstructure:"sweep_notice"        yaml:"sweep_notice"`
	MaxDeadlineWindow time.Duration `mapstructure:"max_deadline_window" yaml:"max_deadline_window"`

	Address        string `mapstructure:"address"        yaml:"address"        env:"FACTORY_ADDRESS"`
	Implementation string `mapstructure:"implementation" yaml:"implementation" env:"FACTORY_IMPLEMENTATION"`
	Treasury       string `mapstructure:"treasury"       yaml:"treasury"       env:"FACTORY_TREASURY"`
	Guardian       string `mapstructure:"guardian"       yaml:"guardian"       env:"FACTORY_GUARDIAN"`
	Timelock       string `mapstructure:"timelock"       yaml:"timelock"       env:"FACTORY_TIMELOCK"`
	Publisher      string `mapstructure:"publisher"      yaml:"publisher"      env:"FACTORY_PUBLISHER"`
}

// RouterConfig holds batch claim router configuration.
type RouterConfig struct {
	MaxBatchSize int    `mapstructure:"max_batch_size" yaml:"max_batch_size"`
	Owner        string `mapstructure:"owner"          yaml:"owner" env:"ROUTER_OWNER"`
}

// TokenConfig describes a token registered at boot. Mint fields are the dev
// faucet: a nonzero amount is minted to the creator so local environments
// have funded ledgers without an external chain.
type TokenConfig struct {
	Address  string `mapstructure:"address"  yaml:"address"`
	Name     string `mapstructure:"name"     yaml:"name"`
	Symbol   string `mapstructure:"symbol"   yaml:"symbol"`
	Decimals uint8  `mapstructure:"decimals" yaml:"decimals"`
	Allowed  bool   `mapstructure:"allowed"  yaml:"allowed"`

	MintTo     string `mapstructure:"mint_to"     yaml:"mint_to"`
	MintAmount string `mapstructure:"mint_amount" yaml:"mint_amount"`
}

// RegistryConfig holds deployment registry configuration.
type RegistryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path" env:"REGISTRY_PATH"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" env:"METRICS_ENABLED"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  env:"LOG_LEVEL"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty" env:"LOG_PRETTY"`
}

// Load loads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("chain.id", 84532) // Base Sepolia
	v.SetDefault("chain.network", "base-sepolia")

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.read_header_timeout", "5s")
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "30s")
	v.SetDefault("api.idle_timeout", "120s")
	v.SetDefault("api.max_header_bytes", 1048576)

	v.SetDefault("factory.fee_bps", 1000)
	v.SetDefault("factory.rotation_grace", "48h")
	v.SetDefault("factory.sweep_dormancy", "2160h") // 90 days
	v.SetDefault("factory.sweep_notice", "168h")    // 7 days
	v.SetDefault("factory.max_deadline_window", "24h")

	v.SetDefault("router.max_batch_size", 50)

	v.SetDefault("registry.enabled", true)
	v.SetDefault("registry.path", "factory-vault-app/configs/deployments.yaml")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Chain.ID == 0 {
		return fmt.Errorf("chain.id is required")
	}
	if strings.TrimSpace(c.API.ListenAddr) == "" {
		return fmt.Errorf("api.listen_addr is required")
	}

	for name, value := range map[string]string{
		"factory.address":        c.Factory.Address,
		"factory.implementation": c.Factory.Implementation,
		"factory.treasury":       c.Factory.Treasury,
		"factory.guardian":       c.Factory.Guardian,
		"factory.timelock":       c.Factory.Timelock,
		"factory.publisher":      c.Factory.Publisher,
		"router.owner":           c.Router.Owner,
	} {
		if _, err := parseAddress(name, value); err != nil {
			return err
		}
	}

	for i, tok := range c.Tokens {
		if _, err := parseAddress(fmt.Sprintf("tokens[%d].address", i), tok.Address); err != nil {
			return err
		}
		if tok.MintAmount != "" {
			if _, err := parseAddress(fmt.Sprintf("tokens[%d].mint_to", i), tok.MintTo); err != nil {
				return err
			}
		}
	}

	if c.Registry.Enabled && strings.TrimSpace(c.Registry.Path) == "" {
		return fmt.Errorf("registry.path is required when registry enabled")
	}

	return nil
}

// FactoryConfig converts the app-level factory section into the domain
// config. Validate must have passed first.
func (c *Config) FactoryConfig() factory.Config {
	fc := factory.DefaultConfig()
	fc.ChainID = c.Chain.ID
	fc.FeeBps = c.Factory.FeeBps
	fc.RotationGrace = c.Factory.RotationGrace
	fc.SweepDormancy = c.Factory.SweepDormancy
	fc.SweepNotice = c.Factory.SweepNotice
	fc.MaxDeadlineWindow = c.Factory.MaxDeadlineWindow
	fc.MetricsEnabled = c.Metrics.Enabled

	fc.Address = common.HexToAddress(c.Factory.Address)
	fc.Implementation = common.HexToAddress(c.Factory.Implementation)
	fc.Treasury = common.HexToAddress(c.Factory.Treasury)
	fc.Guardian = common.HexToAddress(c.Factory.Guardian)
	fc.Timelock = common.HexToAddress(c.Factory.Timelock)
	fc.Publisher = common.HexToAddress(c.Factory.Publisher)
	return fc
}

// RouterConfig converts the app-level router section into the domain config.
func (c *Config) RouterConfig() router.Config {
	rc := router.DefaultConfig()
	rc.MaxBatchSize = c.Router.MaxBatchSize
	rc.MetricsEnabled = c.Metrics.Enabled
	rc.Owner = common.HexToAddress(c.Router.Owner)
	return rc
}

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: not a hex address: %q", field, value)
	}
	return common.HexToAddress(value), nil
}
