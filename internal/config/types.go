package config

import (
	"errors"
	"time"
)

// Config is the root configuration shared by twapd and the agent.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Market  MarketConfig  `mapstructure:"market"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig describes the HTTP surface of twapd.
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`

	// AdminToken authenticates the configuration authority on the
	// admin endpoints. ExecutorToken authenticates the executor on the
	// execute endpoint.
	AdminToken    string `mapstructure:"admin_token"`
	ExecutorToken string `mapstructure:"executor_token"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is "memory" or "postgres".
	Backend     string `mapstructure:"backend"`
	PostgresDSN string `mapstructure:"postgres_dsn"`

	// ClickhouseDSN enables the oracle quote timeseries when set.
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
}

// MarketConfig selects the market adapters.
type MarketConfig struct {
	// Mode is "stub" (deterministic in-memory capabilities) or "evm".
	Mode string `mapstructure:"mode"`

	// EVM settings.
	RPCURL        string `mapstructure:"rpc_url"`
	ChainID       uint64 `mapstructure:"chain_id"`
	PrivateKey    string `mapstructure:"private_key"`
	RouterAddress string `mapstructure:"router_address"`
	FeedAddress   string `mapstructure:"feed_address"`

	// StubPrice is the fixed 1e18-scaled quote in stub mode, decimal.
	StubPrice string `mapstructure:"stub_price"`
}

// EngineConfig carries the engine role identities.
type EngineConfig struct {
	Owner    string `mapstructure:"owner"`
	Executor string `mapstructure:"executor"`

	// Self is the engine's custody identity at the bank. In evm mode it
	// defaults to the signer address derived from market.private_key.
	Self string `mapstructure:"self"`
}

// AgentConfig controls the executor agent loop.
type AgentConfig struct {
	// ServerURL points the remote agent at a twapd instance.
	ServerURL    string        `mapstructure:"server_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxRetry     int           `mapstructure:"max_retry"`
}

// LoggingConfig mirrors zap's production configuration knobs.
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("config: storage.postgres_dsn required for postgres backend")
		}
	default:
		return errors.New("config: storage.backend must be memory or postgres")
	}

	switch c.Market.Mode {
	case "stub":
	case "evm":
		if c.Market.RPCURL == "" {
			return errors.New("config: market.rpc_url required for evm mode")
		}
		if c.Market.PrivateKey == "" {
			return errors.New("config: market.private_key required for evm mode")
		}
	default:
		return errors.New("config: market.mode must be stub or evm")
	}

	if c.Engine.Executor == "" {
		return errors.New("config: engine.executor is required")
	}
	if c.Agent.PollInterval <= 0 {
		return errors.New("config: agent.poll_interval must be positive")
	}
	return nil
}
