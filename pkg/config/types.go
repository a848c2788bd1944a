package config

import "time"

// Config is the root configuration structure
type Config struct {
	Oracle  OracleConfig  `yaml:"oracle"`
	Tick    TickConfig    `yaml:"tick"`
	Sources SourcesConfig `yaml:"sources"`
	Chain   ChainConfig   `yaml:"chain"`
	Staking StakingConfig `yaml:"staking"`
	Notify  NotifyConfig  `yaml:"notify"`
	API     APIConfig     `yaml:"api"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// OracleConfig identifies the local signer.
type OracleConfig struct {
	ID           uint32 `yaml:"id"`
	Mnemonic     string `yaml:"mnemonic"`      // space separated words (or use MnemonicEnv)
	MnemonicEnv  string `yaml:"mnemonic_env"`  // environment variable holding the mnemonic
	MnemonicType string `yaml:"mnemonic_type"` // "ton" or "bip39"
	Password     string `yaml:"password"`      // optional TON mnemonic password
	HDPath       string `yaml:"hd_path"`       // bip39 only
	SeedHexEnv   string `yaml:"seed_hex_env"`  // 32-byte ed25519 seed, hex encoded
}

// TickConfig controls the signing loop.
type TickConfig struct {
	Interval Duration `yaml:"interval"`
	PriceTTL Duration `yaml:"price_ttl"`
}

// RetryConfig is a bounded constant-delay retry policy.
type RetryConfig struct {
	Attempts int      `yaml:"attempts"`
	Delay    Duration `yaml:"delay"`
}

// SourcesConfig groups the three oracle networks.
type SourcesConfig struct {
	Retry    RetryConfig    `yaml:"retry"`
	Pyth     PythConfig     `yaml:"pyth"`
	Redstone RedstoneConfig `yaml:"redstone"`
	Supra    SupraConfig    `yaml:"supra"`
}

// PythConfig configures the Hermes accumulator source.
type PythConfig struct {
	Enabled            *bool             `yaml:"enabled"`
	URL                string            `yaml:"url"`
	Feeds              map[string]string `yaml:"feeds"` // asset symbol -> price feed id
	Guardians          []string          `yaml:"guardians"`
	MinValidSignatures int               `yaml:"min_valid_signatures"`
	Timeout            Duration          `yaml:"timeout"`
}

// RedstoneConfig configures the gateway source.
type RedstoneConfig struct {
	Enabled       *bool             `yaml:"enabled"`
	Gateways      []string          `yaml:"gateways"`
	DataServiceID string            `yaml:"data_service_id"`
	Feeds         []string          `yaml:"feeds"`
	UniqueSigners int               `yaml:"unique_signers"`
	Decimals      int32             `yaml:"decimals"`
	RegistryURL   string            `yaml:"registry_url"`
	Signers       map[string]string `yaml:"signers"` // static registry: evm address -> data service id
	Timeout       Duration          `yaml:"timeout"`
}

// SupraConfig configures the pull-service source.
type SupraConfig struct {
	Enabled   *bool             `yaml:"enabled"`
	Address   string            `yaml:"address"`
	Insecure  bool              `yaml:"insecure"`
	ChainType string            `yaml:"chain_type"`
	Pairs     map[string]uint32 `yaml:"pairs"` // asset symbol -> pair index
	Timeout   Duration          `yaml:"timeout"`
}

// ChainConfig lists read-only TON endpoints tried in order.
type ChainConfig struct {
	Endpoints []EndpointConfig `yaml:"endpoints"`
	Retry     RetryConfig      `yaml:"retry"`
	Timeout   Duration         `yaml:"timeout"`
}

// EndpointConfig is one named read-only TON endpoint.
type EndpointConfig struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"` // "toncenter" (JSON-RPC url) or "liteserver" (global config url)
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// StakingConfig locates the liquid staking pools.
type StakingConfig struct {
	StTON PoolConfig `yaml:"stton"`
	TsTON PoolConfig `yaml:"tston"`
}

// PoolConfig describes how reserves are read from a pool contract.
type PoolConfig struct {
	Address string `yaml:"address"`
	Method  string `yaml:"method"`
	Skip    int    `yaml:"skip"` // stack entries preceding the reserves
	// AssetFirst is true when the liquid token supply precedes the TON balance.
	AssetFirst bool `yaml:"asset_first"`
}

// NotifyConfig configures operator notifications.
type NotifyConfig struct {
	Prefix    string         `yaml:"prefix"`
	Telegram  TelegramConfig `yaml:"telegram"`
	Webhook   WebhookConfig  `yaml:"webhook"`
	RateLimit float64        `yaml:"rate_limit"` // messages per second
	Burst     int            `yaml:"burst"`
	QueueSize int            `yaml:"queue_size"`
}

// TelegramConfig configures the bot transport.
type TelegramConfig struct {
	Token    string `yaml:"token"`
	TokenEnv string `yaml:"token_env"`
	ChatID   string `yaml:"chat_id"`
	APIURL   string `yaml:"api_url"`
}

// WebhookConfig configures a generic JSON webhook transport.
type WebhookConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// APIConfig configures the commitment publisher.
type APIConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Addr      string   `yaml:"addr"`
	WebSocket bool     `yaml:"websocket"`
	Timeout   Duration `yaml:"timeout"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// IsEnabled reports whether an optional toggle is on. Unset means enabled.
func IsEnabled(b *bool) bool {
	return b == nil || *b
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
