package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from YAML file and environment variables.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML bytes, expanding ${ENV} references, and applies defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// Default returns a configuration populated only with defaults.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.Oracle.MnemonicType == "" {
		cfg.Oracle.MnemonicType = MnemonicTON
	}
	if cfg.Oracle.HDPath == "" {
		cfg.Oracle.HDPath = DefaultHDPath
	}

	if cfg.Tick.Interval == 0 {
		cfg.Tick.Interval = Duration(DefaultTickInterval)
	}
	if cfg.Tick.PriceTTL == 0 {
		cfg.Tick.PriceTTL = Duration(DefaultPriceTTL)
	}

	applyRetryDefaults(&cfg.Sources.Retry, DefaultSourceRetryAttempts)
	applyRetryDefaults(&cfg.Chain.Retry, DefaultChainRetryAttempts)

	pyth := &cfg.Sources.Pyth
	if pyth.URL == "" {
		pyth.URL = DefaultHermesURL
	}
	if len(pyth.Feeds) == 0 {
		pyth.Feeds = copyStrings(DefaultPythFeeds)
	}
	if len(pyth.Guardians) == 0 {
		pyth.Guardians = append([]string(nil), DefaultGuardians...)
	}
	if pyth.MinValidSignatures == 0 {
		pyth.MinValidSignatures = DefaultMinValidSignatures
	}
	if pyth.Timeout == 0 {
		pyth.Timeout = Duration(DefaultHTTPTimeout)
	}

	rs := &cfg.Sources.Redstone
	if len(rs.Gateways) == 0 {
		rs.Gateways = append([]string(nil), DefaultRedstoneGateways...)
	}
	if rs.DataServiceID == "" {
		rs.DataServiceID = DefaultRedstoneDataService
	}
	if len(rs.Feeds) == 0 {
		rs.Feeds = append([]string(nil), DefaultRedstoneFeeds...)
	}
	if rs.UniqueSigners == 0 {
		rs.UniqueSigners = DefaultRedstoneUniqueSigners
	}
	if rs.Decimals == 0 {
		rs.Decimals = DefaultRedstoneDecimals
	}
	if rs.RegistryURL == "" && len(rs.Signers) == 0 {
		rs.RegistryURL = DefaultRedstoneRegistryURL
	}
	if rs.Timeout == 0 {
		rs.Timeout = Duration(DefaultHTTPTimeout)
	}

	supra := &cfg.Sources.Supra
	if supra.Address == "" {
		supra.Address = DefaultSupraAddress
	}
	if supra.ChainType == "" {
		supra.ChainType = DefaultSupraChainType
	}
	if len(supra.Pairs) == 0 {
		supra.Pairs = make(map[string]uint32, len(DefaultSupraPairs))
		for k, v := range DefaultSupraPairs {
			supra.Pairs[k] = v
		}
	}
	if supra.Timeout == 0 {
		supra.Timeout = Duration(DefaultHTTPTimeout)
	}

	if cfg.Chain.Timeout == 0 {
		cfg.Chain.Timeout = Duration(DefaultHTTPTimeout)
	}
	for i := range cfg.Chain.Endpoints {
		ep := &cfg.Chain.Endpoints[i]
		if ep.Name == "" {
			ep.Name = fmt.Sprintf("endpoint-%d", i)
		}
		if ep.Type == "" {
			ep.Type = EndpointToncenter
		}
		if ep.APIKey == "" && ep.APIKeyEnv != "" {
			ep.APIKey = os.Getenv(ep.APIKeyEnv)
		}
	}

	if cfg.Staking.StTON.Address == "" {
		cfg.Staking.StTON = DefaultStTONPool
	}
	if cfg.Staking.TsTON.Address == "" {
		cfg.Staking.TsTON = DefaultTsTONPool
	}

	if cfg.Notify.RateLimit == 0 {
		cfg.Notify.RateLimit = DefaultNotifyRate
	}
	if cfg.Notify.Burst == 0 {
		cfg.Notify.Burst = DefaultNotifyBurst
	}
	if cfg.Notify.QueueSize == 0 {
		cfg.Notify.QueueSize = DefaultNotifyQueue
	}
	if cfg.Notify.Telegram.Token == "" && cfg.Notify.Telegram.TokenEnv != "" {
		cfg.Notify.Telegram.Token = os.Getenv(cfg.Notify.Telegram.TokenEnv)
	}
	if cfg.Notify.Telegram.APIURL == "" {
		cfg.Notify.Telegram.APIURL = DefaultTelegramAPI
	}

	if cfg.API.Addr == "" {
		cfg.API.Addr = ":8080"
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = Duration(DefaultHTTPTimeout)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9091"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

func applyRetryDefaults(r *RetryConfig, attempts int) {
	if r.Attempts == 0 {
		r.Attempts = attempts
	}
	if r.Delay == 0 {
		r.Delay = Duration(DefaultRetryDelay)
	}
}

func copyStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ResolveMnemonic returns the configured mnemonic, reading the environment if needed.
func (o *OracleConfig) ResolveMnemonic() (string, error) {
	if o.Mnemonic != "" {
		return o.Mnemonic, nil
	}
	if o.MnemonicEnv != "" {
		if v := os.Getenv(o.MnemonicEnv); v != "" {
			return v, nil
		}
		return "", fmt.Errorf("%w: %s", ErrMnemonicEnvNotSet, o.MnemonicEnv)
	}
	return "", ErrOracleKeyRequired
}
