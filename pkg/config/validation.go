package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xssnick/tonutils-go/address"
)

var knownAssets = map[string]bool{"TON": true, "USDT": true, "USDC": true}

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	if err := validateOracleConfig(&cfg.Oracle); err != nil {
		return fmt.Errorf("oracle config: %w", err)
	}

	if err := validateTickConfig(&cfg.Tick); err != nil {
		return fmt.Errorf("tick config: %w", err)
	}

	if err := validateSourcesConfig(&cfg.Sources); err != nil {
		return fmt.Errorf("sources config: %w", err)
	}

	if err := validateChainConfig(&cfg.Chain); err != nil {
		return fmt.Errorf("chain config: %w", err)
	}

	for name, pool := range map[string]PoolConfig{"stton": cfg.Staking.StTON, "tston": cfg.Staking.TsTON} {
		if err := validatePoolConfig(pool); err != nil {
			return fmt.Errorf("staking %s: %w", name, err)
		}
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateOracleConfig(cfg *OracleConfig) error {
	if cfg.Mnemonic == "" && cfg.MnemonicEnv == "" && cfg.SeedHexEnv == "" {
		return ErrOracleKeyRequired
	}
	if cfg.MnemonicEnv != "" && cfg.Mnemonic == "" && os.Getenv(cfg.MnemonicEnv) == "" {
		return fmt.Errorf("%w: %s", ErrMnemonicEnvNotSet, cfg.MnemonicEnv)
	}
	switch strings.ToLower(cfg.MnemonicType) {
	case MnemonicTON, MnemonicBIP39:
	default:
		return fmt.Errorf("%w: %s (must be 'ton' or 'bip39')", ErrInvalidMnemonicType, cfg.MnemonicType)
	}
	return nil
}

func validateTickConfig(cfg *TickConfig) error {
	if cfg.Interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTickInterval, cfg.Interval.ToDuration())
	}
	if cfg.PriceTTL <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPriceTTL, cfg.PriceTTL.ToDuration())
	}
	return nil
}

func validateSourcesConfig(cfg *SourcesConfig) error {
	if cfg.Retry.Attempts < 1 {
		return fmt.Errorf("retry: %w", ErrInvalidRetry)
	}

	enabled := 0
	if IsEnabled(cfg.Pyth.Enabled) {
		enabled++
		if err := validatePythConfig(&cfg.Pyth); err != nil {
			return fmt.Errorf("pyth: %w", err)
		}
	}
	if IsEnabled(cfg.Redstone.Enabled) {
		enabled++
		if len(cfg.Redstone.Gateways) == 0 {
			return fmt.Errorf("redstone: %w", ErrGatewaysRequired)
		}
		if cfg.Redstone.DataServiceID == "" {
			return fmt.Errorf("redstone: %w", ErrDataServiceRequired)
		}
		for _, feed := range cfg.Redstone.Feeds {
			if !knownAssets[feed] {
				return fmt.Errorf("redstone: %w: %s", ErrUnknownAsset, feed)
			}
		}
	}
	if IsEnabled(cfg.Supra.Enabled) {
		enabled++
		if cfg.Supra.Address == "" {
			return fmt.Errorf("supra: %w", ErrSupraAddressRequired)
		}
		if len(cfg.Supra.Pairs) == 0 {
			return fmt.Errorf("supra: %w", ErrSupraPairsRequired)
		}
		for symbol := range cfg.Supra.Pairs {
			if !knownAssets[symbol] {
				return fmt.Errorf("supra: %w: %s", ErrUnknownAsset, symbol)
			}
		}
	}
	if enabled == 0 {
		return ErrNoSourcesEnabled
	}
	return nil
}

func validatePythConfig(cfg *PythConfig) error {
	if cfg.URL == "" {
		return ErrPythURLRequired
	}
	if len(cfg.Feeds) == 0 {
		return ErrPythFeedsRequired
	}
	for symbol := range cfg.Feeds {
		if !knownAssets[symbol] {
			return fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
		}
	}
	if len(cfg.Guardians) == 0 {
		return ErrGuardiansRequired
	}
	for i, g := range cfg.Guardians {
		if !common.IsHexAddress(g) {
			return fmt.Errorf("%w: guardian[%d] %s", ErrInvalidGuardian, i, g)
		}
	}
	return nil
}

func validateChainConfig(cfg *ChainConfig) error {
	if len(cfg.Endpoints) == 0 {
		return ErrNoChainEndpoints
	}
	for i, ep := range cfg.Endpoints {
		if ep.URL == "" {
			return fmt.Errorf("endpoint[%d] %s: %w", i, ep.Name, ErrEndpointURLRequired)
		}
		switch ep.Type {
		case EndpointToncenter, EndpointLiteserver:
		default:
			return fmt.Errorf("endpoint[%d] %s: %w: %q", i, ep.Name, ErrInvalidEndpointType, ep.Type)
		}
	}
	if cfg.Retry.Attempts < 1 {
		return fmt.Errorf("retry: %w", ErrInvalidRetry)
	}
	return nil
}

func validatePoolConfig(cfg PoolConfig) error {
	if _, err := address.ParseAddr(cfg.Address); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPoolAddress, cfg.Address, err)
	}
	if cfg.Method == "" {
		return ErrPoolMethodRequired
	}
	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %s (must be 'debug', 'info', 'warn', or 'error')", ErrInvalidLogLevel, cfg.Level)
	}

	switch strings.ToLower(cfg.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("%w: %s (must be 'json' or 'text')", ErrInvalidLogFormat, cfg.Format)
	}

	return nil
}
