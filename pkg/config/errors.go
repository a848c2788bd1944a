// Package config provides configuration loading and validation for the price oracle.
package config

import "errors"

var (
	// ErrOracleKeyRequired indicates that no signing key source is configured.
	ErrOracleKeyRequired = errors.New("one of mnemonic, mnemonic_env or seed_hex_env must be specified")
	// ErrMnemonicEnvNotSet indicates that the mnemonic environment variable is not set.
	ErrMnemonicEnvNotSet = errors.New("mnemonic environment variable not set")
	// ErrInvalidMnemonicType indicates that mnemonic_type is not ton or bip39.
	ErrInvalidMnemonicType = errors.New("invalid mnemonic_type")
	// ErrInvalidTickInterval indicates a non-positive tick interval.
	ErrInvalidTickInterval = errors.New("tick interval must be positive")
	// ErrInvalidPriceTTL indicates a non-positive price freshness window.
	ErrInvalidPriceTTL = errors.New("tick price_ttl must be positive")
	// ErrNoSourcesEnabled indicates that every oracle network is disabled.
	ErrNoSourcesEnabled = errors.New("no sources enabled")
	// ErrInvalidRetry indicates a retry policy with no attempts.
	ErrInvalidRetry = errors.New("retry attempts must be >= 1")
	// ErrPythURLRequired indicates that the Hermes URL is missing.
	ErrPythURLRequired = errors.New("pyth url is required")
	// ErrPythFeedsRequired indicates that no Pyth feed ids are configured.
	ErrPythFeedsRequired = errors.New("pyth feeds are required")
	// ErrGuardiansRequired indicates that the guardian registry is empty.
	ErrGuardiansRequired = errors.New("pyth guardian registry is required")
	// ErrInvalidGuardian indicates a malformed guardian address.
	ErrInvalidGuardian = errors.New("invalid guardian address")
	// ErrGatewaysRequired indicates that no Redstone gateway is configured.
	ErrGatewaysRequired = errors.New("redstone gateways are required")
	// ErrDataServiceRequired indicates that the Redstone data service id is missing.
	ErrDataServiceRequired = errors.New("redstone data_service_id is required")
	// ErrSupraAddressRequired indicates that the Supra pull service address is missing.
	ErrSupraAddressRequired = errors.New("supra address is required")
	// ErrSupraPairsRequired indicates that no Supra pairs are configured.
	ErrSupraPairsRequired = errors.New("supra pairs are required")
	// ErrUnknownAsset indicates a feed mapped to an unknown asset symbol.
	ErrUnknownAsset = errors.New("unknown asset symbol")
	// ErrNoChainEndpoints indicates that at least one chain endpoint must be specified.
	ErrNoChainEndpoints = errors.New("at least one chain endpoint must be specified")
	// ErrEndpointURLRequired indicates a chain endpoint without URL.
	ErrEndpointURLRequired = errors.New("chain endpoint url is required")
	// ErrInvalidEndpointType indicates an unknown chain endpoint type.
	ErrInvalidEndpointType = errors.New("endpoint type must be 'toncenter' or 'liteserver'")
	// ErrInvalidPoolAddress indicates an unparsable pool address.
	ErrInvalidPoolAddress = errors.New("invalid pool address")
	// ErrPoolMethodRequired indicates that a pool has no get-method name.
	ErrPoolMethodRequired = errors.New("pool method is required")
	// ErrInvalidLogLevel indicates that the log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat indicates that the log format is invalid.
	ErrInvalidLogFormat = errors.New("invalid log format")
)
