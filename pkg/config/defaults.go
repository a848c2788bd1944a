package config

import "time"

// Chain endpoint types.
const (
	EndpointToncenter  = "toncenter"
	EndpointLiteserver = "liteserver"
)

// Mnemonic flavours accepted for the oracle key.
const (
	MnemonicTON   = "ton"
	MnemonicBIP39 = "bip39"
)

const (
	// DefaultHDPath is the SLIP-0010 path for TON keys derived from BIP39 mnemonics.
	DefaultHDPath = "m/44'/607'/0'"

	DefaultTickInterval = time.Second
	DefaultPriceTTL     = 30 * time.Second
	DefaultHTTPTimeout  = 10 * time.Second

	DefaultSourceRetryAttempts = 3
	DefaultChainRetryAttempts  = 2
	DefaultRetryDelay          = time.Second

	DefaultHermesURL          = "https://hermes.pyth.network"
	DefaultMinValidSignatures = 13

	DefaultRedstoneDataService   = "redstone-primary-prod"
	DefaultRedstoneUniqueSigners = 3
	DefaultRedstoneDecimals      = 8
	DefaultRedstoneRegistryURL   = "https://raw.githubusercontent.com/redstone-finance/redstone-oracles-monorepo/main/packages/oracles-smartweave-contracts/src/contracts/redstone-oracle-registry/initial-state.json"

	DefaultSupraAddress   = "mainnet-dora.supraoracles.com:443"
	DefaultSupraChainType = "evm"

	DefaultNotifyRate  = 1.0
	DefaultNotifyBurst = 5
	DefaultNotifyQueue = 128
	DefaultTelegramAPI = "https://api.telegram.org"
)

// DefaultPythFeeds maps base assets to Pyth price feed ids.
var DefaultPythFeeds = map[string]string{
	"TON":  "0x8963217838ab4cf5cadc172203c1f0b763fbaa45f346d8ee50ba994bbcac3026",
	"USDT": "0x2b89b9dc8fdf9f34709a5b106b472f0f39bb6ca9ce04b0fd7f2e971688e2e53b",
	"USDC": "0xeaa020c61cc479712813461ce153894a96a6c00b21ed0cfc2798d1f9a9e9c94a",
}

// DefaultGuardians is the Wormhole guardian set that signs Pyth accumulator roots.
var DefaultGuardians = []string{
	"0x5893B5A76c3f739645648885bDCcC06cd70a3Cd3",
	"0xfF6CB952589BDE862c25Ef4392132fb9D4A42157",
	"0x114De8460193bdf3A2fCf81f86a09765F4762fD1",
	"0x107A0086b32d7A0977926A205131d8731D39cbEB",
	"0x8C82B2fd82FaeD2711d59AF0F2499D16e726f6b2",
	"0x11b39756C042441BE6D8650b69b54EbE715E2343",
	"0x54Ce5B4D348fb74B958e8966e2ec3dBd4958a7cd",
	"0x15e7cAF07C4e3DC8e7C469f92C8Cd88FB8005a20",
	"0x74a3bf913953D695260D88BC1aA25A4eeE363ef0",
	"0x000aC0076727b35FBea2dAc28fEE5cCB0fEA768e",
	"0xAF45Ced136b9D9e24903464AE889F5C8a723FC14",
	"0xf93124b7c738843CBB89E864c862c38cddCccF95",
	"0xD2CC37A4dc036a8D232b48f62cDD4731412f4890",
	"0xDA798F6896A3331F64b48c12D1D57Fd9cbe70811",
	"0x71AA1BE1D36CaFE3867910F99C09e347899C19C3",
	"0x8192b6E7387CCd768277c17DAb1b7a5027c0b3Cf",
	"0x178e21ad2E77AE06711549CFBB1f9c7a9d8096e8",
	"0x5E1487F35515d02A92753504a8D75471b9f49EdB",
	"0x6FbEBc898F403E4773E95feB15E80C9A99c8348d",
}

// DefaultRedstoneGateways are queried in order.
var DefaultRedstoneGateways = []string{
	"https://oracle-gateway-1.a.redstone.finance",
	"https://oracle-gateway-2.a.redstone.finance",
}

// DefaultRedstoneFeeds are the data feed ids requested from Redstone.
var DefaultRedstoneFeeds = []string{"TON", "USDC", "USDT"}

// DefaultSupraPairs maps base assets to Supra pair indexes.
var DefaultSupraPairs = map[string]uint32{
	"TON":  164,
	"USDT": 48,
	"USDC": 89,
}

// DefaultStTONPool reads bemo stTON reserves: get_full_data -> [stTON supply, TON balance, ...].
var DefaultStTONPool = PoolConfig{
	Address:    "EQDNhy-nxYFgUqzfUzImBEP67JqsyMIcyk2S5_RwNNEYku0k",
	Method:     "get_full_data",
	AssetFirst: true,
}

// DefaultTsTONPool reads Tonstakers reserves: 28 entries, then TON balance, tsTON supply.
var DefaultTsTONPool = PoolConfig{
	Address: "EQCkWxfyhAkim3g2DjKQQg8T5P4g-Q1-K_jErGcDJZ4i-vqR",
	Method:  "get_pool_full_data",
	Skip:    28,
}
