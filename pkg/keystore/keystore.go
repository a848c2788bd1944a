// Package keystore derives the oracle's ed25519 signing key.
package keystore

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cosmos/go-bip39"
	"golang.org/x/crypto/pbkdf2"

	"github.com/evaafi/merkle-oracles-pub/pkg/config"
)

const (
	tonSeedSalt         = "TON default seed"
	tonBasicSeedSalt    = "TON seed version"
	tonPasswordSeedSalt = "TON fast seed version"
	tonIterations       = 100000

	slip10Curve   = "ed25519 seed"
	hardenedIndex = 0x80000000
)

var (
	// ErrInvalidMnemonic indicates a mnemonic failing its checksum.
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	// ErrInvalidSeed indicates a seed that is not 32 hex encoded bytes.
	ErrInvalidSeed = errors.New("invalid ed25519 seed")
	// ErrInvalidPath indicates a malformed or non-hardened derivation path.
	ErrInvalidPath = errors.New("invalid derivation path")
)

// Signer holds the oracle key.
type Signer struct {
	private ed25519.PrivateKey
}

// NewSigner wraps a 32-byte ed25519 seed.
func NewSigner(seed []byte) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidSeed, len(seed))
	}
	return &Signer{private: ed25519.NewKeyFromSeed(seed)}, nil
}

// Sign signs msg.
func (s *Signer) Sign(msg []byte) []byte {
	return ed25519.Sign(s.private, msg)
}

// PublicKey returns the 32-byte public key.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.private.Public().(ed25519.PublicKey)
}

// PublicKeyHex returns the public key as lowercase hex.
func (s *Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.PublicKey())
}

// Load builds the signer described by cfg. A hex seed in the environment
// takes precedence over a mnemonic.
func Load(cfg config.OracleConfig) (*Signer, error) {
	if cfg.SeedHexEnv != "" {
		if v := os.Getenv(cfg.SeedHexEnv); v != "" {
			return FromSeedHex(v)
		}
	}

	mnemonic, err := cfg.ResolveMnemonic()
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.MnemonicType) {
	case config.MnemonicBIP39:
		return FromBIP39(mnemonic, cfg.Password, cfg.HDPath)
	default:
		return FromTONMnemonic(mnemonic, cfg.Password)
	}
}

// FromSeedHex parses a 32-byte hex seed, with or without a 0x prefix.
func FromSeedHex(s string) (*Signer, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	return NewSigner(b)
}

// FromTONMnemonic derives the key the way TON wallets do.
func FromTONMnemonic(mnemonic, password string) (*Signer, error) {
	words := normalizeWords(mnemonic)
	if !IsTONMnemonic(words, password) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidMnemonic)
	}
	seed := pbkdf2.Key(tonEntropy(words, password), []byte(tonSeedSalt), tonIterations, 64, sha512.New)
	return NewSigner(seed[:ed25519.SeedSize])
}

// IsTONMnemonic reports whether words pass the TON seed version check.
func IsTONMnemonic(words []string, password string) bool {
	if len(words) == 0 {
		return false
	}
	entropy := tonEntropy(words, password)
	if password == "" {
		seed := pbkdf2.Key(entropy, []byte(tonBasicSeedSalt), tonIterations/256, 64, sha512.New)
		return seed[0] == 0
	}
	seed := pbkdf2.Key(entropy, []byte(tonPasswordSeedSalt), 1, 64, sha512.New)
	return seed[0] == 1
}

func tonEntropy(words []string, password string) []byte {
	mac := hmac.New(sha512.New, []byte(strings.Join(words, " ")))
	mac.Write([]byte(password))
	return mac.Sum(nil)
}

// FromBIP39 derives an ed25519 key along a hardened SLIP-0010 path.
func FromBIP39(mnemonic, password, path string) (*Signer, error) {
	mnemonic = strings.Join(normalizeWords(mnemonic), " ")
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMnemonic, err)
	}
	if path == "" {
		path = config.DefaultHDPath
	}
	key, err := DeriveSLIP10(seed, path)
	if err != nil {
		return nil, err
	}
	return NewSigner(key)
}

// DeriveSLIP10 returns the ed25519 private key seed at path.
func DeriveSLIP10(seed []byte, path string) ([]byte, error) {
	indexes, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	key, chainCode := hmacSplit([]byte(slip10Curve), seed)
	for _, idx := range indexes {
		data := make([]byte, 0, 37)
		data = append(data, 0)
		data = append(data, key...)
		data = binary.BigEndian.AppendUint32(data, idx)
		key, chainCode = hmacSplit(chainCode, data)
	}
	return key, nil
}

func hmacSplit(key, data []byte) ([]byte, []byte) {
	mac := hmac.New(sha512.New, key)
	mac.Write(data)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}

// parsePath accepts m/a'/b'/... where every segment is hardened.
func parsePath(path string) ([]uint32, error) {
	parts := strings.Split(strings.TrimSpace(path), "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	out := make([]uint32, 0, len(parts)-1)
	for _, p := range parts[1:] {
		trimmed := strings.TrimRight(p, "'hH")
		if trimmed == p {
			return nil, fmt.Errorf("%w: segment %q is not hardened", ErrInvalidPath, p)
		}
		n, err := strconv.ParseUint(trimmed, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPath, p, err)
		}
		out = append(out, uint32(n)+hardenedIndex)
	}
	return out, nil
}

func normalizeWords(mnemonic string) []string {
	return strings.Fields(strings.ToLower(mnemonic))
}
