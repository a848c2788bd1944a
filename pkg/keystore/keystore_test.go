package keystore

import (
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/cosmos/go-bip39"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaafi/merkle-oracles-pub/pkg/config"
)

// Test mnemonic (DO NOT use in production).
const testBIP39Mnemonic = "notice oak worry limit wrap speak medal online prefer cluster roof addict wrist behave treat actual wasp year salad speed social layer crew genius"

// tonMnemonic finds a 24 word phrase passing the TON basic seed check.
func tonMnemonic(t *testing.T) string {
	t.Helper()
	for i := 0; i < 4096; i++ {
		entropy, err := bip39.NewEntropy(256)
		require.NoError(t, err)
		m, err := bip39.NewMnemonic(entropy)
		require.NoError(t, err)
		if IsTONMnemonic(strings.Fields(m), "") {
			return m
		}
	}
	t.Fatal("no TON mnemonic found")
	return ""
}

func TestDeriveSLIP10_Vector(t *testing.T) {
	seed, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f")

	master, err := DeriveSLIP10(seed, "m")
	require.NoError(t, err)
	assert.Equal(t, "2b4be7f19ee27bbf30c667b642d5f4aa69fd169872f8fc3059c08ebae2eb19e7", hex.EncodeToString(master))

	child, err := DeriveSLIP10(seed, "m/0'")
	require.NoError(t, err)
	assert.Equal(t, "68e0fe46dfb67e368c75379acec591dad19df3cde26e63b93a8e704f1dade7a3", hex.EncodeToString(child))
}

func TestParsePath(t *testing.T) {
	got, err := parsePath("m/44'/607'/0'")
	require.NoError(t, err)
	assert.Equal(t, []uint32{44 + hardenedIndex, 607 + hardenedIndex, hardenedIndex}, got)

	for _, bad := range []string{"44'/607'", "m/44'/607'/0", "m/x'"} {
		_, err := parsePath(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}

func TestFromBIP39(t *testing.T) {
	a, err := FromBIP39(testBIP39Mnemonic, "", "")
	require.NoError(t, err)
	b, err := FromBIP39(strings.ToUpper(testBIP39Mnemonic), "", config.DefaultHDPath)
	require.NoError(t, err)
	assert.Equal(t, a.PublicKeyHex(), b.PublicKeyHex())

	other, err := FromBIP39(testBIP39Mnemonic, "", "m/44'/607'/1'")
	require.NoError(t, err)
	assert.NotEqual(t, a.PublicKeyHex(), other.PublicKeyHex())

	_, err = FromBIP39("notice oak worry", "", "")
	assert.ErrorIs(t, err, ErrInvalidMnemonic)
}

func TestFromTONMnemonic(t *testing.T) {
	m := tonMnemonic(t)

	s, err := FromTONMnemonic(m, "")
	require.NoError(t, err)
	again, err := FromTONMnemonic("  "+m+"\n", "")
	require.NoError(t, err)
	assert.Equal(t, s.PublicKeyHex(), again.PublicKeyHex())

	msg := []byte("commitment")
	assert.True(t, ed25519.Verify(s.PublicKey(), msg, s.Sign(msg)))

	words := strings.Fields(m)
	words[0], words[1] = words[1], words[0]
	if !IsTONMnemonic(words, "") {
		_, err = FromTONMnemonic(strings.Join(words, " "), "")
		assert.ErrorIs(t, err, ErrInvalidMnemonic)
	}
}

func TestFromSeedHex(t *testing.T) {
	seed := strings.Repeat("ab", 32)
	s, err := FromSeedHex("0x" + seed)
	require.NoError(t, err)
	want := ed25519.NewKeyFromSeed(mustHex(t, seed)).Public().(ed25519.PublicKey)
	assert.Equal(t, want, s.PublicKey())

	_, err = FromSeedHex("abcd")
	assert.ErrorIs(t, err, ErrInvalidSeed)
	_, err = FromSeedHex("zz")
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestLoad(t *testing.T) {
	seed := strings.Repeat("01", 32)
	t.Setenv("ORACLE_SEED", seed)

	s, err := Load(config.OracleConfig{SeedHexEnv: "ORACLE_SEED", Mnemonic: testBIP39Mnemonic})
	require.NoError(t, err)
	assert.Equal(t, ed25519.NewKeyFromSeed(mustHex(t, seed)).Public(), s.PublicKey())

	t.Setenv("ORACLE_MNEMONIC", testBIP39Mnemonic)
	s, err = Load(config.OracleConfig{MnemonicEnv: "ORACLE_MNEMONIC", MnemonicType: config.MnemonicBIP39})
	require.NoError(t, err)
	want, err := FromBIP39(testBIP39Mnemonic, "", config.DefaultHDPath)
	require.NoError(t, err)
	assert.Equal(t, want.PublicKeyHex(), s.PublicKeyHex())

	_, err = Load(config.OracleConfig{})
	assert.ErrorIs(t, err, config.ErrOracleKeyRequired)
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}
