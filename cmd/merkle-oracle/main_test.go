package main

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/evaafi/merkle-oracles-pub/pkg/version"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version.AgentString()+"\n", out)
}

func TestVerifierConfigCmd(t *testing.T) {
	pub1 := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{1}, 32)).Public().(ed25519.PublicKey)
	pub2 := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{2}, 32)).Public().(ed25519.PublicKey)

	out, err := execute(t, "verifier-config",
		"--key", "2:"+hex.EncodeToString(pub2),
		"--key", "1:0x"+hex.EncodeToString(pub1),
	)
	require.NoError(t, err)

	boc, err := hex.DecodeString(strings.TrimSpace(out))
	require.NoError(t, err)
	root, err := cell.FromBOC(boc)
	require.NoError(t, err)

	s := root.BeginParse()
	count, err := s.LoadUInt(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	dict, err := s.LoadDict(32)
	require.NoError(t, err)
	v, err := dict.LoadValue(cell.BeginCell().MustStoreUInt(1, 32).EndCell())
	require.NoError(t, err)
	key, err := v.LoadSlice(256)
	require.NoError(t, err)
	assert.Equal(t, []byte(pub1), key)
}

func TestVerifierConfigCmd_NoKeys(t *testing.T) {
	_, err := execute(t, "verifier-config")
	require.Error(t, err)
}

func TestParseOracleKey(t *testing.T) {
	pub := hex.EncodeToString(make([]byte, 32))

	key, err := parseOracleKey("7:" + pub)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), key.ID)

	for _, bad := range []string{"7", "x:" + pub, "7:zz", "7:abcd", "4294967296:" + pub} {
		_, err := parseOracleKey(bad)
		assert.ErrorIs(t, err, errInvalidKeyFlag, bad)
	}
}
