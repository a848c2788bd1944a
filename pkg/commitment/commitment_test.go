package commitment

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/evaafi/merkle-oracles-pub/pkg/aggregator"
	"github.com/evaafi/merkle-oracles-pub/pkg/assets"
)

type testSigner struct {
	key ed25519.PrivateKey
}

func newTestSigner(b byte) *testSigner {
	return &testSigner{key: ed25519.NewKeyFromSeed(bytes.Repeat([]byte{b}, ed25519.SeedSize))}
}

func (s *testSigner) Sign(msg []byte) []byte { return ed25519.Sign(s.key, msg) }

func (s *testSigner) PublicKey() ed25519.PublicKey { return s.key.Public().(ed25519.PublicKey) }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func signedFor(t *testing.T, ts uint32, prices aggregator.PriceSet, signer Signer) *Signed {
	t.Helper()
	c, err := FromPrices(ts, prices)
	require.NoError(t, err)
	s, err := Sign(c, signer)
	require.NoError(t, err)
	return s
}

func TestScalePrice(t *testing.T) {
	v, err := ScalePrice(d("2.42"))
	require.NoError(t, err)
	assert.Equal(t, int64(2420000000), v.Int64())

	v, err = ScalePrice(d("1.0000000006"))
	require.NoError(t, err)
	assert.Equal(t, int64(1000000001), v.Int64())

	_, err = ScalePrice(d("-1"))
	assert.ErrorIs(t, err, ErrInvalidPrice)

	assert.True(t, d("2.42").Equal(UnscalePrice(big.NewInt(2420000000))))
}

func TestPackUnpack(t *testing.T) {
	c, err := FromPrices(1700000000, aggregator.PriceSet{
		assets.TON:   d("2.42"),
		assets.USDT:  d("1"),
		assets.USDC:  d("0.999"),
		assets.STTON: d("2.55"),
	})
	require.NoError(t, err)
	// USDC is an input feed only.
	assert.ElementsMatch(t, []assets.Asset{assets.TON, assets.USDT, assets.STTON}, c.Assets())
	for i := 1; i < len(c.Entries); i++ {
		assert.Negative(t, c.Entries[i-1].ID.Cmp(c.Entries[i].ID))
	}

	packed, err := c.Pack()
	require.NoError(t, err)

	got, err := Unpack(packed)
	require.NoError(t, err)
	assert.Equal(t, uint32(1700000000), got.Timestamp)
	require.Len(t, got.Entries, 3)
	p, ok := got.Price(assets.TON.ID())
	require.True(t, ok)
	assert.Equal(t, int64(2420000000), p.Int64())

	// Same content packs to the same hash.
	again, err := got.Pack()
	require.NoError(t, err)
	assert.Equal(t, packed.Hash(), again.Hash())
}

func TestFromPrices_Empty(t *testing.T) {
	_, err := FromPrices(1, aggregator.PriceSet{assets.USDC: d("1")})
	assert.ErrorIs(t, err, ErrIncompletePackaging)
}

func TestSignVerify(t *testing.T) {
	s := signedFor(t, 1700000000, aggregator.PriceSet{assets.TON: d("2.42")}, newTestSigner(1))
	require.NoError(t, s.Verify())
	assert.True(t, ed25519.Verify(s.PublicKey, s.Packed.Hash(), s.Signature))

	s.Signature[0] ^= 0xff
	assert.ErrorIs(t, s.Verify(), ErrInvalidSignature)
}

func TestCreateProof_SubsetMatchesRoot(t *testing.T) {
	// Two assets, prove one.
	c, err := FromPrices(1700000000, aggregator.PriceSet{
		assets.TON:  d("1.23"),
		assets.USDT: d("4.56"),
	})
	require.NoError(t, err)
	packed, err := c.Pack()
	require.NoError(t, err)

	proof, err := CreateProof(packed, []*big.Int{assets.TON.ID()})
	require.NoError(t, err)
	require.NoError(t, CheckProof(proof, packed.Hash()))

	other := *c
	other.Entries = []Entry{{ID: assets.TON.ID(), Price: big.NewInt(1230000000)}}
	smaller, err := other.Pack()
	require.NoError(t, err)
	assert.ErrorIs(t, CheckProof(proof, smaller.Hash()), ErrProofMismatch)
}

func TestCreateProof_ManyAssets(t *testing.T) {
	prices := aggregator.PriceSet{}
	for i, a := range assets.Signed() {
		prices[a] = decimal.NewFromInt(int64(i + 1))
	}
	c, err := FromPrices(42, prices)
	require.NoError(t, err)
	packed, err := c.Pack()
	require.NoError(t, err)

	for _, subset := range [][]assets.Asset{
		{assets.TON},
		{assets.TSTON, assets.JUSDC},
		assets.Signed(),
	} {
		ids := make([]*big.Int, len(subset))
		for i, a := range subset {
			ids[i] = a.ID()
		}
		proof, err := CreateProof(packed, ids)
		require.NoError(t, err)
		assert.NoError(t, CheckProof(proof, packed.Hash()))

		leaves, pruned := countProofCells(proof)
		assert.Equal(t, len(subset), leaves, "subset %v", subset)
		if len(subset) < len(assets.Signed()) {
			assert.Positive(t, pruned)
		} else {
			assert.Zero(t, pruned)
		}
	}

	_, err = CreateProof(packed, []*big.Int{assets.USDC.ID()})
	assert.ErrorIs(t, err, ErrIncompletePackaging)
	_, err = CreateProof(packed, nil)
	assert.ErrorIs(t, err, ErrIncompletePackaging)
}

// countProofCells counts the dictionary leaves a proof reveals and the
// branches it prunes.
func countProofCells(proof *cell.Cell) (leaves, pruned int) {
	var walk func(c *cell.Cell)
	walk = func(c *cell.Cell) {
		switch {
		case c.GetType() == cell.PrunedCellType:
			pruned++
		case c.RefsNum() == 0:
			leaves++
		default:
			for i := 0; i < int(c.RefsNum()); i++ {
				walk(c.MustPeekRef(i))
			}
		}
	}
	body := proof.MustPeekRef(0)
	walk(body.MustPeekRef(0))
	return leaves, pruned
}

func TestCreateProof_RevealsOnlyRequestedLeaves(t *testing.T) {
	prices := aggregator.PriceSet{}
	for i, a := range assets.Signed() {
		prices[a] = decimal.NewFromInt(int64(10 + i))
	}
	c, err := FromPrices(1700000000, prices)
	require.NoError(t, err)
	packed, err := c.Pack()
	require.NoError(t, err)

	proof, err := CreateProof(packed, []*big.Int{assets.TON.ID()})
	require.NoError(t, err)

	leaves, pruned := countProofCells(proof)
	assert.Equal(t, 1, leaves)
	assert.Positive(t, pruned)

	// The revealed leaf carries the TON price; other entries are unreachable.
	body := proof.MustPeekRef(0).BeginParse()
	_, err = body.LoadUInt(32)
	require.NoError(t, err)
	dict, err := body.LoadDict(KeyBits)
	require.NoError(t, err)

	v, err := dict.LoadValue(cell.BeginCell().MustStoreBigUInt(assets.TON.ID(), KeyBits).EndCell())
	require.NoError(t, err)
	got, err := v.LoadBigCoins()
	require.NoError(t, err)
	want, ok := c.Price(assets.TON.ID())
	require.True(t, ok)
	assert.Equal(t, 0, want.Cmp(got))

	_, err = dict.LoadValue(cell.BeginCell().MustStoreBigUInt(assets.USDT.ID(), KeyBits).EndCell())
	assert.Error(t, err)

	decoded, err := cell.FromBOC(proof.ToBOC())
	require.NoError(t, err)
	assert.NoError(t, CheckProof(decoded, packed.Hash()))
}

func TestBuildRequest(t *testing.T) {
	tonPrices := []string{"2.40", "2.44", "2.50"}
	var oracles []OracleCommitment
	// Insert out of order; the chain must come out ascending.
	for i, id := range []uint32{7, 2, 5} {
		s := signedFor(t, 100, aggregator.PriceSet{
			assets.TON:  d(tonPrices[i]),
			assets.USDT: d("1"),
		}, newTestSigner(byte(id)))
		oracles = append(oracles, s.OracleCommitment(id))
	}

	req, err := BuildRequest(oracles, []assets.Asset{assets.USDT, assets.TON})
	require.NoError(t, err)

	require.Len(t, req.Proofs, 3)
	assert.Equal(t, []uint32{2, 5, 7}, []uint32{req.Proofs[0].ID, req.Proofs[1].ID, req.Proofs[2].ID})

	byID := map[uint32]OracleCommitment{}
	for _, o := range oracles {
		byID[o.ID] = o
	}
	for _, p := range req.Proofs {
		assert.NoError(t, CheckProof(p.Proof, byID[p.ID].Packed.Hash()))
	}

	require.Len(t, req.Prices, 2)
	assert.Negative(t, req.Prices[0].ID.Cmp(req.Prices[1].ID))
	medians := map[string]int64{}
	for _, p := range req.Prices {
		medians[assetName(p.ID)] = p.Price.Int64()
	}
	assert.Equal(t, int64(2440000000), medians["TON"])
	assert.Equal(t, int64(1000000000), medians["USDT"])

	c, err := req.Cell()
	require.NoError(t, err)
	s := c.BeginParse()
	op, err := s.LoadUInt(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(OpVerifyPrices), op)

	assetsChain, err := s.LoadRef()
	require.NoError(t, err)
	id, err := assetsChain.LoadBigUInt(KeyBits)
	require.NoError(t, err)
	assert.Equal(t, 0, id.Cmp(req.Prices[0].ID))
	_, err = assetsChain.LoadBigCoins()
	require.NoError(t, err)
	next, err := assetsChain.LoadMaybeRef()
	require.NoError(t, err)
	require.NotNil(t, next)

	oraclesChain, err := s.LoadRef()
	require.NoError(t, err)
	var ids []uint64
	for cur := oraclesChain; cur != nil; {
		oid, err := cur.LoadUInt(32)
		require.NoError(t, err)
		ids = append(ids, oid)
		_, err = cur.LoadRef()
		require.NoError(t, err)
		_, err = cur.LoadSlice(512)
		require.NoError(t, err)
		cur, err = cur.LoadMaybeRef()
		require.NoError(t, err)
	}
	assert.Equal(t, []uint64{2, 5, 7}, ids)
}

func TestBuildRequest_Incomplete(t *testing.T) {
	full := signedFor(t, 100, aggregator.PriceSet{assets.TON: d("2.4"), assets.USDT: d("1")}, newTestSigner(1))
	partial := signedFor(t, 100, aggregator.PriceSet{assets.TON: d("2.5")}, newTestSigner(2))

	tests := []struct {
		name      string
		oracles   []OracleCommitment
		requested []assets.Asset
	}{
		{"no oracles", nil, []assets.Asset{assets.TON}},
		{"no assets", []OracleCommitment{full.OracleCommitment(1)}, nil},
		{"missing price", []OracleCommitment{full.OracleCommitment(1), partial.OracleCommitment(2)}, []assets.Asset{assets.USDT}},
		{"duplicate id", []OracleCommitment{full.OracleCommitment(1), partial.OracleCommitment(1)}, []assets.Asset{assets.TON}},
		{"duplicate asset", []OracleCommitment{full.OracleCommitment(1)}, []assets.Asset{assets.TON, assets.USDT, assets.TON}},
		{"bad signature", []OracleCommitment{{ID: 1, Packed: full.Packed, Signature: []byte{1}}}, []assets.Asset{assets.TON}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildRequest(tt.oracles, tt.requested)
			assert.ErrorIs(t, err, ErrIncompletePackaging)
		})
	}
}

func TestVerifierExitCodes(t *testing.T) {
	assert.Equal(t, 40, ErrCodeIncorrectSequence)
	assert.Equal(t, 41, ErrCodeIncorrectProof)
	assert.Equal(t, 42, ErrCodeNoSuchOracle)
	assert.Equal(t, 43, ErrCodeIncorrectSignature)
	assert.Equal(t, 44, ErrCodeIncorrectTimestamp)
	assert.Equal(t, 45, ErrCodeNotEnoughData)
	assert.Equal(t, 46, ErrCodeIncorrectSuggestedPrice)
	assert.Equal(t, 180, MaxTimestampDelta)
}

func TestPackVerifierConfig(t *testing.T) {
	keys := []OracleKey{
		{ID: 3, PublicKey: newTestSigner(3).PublicKey()},
		{ID: 1, PublicKey: newTestSigner(1).PublicKey()},
	}
	c, err := PackVerifierConfig(keys)
	require.NoError(t, err)

	s := c.BeginParse()
	n, err := s.LoadUInt(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	dict, err := s.LoadDict(32)
	require.NoError(t, err)
	v, err := dict.LoadValue(cell.BeginCell().MustStoreUInt(3, 32).EndCell())
	require.NoError(t, err)
	pub, err := v.LoadSlice(256)
	require.NoError(t, err)
	assert.Equal(t, []byte(keys[0].PublicKey), pub)

	_, err = PackVerifierConfig([]OracleKey{{ID: 1, PublicKey: []byte{1, 2}}})
	assert.ErrorIs(t, err, ErrIncompletePackaging)
	_, err = PackVerifierConfig(nil)
	assert.ErrorIs(t, err, ErrIncompletePackaging)
}

func TestDataToPush_RoundTrip(t *testing.T) {
	s := signedFor(t, 1700000000, aggregator.PriceSet{
		assets.TON:   d("2.42"),
		assets.JUSDT: d("1"),
	}, newTestSigner(9))

	data := NewDataToPush(s)
	assert.Equal(t, StatusOK, data.Status)
	assert.Len(t, data.Assets, 2)

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, k := range []string{"status", "timestamp", "packedPrices", "signature", "assets", "publicKey"} {
		assert.Contains(t, fields, k)
	}

	var decoded DataToPush
	require.NoError(t, json.Unmarshal(raw, &decoded))
	got, err := decoded.Decode()
	require.NoError(t, err)
	assert.Equal(t, s.Packed.Hash(), got.Packed.Hash())

	tampered := decoded
	tampered.Timestamp++
	_, err = tampered.Decode()
	assert.ErrorIs(t, err, ErrMalformedCommitment)

	tampered = decoded
	tampered.PublicKey = hex.EncodeToString(newTestSigner(10).PublicKey())
	_, err = tampered.Decode()
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
