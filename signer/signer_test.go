package signer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/tvm/cell"
	"golang.org/x/crypto/ed25519"

	"github.com/tvmlabs/tvmabi/addr"
	"github.com/tvmlabs/tvmabi/layout"
	"github.com/tvmlabs/tvmabi/tvmtype"
)

const testABIVersion = tvmtype.VersionV22

func sampleBody(t *testing.T) *cell.Cell {
	t.Helper()
	b := cell.BeginCell()
	require.NoError(t, b.StoreUInt(0x12345678, 32))
	return b.EndCell()
}

func reservedSample(t *testing.T, policy Policy, abiVersion int) *cell.Cell {
	t.Helper()
	reserved, err := layout.EncodeTokensReserved(ReservationBits(policy, abiVersion), nil, abiVersion)
	require.NoError(t, err)
	return reserved
}

func TestSignerPolicyNoneProducesUnsignedBody(t *testing.T) {
	s := &Signer{Policy: PolicyNone}
	out, err := s.Apply(reservedSample(t, PolicyNone, testABIVersion), testABIVersion, nil)
	require.NoError(t, err)

	sl := out.EndCell().BeginParse()
	require.NotNil(t, sl)
	signed, err := sl.LoadBoolBit()
	require.NoError(t, err)
	require.False(t, signed)
}

func TestSignerPolicyExternalRoundTrips(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	reserved := reservedSample(t, PolicyExternal, testABIVersion)
	stripped, err := layout.SplitReservedPrefix(reserved, ReservationBits(PolicyExternal, testABIVersion))
	require.NoError(t, err)

	s := &Signer{
		Policy:    PolicyExternal,
		PublicKey: pub,
		Sign: func(hash []byte) ([ed25519.SignatureSize]byte, error) {
			var sig [ed25519.SignatureSize]byte
			copy(sig[:], ed25519.Sign(priv, hash))
			return sig, nil
		},
	}

	out, err := s.Apply(reserved, testABIVersion, nil)
	require.NoError(t, err)

	sl := out.EndCell().BeginParse()
	require.NotNil(t, sl)
	signed, err := sl.LoadBoolBit()
	require.NoError(t, err)
	require.True(t, signed)

	sigBytes, err := sl.LoadSlice(512)
	require.NoError(t, err)

	ok, err := s.Verify(stripped, testABIVersion, nil, sigBytes)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSignerDestinationBoundHashDiffersFromPlain(t *testing.T) {
	body := sampleBody(t)
	plain, err := Hash(body)
	require.NoError(t, err)

	dst, err := addr.NewStd(0, make([]byte, 32))
	require.NoError(t, err)
	bound, err := DestinationBoundHash(body, dst)
	require.NoError(t, err)

	require.NotEqual(t, plain, bound)
}

// TestSignerDestinationBoundSignatureRejectsAlteredDestination covers
// spec §8 scenario 6: a signature bound to one destination must not
// verify against a different one.
func TestSignerDestinationBoundSignatureRejectsAlteredDestination(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	dst1, err := addr.NewStd(0, append(make([]byte, 31), 0x01))
	require.NoError(t, err)
	dst2, err := addr.NewStd(0, append(make([]byte, 31), 0x02))
	require.NoError(t, err)

	abiVersion := tvmtype.VersionV23
	reserved := reservedSample(t, PolicyExternal, abiVersion)
	stripped, err := layout.SplitReservedPrefix(reserved, ReservationBits(PolicyExternal, abiVersion))
	require.NoError(t, err)

	s := &Signer{
		Policy:    PolicyExternal,
		PublicKey: pub,
		Sign: func(hash []byte) ([ed25519.SignatureSize]byte, error) {
			var sig [ed25519.SignatureSize]byte
			copy(sig[:], ed25519.Sign(priv, hash))
			return sig, nil
		},
	}

	out, err := s.Apply(reserved, abiVersion, dst1)
	require.NoError(t, err)

	sl := out.EndCell().BeginParse()
	require.NotNil(t, sl)
	signed, err := sl.LoadBoolBit()
	require.NoError(t, err)
	require.True(t, signed)
	sigBytes, err := sl.LoadSlice(512)
	require.NoError(t, err)

	ok, err := s.Verify(stripped, abiVersion, dst1, sigBytes)
	require.NoError(t, err)
	require.True(t, ok, "signature must verify against the destination it was bound to")

	ok, err = s.Verify(stripped, abiVersion, dst2, sigBytes)
	require.NoError(t, err)
	require.False(t, ok, "signature bound to dst1 must not verify against dst2")
}

func TestReservationBitsByPolicyAndVersion(t *testing.T) {
	require.Equal(t, 1, ReservationBits(PolicyNone, tvmtype.VersionV22))
	require.Equal(t, 1, ReservationBits(PolicyNone, tvmtype.VersionV23))
	require.Equal(t, 513, ReservationBits(PolicyExternal, tvmtype.VersionV22))
	require.Equal(t, addr.MaxBits, ReservationBits(PolicyExternal, tvmtype.VersionV23))
	require.Equal(t, 591, ReservationBits(PolicyPrecomputed, tvmtype.VersionV23))
}
