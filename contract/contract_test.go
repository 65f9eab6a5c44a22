package contract

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"

	"github.com/tvmlabs/tvmabi/addr"
	"github.com/tvmlabs/tvmabi/schema"
	"github.com/tvmlabs/tvmabi/signer"
)

const sampleABI = `{
	"version": "2.2",
	"header": ["pubkey", "time", "expire"],
	"functions": [
		{
			"name": "transfer",
			"inputs": [
				{"name": "to", "type": "address"},
				{"name": "value", "type": "uint128"}
			],
			"outputs": [
				{"name": "ok", "type": "bool"}
			]
		}
	],
	"events": []
}`

func loadSample(t *testing.T) *Contract {
	t.Helper()
	doc, err := schema.Load([]byte(sampleABI))
	require.NoError(t, err)
	return New(doc)
}

func sampleArgs() (args, header map[string]any) {
	args = map[string]any{
		"to":    "0:0000000000000000000000000000000000000000000000000000000000000001",
		"value": "1000000000",
	}
	header = map[string]any{
		"time":   "1000",
		"expire": "2000",
	}
	return args, header
}

func TestEncodeInputUnsignedRoundTrips(t *testing.T) {
	c := loadSample(t)
	args, header := sampleArgs()

	body, err := c.EncodeInput("transfer", args, header, nil, nil)
	require.NoError(t, err)

	sl := body.BeginParse()
	require.NotNil(t, sl)
	name, gotHeader, gotArgs, err := c.DecodeInput(sl)
	require.NoError(t, err)
	require.Equal(t, "transfer", name)
	require.Equal(t, "2000", gotHeader["expire"])
	require.Equal(t, "1000000000", gotArgs["value"])
	require.Equal(t, args["to"], gotArgs["to"])
}

func TestEncodeInputSignedRoundTrips(t *testing.T) {
	c := loadSample(t)
	args, header := sampleArgs()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	s := &signer.Signer{
		Policy:    signer.PolicyExternal,
		PublicKey: pub,
		Sign: func(hash []byte) ([ed25519.SignatureSize]byte, error) {
			var sig [ed25519.SignatureSize]byte
			copy(sig[:], ed25519.Sign(priv, hash))
			return sig, nil
		},
	}

	body, err := c.EncodeInput("transfer", args, header, s, nil)
	require.NoError(t, err)

	sl := body.BeginParse()
	require.NotNil(t, sl)
	name, gotHeader, gotArgs, err := c.DecodeInput(sl)
	require.NoError(t, err)
	require.Equal(t, "transfer", name)
	require.Equal(t, "1000", gotHeader["time"])
	require.Equal(t, args["to"], gotArgs["to"])
}

func TestEncodeInputDestinationBoundSignsAndDecodes(t *testing.T) {
	doc, err := schema.Load([]byte(`{
		"version": "2.3",
		"header": ["pubkey", "time", "expire"],
		"functions": [
			{"name": "transfer", "inputs": [{"name": "value", "type": "uint128"}], "outputs": []}
		]
	}`))
	require.NoError(t, err)
	c := New(doc)

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	dst, err := addr.NewStd(0, make([]byte, 32))
	require.NoError(t, err)

	var capturedHash []byte
	s := &signer.Signer{
		Policy:    signer.PolicyExternal,
		PublicKey: pub,
		Sign: func(hash []byte) ([ed25519.SignatureSize]byte, error) {
			capturedHash = append([]byte(nil), hash...)
			var sig [ed25519.SignatureSize]byte
			copy(sig[:], ed25519.Sign(priv, hash))
			return sig, nil
		},
	}

	args := map[string]any{"value": "42"}
	header := map[string]any{"time": "1", "expire": "2"}

	body, err := c.EncodeInput("transfer", args, header, s, dst)
	require.NoError(t, err)
	require.NotNil(t, capturedHash)

	sl := body.BeginParse()
	require.NotNil(t, sl)
	_, _, _, err = c.DecodeInput(sl)
	require.NoError(t, err)
}

// TestEncodeInputSigningReservesSpaceAheadOfPacking covers the bug where
// signature reservation was bolted onto an already-packed body: with
// the reservation threaded in up front, encoding the same arguments
// signed vs unsigned must never fail even when the header/args content
// is close to a cell boundary.
func TestEncodeInputSigningReservesSpaceAheadOfPacking(t *testing.T) {
	c := loadSample(t)
	args, header := sampleArgs()

	unsigned, err := c.EncodeInput("transfer", args, header, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, unsigned)

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	s := &signer.Signer{
		Policy:    signer.PolicyExternal,
		PublicKey: pub,
		Sign: func(hash []byte) ([ed25519.SignatureSize]byte, error) {
			var sig [ed25519.SignatureSize]byte
			copy(sig[:], ed25519.Sign(priv, hash))
			return sig, nil
		},
	}
	signed, err := c.EncodeInput("transfer", args, header, s, nil)
	require.NoError(t, err)
	require.NotNil(t, signed)
}
