// Package signer adapts an externally-supplied Ed25519 signing
// callback to the ABI's message-signing conventions (§6), including
// ABI-2.3 destination-bound signing: the signature is computed over a
// hash built from the real destination address with the message body
// appended inline, so a signature cannot be replayed against a
// different contract address. Callers pack the body with
// layout.EncodeTokensReserved using ReservationBits as the reservation
// width, so the eventual signature footprint shares the same
// chain-boundary decisions as every other value, then hand the result
// to Signer.Apply to strip the placeholder and splice in the real
// signature.
package signer

import (
	"github.com/pkg/errors"
	"github.com/xssnick/tonutils-go/tvm/cell"
	"golang.org/x/crypto/ed25519"

	"github.com/tvmlabs/tvmabi/addr"
	"github.com/tvmlabs/tvmabi/layout"
	"github.com/tvmlabs/tvmabi/tvmtype"
)

// SignFunc signs a 32-byte preimage hash and returns a 64-byte Ed25519
// signature. The private key never passes through this package; callers
// wire it to whatever key-management system they use.
type SignFunc func(preimageHash []byte) ([ed25519.SignatureSize]byte, error)

// Policy selects how a message body is signed; the caller chooses it
// per call.
type Policy int

const (
	// PolicyNone produces an unsigned body (a single 0 bit where the
	// signature bit would go).
	PolicyNone Policy = iota
	// PolicyExternal invokes a SignFunc against the computed hash.
	PolicyExternal
	// PolicyPrecomputed writes a caller-supplied signature verbatim,
	// for callers who sign out of band (e.g. a hardware wallet flow).
	PolicyPrecomputed
)

var (
	ErrNoSignFunc          = errors.New("signer: PolicyExternal requires a SignFunc")
	ErrDestinationRequired = errors.New("signer: ABI 2.3 signed calls require a destination address")
)

// ReservationBits returns the bit-width of the signature/destination-
// binding placeholder a caller must reserve ahead of a body's real
// content (via layout.EncodeTokensReserved) before this signer can
// apply itself to it, mirroring create_unsigned_call: an unsigned body
// reserves only its own flag bit; a signed body reserves the full
// addr_var footprint from ABI 2.3 onward, so the destination-bound
// hash's address participates in the same chain-boundary decisions as
// every other value, or the legacy flag-plus-signature footprint
// before that.
func ReservationBits(policy Policy, abiVersion int) int {
	if policy == PolicyNone {
		return 1
	}
	if abiVersion >= tvmtype.VersionV23 {
		return addr.MaxBits
	}
	return 1 + ed25519.SignatureSize*8
}

// Signer signs and attaches the signature bits to an in-progress
// message body builder.
type Signer struct {
	Policy      Policy
	Sign        SignFunc
	Precomputed [ed25519.SignatureSize]byte
	PublicKey   ed25519.PublicKey
}

// Verify checks sig against body's signing hash using the signer's
// PublicKey. body must be the stripped message content (header/id/args
// with no signature envelope), as returned by layout.SplitReservedPrefix
// or recovered by stripping a decoded message's envelope bits. dst is
// required, and destination-bound hashing applied, whenever abiVersion
// is 2.3 or later.
func (s *Signer) Verify(body *cell.Cell, abiVersion int, dst *addr.Address, sig []byte) (bool, error) {
	hash, err := signingHash(body, abiVersion, dst)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(s.PublicKey, hash, sig), nil
}

// Hash returns the cell's representation hash, the value an Ed25519
// signature is taken over.
func Hash(body *cell.Cell) ([]byte, error) {
	return body.Hash(), nil
}

// DestinationBoundHash computes the ABI-2.3 hash (§4.8 step 2): the
// real, unpadded destination address is encoded into a fresh builder,
// then body's bits and references are appended inline into that same
// builder — not attached by reference — before hashing, so the result
// is bound to exactly the destination given and never to a padded or
// ref-indirected stand-in for it.
func DestinationBoundHash(body *cell.Cell, dst *addr.Address) ([]byte, error) {
	b := cell.BeginCell()
	if err := dst.Encode(b); err != nil {
		return nil, errors.Wrap(err, "signer: encode destination address")
	}
	if err := b.StoreBuilder(body.ToBuilder()); err != nil {
		return nil, errors.Wrap(err, "signer: append body inline")
	}
	return Hash(b.EndCell())
}

// signingHash picks plain vs destination-bound hashing by ABI version,
// per create_unsigned_call: only ABI >= 2.3 binds the hash to dst.
func signingHash(body *cell.Cell, abiVersion int, dst *addr.Address) ([]byte, error) {
	if abiVersion >= tvmtype.VersionV23 {
		if dst == nil {
			return nil, ErrDestinationRequired
		}
		return DestinationBoundHash(body, dst)
	}
	return Hash(body)
}

// Apply finishes a reservation-packed encode: reserved must be the
// cell layout.EncodeTokensReserved produced using exactly
// ReservationBits(s.Policy, abiVersion) as its reservedBits, so that
// header/id/args already landed at the cell boundaries a signed
// message requires (mirrors create_unsigned_call inserting the
// placeholder before packing, then fill_sign replacing it after
// hashing). Apply strips that placeholder, signs the real content, and
// prepends the real flag bit (plus, when signed, the 512-bit
// signature) in its place, returning the final builder.
func (s *Signer) Apply(reserved *cell.Cell, abiVersion int, dst *addr.Address) (*cell.Builder, error) {
	stripped, err := layout.SplitReservedPrefix(reserved, ReservationBits(s.Policy, abiVersion))
	if err != nil {
		return nil, errors.Wrap(err, "signer: split reservation")
	}

	out := cell.BeginCell()

	if s.Policy == PolicyNone {
		if err := out.StoreBoolBit(false); err != nil {
			return nil, errors.Wrap(err, "signer: signature flag")
		}
		if err := out.StoreBuilder(stripped.ToBuilder()); err != nil {
			return nil, errors.Wrap(err, "signer: attach body")
		}
		return out, nil
	}

	var sig [ed25519.SignatureSize]byte
	switch s.Policy {
	case PolicyExternal:
		if s.Sign == nil {
			return nil, ErrNoSignFunc
		}
		hash, err := signingHash(stripped, abiVersion, dst)
		if err != nil {
			return nil, err
		}
		sig, err = s.Sign(hash)
		if err != nil {
			return nil, errors.Wrap(err, "signer: sign")
		}
	case PolicyPrecomputed:
		sig = s.Precomputed
	default:
		return nil, errors.Errorf("signer: unknown policy %d", s.Policy)
	}

	if err := out.StoreBoolBit(true); err != nil {
		return nil, errors.Wrap(err, "signer: signature flag")
	}
	if err := out.StoreSlice(sig[:], 512); err != nil {
		return nil, errors.Wrap(err, "signer: signature bytes")
	}
	if err := out.StoreBuilder(stripped.ToBuilder()); err != nil {
		return nil, errors.Wrap(err, "signer: attach body")
	}
	return out, nil
}
