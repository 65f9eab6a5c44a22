// Package addr implements the TVM Address token type (§3 of the spec):
// all four TL-B message address variants (addr_none$00, addr_extern$01,
// addr_std$10, addr_var$11), their cell encoding/decoding, and the
// "wid:hex" family of JSON string forms the tokenizer accepts.
//
// Adapted from the teacher's addr package, which only modeled the
// addr_std case as a fixed 33-byte value; this version generalizes to
// all four variants and threads anycast rewrite prefixes through.
package addr

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sigurn/crc16"
	tonaddress "github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// Variant is the TL-B address constructor.
type Variant uint8

const (
	None Variant = iota
	Extern
	Std
	Var
)

// MaxBits is the maximum footprint of an Address per §3: addr_var with
// a full anycast prefix and maximal hash length.
const MaxBits = 591

// Anycast is the optional rewrite prefix carried by addr_std/addr_var.
type Anycast struct {
	Depth  uint8 // 1..30
	Prefix []byte
}

// Address is a TVM message address in any of the four TL-B forms.
type Address struct {
	Variant Variant

	Anycast *Anycast

	// addr_extern only: bit length and raw bits of the external address.
	ExternBits int
	ExternData []byte

	// addr_std / addr_var: signed workchain id (int8 for std, int32 for var).
	Workchain int32

	// addr_std: exactly 256 bits. addr_var: AddrBits bits, AddrBits <= 1023.
	Hash     []byte
	AddrBits int
}

var (
	ErrInvalidAddress = errors.New("invalid address")
)

// None-valued convenience constructor.
func NewNone() *Address { return &Address{Variant: None} }

// NewStd builds a standard 256-bit-hash address.
func NewStd(workchain int8, hash []byte) (*Address, error) {
	if len(hash) != 32 {
		return nil, errors.Wrapf(ErrInvalidAddress, "std address hash must be 32 bytes, got %d", len(hash))
	}
	return &Address{
		Variant:   Std,
		Workchain: int32(workchain),
		Hash:      hash,
		AddrBits:  256,
	}, nil
}

// Parse accepts the JSON string forms of §4.3:
//
//	""                  -> addr_none
//	":hex"               -> addr_extern, hex holds the raw bits (4 bits/nibble)
//	"wid:hex"            -> addr_std (64 hex digits) or addr_var (any other even length)
//	"prefix:wid:hex"     -> anycast form; prefix is the rewrite prefix in hex,
//	                        its nibble count * 4 is the anycast depth
func Parse(s string) (*Address, error) {
	if s == "" {
		return NewNone(), nil
	}

	parts := strings.Split(s, ":")

	switch len(parts) {
	case 2:
		return parseWorkchainHash(nil, parts[0], parts[1])

	case 3:
		anyc, err := parseAnycastPrefix(parts[0])
		if err != nil {
			return nil, err
		}
		return parseWorkchainHash(anyc, parts[1], parts[2])

	default:
		return nil, errors.Wrapf(ErrInvalidAddress, "wrong address format %q", s)
	}
}

func parseAnycastPrefix(hexPrefix string) (*Anycast, error) {
	if hexPrefix == "" {
		return nil, nil //nolint:nilnil // no anycast rewrite present
	}
	b, err := hex.DecodeString(padEvenHex(hexPrefix))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidAddress, "bad anycast prefix hex %q: %v", hexPrefix, err)
	}
	depth := len(hexPrefix) * 4
	if depth < 1 || depth > 30 {
		return nil, errors.Wrapf(ErrInvalidAddress, "anycast depth %d out of range 1..30", depth)
	}
	return &Anycast{Depth: uint8(depth), Prefix: b}, nil
}

func parseWorkchainHash(anyc *Anycast, widStr, hexStr string) (*Address, error) {
	if widStr == "" {
		// addr_extern: empty workchain, hex carries the raw external bits.
		data, err := hex.DecodeString(padEvenHex(hexStr))
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidAddress, "bad extern address hex: %v", err)
		}
		return &Address{
			Variant:    Extern,
			ExternBits: len(hexStr) * 4,
			ExternData: data,
		}, nil
	}

	wid, err := strconv.ParseInt(widStr, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidAddress, "bad workchain %q: %v", widStr, err)
	}

	data, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidAddress, "bad address hash hex %q: %v", hexStr, err)
	}

	if len(hexStr) == 64 && wid >= -128 && wid <= 127 {
		return &Address{
			Variant:   Std,
			Anycast:   anyc,
			Workchain: int32(wid),
			Hash:      data,
			AddrBits:  256,
		}, nil
	}

	return &Address{
		Variant:   Var,
		Anycast:   anyc,
		Workchain: int32(wid),
		Hash:      data,
		AddrBits:  len(hexStr) * 4,
	}, nil
}

func padEvenHex(s string) string {
	if len(s)%2 == 1 {
		return "0" + s
	}
	return s
}

// String renders the canonical emitted form: "wid:hex" for std/var,
// ":hex" for extern, "" for none. Anycast prefixes round-trip through
// the "prefix:wid:hex" form.
func (a *Address) String() string {
	switch a.Variant {
	case None:
		return ""
	case Extern:
		return ":" + hexTrim(a.ExternData, a.ExternBits)
	case Std, Var:
		base := fmt.Sprintf("%d:%s", a.Workchain, hexTrim(a.Hash, a.AddrBits))
		if a.Anycast != nil {
			return fmt.Sprintf("%s:%s", hexTrim(a.Anycast.Prefix, int(a.Anycast.Depth)), base)
		}
		return base
	default:
		return ""
	}
}

func hexTrim(b []byte, bits int) string {
	s := hex.EncodeToString(b)
	nibbles := (bits + 3) / 4
	if nibbles <= len(s) {
		return s[:nibbles]
	}
	return s
}

// Encode writes the address to a cell builder per the four TL-B layouts.
func (a *Address) Encode(b *cell.Builder) error {
	switch a.Variant {
	case None:
		return b.StoreUInt(0, 2)

	case Extern:
		if err := b.StoreUInt(1, 2); err != nil {
			return err
		}
		if err := b.StoreUInt(uint64(a.ExternBits), 9); err != nil {
			return err
		}
		return b.StoreSlice(a.ExternData, uint(a.ExternBits))

	case Std:
		if err := b.StoreUInt(2, 2); err != nil {
			return err
		}
		if err := encodeAnycast(b, a.Anycast); err != nil {
			return err
		}
		if err := b.StoreInt(int64(int8(a.Workchain)), 8); err != nil {
			return err
		}
		return b.StoreSlice(a.Hash, 256)

	case Var:
		if err := b.StoreUInt(3, 2); err != nil {
			return err
		}
		if err := encodeAnycast(b, a.Anycast); err != nil {
			return err
		}
		if err := b.StoreUInt(uint64(a.AddrBits), 9); err != nil {
			return err
		}
		if err := b.StoreInt(int64(a.Workchain), 32); err != nil {
			return err
		}
		return b.StoreSlice(a.Hash, uint(a.AddrBits))

	default:
		return errors.Wrapf(ErrInvalidAddress, "unknown variant %d", a.Variant)
	}
}

func encodeAnycast(b *cell.Builder, anyc *Anycast) error {
	if anyc == nil {
		return b.StoreBoolBit(false)
	}
	if err := b.StoreBoolBit(true); err != nil {
		return err
	}
	if err := b.StoreUInt(uint64(anyc.Depth), 5); err != nil {
		return err
	}
	return b.StoreSlice(anyc.Prefix, uint(anyc.Depth))
}

// Decode reads an address from a cell slice.
func Decode(s *cell.Slice) (*Address, error) {
	tag, err := s.LoadUInt(2)
	if err != nil {
		return nil, errors.Wrap(err, "load address tag")
	}

	switch tag {
	case 0:
		return NewNone(), nil

	case 1:
		n, err := s.LoadUInt(9)
		if err != nil {
			return nil, errors.Wrap(err, "load extern length")
		}
		data, err := s.LoadSlice(uint(n))
		if err != nil {
			return nil, errors.Wrap(err, "load extern data")
		}
		return &Address{Variant: Extern, ExternBits: int(n), ExternData: data}, nil

	case 2:
		anyc, err := decodeAnycast(s)
		if err != nil {
			return nil, err
		}
		wc, err := s.LoadInt(8)
		if err != nil {
			return nil, errors.Wrap(err, "load std workchain")
		}
		hash, err := s.LoadSlice(256)
		if err != nil {
			return nil, errors.Wrap(err, "load std hash")
		}
		return &Address{Variant: Std, Anycast: anyc, Workchain: int32(wc), Hash: hash, AddrBits: 256}, nil

	case 3:
		anyc, err := decodeAnycast(s)
		if err != nil {
			return nil, err
		}
		n, err := s.LoadUInt(9)
		if err != nil {
			return nil, errors.Wrap(err, "load var address length")
		}
		wc, err := s.LoadInt(32)
		if err != nil {
			return nil, errors.Wrap(err, "load var workchain")
		}
		hash, err := s.LoadSlice(uint(n))
		if err != nil {
			return nil, errors.Wrap(err, "load var hash")
		}
		return &Address{Variant: Var, Anycast: anyc, Workchain: int32(wc), Hash: hash, AddrBits: int(n)}, nil

	default:
		return nil, errors.Wrapf(ErrInvalidAddress, "impossible 2-bit tag %d", tag)
	}
}

func decodeAnycast(s *cell.Slice) (*Anycast, error) {
	has, err := s.LoadBoolBit()
	if err != nil {
		return nil, errors.Wrap(err, "load anycast flag")
	}
	if !has {
		return nil, nil //nolint:nilnil // no anycast present
	}
	depth, err := s.LoadUInt(5)
	if err != nil {
		return nil, errors.Wrap(err, "load anycast depth")
	}
	prefix, err := s.LoadSlice(uint(depth))
	if err != nil {
		return nil, errors.Wrap(err, "load anycast prefix")
	}
	return &Anycast{Depth: uint8(depth), Prefix: prefix}, nil
}

// ToTonutils converts to the tonutils-go address type for the none and
// std cases (none becomes a zero-hash std address; anycast is dropped).
// addr_var and addr_extern return ErrInvalidAddress; use Encode for
// those.
func (a *Address) ToTonutils() (*tonaddress.Address, error) {
	switch a.Variant {
	case None:
		return tonaddress.NewAddress(0, 0, make([]byte, 32)), nil
	case Std:
		return tonaddress.NewAddress(0, byte(int8(a.Workchain)), a.Hash), nil
	default:
		return nil, errors.Wrapf(ErrInvalidAddress, "variant %d has no tonutils-go equivalent", a.Variant)
	}
}

// FromTonutils builds an addr_std Address from the tonutils-go type.
func FromTonutils(a *tonaddress.Address) (*Address, error) {
	if a.Type() == tonaddress.NoneAddress {
		return NewNone(), nil
	}
	if len(a.Data()) != 32 {
		return nil, errors.Wrapf(ErrInvalidAddress, "unexpected tonutils-go address data length %d", len(a.Data()))
	}
	return NewStd(int8(a.Workchain()), a.Data())
}

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// UserFriendly renders the base64url "user-friendly" form with a CRC16
// checksum, for display/convenience only; the tokenizer's canonical
// accepted/emitted form stays "wid:hex" (§4.3).
func (a *Address) UserFriendly() (string, error) {
	if a.Variant != Std {
		return "", errors.Wrapf(ErrInvalidAddress, "user-friendly form only defined for addr_std")
	}
	var buf [36]byte
	buf[0] = 0x11
	buf[1] = byte(int8(a.Workchain))
	copy(buf[2:34], a.Hash)
	crc := crc16.Checksum(buf[:34], crcTable)
	buf[34] = byte(crc >> 8)
	buf[35] = byte(crc)
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}
