package layout

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/tvmlabs/tvmabi/token"
	"github.com/tvmlabs/tvmabi/tvmtype"
)

const bytesPerCell = cellBitsCapacity / 8 // 127

// writeSingle encodes one non-tuple token into a single, self-contained
// builder (mirrors the per-kind write_* functions of the original
// encoder). Every branch below returns a builder whose actual bit/ref
// usage never exceeds the type's MaxFootprint.
func writeSingle(t *token.Token, abiVersion int) (*cell.Builder, error) {
	switch t.Type.Kind {
	case tvmtype.KindUint:
		b := cell.BeginCell()
		if err := b.StoreBigUInt(t.Int, uint(t.Type.Bits)); err != nil {
			return nil, errors.Wrapf(err, "%s: uint%d out of range", t.Name, t.Type.Bits)
		}
		return b, nil

	case tvmtype.KindInt:
		b := cell.BeginCell()
		if err := b.StoreBigInt(t.Int, uint(t.Type.Bits)); err != nil {
			return nil, errors.Wrapf(err, "%s: int%d out of range", t.Name, t.Type.Bits)
		}
		return b, nil

	case tvmtype.KindVarUint:
		return writeVarInt(t.Int, t.Type.VarN, false)

	case tvmtype.KindVarInt:
		return writeVarInt(t.Int, t.Type.VarN, true)

	case tvmtype.KindBool:
		b := cell.BeginCell()
		if err := b.StoreBoolBit(t.Bool); err != nil {
			return nil, errors.Wrap(err, "bool")
		}
		return b, nil

	case tvmtype.KindAddress:
		b := cell.BeginCell()
		if err := t.Addr.Encode(b); err != nil {
			return nil, errors.Wrapf(err, "%s: address", t.Name)
		}
		return b, nil

	case tvmtype.KindBytes:
		return writeBytes(t.Bytes)

	case tvmtype.KindFixedBytes:
		if len(t.Bytes) != t.Type.Bits/8 {
			return nil, errors.Errorf("%s: fixedbytes%d: got %d bytes", t.Name, t.Type.Bits/8, len(t.Bytes))
		}
		return writeBytes(t.Bytes)

	case tvmtype.KindString:
		return writeBytes([]byte(t.Str))

	case tvmtype.KindCell:
		b := cell.BeginCell()
		if err := b.StoreRef(t.Cell); err != nil {
			return nil, errors.Wrap(err, "cell")
		}
		return b, nil

	case tvmtype.KindArray:
		return writeArray(t, abiVersion)

	case tvmtype.KindFixedArray:
		if len(t.Items) != t.Type.Length {
			return nil, errors.Errorf("%s: fixedarray%d: got %d items", t.Name, t.Type.Length, len(t.Items))
		}
		return writeFixedArray(t, abiVersion)

	case tvmtype.KindMap:
		return writeMap(t, abiVersion)

	case tvmtype.KindOptional:
		return writeOptional(t, abiVersion)

	case tvmtype.KindRef:
		return writeRef(t, abiVersion)

	default:
		return nil, errors.Errorf("%s: unsupported kind for encoding: %v", t.Name, t.Type.Kind)
	}
}

// varPrefixBits returns the length-prefix width for varuintN/varintN: 4
// bits when N==16 (max byte count 15), 5 bits when N==32 (max byte
// count 31).
func varPrefixBits(n int) uint {
	if n == 16 {
		return 4
	}
	return 5
}

func writeVarInt(v *big.Int, n int, signed bool) (*cell.Builder, error) {
	var payload []byte
	if signed {
		payload = minimalSignedBytes(v)
	} else {
		if v.Sign() < 0 {
			return nil, errors.New("varuint: negative value")
		}
		payload = minimalUnsignedBytes(v)
	}
	if len(payload) > n-1 {
		return nil, errors.Errorf("var%s%d: value does not fit", kindWord(signed), n)
	}

	b := cell.BeginCell()
	if err := b.StoreUInt(uint64(len(payload)), varPrefixBits(n)); err != nil {
		return nil, errors.Wrap(err, "varint length prefix")
	}
	if len(payload) > 0 {
		if err := b.StoreSlice(payload, uint(len(payload)*8)); err != nil {
			return nil, errors.Wrap(err, "varint payload")
		}
	}
	return b, nil
}

func kindWord(signed bool) string {
	if signed {
		return "int"
	}
	return "uint"
}

// minimalSignedBytes returns the shortest big-endian two's complement
// encoding of v, or nil for zero (the varint zero encodes as a bare
// zero-length prefix with no payload bits).
func minimalSignedBytes(v *big.Int) []byte {
	if v.Sign() == 0 {
		return nil
	}
	k := 1
	for {
		lo := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), uint(8*k-1)))
		hi := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(8*k-1)), big.NewInt(1))
		if v.Cmp(lo) >= 0 && v.Cmp(hi) <= 0 {
			break
		}
		k++
	}
	var tc *big.Int
	if v.Sign() < 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), uint(8*k))
		tc = new(big.Int).Add(mod, v)
	} else {
		tc = new(big.Int).Set(v)
	}
	b := tc.Bytes()
	out := make([]byte, k)
	copy(out[k-len(b):], b)
	return out
}

// minimalUnsignedBytes returns the shortest big-endian encoding of v,
// or nil for zero.
func minimalUnsignedBytes(v *big.Int) []byte {
	if v.Sign() == 0 {
		return nil
	}
	return v.Bytes()
}

// writeBytes builds the snake-cell chain for an arbitrary byte string
// and returns a wrapper builder carrying exactly one reference to the
// chain's head, matching the bytes/string type's (0 bits, 1 ref)
// footprint. Empty input still produces a ref, to an empty cell.
func writeBytes(data []byte) (*cell.Builder, error) {
	n := len(data)
	b := cell.BeginCell()

	if n == 0 {
		if err := b.StoreRef(cell.BeginCell().EndCell()); err != nil {
			return nil, errors.Wrap(err, "empty bytes ref")
		}
		return b, nil
	}

	chunk := n % bytesPerCell
	if chunk == 0 {
		chunk = bytesPerCell
	}

	cur := cell.BeginCell()
	for n > 0 {
		n -= chunk
		if err := cur.StoreSlice(data[n:n+chunk], uint(chunk*8)); err != nil {
			return nil, errors.Wrap(err, "bytes chunk")
		}
		next := cell.BeginCell()
		if err := next.StoreRef(cur.EndCell()); err != nil {
			return nil, errors.Wrap(err, "bytes chain link")
		}
		cur = next
		if n < bytesPerCell {
			chunk = n
		} else {
			chunk = bytesPerCell
		}
	}

	wrapper := cell.BeginCell()
	if err := wrapper.StoreBuilder(cur); err != nil {
		return nil, errors.Wrap(err, "bytes wrapper")
	}
	return wrapper, nil
}

func writeRef(t *token.Token, abiVersion int) (*cell.Builder, error) {
	inner, err := writeElemChain(t.RefValue, abiVersion)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: ref", t.Name)
	}
	b := cell.BeginCell()
	if err := b.StoreRef(inner); err != nil {
		return nil, errors.Wrap(err, "ref")
	}
	return b, nil
}

func writeOptional(t *token.Token, abiVersion int) (*cell.Builder, error) {
	b := cell.BeginCell()
	if !t.OptionalSet {
		if err := b.StoreBoolBit(false); err != nil {
			return nil, errors.Wrap(err, "optional flag")
		}
		return b, nil
	}

	large := t.Type.IsLargeOptional()
	if err := b.StoreBoolBit(true); err != nil {
		return nil, errors.Wrap(err, "optional flag")
	}

	if large {
		inner, err := writeElemChain(t.OptionalValue, abiVersion)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: large optional", t.Name)
		}
		if err := b.StoreRef(inner); err != nil {
			return nil, errors.Wrap(err, "large optional ref")
		}
		return b, nil
	}

	// A small optional can still wrap a tuple (writeSingle has no
	// KindTuple case), so its members are flattened the same way a
	// top-level parameter list is before being inlined bit-for-bit.
	values, err := writeToCells(t.OptionalValue, abiVersion)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: small optional", t.Name)
	}
	for _, v := range values {
		if err := b.StoreBuilder(v.data); err != nil {
			return nil, errors.Wrap(err, "small optional inline")
		}
	}
	return b, nil
}

func writeElemChain(t *token.Token, abiVersion int) (*cell.Cell, error) {
	vs, err := writeToCells(t, abiVersion)
	if err != nil {
		return nil, err
	}
	return packCellsIntoChain(vs, abiVersion)
}
