// Package layout implements the fixed-layout serializer/deserializer
// (components E and F, §4.5-4.6): it places a flat sequence of tokens
// into a chain of TVM cells so that, for ABI >= 2.2, each parameter's
// cell/offset position is a function of the signature alone, and
// mirrors the same algorithm to read values back.
//
// The packing algorithm (pack_cells_into_chain) is ported directly from
// the original Rust implementation's token/serialize.rs: every token is
// first encoded into its own self-contained builder (write_to_cells),
// then those independent builders are greedily merged, in order, into
// the smallest chain of cells the fixed/legacy capacity rule
// allows, linking each continuation as the last reference of its
// predecessor.
package layout

import (
	"github.com/pkg/errors"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/tvmlabs/tvmabi/token"
	"github.com/tvmlabs/tvmabi/tvmtype"
)

const (
	cellBitsCapacity = 1023
	cellRefsCapacity = 4
)

// ABI version gate: the fixed-layout rule (reserve max footprint) only
// applies from 2.2 onward; earlier documents use the legacy
// actual-fits-or-spill rule (§4.5 "Legacy encoder").
const FixedLayoutVersion = tvmtype.VersionV22

var (
	ErrNotFitInCell = errors.New("value does not fit in cell chain (internal encoder bug)")
)

// serializedValue is the Go analogue of the Rust SerializedValue: one
// token's independently-encoded builder plus the footprint the chain
// packer reasons about (actual bits/refs below 2.2, max bits/refs at
// 2.2+).
type serializedValue struct {
	data    *cell.Builder
	maxBits int
	maxRefs int
}

func wrap(b *cell.Builder, maxBits, maxRefs int) serializedValue {
	return serializedValue{data: b, maxBits: maxBits, maxRefs: maxRefs}
}

// EncodeTokens serializes a sequence of top-level tokens (tuples
// flattened to their leaf members first) into a single chained root
// cell, per §4.5.
func EncodeTokens(tokens []token.Token, abiVersion int) (*cell.Cell, error) {
	return EncodeTokensReserved(0, tokens, abiVersion)
}

// EncodeTokensReserved is EncodeTokens with a zero-filled placeholder
// of reservedBits inserted ahead of every token, mirroring
// create_unsigned_call inserting a reserved SerializedValue at position
// 0 before packing header/id/args: the placeholder's footprint
// participates in the very same pack_cells_into_chain decisions as
// every other value, so a caller that later removes it with
// SplitReservedPrefix recovers header/id/args at exactly the cell
// boundaries a signed encode would have produced.
func EncodeTokensReserved(reservedBits int, tokens []token.Token, abiVersion int) (*cell.Cell, error) {
	placeholder := cell.BeginCell()
	if reservedBits > 0 {
		if err := placeholder.StoreSlice(make([]byte, (reservedBits+7)/8), uint(reservedBits)); err != nil {
			return nil, errors.Wrap(err, "reservation placeholder")
		}
	}

	values := make([]serializedValue, 0, len(tokens)+1)
	values = append(values, wrap(placeholder, reservedBits, 0))
	for i := range tokens {
		vs, err := writeToCells(&tokens[i], abiVersion)
		if err != nil {
			return nil, errors.Wrapf(err, "arg[%d]", i)
		}
		values = append(values, vs...)
	}

	return packCellsIntoChain(values, abiVersion)
}

// SplitReservedPrefix undoes the reservation EncodeTokensReserved
// packed in: it discards reservedBits bits off the front of root and
// returns a fresh cell holding exactly what remains (bits and
// references, in order), the real header/id/args content a signer
// hashes and re-wraps with the actual signature.
func SplitReservedPrefix(root *cell.Cell, reservedBits int) (*cell.Cell, error) {
	s := root.BeginParse()
	if reservedBits > 0 {
		if _, err := s.LoadSlice(uint(reservedBits)); err != nil {
			return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
		}
	}

	b := cell.BeginCell()
	if n := uint(s.BitsLeft()); n > 0 {
		raw, err := s.LoadSlice(n)
		if err != nil {
			return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
		}
		if err := b.StoreSlice(raw, n); err != nil {
			return nil, errors.Wrap(err, "split reservation: re-store bits")
		}
	}
	for s.RefsNum() > 0 {
		ref, err := s.LoadRef()
		if err != nil {
			return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
		}
		refCell, err := ref.ToCell()
		if err != nil {
			return nil, errors.Wrap(err, "split reservation: re-store ref")
		}
		if err := b.StoreRef(refCell); err != nil {
			return nil, errors.Wrap(err, "split reservation: re-store ref")
		}
	}
	return b.EndCell(), nil
}

// writeToCells flattens tuples and encodes every leaf into its own
// self-contained builder (mirrors TokenValue::write_to_cells).
func writeToCells(t *token.Token, abiVersion int) ([]serializedValue, error) {
	if t.Type.Kind == tvmtype.KindTuple {
		var out []serializedValue
		for i := range t.Tuple {
			vs, err := writeToCells(&t.Tuple[i], abiVersion)
			if err != nil {
				return nil, errors.Wrapf(err, "%s", t.Tuple[i].Name)
			}
			out = append(out, vs...)
		}
		return out, nil
	}

	b, err := writeSingle(t, abiVersion)
	if err != nil {
		return nil, err
	}
	maxBits, maxRefs := t.Type.MaxFootprint()
	return []serializedValue{wrap(b, maxBits, maxRefs)}, nil
}

// packCellsIntoChain is the direct port of pack_cells_into_chain: it
// greedily merges a flat list of independently-built values into the
// smallest chain of cells the fixed (>=2.2) or legacy (<2.2) capacity
// rule allows.
func packCellsIntoChain(values []serializedValue, abiVersion int) (*cell.Cell, error) {
	if len(values) == 0 {
		return cell.BeginCell().EndCell(), nil
	}

	packed := []serializedValue{values[0]}
	rest := values[1:]

	for i := 0; i < len(rest); i++ {
		v := rest[i]
		cur := &packed[len(packed)-1]

		remBits, remRefs := remainingCapacity(cur, abiVersion)
		valBits, valRefs := footprintOf(v, abiVersion)

		switch {
		case remBits < valBits || remRefs < valRefs:
			packed = append(packed, v)

		case valRefs > 0 && remRefs == valRefs:
			restRefs, restBits := sumRemaining(rest[i+1:], abiVersion)
			if abiVersion != tvmtype.VersionV1 && restRefs == 0 && restBits+valBits <= remBits {
				if err := mergeInto(cur, v); err != nil {
					return nil, err
				}
			} else {
				packed = append(packed, v)
			}

		default:
			if err := mergeInto(cur, v); err != nil {
				return nil, err
			}
		}
	}

	return linkChain(packed)
}

// linkChain builds the final root cell by threading each continuation
// cell as the last reference of its predecessor, in declaration order
// (packed[0] is the root).
func linkChain(packed []serializedValue) (*cell.Cell, error) {
	cells := make([]*cell.Cell, len(packed))
	for i := len(packed) - 1; i >= 0; i-- {
		b := packed[i].data
		if i+1 < len(packed) {
			if err := b.StoreRef(cells[i+1]); err != nil {
				return nil, errors.Wrap(ErrNotFitInCell, err.Error())
			}
		}
		cells[i] = b.EndCell()
	}
	return cells[0], nil
}

func remainingCapacity(v *serializedValue, abiVersion int) (bits, refs int) {
	if abiVersion >= FixedLayoutVersion {
		return cellBitsCapacity - v.maxBits, cellRefsCapacity - v.maxRefs
	}
	return int(v.data.BitsLeft()), int(v.data.RefsLeft())
}

func footprintOf(v serializedValue, abiVersion int) (bits, refs int) {
	if abiVersion >= FixedLayoutVersion {
		return v.maxBits, v.maxRefs
	}
	return int(v.data.BitsUsed()), int(v.data.RefsUsed())
}

func sumRemaining(rest []serializedValue, abiVersion int) (refs, bits int) {
	for _, v := range rest {
		b, r := footprintOf(v, abiVersion)
		bits += b
		refs += r
	}
	return refs, bits
}

func mergeInto(cur *serializedValue, v serializedValue) error {
	if err := cur.data.StoreBuilder(v.data); err != nil {
		return errors.Wrap(ErrNotFitInCell, err.Error())
	}
	cur.maxBits += v.maxBits
	cur.maxRefs += v.maxRefs
	return nil
}
