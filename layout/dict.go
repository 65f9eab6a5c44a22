package layout

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/tvmlabs/tvmabi/token"
	"github.com/tvmlabs/tvmabi/tvmtype"
)

// dictKeyBits matches the Hashmap key widths used by the original
// encoder: u32 indices for array/fixedarray, the map's own key type's
// bit width for map(K,V) with K a scalar integer, and the full
// addr_std encoding (267 bits: 2 tag + 1 anycast flag + 8 workchain +
// 256 hash) when K is address.
const (
	arrayKeyBits   = 32
	addressKeyBits = 267
)

// valueInRef decides whether a Hashmap leaf stores a value's encoding
// inline or behind a reference: a leaf can hold at most 1023 bits, of
// which up to 12 are consumed by the label/key overhead.
func valueInRef(keyBits, valueMaxBits int) bool {
	return 12+keyBits+valueMaxBits > cellBitsCapacity
}

func writeArray(t *token.Token, abiVersion int) (*cell.Builder, error) {
	dict := cell.NewDict(arrayKeyBits)
	elemMaxBits, elemMaxRefs := t.Type.Elem.MaxFootprint()
	ref := valueInRef(arrayKeyBits, elemMaxBits) || elemMaxRefs >= cellRefsCapacity

	for i := range t.Items {
		vc, err := writeElemChain(&t.Items[i], abiVersion)
		if err != nil {
			return nil, errors.Wrapf(err, "%s[%d]", t.Name, i)
		}
		if err := dictSet(dict, big.NewInt(int64(i)), vc, ref); err != nil {
			return nil, errors.Wrapf(err, "%s[%d]", t.Name, i)
		}
	}

	b := cell.BeginCell()
	if err := b.StoreUInt(uint64(len(t.Items)), 32); err != nil {
		return nil, errors.Wrap(err, "array length")
	}
	dc, err := dict.ToCell()
	if err != nil {
		return nil, errors.Wrapf(err, "%s: dictionary", t.Name)
	}
	if err := b.StoreMaybeRef(dc); err != nil {
		return nil, errors.Wrapf(err, "%s: dictionary ref", t.Name)
	}
	return b, nil
}

func writeFixedArray(t *token.Token, abiVersion int) (*cell.Builder, error) {
	dict := cell.NewDict(arrayKeyBits)
	elemMaxBits, elemMaxRefs := t.Type.Elem.MaxFootprint()
	ref := valueInRef(arrayKeyBits, elemMaxBits) || elemMaxRefs >= cellRefsCapacity

	for i := range t.Items {
		vc, err := writeElemChain(&t.Items[i], abiVersion)
		if err != nil {
			return nil, errors.Wrapf(err, "%s[%d]", t.Name, i)
		}
		if err := dictSet(dict, big.NewInt(int64(i)), vc, ref); err != nil {
			return nil, errors.Wrapf(err, "%s[%d]", t.Name, i)
		}
	}

	dc, err := dict.ToCell()
	if err != nil {
		return nil, errors.Wrapf(err, "%s: dictionary", t.Name)
	}
	b := cell.BeginCell()
	if err := b.StoreMaybeRef(dc); err != nil {
		return nil, errors.Wrapf(err, "%s: dictionary ref", t.Name)
	}
	return b, nil
}

func writeMap(t *token.Token, abiVersion int) (*cell.Builder, error) {
	keyBits, isAddr, err := mapKeyBits(t.Type.Key)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", t.Name)
	}

	dict := cell.NewDict(uint(keyBits))
	valMaxBits, valMaxRefs := t.Type.Value.MaxFootprint()
	ref := valueInRef(keyBits, valMaxBits) || valMaxRefs >= cellRefsCapacity

	for i := range t.Entries {
		e := &t.Entries[i]
		vc, err := writeElemChain(&e.Value, abiVersion)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: entry %d", t.Name, i)
		}

		if isAddr {
			kb := cell.BeginCell()
			if err := e.Key.Addr.Encode(kb); err != nil {
				return nil, errors.Wrapf(err, "%s: entry %d key", t.Name, i)
			}
			if err := dictSetSlice(dict, kb, vc, ref); err != nil {
				return nil, errors.Wrapf(err, "%s: entry %d", t.Name, i)
			}
			continue
		}

		if err := dictSet(dict, e.Key.Int, vc, ref); err != nil {
			return nil, errors.Wrapf(err, "%s: entry %d", t.Name, i)
		}
	}

	dc, err := dict.ToCell()
	if err != nil {
		return nil, errors.Wrapf(err, "%s: dictionary", t.Name)
	}
	b := cell.BeginCell()
	if err := b.StoreMaybeRef(dc); err != nil {
		return nil, errors.Wrapf(err, "%s: dictionary ref", t.Name)
	}
	return b, nil
}

// mapKeyBits returns the Hashmap key width for a map's declared key
// type: addresses always use the 267-bit addr_std encoding; integer
// keys use their own declared bit width (validated by tvmtype.Parse to
// be one of uintN/intN).
func mapKeyBits(key *tvmtype.Descriptor) (int, bool, error) {
	if key.Kind == tvmtype.KindAddress {
		return addressKeyBits, true, nil
	}
	if key.Kind == tvmtype.KindUint || key.Kind == tvmtype.KindInt {
		return key.Bits, false, nil
	}
	return 0, false, errors.Errorf("unsupported map key kind %v", key.Kind)
}

func dictSet(dict *cell.Dictionary, key *big.Int, value *cell.Cell, ref bool) error {
	if ref {
		w := cell.BeginCell()
		if err := w.StoreRef(value); err != nil {
			return err
		}
		value = w.EndCell()
	}
	return dict.SetIntKey(key, value)
}

func dictSetSlice(dict *cell.Dictionary, key *cell.Builder, value *cell.Cell, ref bool) error {
	if ref {
		w := cell.BeginCell()
		if err := w.StoreRef(value); err != nil {
			return err
		}
		value = w.EndCell()
	}
	return dict.Set(key.EndCell(), value)
}
