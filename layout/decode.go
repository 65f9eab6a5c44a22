package layout

import (
	"math/big"
	"sort"

	"github.com/pkg/errors"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/tvmlabs/tvmabi/addr"
	"github.com/tvmlabs/tvmabi/token"
	"github.com/tvmlabs/tvmabi/tvmtype"
)

// Deserialization errors, §4.6.
var (
	ErrUnexpectedEof         = errors.New("unexpected end of cell data")
	ErrInvalidPrefix         = errors.New("invalid prefix bit")
	ErrDictionaryKeyMismatch = errors.New("dictionary key out of expected range")
	ErrLeftoverData          = errors.New("leftover data after decoding all parameters")
)

// decodeState tracks the reserved-footprint ledger for the cell
// currently being read, mirroring the bookkeeping packCellsIntoChain
// used while encoding so that ref boundaries land in the same places.
// Legacy (< 2.2) documents are decoded with the same reserved-footprint
// accounting as fixed-layout ones: without already-decoded values there
// is no way to reconstruct the legacy encoder's actual-size bookkeeping
// ahead of time, so the fixed rule is used as the closest approximation
// for every ABI version.
type decodeState struct {
	slice      *cell.Slice
	usedBits   int
	usedRefs   int
	abiVersion int
}

func newDecodeState(s *cell.Slice, abiVersion int) *decodeState {
	return &decodeState{slice: s, abiVersion: abiVersion}
}

func (d *decodeState) remaining() (bits, refs int) {
	return cellBitsCapacity - d.usedBits, cellRefsCapacity - d.usedRefs
}

// enter applies the pack_cells_into_chain decision for the next leaf
// (valBits/valRefs, with restBits/restRefs summed over the leaves still
// to come) and, if the decision is to spill, advances into the next
// cell via a reference load.
func (d *decodeState) enter(valBits, valRefs, restBits, restRefs int) error {
	remBits, remRefs := d.remaining()

	spill := remBits < valBits || remRefs < valRefs
	if !spill && valRefs > 0 && remRefs == valRefs {
		if !(d.abiVersion != tvmtype.VersionV1 && restRefs == 0 && restBits+valBits <= remBits) {
			spill = true
		}
	}

	if spill {
		next, err := d.slice.LoadRef()
		if err != nil {
			return errors.Wrap(ErrUnexpectedEof, err.Error())
		}
		d.slice = next
		d.usedBits = 0
		d.usedRefs = 0
	}

	d.usedBits += valBits
	d.usedRefs += valRefs
	return nil
}

// leafSlot is one flattened leaf of the (possibly nested-tuple) type
// tree being decoded.
type leafSlot struct {
	name string
	typ  *tvmtype.Descriptor
}

func flattenTypes(descs []tvmtype.NamedDescriptor) []leafSlot {
	var out []leafSlot
	var rec func(tvmtype.NamedDescriptor)
	rec = func(nd tvmtype.NamedDescriptor) {
		if nd.Type.Kind == tvmtype.KindTuple {
			for _, c := range nd.Type.Components {
				rec(c)
			}
			return
		}
		out = append(out, leafSlot{name: nd.Name, typ: nd.Type})
	}
	for _, d := range descs {
		rec(d)
	}
	return out
}

// DecodeTokens reads a sequence of top-level parameters back out of a
// chained cell, per §4.6, mirroring EncodeTokens exactly. It is a
// convenience wrapper around Decoder for the common case of decoding a
// whole, self-contained parameter list in one batch.
func DecodeTokens(descs []tvmtype.NamedDescriptor, root *cell.Slice, abiVersion int, strict bool) ([]token.Token, error) {
	d := NewDecoder(root, abiVersion)
	out, err := d.Decode(descs, 0, 0)
	if err != nil {
		return nil, err
	}
	if strict {
		if err := d.Finish(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Decoder reads a flat, growing sequence of values out of a chained
// cell. Unlike DecodeTokens, it can be driven in several Decode calls
// that share one reserved-footprint ledger (decodeState) — needed when
// later batches (e.g. a function's parameters) aren't known until an
// earlier batch (e.g. its header and function id) has been read.
type Decoder struct {
	st *decodeState
}

// NewDecoder begins decoding from root.
func NewDecoder(root *cell.Slice, abiVersion int) *Decoder {
	return &Decoder{st: newDecodeState(root, abiVersion)}
}

// Slice exposes the current read position, for callers that need to
// read a raw field (e.g. a bare 32-bit function id) between batches.
func (d *Decoder) Slice() *cell.Slice { return d.st.slice }

// Advance applies the chain-boundary decision for a raw (non-tvmtype)
// field of the given footprint and accounts for it, without actually
// reading any bits — used for the function id, which has no ABI type
// of its own but still occupies a reserved slot in the chain.
func (d *Decoder) Advance(bits, refs, lookaheadBits, lookaheadRefs int) error {
	return d.st.enter(bits, refs, lookaheadBits, lookaheadRefs)
}

// Decode reads one batch of (possibly nested-tuple) named parameters.
// lookaheadBits/lookaheadRefs must sum the max footprint of everything
// that will be decoded in later batches from the same Decoder, so the
// chain-boundary decision for this batch's last leaf stays correct;
// pass 0,0 when this is the final batch.
func (d *Decoder) Decode(descs []tvmtype.NamedDescriptor, lookaheadBits, lookaheadRefs int) ([]token.Token, error) {
	leaves := flattenTypes(descs)

	flat := make([]token.Token, len(leaves))
	for i, leaf := range leaves {
		maxBits, maxRefs := leaf.typ.MaxFootprint()
		restBits, restRefs := lookaheadBits, lookaheadRefs
		for _, rest := range leaves[i+1:] {
			b, r := rest.typ.MaxFootprint()
			restBits += b
			restRefs += r
		}
		if err := d.st.enter(maxBits, maxRefs, restBits, restRefs); err != nil {
			return nil, errors.Wrapf(err, "%s", leaf.name)
		}
		tok, err := readSingle(d.st.slice, leaf.typ, leaf.name, d.st.abiVersion)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", leaf.name)
		}
		flat[i] = *tok
	}

	return rebuildTuples(descs, flat), nil
}

// Finish reports ErrLeftoverData if the underlying cell chain has
// unread bits or references remaining.
func (d *Decoder) Finish() error {
	if d.st.slice.BitsLeft() != 0 || d.st.slice.RefsNum() != 0 {
		return ErrLeftoverData
	}
	return nil
}

// rebuildTuples walks the original (possibly nested) descriptor tree
// and re-assembles the flat leaf tokens into nested tuple tokens.
func rebuildTuples(descs []tvmtype.NamedDescriptor, flat []token.Token) []token.Token {
	i := 0
	var rec func(nd tvmtype.NamedDescriptor) token.Token
	rec = func(nd tvmtype.NamedDescriptor) token.Token {
		if nd.Type.Kind == tvmtype.KindTuple {
			members := make([]token.Token, len(nd.Type.Components))
			for j, c := range nd.Type.Components {
				members[j] = rec(c)
			}
			return token.Token{Name: nd.Name, Type: nd.Type, Tuple: members}
		}
		t := flat[i]
		i++
		return t
	}

	out := make([]token.Token, len(descs))
	for k, d := range descs {
		out[k] = rec(d)
	}
	return out
}

func readSingle(s *cell.Slice, t *tvmtype.Descriptor, name string, abiVersion int) (*token.Token, error) {
	switch t.Kind {
	case tvmtype.KindUint:
		v, err := s.LoadBigUInt(uint(t.Bits))
		if err != nil {
			return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
		}
		return &token.Token{Name: name, Type: t, Int: v}, nil

	case tvmtype.KindInt:
		v, err := s.LoadBigInt(uint(t.Bits))
		if err != nil {
			return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
		}
		return &token.Token{Name: name, Type: t, Int: v}, nil

	case tvmtype.KindVarUint, tvmtype.KindVarInt:
		v, err := readVarInt(s, t.VarN, t.Kind == tvmtype.KindVarInt)
		if err != nil {
			return nil, err
		}
		return &token.Token{Name: name, Type: t, Int: v}, nil

	case tvmtype.KindBool:
		v, err := s.LoadBoolBit()
		if err != nil {
			return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
		}
		return &token.Token{Name: name, Type: t, Bool: v}, nil

	case tvmtype.KindAddress:
		a, err := addr.Decode(s)
		if err != nil {
			return nil, err
		}
		return &token.Token{Name: name, Type: t, Addr: a}, nil

	case tvmtype.KindBytes:
		b, err := readBytes(s)
		if err != nil {
			return nil, err
		}
		return &token.Token{Name: name, Type: t, Bytes: b}, nil

	case tvmtype.KindFixedBytes:
		b, err := readBytes(s)
		if err != nil {
			return nil, err
		}
		if len(b) != t.Bits/8 {
			return nil, errors.Errorf("fixedbytes%d: got %d bytes", t.Bits/8, len(b))
		}
		return &token.Token{Name: name, Type: t, Bytes: b}, nil

	case tvmtype.KindString:
		b, err := readBytes(s)
		if err != nil {
			return nil, err
		}
		return &token.Token{Name: name, Type: t, Str: string(b)}, nil

	case tvmtype.KindCell:
		r, err := s.LoadRef()
		if err != nil {
			return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
		}
		c, err := r.ToCell()
		if err != nil {
			return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
		}
		return &token.Token{Name: name, Type: t, Cell: c}, nil

	case tvmtype.KindArray:
		return readArray(s, t, name, abiVersion, false)

	case tvmtype.KindFixedArray:
		return readArray(s, t, name, abiVersion, true)

	case tvmtype.KindMap:
		return readMap(s, t, name, abiVersion)

	case tvmtype.KindOptional:
		return readOptional(s, t, name, abiVersion)

	case tvmtype.KindRef:
		return readRef(s, t, name, abiVersion)

	default:
		return nil, errors.Errorf("unsupported kind for decoding: %v", t.Kind)
	}
}

func readVarInt(s *cell.Slice, n int, signed bool) (*big.Int, error) {
	ln, err := s.LoadUInt(varPrefixBits(n))
	if err != nil {
		return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
	}
	if int(ln) > n-1 {
		return nil, errors.Wrapf(ErrInvalidPrefix, "var int length %d exceeds max %d", ln, n-1)
	}
	if ln == 0 {
		return big.NewInt(0), nil
	}
	b, err := s.LoadSlice(uint(ln) * 8)
	if err != nil {
		return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
	}
	if signed {
		return decodeSignedBytes(b), nil
	}
	return new(big.Int).SetBytes(b), nil
}

func decodeSignedBytes(b []byte) *big.Int {
	v := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8))
		v.Sub(v, mod)
	}
	return v
}

func readBytes(s *cell.Slice) ([]byte, error) {
	cur, err := s.LoadRef()
	if err != nil {
		return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
	}

	var out []byte
	for {
		n := cur.BitsLeft() / 8
		chunk, err := cur.LoadSlice(n * 8)
		if err != nil {
			return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
		}
		out = append(out, chunk...)
		if cur.RefsNum() == 0 {
			break
		}
		cur, err = cur.LoadRef()
		if err != nil {
			return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
		}
	}
	return out, nil
}

func readArray(s *cell.Slice, t *tvmtype.Descriptor, name string, abiVersion int, fixed bool) (*token.Token, error) {
	length := t.Length
	if !fixed {
		n, err := s.LoadUInt(32)
		if err != nil {
			return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
		}
		length = int(n)
	}

	dc, err := s.LoadMaybeRef()
	if err != nil {
		return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
	}
	items := make([]token.Token, length)
	if length > 0 {
		if dc == nil {
			return nil, errors.Wrap(ErrUnexpectedEof, "array: missing dictionary")
		}
		d, err := dc.ToDict(arrayKeyBits)
		if err != nil {
			return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
		}
		entries, err := sortedIntEntries(d)
		if err != nil {
			return nil, err
		}
		if len(entries) != length {
			return nil, errors.Wrapf(ErrDictionaryKeyMismatch, "array: expected %d entries, got %d", length, len(entries))
		}
		for i, e := range entries {
			if e.key != int64(i) {
				return nil, errors.Wrapf(ErrDictionaryKeyMismatch, "array[%d]: key %d", i, e.key)
			}
			v, err := readElem(e.value, t.Elem, abiVersion, arrayKeyBits)
			if err != nil {
				return nil, errors.Wrapf(err, "%s[%d]", name, i)
			}
			items[i] = *v
		}
	}

	return &token.Token{Name: name, Type: t, Items: items}, nil
}

type intEntry struct {
	key   int64
	value *cell.Cell
}

func sortedIntEntries(d *cell.Dictionary) ([]intEntry, error) {
	all := d.All()
	out := make([]intEntry, 0, len(all))
	for _, kv := range all {
		ks := kv.Key.BeginParse()
		k, err := ks.LoadInt(uint(ks.BitsLeft()))
		if err != nil {
			return nil, err
		}
		out = append(out, intEntry{key: k, value: kv.Value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out, nil
}

// readElem decodes one dictionary leaf, which is itself a complete,
// independently-packed chain. Whether the leaf holds that chain behind
// a reference ("value in ref") is decided from the element type, by
// the same rule writeArray/writeMap apply when storing it.
func readElem(c *cell.Cell, t *tvmtype.Descriptor, abiVersion int, keyBits int) (*token.Token, error) {
	maxBits, maxRefs := t.MaxFootprint()
	cs := c.BeginParse()
	if valueInRef(keyBits, maxBits) || maxRefs >= cellRefsCapacity {
		ref, err := cs.LoadRef()
		if err != nil {
			return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
		}
		cs = ref
	}
	toks, err := DecodeTokens([]tvmtype.NamedDescriptor{{Type: t}}, cs, abiVersion, false)
	if err != nil {
		return nil, err
	}
	return &toks[0], nil
}

func readMap(s *cell.Slice, t *tvmtype.Descriptor, name string, abiVersion int) (*token.Token, error) {
	keyBits, isAddr, err := mapKeyBits(t.Key)
	if err != nil {
		return nil, err
	}

	dc, err := s.LoadMaybeRef()
	if err != nil {
		return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
	}
	if dc == nil {
		return &token.Token{Name: name, Type: t}, nil
	}

	d, err := dc.ToDict(uint(keyBits))
	if err != nil {
		return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
	}
	all := d.All()

	entries := make([]token.MapEntry, len(all))
	for i, kv := range all {
		var keyTok token.Token
		if isAddr {
			ks := kv.Key.BeginParse()
			a, err := addr.Decode(ks)
			if err != nil {
				return nil, err
			}
			keyTok = token.Token{Type: t.Key, Addr: a}
		} else {
			ks := kv.Key.BeginParse()
			var v *big.Int
			if t.Key.Kind == tvmtype.KindInt {
				v, err = ks.LoadBigInt(uint(t.Key.Bits))
			} else {
				v, err = ks.LoadBigUInt(uint(t.Key.Bits))
			}
			if err != nil {
				return nil, err
			}
			keyTok = token.Token{Type: t.Key, Int: v}
		}

		valTok, err := readElem(kv.Value, t.Value, abiVersion, keyBits)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: entry %d", name, i)
		}
		entries[i] = token.MapEntry{Key: keyTok, Value: *valTok}
	}

	return &token.Token{Name: name, Type: t, Entries: entries}, nil
}

func readOptional(s *cell.Slice, t *tvmtype.Descriptor, name string, abiVersion int) (*token.Token, error) {
	set, err := s.LoadBoolBit()
	if err != nil {
		return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
	}
	if !set {
		return &token.Token{Name: name, Type: t}, nil
	}

	large := t.IsLargeOptional()
	if large {
		cs, err := s.LoadRef()
		if err != nil {
			return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
		}
		// The ref's content was built by writeElemChain, which flattens
		// tuples and may have spilled across further refs; a fresh
		// Decoder over cs reverses exactly that.
		toks, err := DecodeTokens([]tvmtype.NamedDescriptor{{Name: name, Type: t.Elem}}, cs, abiVersion, false)
		if err != nil {
			return nil, err
		}
		return &token.Token{Name: name, Type: t, OptionalSet: true, OptionalValue: &toks[0]}, nil
	}

	// A small optional can still wrap a tuple (readSingle has no
	// KindTuple case), so its members are read as flattened leaves, the
	// same way a top-level parameter list is.
	descs := []tvmtype.NamedDescriptor{{Name: name, Type: t.Elem}}
	leaves := flattenTypes(descs)
	flat := make([]token.Token, len(leaves))
	for i, leaf := range leaves {
		tok, err := readSingle(s, leaf.typ, leaf.name, abiVersion)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: small optional", name)
		}
		flat[i] = *tok
	}
	v := rebuildTuples(descs, flat)[0]
	return &token.Token{Name: name, Type: t, OptionalSet: true, OptionalValue: &v}, nil
}

func readRef(s *cell.Slice, t *tvmtype.Descriptor, name string, abiVersion int) (*token.Token, error) {
	cs, err := s.LoadRef()
	if err != nil {
		return nil, errors.Wrap(ErrUnexpectedEof, err.Error())
	}
	toks, err := DecodeTokens([]tvmtype.NamedDescriptor{{Name: name, Type: t.Elem}}, cs, abiVersion, false)
	if err != nil {
		return nil, err
	}
	return &token.Token{Name: name, Type: t, RefValue: &toks[0]}, nil
}
