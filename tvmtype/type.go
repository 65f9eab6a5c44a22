// Package tvmtype parses ABI type strings ("int64", "map(uint32,address)",
// "optional(T)", "T[]", "ref(T)", "tuple", ...) into typed descriptors and
// derives the maximum bit/ref footprint each type contributes to the
// fixed-layout cell chain (see package layout).
package tvmtype

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/tvmlabs/tvmabi/lrucache"
)

// Kind enumerates the recognized ABI type families.
type Kind int

const (
	KindUint Kind = iota
	KindInt
	KindVarUint
	KindVarInt
	KindBool
	KindTuple
	KindArray
	KindFixedArray
	KindCell
	KindMap
	KindAddress
	KindBytes
	KindFixedBytes
	KindString
	KindOptional
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindUint:
		return "uint"
	case KindInt:
		return "int"
	case KindVarUint:
		return "varuint"
	case KindVarInt:
		return "varint"
	case KindBool:
		return "bool"
	case KindTuple:
		return "tuple"
	case KindArray:
		return "array"
	case KindFixedArray:
		return "fixedarray"
	case KindCell:
		return "cell"
	case KindMap:
		return "map"
	case KindAddress:
		return "address"
	case KindBytes:
		return "bytes"
	case KindFixedBytes:
		return "fixedbytes"
	case KindString:
		return "string"
	case KindOptional:
		return "optional"
	case KindRef:
		return "ref"
	default:
		return "unknown"
	}
}

// Descriptor is a parsed ABI type tree node.
//
// Only the fields relevant to a Kind are populated: Bits for
// int/uint/fixedbytes, VarN for varint/varuint, Elem for
// array/fixedarray/optional/ref, Length for fixedarray, Key/Value for
// map, Components for tuple.
type Descriptor struct {
	Kind       Kind
	Bits       int
	VarN       int
	Elem       *Descriptor
	Length     int
	Key        *Descriptor
	Value      *Descriptor
	Components []NamedDescriptor

	canon string // memoized canonical string, set on the first Canonical call
}

// NamedDescriptor pairs a tuple/struct member name with its type.
type NamedDescriptor struct {
	Name string
	Type *Descriptor
}

// footprint is the pair the fixed-layout encoder reserves per §3 of the spec.
type footprint struct {
	Bits int
	Refs int
}

var footprintCache = lrucache.New[string, footprint](4096)
var largeOptionalCache = lrucache.New[string, bool](4096)

// Canonical returns the canonical ABI-2.x type string used both in
// function/event signatures and as the memoization key.
func (d *Descriptor) Canonical() string {
	if d.canon != "" {
		return d.canon
	}
	d.canon = d.buildCanonical()
	return d.canon
}

func (d *Descriptor) buildCanonical() string {
	switch d.Kind {
	case KindUint:
		return "uint" + strconv.Itoa(d.Bits)
	case KindInt:
		return "int" + strconv.Itoa(d.Bits)
	case KindVarUint:
		return "varuint" + strconv.Itoa(d.VarN)
	case KindVarInt:
		return "varint" + strconv.Itoa(d.VarN)
	case KindBool:
		return "bool"
	case KindCell:
		return "cell"
	case KindAddress:
		return "address"
	case KindBytes:
		return "bytes"
	case KindFixedBytes:
		return "fixedbytes" + strconv.Itoa(d.Bits/8)
	case KindString:
		return "string"
	case KindArray:
		return d.Elem.Canonical() + "[]"
	case KindFixedArray:
		return d.Elem.Canonical() + "[" + strconv.Itoa(d.Length) + "]"
	case KindMap:
		return "map(" + d.Key.Canonical() + "," + d.Value.Canonical() + ")"
	case KindOptional:
		return "optional(" + d.Elem.Canonical() + ")"
	case KindRef:
		return "ref(" + d.Elem.Canonical() + ")"
	case KindTuple:
		var b strings.Builder
		b.WriteByte('(')
		for i, c := range d.Components {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(c.Type.Canonical())
		}
		b.WriteByte(')')
		return b.String()
	default:
		return "?"
	}
}

// MaxFootprint returns the maximum bits/refs a value of this type can
// ever occupy, per the table in §3 of the spec. Tuple footprint is the
// sum of its (flattened) members'.
func (d *Descriptor) MaxFootprint() (bits, refs int) {
	fp := footprintCache.GetOrCompute(d.Canonical(), func() footprint {
		return d.computeFootprint()
	})
	return fp.Bits, fp.Refs
}

func (d *Descriptor) computeFootprint() footprint {
	switch d.Kind {
	case KindUint, KindInt:
		return footprint{Bits: d.Bits, Refs: 0}
	case KindVarUint, KindVarInt:
		if d.VarN == 16 {
			return footprint{Bits: 124, Refs: 0}
		}
		return footprint{Bits: 253, Refs: 0}
	case KindBool:
		return footprint{Bits: 1, Refs: 0}
	case KindAddress:
		return footprint{Bits: 591, Refs: 0}
	case KindBytes, KindCell, KindString, KindRef, KindFixedBytes:
		return footprint{Bits: 0, Refs: 1}
	case KindArray:
		return footprint{Bits: 33, Refs: 1}
	case KindMap, KindFixedArray:
		return footprint{Bits: 1, Refs: 1}
	case KindOptional:
		if d.IsLargeOptional() {
			return footprint{Bits: 1, Refs: 1}
		}
		eb, er := d.Elem.MaxFootprint()
		return footprint{Bits: 1 + eb, Refs: er}
	case KindTuple:
		var bits, refs int
		for _, c := range d.Components {
			b, r := c.Type.MaxFootprint()
			bits += b
			refs += r
		}
		return footprint{Bits: bits, Refs: refs}
	default:
		return footprint{}
	}
}

// IsLargeOptional decides, once per type descriptor and memoized on its
// canonical form, whether optional(T) must be stored as a 1-bit flag
// plus an out-of-line reference ("large") or can be inlined ("small").
// T is large when T's maxBits+1 would not fit in a cell, or T already
// needs 4 refs.
func (d *Descriptor) IsLargeOptional() bool {
	if d.Kind != KindOptional {
		return false
	}
	return largeOptionalCache.GetOrCompute(d.Canonical(), func() bool {
		eb, er := d.Elem.MaxFootprint()
		return eb+1 > 1023 || er >= 4
	})
}

// Errors raised while parsing a type string.
var (
	ErrInvalidType         = errors.New("invalid type")
	ErrIntOverflow         = errors.New("integer bit width out of range")
	ErrMissingComponents   = errors.New("tuple type requires a components array")
	ErrDeprecatedType      = errors.New("type is deprecated for this ABI version")
	ErrRefNotSupported     = errors.New("ref(T) requires ABI >= 2.4")
	ErrFixedBytesTooNew    = errors.New("fixedbytesN is not valid in this ABI version")
)

// ParseOptions controls version-gated parsing behavior (§4.2).
type ParseOptions struct {
	// Version is the ABI version as a single comparable number:
	// VersionV1 for ABI 1 (and legacy 0), 2.0..2.4 map to 20..24.
	Version int

	// StrictDeprecations makes Parse reject fixedbytesN under ABI 2.4
	// instead of accepting it (§4.2, §9 open question). The check runs
	// at parse time, so it applies to decoding as well as encoding.
	StrictDeprecations bool
}

const (
	VersionV1  = 1
	VersionV20 = 20
	VersionV21 = 21
	VersionV22 = 22
	VersionV23 = 23
	VersionV24 = 24
)

// components, as decoded from the JSON "components" array of a Param.
type componentsFn func(path string) ([]NamedDescriptor, error)

// Parse parses an ABI type descriptor string. getComponents supplies the
// named sub-fields for every (nested) occurrence of "tuple" found while
// parsing; it is called with the structural path of the tuple being
// resolved, matching the Param.Type -> Param.Components contract in the
// JSON schema.
func Parse(s string, opts ParseOptions, getComponents componentsFn) (*Descriptor, error) {
	s = strings.TrimSpace(s)
	return parseOne(s, opts, getComponents, "")
}

func parseOne(s string, opts ParseOptions, getComponents componentsFn, path string) (*Descriptor, error) {
	switch {
	case strings.HasSuffix(s, "[]"):
		elem, err := parseOne(s[:len(s)-2], opts, getComponents, path+"[]")
		if err != nil {
			return nil, err
		}
		return &Descriptor{Kind: KindArray, Elem: elem}, nil

	case strings.HasSuffix(s, "]") && strings.Contains(s, "["):
		open := strings.LastIndexByte(s, '[')
		inner := s[:open]
		lenStr := s[open+1 : len(s)-1]
		k, err := strconv.Atoi(lenStr)
		if err != nil || k < 0 {
			return nil, errors.Wrapf(ErrInvalidType, "%s: bad fixed array length %q", path, lenStr)
		}
		elem, err := parseOne(inner, opts, getComponents, path+"[k]")
		if err != nil {
			return nil, err
		}
		return &Descriptor{Kind: KindFixedArray, Elem: elem, Length: k}, nil

	case strings.HasPrefix(s, "optional(") && strings.HasSuffix(s, ")"):
		inner := s[len("optional(") : len(s)-1]
		elem, err := parseOne(inner, opts, getComponents, path+".optional")
		if err != nil {
			return nil, err
		}
		return &Descriptor{Kind: KindOptional, Elem: elem}, nil

	case strings.HasPrefix(s, "ref(") && strings.HasSuffix(s, ")"):
		if opts.Version < VersionV24 {
			return nil, errors.Wrapf(ErrRefNotSupported, "%s", path)
		}
		inner := s[len("ref(") : len(s)-1]
		elem, err := parseOne(inner, opts, getComponents, path+".ref")
		if err != nil {
			return nil, err
		}
		return &Descriptor{Kind: KindRef, Elem: elem}, nil

	case strings.HasPrefix(s, "map(") && strings.HasSuffix(s, ")"):
		inner := s[len("map(") : len(s)-1]
		comma := splitTopLevelComma(inner)
		if comma < 0 {
			return nil, errors.Wrapf(ErrInvalidType, "%s: map requires key,value", path)
		}
		key, err := parseOne(strings.TrimSpace(inner[:comma]), opts, getComponents, path+".mapKey")
		if err != nil {
			return nil, err
		}
		val, err := parseOne(strings.TrimSpace(inner[comma+1:]), opts, getComponents, path+".mapValue")
		if err != nil {
			return nil, err
		}
		if !isValidMapKey(key) {
			return nil, errors.Wrapf(ErrInvalidType, "%s: map key must be int<N>/uint<N>/address", path)
		}
		return &Descriptor{Kind: KindMap, Key: key, Value: val}, nil

	case s == "tuple":
		if getComponents == nil {
			return nil, errors.Wrapf(ErrMissingComponents, "%s", path)
		}
		comps, err := getComponents(path)
		if err != nil {
			return nil, err
		}
		if comps == nil {
			return nil, errors.Wrapf(ErrMissingComponents, "%s", path)
		}
		return &Descriptor{Kind: KindTuple, Components: comps}, nil

	default:
		return parseScalar(s, opts, path)
	}
}

func splitTopLevelComma(s string) int {
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isValidMapKey(d *Descriptor) bool {
	switch d.Kind {
	case KindUint, KindInt:
		return d.Bits >= 1 && d.Bits <= 1023
	case KindAddress:
		return true
	default:
		return false
	}
}

func parseScalar(s string, opts ParseOptions, path string) (*Descriptor, error) {
	switch s {
	case "bool":
		return &Descriptor{Kind: KindBool}, nil
	case "cell":
		return &Descriptor{Kind: KindCell}, nil
	case "address":
		return &Descriptor{Kind: KindAddress}, nil
	case "bytes":
		return &Descriptor{Kind: KindBytes}, nil
	case "string":
		return &Descriptor{Kind: KindString}, nil
	case "uint":
		return &Descriptor{Kind: KindUint, Bits: 256}, nil
	case "int":
		return &Descriptor{Kind: KindInt, Bits: 256}, nil
	case "byte":
		return &Descriptor{Kind: KindUint, Bits: 8}, nil
	case "gram", "grams", "coins":
		return &Descriptor{Kind: KindVarUint, VarN: 16}, nil
	}

	switch {
	case strings.HasPrefix(s, "uint"):
		n, err := parseBits(s, "uint", path)
		if err != nil {
			return nil, err
		}
		return &Descriptor{Kind: KindUint, Bits: n}, nil

	case strings.HasPrefix(s, "int"):
		n, err := parseBits(s, "int", path)
		if err != nil {
			return nil, err
		}
		return &Descriptor{Kind: KindInt, Bits: n}, nil

	case strings.HasPrefix(s, "varuint"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "varuint"))
		if err != nil || (n != 16 && n != 32) {
			return nil, errors.Wrapf(ErrInvalidType, "%s: varuintN requires N in {16,32}, got %q", path, s)
		}
		return &Descriptor{Kind: KindVarUint, VarN: n}, nil

	case strings.HasPrefix(s, "varint"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "varint"))
		if err != nil || (n != 16 && n != 32) {
			return nil, errors.Wrapf(ErrInvalidType, "%s: varintN requires N in {16,32}, got %q", path, s)
		}
		return &Descriptor{Kind: KindVarInt, VarN: n}, nil

	case strings.HasPrefix(s, "fixedbytes"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "fixedbytes"))
		if err != nil || n < 1 || n > 32 {
			return nil, errors.Wrapf(ErrIntOverflow, "%s: fixedbytesN requires 1<=N<=32, got %q", path, s)
		}
		if opts.Version >= VersionV24 && opts.StrictDeprecations {
			return nil, errors.Wrapf(ErrDeprecatedType, "%s: fixedbytes%d", path, n)
		}
		return &Descriptor{Kind: KindFixedBytes, Bits: n * 8}, nil

	default:
		return nil, errors.Wrapf(ErrInvalidType, "%s: unknown type %q", path, s)
	}
}

func parseBits(s, prefix, path string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(s, prefix))
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidType, "%s: %q", path, s)
	}
	if n < 1 || n > 256 {
		return 0, errors.Wrapf(ErrIntOverflow, "%s: %s%d bits out of 1..256", path, prefix, n)
	}
	return n, nil
}

// HeaderBuiltin identifies time/expire/pubkey header keywords, which are
// header-only and never appear as an ordinary parameter type.
func HeaderBuiltin(s string) (Kind, bool) {
	switch s {
	case "time":
		return KindUint, true // uint64, see token.Header.Time
	case "expire":
		return KindUint, true // uint32, see token.Header.Expire
	case "pubkey":
		return KindOptional, true // optional 256-bit key
	default:
		return 0, false
	}
}
