package token

import (
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/tvmlabs/tvmabi/addr"
	"github.com/tvmlabs/tvmabi/tvmtype"
)

// Tokenize converts a decoded JSON value into a Token of the given type,
// per the accepted-forms table in §4.3.
func Tokenize(t *tvmtype.Descriptor, v any, path string) (*Token, error) {
	switch t.Kind {
	case tvmtype.KindUint, tvmtype.KindInt:
		return tokenizeFixedInt(t, v, path)
	case tvmtype.KindVarUint, tvmtype.KindVarInt:
		return tokenizeVarInt(t, v, path)
	case tvmtype.KindBool:
		return tokenizeBool(t, v, path)
	case tvmtype.KindAddress:
		return tokenizeAddress(t, v, path)
	case tvmtype.KindBytes:
		return tokenizeBytes(t, v, path)
	case tvmtype.KindFixedBytes:
		return tokenizeFixedBytes(t, v, path)
	case tvmtype.KindCell:
		return tokenizeCell(t, v, path)
	case tvmtype.KindString:
		return tokenizeString(t, v, path)
	case tvmtype.KindTuple:
		return tokenizeTuple(t, v, path)
	case tvmtype.KindArray:
		return tokenizeArray(t, v, path)
	case tvmtype.KindFixedArray:
		return tokenizeFixedArray(t, v, path)
	case tvmtype.KindMap:
		return tokenizeMap(t, v, path)
	case tvmtype.KindOptional:
		return tokenizeOptional(t, v, path)
	case tvmtype.KindRef:
		return tokenizeRef(t, v, path)
	default:
		return nil, pathErrorf(path, errors.Wrapf(ErrWrongDataFormat, "unsupported type kind %v", t.Kind))
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func parseBigInt(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, ok := new(big.Int).SetString(s[2:], 16)
		return n, ok
	}
	if strings.HasPrefix(s, "-0x") || strings.HasPrefix(s, "-0X") {
		n, ok := new(big.Int).SetString(s[3:], 16)
		if !ok {
			return nil, false
		}
		return n.Neg(n), true
	}
	n, ok := new(big.Int).SetString(s, 10)
	return n, ok
}

func numberFromJSON(v any, path string) (*big.Int, error) {
	switch x := v.(type) {
	case float64:
		if x != float64(int64(x)) {
			return nil, pathErrorf(path, errors.Wrapf(ErrWrongDataFormat, "non-integral JSON number %v", x))
		}
		return big.NewInt(int64(x)), nil
	case string:
		n, ok := parseBigInt(x)
		if !ok {
			return nil, pathErrorf(path, errors.Wrapf(ErrWrongDataFormat, "cannot parse integer from %q", x))
		}
		return n, nil
	default:
		return nil, pathErrorf(path, errors.Wrapf(ErrWrongDataFormat, "expected integer, got %T", v))
	}
}

func tokenizeFixedInt(t *tvmtype.Descriptor, v any, path string) (*Token, error) {
	n, err := numberFromJSON(v, path)
	if err != nil {
		return nil, err
	}
	if t.Kind == tvmtype.KindUint {
		if n.Sign() < 0 {
			return nil, pathErrorf(path, errors.Wrapf(ErrIntOverflow, "uint%d cannot be negative", t.Bits))
		}
		if n.BitLen() > t.Bits {
			return nil, pathErrorf(path, errors.Wrapf(ErrIntOverflow, "value does not fit in uint%d", t.Bits))
		}
	} else {
		min := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), uint(t.Bits-1)))
		max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(t.Bits-1)), big.NewInt(1))
		if n.Cmp(min) < 0 || n.Cmp(max) > 0 {
			return nil, pathErrorf(path, errors.Wrapf(ErrIntOverflow, "value does not fit in int%d", t.Bits))
		}
	}
	return &Token{Type: t, Int: n}, nil
}

func tokenizeVarInt(t *tvmtype.Descriptor, v any, path string) (*Token, error) {
	n, err := numberFromJSON(v, path)
	if err != nil {
		return nil, err
	}
	maxBits := uint(8 * (t.VarN - 1))
	if t.Kind == tvmtype.KindVarUint {
		if n.Sign() < 0 {
			return nil, pathErrorf(path, errors.Wrapf(ErrIntOverflow, "varuint%d cannot be negative", t.VarN))
		}
		if uint(n.BitLen()) > maxBits {
			return nil, pathErrorf(path, errors.Wrapf(ErrIntOverflow, "value does not fit in varuint%d", t.VarN))
		}
	} else {
		bound := new(big.Int).Lsh(big.NewInt(1), maxBits)
		neg := new(big.Int).Neg(bound)
		if n.Cmp(neg) < 0 || n.Cmp(bound) >= 0 {
			return nil, pathErrorf(path, errors.Wrapf(ErrIntOverflow, "value does not fit in varint%d", t.VarN))
		}
	}
	return &Token{Type: t, Int: n}, nil
}

func tokenizeBool(t *tvmtype.Descriptor, v any, path string) (*Token, error) {
	switch x := v.(type) {
	case bool:
		return &Token{Type: t, Bool: x}, nil
	case float64:
		if x == 0 {
			return &Token{Type: t, Bool: false}, nil
		}
		if x == 1 {
			return &Token{Type: t, Bool: true}, nil
		}
	case string:
		switch x {
		case "true":
			return &Token{Type: t, Bool: true}, nil
		case "false":
			return &Token{Type: t, Bool: false}, nil
		}
	}
	return nil, pathErrorf(path, errors.Wrapf(ErrWrongDataFormat, "expected bool, got %v", v))
}

func tokenizeAddress(t *tvmtype.Descriptor, v any, path string) (*Token, error) {
	s, ok := asString(v)
	if !ok {
		return nil, pathErrorf(path, errors.Wrapf(ErrWrongDataFormat, "expected address string, got %T", v))
	}
	a, err := addr.Parse(s)
	if err != nil {
		return nil, pathErrorf(path, errors.Wrapf(ErrInvalidAddress, "%v", err))
	}
	return &Token{Type: t, Addr: a}, nil
}

func decodeHexString(s, path string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, pathErrorf(path, errors.Wrapf(ErrInvalidHex, "odd-length hex string %q", s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, pathErrorf(path, errors.Wrapf(ErrInvalidHex, "%v", err))
	}
	return b, nil
}

func tokenizeBytes(t *tvmtype.Descriptor, v any, path string) (*Token, error) {
	s, ok := asString(v)
	if !ok {
		return nil, pathErrorf(path, errors.Wrapf(ErrWrongDataFormat, "expected hex string, got %T", v))
	}
	b, err := decodeHexString(s, path)
	if err != nil {
		return nil, err
	}
	return &Token{Type: t, Bytes: b}, nil
}

func tokenizeFixedBytes(t *tvmtype.Descriptor, v any, path string) (*Token, error) {
	tok, err := tokenizeBytes(t, v, path)
	if err != nil {
		return nil, err
	}
	n := t.Bits / 8
	if len(tok.Bytes) != n {
		return nil, pathErrorf(path, errors.Wrapf(ErrLengthMismatch, "fixedbytes%d expects %d bytes, got %d", n, n, len(tok.Bytes)))
	}
	return tok, nil
}

func tokenizeCell(t *tvmtype.Descriptor, v any, path string) (*Token, error) {
	s, ok := asString(v)
	if !ok {
		return nil, pathErrorf(path, errors.Wrapf(ErrWrongDataFormat, "expected base64 cell, got %T", v))
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, pathErrorf(path, errors.Wrapf(ErrWrongDataFormat, "bad base64 cell: %v", err))
	}
	c, err := cell.FromBOC(raw)
	if err != nil {
		return nil, pathErrorf(path, errors.Wrapf(ErrWrongDataFormat, "bad bag of cells: %v", err))
	}
	return &Token{Type: t, Cell: c}, nil
}

func tokenizeString(t *tvmtype.Descriptor, v any, path string) (*Token, error) {
	s, ok := asString(v)
	if !ok {
		return nil, pathErrorf(path, errors.Wrapf(ErrWrongDataFormat, "expected string, got %T", v))
	}
	if !utf8.ValidString(s) {
		return nil, pathErrorf(path, errors.Wrap(ErrUtf8Error, "not valid utf-8"))
	}
	return &Token{Type: t, Str: s}, nil
}

// tokenizeTuple accepts either a JSON object (keyed by component name) or
// a JSON array (positional), per §4.3.
func tokenizeTuple(t *tvmtype.Descriptor, v any, path string) (*Token, error) {
	members := make([]Token, len(t.Components))

	switch x := v.(type) {
	case map[string]any:
		seen := make(map[string]bool, len(t.Components))
		for i, c := range t.Components {
			val, ok := x[c.Name]
			if !ok {
				return nil, pathErrorf(path, errors.Wrapf(ErrMissingField, "missing tuple field %q", c.Name))
			}
			seen[c.Name] = true
			tok, err := Tokenize(c.Type, val, join(path, c.Name))
			if err != nil {
				return nil, err
			}
			tok.Name = c.Name
			members[i] = *tok
		}
		for k := range x {
			if !seen[k] {
				return nil, pathErrorf(path, errors.Wrapf(ErrUnknownField, "unknown tuple field %q", k))
			}
		}

	case []any:
		if len(x) != len(t.Components) {
			return nil, pathErrorf(path, errors.Wrapf(ErrLengthMismatch, "tuple has %d components, got %d values", len(t.Components), len(x)))
		}
		for i, c := range t.Components {
			tok, err := Tokenize(c.Type, x[i], index(path, i))
			if err != nil {
				return nil, err
			}
			tok.Name = c.Name
			members[i] = *tok
		}

	default:
		return nil, pathErrorf(path, errors.Wrapf(ErrWrongDataFormat, "expected tuple object or array, got %T", v))
	}

	return &Token{Type: t, Tuple: members}, nil
}

func tokenizeArray(t *tvmtype.Descriptor, v any, path string) (*Token, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, pathErrorf(path, errors.Wrapf(ErrWrongDataFormat, "expected array, got %T", v))
	}
	items := make([]Token, len(arr))
	for i, e := range arr {
		tok, err := Tokenize(t.Elem, e, index(path, i))
		if err != nil {
			return nil, err
		}
		items[i] = *tok
	}
	return &Token{Type: t, Items: items}, nil
}

func tokenizeFixedArray(t *tvmtype.Descriptor, v any, path string) (*Token, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, pathErrorf(path, errors.Wrapf(ErrWrongDataFormat, "expected array, got %T", v))
	}
	if len(arr) != t.Length {
		return nil, pathErrorf(path, errors.Wrapf(ErrLengthMismatch, "fixed array expects %d entries, got %d", t.Length, len(arr)))
	}
	items := make([]Token, len(arr))
	for i, e := range arr {
		tok, err := Tokenize(t.Elem, e, index(path, i))
		if err != nil {
			return nil, err
		}
		items[i] = *tok
	}
	return &Token{Type: t, Items: items}, nil
}

func tokenizeMap(t *tvmtype.Descriptor, v any, path string) (*Token, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, pathErrorf(path, errors.Wrapf(ErrWrongDataFormat, "expected map object, got %T", v))
	}
	entries := make([]MapEntry, 0, len(obj))
	for k, val := range obj {
		keyTok, err := tokenizeMapKey(t.Key, k, join(path, k))
		if err != nil {
			return nil, err
		}
		valTok, err := Tokenize(t.Value, val, join(path, k))
		if err != nil {
			return nil, err
		}
		entries = append(entries, MapEntry{Key: *keyTok, Value: *valTok})
	}
	return &Token{Type: t, Entries: entries}, nil
}

// tokenizeMapKey parses a JSON object key, which json.Unmarshal always
// hands us as a bare string, back into the key type's normal accepted
// forms (a numeric string for int/uint keys, the usual address string
// for address keys).
func tokenizeMapKey(kt *tvmtype.Descriptor, k, path string) (*Token, error) {
	switch kt.Kind {
	case tvmtype.KindAddress:
		return tokenizeAddress(kt, k, path)
	default:
		return Tokenize(kt, k, path)
	}
}

func tokenizeOptional(t *tvmtype.Descriptor, v any, path string) (*Token, error) {
	if v == nil {
		return &Token{Type: t, OptionalSet: false}, nil
	}
	inner, err := Tokenize(t.Elem, v, path)
	if err != nil {
		return nil, err
	}
	return &Token{Type: t, OptionalSet: true, OptionalValue: inner}, nil
}

func tokenizeRef(t *tvmtype.Descriptor, v any, path string) (*Token, error) {
	inner, err := Tokenize(t.Elem, v, path)
	if err != nil {
		return nil, err
	}
	return &Token{Type: t, RefValue: inner}, nil
}
