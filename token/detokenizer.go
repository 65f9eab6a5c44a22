package token

import (
	"encoding/base64"
	"encoding/hex"

	"github.com/pkg/errors"

	"github.com/tvmlabs/tvmabi/tvmtype"
)

// Detokenize reverses Tokenize, always emitting the canonical JSON form
// (§4.3: decimal string for uint/int, hex string for fixedbytes, etc).
func Detokenize(t *Token) (any, error) {
	switch t.Type.Kind {
	case tvmtype.KindUint, tvmtype.KindInt, tvmtype.KindVarUint, tvmtype.KindVarInt:
		return t.Int.String(), nil

	case tvmtype.KindBool:
		return t.Bool, nil

	case tvmtype.KindAddress:
		return t.Addr.String(), nil

	case tvmtype.KindBytes:
		return hex.EncodeToString(t.Bytes), nil

	case tvmtype.KindFixedBytes:
		return hex.EncodeToString(t.Bytes), nil

	case tvmtype.KindCell:
		boc := t.Cell.ToBOC()
		return base64.StdEncoding.EncodeToString(boc), nil

	case tvmtype.KindString:
		return t.Str, nil

	case tvmtype.KindTuple:
		out := make(map[string]any, len(t.Tuple))
		for i := range t.Tuple {
			v, err := Detokenize(&t.Tuple[i])
			if err != nil {
				return nil, err
			}
			out[t.Tuple[i].Name] = v
		}
		return out, nil

	case tvmtype.KindArray, tvmtype.KindFixedArray:
		out := make([]any, len(t.Items))
		for i := range t.Items {
			v, err := Detokenize(&t.Items[i])
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case tvmtype.KindMap:
		out := make(map[string]any, len(t.Entries))
		for _, e := range t.Entries {
			k, err := detokenizeMapKey(&e.Key)
			if err != nil {
				return nil, err
			}
			v, err := Detokenize(&e.Value)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil

	case tvmtype.KindOptional:
		if !t.OptionalSet {
			return nil, nil
		}
		return Detokenize(t.OptionalValue)

	case tvmtype.KindRef:
		return Detokenize(t.RefValue)

	default:
		return nil, errors.Errorf("detokenize: unsupported type kind %v", t.Type.Kind)
	}
}

func detokenizeMapKey(t *Token) (string, error) {
	if t.Type.Kind == tvmtype.KindAddress {
		return t.Addr.String(), nil
	}
	v, err := Detokenize(t)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Errorf("map key did not detokenize to a string")
	}
	return s, nil
}
