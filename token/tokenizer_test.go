package token

import (
	"testing"

	"github.com/tvmlabs/tvmabi/tvmtype"
)

func parseType(t *testing.T, s string) *tvmtype.Descriptor {
	t.Helper()
	d, err := tvmtype.Parse(s, tvmtype.ParseOptions{Version: tvmtype.VersionV22}, nil)
	if err != nil {
		t.Fatalf("parse type %q: %v", s, err)
	}
	return d
}

func TestTokenizeUintForms(t *testing.T) {
	ty := parseType(t, "uint32")

	for _, v := range []any{float64(42), "42", "0x2a"} {
		tok, err := Tokenize(ty, v, "arg")
		if err != nil {
			t.Fatalf("tokenize %v: %v", v, err)
		}
		if tok.Int.Int64() != 42 {
			t.Fatalf("tokenize %v: got %v, want 42", v, tok.Int)
		}
	}
}

func TestTokenizeUintOverflow(t *testing.T) {
	ty := parseType(t, "uint8")
	if _, err := Tokenize(ty, float64(256), "arg"); err == nil {
		t.Fatal("expected overflow error")
	}
	if _, err := Tokenize(ty, float64(-1), "arg"); err == nil {
		t.Fatal("expected overflow error for negative uint")
	}
}

func TestTokenizeBoolForms(t *testing.T) {
	ty := parseType(t, "bool")
	for _, v := range []any{true, float64(1), "true"} {
		tok, err := Tokenize(ty, v, "arg")
		if err != nil {
			t.Fatalf("tokenize %v: %v", v, err)
		}
		if !tok.Bool {
			t.Fatalf("tokenize %v: want true", v)
		}
	}
}

func TestTokenizeDetokenizeRoundTrip(t *testing.T) {
	ty := parseType(t, "uint64")
	tok, err := Tokenize(ty, "123456789", "arg")
	if err != nil {
		t.Fatal(err)
	}
	v, err := Detokenize(tok)
	if err != nil {
		t.Fatal(err)
	}
	if v != "123456789" {
		t.Fatalf("detokenize = %v, want 123456789", v)
	}
}

func TestTokenizeTupleObjectAndArray(t *testing.T) {
	ty, err := tvmtype.Parse("tuple", tvmtype.ParseOptions{Version: tvmtype.VersionV22}, func(string) ([]tvmtype.NamedDescriptor, error) {
		return []tvmtype.NamedDescriptor{
			{Name: "a", Type: parseType(t, "uint32")},
			{Name: "b", Type: parseType(t, "bool")},
		}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	obj := map[string]any{"a": float64(1), "b": true}
	tokObj, err := Tokenize(ty, obj, "arg")
	if err != nil {
		t.Fatal(err)
	}

	arr := []any{float64(1), true}
	tokArr, err := Tokenize(ty, arr, "arg")
	if err != nil {
		t.Fatal(err)
	}

	if tokObj.Tuple[0].Int.Int64() != tokArr.Tuple[0].Int.Int64() {
		t.Fatal("object and array tuple forms should tokenize identically")
	}
}

func TestTokenizeTupleRejectsUnknownField(t *testing.T) {
	ty, err := tvmtype.Parse("tuple", tvmtype.ParseOptions{Version: tvmtype.VersionV22}, func(string) ([]tvmtype.NamedDescriptor, error) {
		return []tvmtype.NamedDescriptor{{Name: "a", Type: parseType(t, "uint32")}}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = Tokenize(ty, map[string]any{"a": float64(1), "extra": float64(2)}, "arg")
	if err == nil {
		t.Fatal("expected UnknownField error for extra tuple key")
	}
}

func TestTokenizeOptional(t *testing.T) {
	ty := parseType(t, "optional(uint8)")

	none, err := Tokenize(ty, nil, "arg")
	if err != nil {
		t.Fatal(err)
	}
	if none.OptionalSet {
		t.Fatal("nil should tokenize to an unset optional")
	}

	some, err := Tokenize(ty, float64(9), "arg")
	if err != nil {
		t.Fatal(err)
	}
	if !some.OptionalSet || some.OptionalValue.Int.Int64() != 9 {
		t.Fatalf("unexpected optional token: %+v", some)
	}
}

func TestTokenizeAddress(t *testing.T) {
	ty := parseType(t, "address")

	hash := ""
	for i := 0; i < 64; i++ {
		hash += "a"
	}
	tok, err := Tokenize(ty, "0:"+hash, "arg")
	if err != nil {
		t.Fatal(err)
	}
	v, err := Detokenize(tok)
	if err != nil {
		t.Fatal(err)
	}
	if v != "0:"+hash {
		t.Fatalf("detokenize address = %v, want %v", v, "0:"+hash)
	}
}

func TestTokenizeBytesOddHex(t *testing.T) {
	ty := parseType(t, "bytes")
	if _, err := Tokenize(ty, "abc", "arg"); err == nil {
		t.Fatal("expected InvalidHex error for odd-length hex")
	}
}

func TestTokenizeMap(t *testing.T) {
	ty := parseType(t, "map(uint32,bool)")
	tok, err := Tokenize(ty, map[string]any{"1": true, "2": false}, "arg")
	if err != nil {
		t.Fatal(err)
	}
	if len(tok.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(tok.Entries))
	}
}
