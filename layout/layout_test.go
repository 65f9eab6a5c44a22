package layout

import (
	"math/big"
	"testing"

	"github.com/tvmlabs/tvmabi/addr"
	"github.com/tvmlabs/tvmabi/token"
	"github.com/tvmlabs/tvmabi/tvmtype"
)

func mustType(t *testing.T, s string) *tvmtype.Descriptor {
	t.Helper()
	d, err := tvmtype.Parse(s, tvmtype.ParseOptions{Version: tvmtype.VersionV22}, nil)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func uintToken(t *testing.T, name string, ty string, v int64) token.Token {
	return token.Token{Name: name, Type: mustType(t, ty), Int: big.NewInt(v)}
}

func addrToken(t *testing.T, name string, hashByte byte) token.Token {
	t.Helper()
	hash := make([]byte, 32)
	for i := range hash {
		hash[i] = hashByte
	}
	a, err := addr.NewStd(0, hash)
	if err != nil {
		t.Fatalf("NewStd: %v", err)
	}
	return token.Token{Name: name, Type: mustType(t, "address"), Addr: a}
}

func roundTrip(t *testing.T, descs []tvmtype.NamedDescriptor, in []token.Token) []token.Token {
	t.Helper()
	root, err := EncodeTokens(in, tvmtype.VersionV22)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s := root.BeginParse()
	if s == nil {
		t.Fatalf("begin parse: nil slice")
	}
	out, err := DecodeTokens(descs, s, tvmtype.VersionV22, true)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func namedOf(toks []token.Token) []tvmtype.NamedDescriptor {
	out := make([]tvmtype.NamedDescriptor, len(toks))
	for i, tk := range toks {
		out[i] = tvmtype.NamedDescriptor{Name: tk.Name, Type: tk.Type}
	}
	return out
}

func TestEncodeDecodeTwoAddresses(t *testing.T) {
	in := []token.Token{
		addrToken(t, "a", 0xAA),
		addrToken(t, "b", 0xBB),
	}
	out := roundTrip(t, namedOf(in), in)
	if out[0].Addr.String() != in[0].Addr.String() || out[1].Addr.String() != in[1].Addr.String() {
		t.Fatalf("address round trip mismatch: %+v", out)
	}
}

func TestEncodeDecodeMixedScalarsAndString(t *testing.T) {
	in := []token.Token{
		uintToken(t, "a", "uint32", 7),
		{Name: "b", Type: mustType(t, "bool"), Bool: true},
		{Name: "c", Type: mustType(t, "string"), Str: "hello tvm"},
		uintToken(t, "d", "int64", -42),
	}
	out := roundTrip(t, namedOf(in), in)

	if out[0].Int.Int64() != 7 {
		t.Fatalf("a = %v, want 7", out[0].Int)
	}
	if !out[1].Bool {
		t.Fatalf("b = %v, want true", out[1].Bool)
	}
	if out[2].Str != "hello tvm" {
		t.Fatalf("c = %q, want %q", out[2].Str, "hello tvm")
	}
	if out[3].Int.Int64() != -42 {
		t.Fatalf("d = %v, want -42", out[3].Int)
	}
}

func TestEncodeDecodeFourMapsOneCell(t *testing.T) {
	mapType := mustType(t, "map(uint32,bool)")
	makeMap := func(name string, k int64, v bool) token.Token {
		return token.Token{
			Name: name,
			Type: mapType,
			Entries: []token.MapEntry{
				{Key: token.Token{Type: mustType(t, "uint32"), Int: big.NewInt(k)}, Value: token.Token{Type: mustType(t, "bool"), Bool: v}},
			},
		}
	}

	in := []token.Token{
		makeMap("m1", 1, true),
		makeMap("m2", 2, false),
		makeMap("m3", 3, true),
		makeMap("m4", 4, false),
	}
	out := roundTrip(t, namedOf(in), in)

	for i, want := range []bool{true, false, true, false} {
		if len(out[i].Entries) != 1 {
			t.Fatalf("map %d: expected 1 entry, got %d", i, len(out[i].Entries))
		}
		if out[i].Entries[0].Value.Bool != want {
			t.Fatalf("map %d: value = %v, want %v", i, out[i].Entries[0].Value.Bool, want)
		}
	}
}

func TestEncodeDecodeOptionalSmallAndLarge(t *testing.T) {
	small := token.Token{Name: "o", Type: mustType(t, "optional(uint8)"), OptionalSet: true, OptionalValue: &token.Token{Type: mustType(t, "uint8"), Int: big.NewInt(9)}}
	in := []token.Token{small}
	out := roundTrip(t, namedOf(in), in)
	if !out[0].OptionalSet || out[0].OptionalValue.Int.Int64() != 9 {
		t.Fatalf("optional round trip mismatch: %+v", out[0])
	}

	none := token.Token{Name: "o", Type: mustType(t, "optional(uint8)")}
	in2 := []token.Token{none}
	out2 := roundTrip(t, namedOf(in2), in2)
	if out2[0].OptionalSet {
		t.Fatalf("expected unset optional, got %+v", out2[0])
	}

	// A tuple of four bytes fields needs all 4 cell refs, crossing
	// IsLargeOptional's threshold (mirrors tvmtype's largeByRefs case),
	// so this must round-trip through the ref'd large-optional path
	// rather than the inline small one.
	bytesDesc := &tvmtype.Descriptor{Kind: tvmtype.KindBytes}
	fourBytes := &tvmtype.Descriptor{Kind: tvmtype.KindTuple, Components: []tvmtype.NamedDescriptor{
		{Name: "a", Type: bytesDesc},
		{Name: "b", Type: bytesDesc},
		{Name: "c", Type: bytesDesc},
		{Name: "d", Type: bytesDesc},
	}}
	largeOpt := &tvmtype.Descriptor{Kind: tvmtype.KindOptional, Elem: fourBytes}
	if !largeOpt.IsLargeOptional() {
		t.Fatalf("test setup: expected optional(tuple of 4 bytes) to be large")
	}

	large := token.Token{
		Name: "o", Type: largeOpt, OptionalSet: true,
		OptionalValue: &token.Token{Type: fourBytes, Tuple: []token.Token{
			{Name: "a", Type: bytesDesc, Bytes: []byte{1}},
			{Name: "b", Type: bytesDesc, Bytes: []byte{2, 2}},
			{Name: "c", Type: bytesDesc, Bytes: []byte{3, 3, 3}},
			{Name: "d", Type: bytesDesc, Bytes: []byte{4, 4, 4, 4}},
		}},
	}
	in3 := []token.Token{large}
	out3 := roundTrip(t, namedOf(in3), in3)
	if !out3[0].OptionalSet {
		t.Fatalf("expected large optional to be set")
	}
	got := out3[0].OptionalValue.Tuple
	want := [][]byte{{1}, {2, 2}, {3, 3, 3}, {4, 4, 4, 4}}
	for i, w := range want {
		if string(got[i].Bytes) != string(w) {
			t.Fatalf("large optional tuple[%d] = %v, want %v", i, got[i].Bytes, w)
		}
	}
}

func TestEncodeDecodeBytesChaining(t *testing.T) {
	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i)
	}
	in := []token.Token{{Name: "b", Type: mustType(t, "bytes"), Bytes: data}}
	out := roundTrip(t, namedOf(in), in)
	if len(out[0].Bytes) != len(data) {
		t.Fatalf("bytes length = %d, want %d", len(out[0].Bytes), len(data))
	}
	for i := range data {
		if out[0].Bytes[i] != data[i] {
			t.Fatalf("bytes mismatch at %d", i)
		}
	}
}
