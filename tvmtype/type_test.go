package tvmtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string, opts ParseOptions) *Descriptor {
	t.Helper()
	d, err := Parse(s, opts, nil)
	require.NoError(t, err, "parse %q", s)
	return d
}

func TestParseScalars(t *testing.T) {
	cases := map[string]string{
		"uint64":       "uint64",
		"int8":         "int8",
		"uint":         "uint256",
		"int":          "int256",
		"byte":         "uint8",
		"bool":         "bool",
		"address":      "address",
		"bytes":        "bytes",
		"string":       "string",
		"cell":         "cell",
		"varuint16":    "varuint16",
		"varint32":     "varint32",
		"gram":         "varuint16",
		"fixedbytes32": "fixedbytes32",
	}
	for in, want := range cases {
		d := mustParse(t, in, ParseOptions{Version: VersionV22})
		assert.Equal(t, want, d.Canonical(), "Parse(%q).Canonical()", in)
	}
}

func TestParseCompoundTypes(t *testing.T) {
	d := mustParse(t, "uint32[]", ParseOptions{Version: VersionV22})
	require.Equal(t, KindArray, d.Kind)
	assert.Equal(t, KindUint, d.Elem.Kind)
	assert.Equal(t, 32, d.Elem.Bits)

	d = mustParse(t, "int64[5]", ParseOptions{Version: VersionV22})
	require.Equal(t, KindFixedArray, d.Kind)
	assert.Equal(t, 5, d.Length)

	d = mustParse(t, "map(uint32,address)", ParseOptions{Version: VersionV22})
	require.Equal(t, KindMap, d.Kind)
	assert.Equal(t, KindUint, d.Key.Kind)
	assert.Equal(t, KindAddress, d.Value.Kind)

	d = mustParse(t, "optional(uint8)", ParseOptions{Version: VersionV22})
	require.Equal(t, KindOptional, d.Kind)
	assert.Equal(t, 8, d.Elem.Bits)
}

func TestRefRequiresV24(t *testing.T) {
	_, err := Parse("ref(cell)", ParseOptions{Version: VersionV22}, nil)
	require.Error(t, err, "expected error parsing ref(T) under ABI < 2.4")

	d, err := Parse("ref(cell)", ParseOptions{Version: VersionV24}, nil)
	require.NoError(t, err)
	assert.Equal(t, KindRef, d.Kind)
}

func TestTupleRequiresComponents(t *testing.T) {
	_, err := Parse("tuple", ParseOptions{Version: VersionV22}, nil)
	require.Error(t, err, "expected MissingComponents error")

	d, err := Parse("tuple", ParseOptions{Version: VersionV22}, func(string) ([]NamedDescriptor, error) {
		return []NamedDescriptor{
			{Name: "a", Type: &Descriptor{Kind: KindInt, Bits: 32}},
			{Name: "b", Type: &Descriptor{Kind: KindBool}},
		}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "(int32,bool)", d.Canonical())
}

func TestMaxFootprint(t *testing.T) {
	cases := []struct {
		typ      string
		wantBits int
		wantRefs int
	}{
		{"uint64", 64, 0},
		{"bool", 1, 0},
		{"address", 591, 0},
		{"bytes", 0, 1},
		{"uint256[]", 33, 1},
		{"map(uint32,address)", 1, 1},
	}
	for _, c := range cases {
		d := mustParse(t, c.typ, ParseOptions{Version: VersionV22})
		b, r := d.MaxFootprint()
		assert.Equal(t, c.wantBits, b, "%s bits", c.typ)
		assert.Equal(t, c.wantRefs, r, "%s refs", c.typ)
	}
}

func TestOptionalLargeSmall(t *testing.T) {
	small := mustParse(t, "optional(uint8)", ParseOptions{Version: VersionV22})
	assert.False(t, small.IsLargeOptional(), "optional(uint8) should be small")
	b, r := small.MaxFootprint()
	assert.Equal(t, 9, b)
	assert.Equal(t, 0, r)

	bytesOpt := mustParse(t, "optional(bytes)", ParseOptions{Version: VersionV22})
	assert.False(t, bytesOpt.IsLargeOptional(), "optional(bytes) should be small: bytes only needs 1 ref, below the 4-ref large threshold")

	fourRefs := &Descriptor{Kind: KindTuple, Components: []NamedDescriptor{
		{Name: "a", Type: &Descriptor{Kind: KindBytes}},
		{Name: "b", Type: &Descriptor{Kind: KindBytes}},
		{Name: "c", Type: &Descriptor{Kind: KindBytes}},
		{Name: "d", Type: &Descriptor{Kind: KindBytes}},
	}}
	largeByRefs := &Descriptor{Kind: KindOptional, Elem: fourRefs}
	assert.True(t, largeByRefs.IsLargeOptional(), "optional(T) with T needing 4 refs should be large")

	oversizedBits := &Descriptor{Kind: KindOptional, Elem: &Descriptor{Kind: KindUint, Bits: 1023}}
	assert.True(t, oversizedBits.IsLargeOptional(), "optional(uint1023) should be large: 1023+1 bit flag overflows a cell")
}
