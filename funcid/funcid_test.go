package funcid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvmlabs/tvmabi/tvmtype"
)

func uintParam(name string, bits int) tvmtype.NamedDescriptor {
	return tvmtype.NamedDescriptor{Name: name, Type: &tvmtype.Descriptor{Kind: tvmtype.KindUint, Bits: bits}}
}

func TestEventSignatureHasNoOutputSegment(t *testing.T) {
	in := []tvmtype.NamedDescriptor{uintParam("value", 128)}
	got := EventSignature("Transferred", in, tvmtype.VersionV22)
	assert.Equal(t, "Transferred(uint128)v2", got)
}

func TestFunctionSignatureKeepsBothSegments(t *testing.T) {
	in := []tvmtype.NamedDescriptor{uintParam("to", 256)}
	out := []tvmtype.NamedDescriptor{uintParam("ok", 1)}
	got := Signature("transfer", in, out, tvmtype.VersionV22)
	assert.Equal(t, "transfer(uint256)(uint1)v2", got)
}

func TestEventIDDoesNotMatchFunctionSignatureHash(t *testing.T) {
	in := []tvmtype.NamedDescriptor{uintParam("value", 128)}

	eventID := EventID("Transferred", in, tvmtype.VersionV22, nil)
	wrongID := Hash32(Signature("Transferred", in, nil, tvmtype.VersionV22)) &^ ResponseBit

	require.NotEqual(t, wrongID, eventID, "event id must be derived from name(in)v2, not name(in)()v2")
}

func TestFunctionIDsResponseBit(t *testing.T) {
	in := []tvmtype.NamedDescriptor{uintParam("a", 32)}
	inputID, outputID := FunctionIDs("foo", in, nil, tvmtype.VersionV22, nil)

	assert.Zero(t, inputID&ResponseBit)
	assert.NotZero(t, outputID&ResponseBit)
	assert.Equal(t, inputID, outputID&^ResponseBit)
}

func TestFunctionIDsExplicitOverride(t *testing.T) {
	explicit := uint32(0x7E8764FF)
	inputID, outputID := FunctionIDs("foo", nil, nil, tvmtype.VersionV22, &explicit)

	assert.Equal(t, explicit&^ResponseBit, inputID)
	assert.Equal(t, inputID|ResponseBit, outputID)
}
