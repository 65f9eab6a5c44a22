// Package funcid derives the 32-bit function and event identifiers
// used as the first four bytes of an encoded message body (§5): the
// SHA-256 hash of a canonical signature string built from the
// function/event name and its parameter types, truncated to its first
// 32 bits, with the high bit cleared for calls/events and set for
// function responses unless the contract JSON gives an explicit id.
package funcid

import (
	"crypto/sha256"
	"encoding/binary"
	"strings"

	"github.com/tvmlabs/tvmabi/tvmtype"
)

// ResponseBit is set on a function's output id and cleared on its
// input id and on every event id.
const ResponseBit uint32 = 1 << 31

// Signature builds the canonical string a function id is hashed from:
// name(in1,in2,...)(out1,out2,...)v2 for ABI 2.0+, or the same without
// the trailing version tag pre-2.0.
func Signature(name string, in, out []tvmtype.NamedDescriptor, abiVersion int) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	writeTypeList(&b, in)
	b.WriteString(")(")
	writeTypeList(&b, out)
	b.WriteByte(')')
	if abiVersion >= tvmtype.VersionV20 {
		b.WriteString("v2")
	}
	return b.String()
}

// EventSignature builds the canonical string an event id is hashed
// from: name(in1,in2,...)v2 for ABI 2.0+. Unlike a function signature,
// an event has no output types and carries no second parenthesized
// segment at all.
func EventSignature(name string, in []tvmtype.NamedDescriptor, abiVersion int) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	writeTypeList(&b, in)
	b.WriteByte(')')
	if abiVersion >= tvmtype.VersionV20 {
		b.WriteString("v2")
	}
	return b.String()
}

func writeTypeList(b *strings.Builder, params []tvmtype.NamedDescriptor) {
	for i, p := range params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Type.Canonical())
	}
}

// Hash32 returns the first 32 bits of SHA-256(sig), big-endian.
func Hash32(sig string) uint32 {
	sum := sha256.Sum256([]byte(sig))
	return binary.BigEndian.Uint32(sum[0:4])
}

// FunctionIDs derives the (input, output) ids for a function given its
// signature, honoring an explicit override from the contract JSON when
// present (a non-nil explicitID fixes the input id and its output id
// is the same value with ResponseBit forced; explicit ids in the
// original JSON never collide with the hashed form by convention).
func FunctionIDs(name string, in, out []tvmtype.NamedDescriptor, abiVersion int, explicitID *uint32) (inputID, outputID uint32) {
	if explicitID != nil {
		return *explicitID, *explicitID | ResponseBit
	}
	id := Hash32(Signature(name, in, out, abiVersion)) &^ ResponseBit
	return id, id | ResponseBit
}

// EventID derives an event's id: the hashed signature with no output
// types and the response bit cleared, or an explicit id as given.
func EventID(name string, in []tvmtype.NamedDescriptor, abiVersion int, explicitID *uint32) uint32 {
	if explicitID != nil {
		return *explicitID
	}
	return Hash32(EventSignature(name, in, abiVersion)) &^ ResponseBit
}

// MatchesFunction reports whether id equals either the call-form or
// response-form id derived from a function's signature, used by
// decode_unknown_function to resolve an id against a registry without
// knowing in advance whether the body is a call or a response.
func MatchesFunction(id uint32, name string, in, out []tvmtype.NamedDescriptor, abiVersion int, explicitID *uint32) (isInput, isOutput bool) {
	inputID, outputID := FunctionIDs(name, in, out, abiVersion, explicitID)
	return id == inputID, id == outputID
}
