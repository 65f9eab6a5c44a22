// Package token is the JSON <-> typed-value bridge (component D). It
// converts between the lenient multi-form JSON values a caller supplies
// and an in-memory Token tree, enforcing the per-type ranges and
// accepted input forms of §4.3, and reverses the process for decoding,
// always emitting the canonical JSON form.
package token

import (
	"math/big"

	"github.com/tvmlabs/tvmabi/addr"
	"github.com/tvmlabs/tvmabi/tvmtype"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// Token is a tagged value matching one ABI type from the data model in
// §3. Exactly one payload field is meaningful, selected by Type.Kind
// (for header-only values not reachable via tvmtype.Descriptor, see
// Header below).
type Token struct {
	Name string
	Type *tvmtype.Descriptor

	Int     *big.Int // uint/int/varuint/varint
	Bool    bool
	Tuple   []Token // tuple members, in declared order
	Items   []Token // array / fixedarray elements
	Cell    *cell.Cell
	Entries []MapEntry
	Addr    *addr.Address
	Bytes   []byte
	Str     string

	OptionalSet   bool
	OptionalValue *Token

	RefValue *Token
}

// MapEntry is one key/value pair of a Map token; keys are tokens of the
// map's declared key type (int<N>/uint<N>/address per §3).
type MapEntry struct {
	Key   Token
	Value Token
}

// Header carries the three header-only token kinds (§3, §4.5's "Header
// ordering" note): PublicKey, Time, Expire. They never appear inside an
// ordinary Param list.
type Header struct {
	Time      *uint64
	Expire    *uint32
	PublicKey *[32]byte
	// Extra holds any additional header fields declared as full Params
	// in the JSON schema's header[] list (§6.1), in declared order.
	Extra []Token
}
