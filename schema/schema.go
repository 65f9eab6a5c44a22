// Package schema loads a contract's JSON ABI document (versions
// 0/1/2.0-2.4, §4.1-4.2) into the typed tvmtype descriptors the rest of
// the codec operates on, resolving function/event ids along the way.
package schema

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/tvmlabs/tvmabi/funcid"
	"github.com/tvmlabs/tvmabi/tvmtype"
)

var (
	ErrUnsupportedAbiVersion = errors.New("unsupported ABI version")
	ErrInvalidType           = errors.New("invalid parameter type")
	ErrMissingComponents     = errors.New("tuple parameter missing components")
	ErrDuplicateName         = errors.New("duplicate function/event name")
	ErrDuplicateKey          = errors.New("duplicate data field key")
)

var validate = validator.New()

// rawParam is the JSON shape of one function/event parameter or data/
// fields entry.
type rawParam struct {
	Name       string     `json:"name" validate:"required"`
	Type       string     `json:"type" validate:"required"`
	Components []rawParam `json:"components,omitempty"`
	// Init marks a data/fields entry as populated only at deployment
	// (ABI 2.3 "init" attribute, §9 supplemented feature).
	Init bool `json:"init,omitempty"`
	// Key is the explicit Hashmap key for a "data" section entry.
	Key *uint64 `json:"key,omitempty"`
}

type rawFunction struct {
	Name    string     `json:"name" validate:"required"`
	Inputs  []rawParam `json:"inputs"`
	Outputs []rawParam `json:"outputs"`
	ID      *hexUint32 `json:"id,omitempty"`
}

type rawEvent struct {
	Name   string     `json:"name" validate:"required"`
	Inputs []rawParam `json:"inputs"`
	ID     *hexUint32 `json:"id,omitempty"`
}

type rawDocument struct {
	ABIVersionLegacy int          `json:"ABI version,omitempty"`
	Version          string       `json:"version,omitempty"`
	Header           []string     `json:"header,omitempty"`
	SetTime          *bool        `json:"setTime,omitempty"`
	Functions        []rawFunction `json:"functions" validate:"required"`
	Events           []rawEvent   `json:"events,omitempty"`
	Data             []rawParam   `json:"data,omitempty"`
	Fields           []rawParam   `json:"fields,omitempty"`
}

// hexUint32 decodes a JSON "id" field given either as a "0x..." hex
// string, a plain decimal string, or a JSON number.
type hexUint32 uint32

func (h *hexUint32) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		v, err := strconv.ParseUint(n.String(), 10, 32)
		if err != nil {
			return errors.Wrapf(err, "id %q", n.String())
		}
		*h = hexUint32(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "id: not a number or string")
	}
	s = strings.TrimPrefix(s, "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return errors.Wrapf(err, "id %q", s)
	}
	*h = hexUint32(v)
	return nil
}

// Function is a resolved contract method: both its call (input) and
// response (output) ids are always known, whether hashed or explicit.
type Function struct {
	Name      string
	Inputs    []tvmtype.NamedDescriptor
	Outputs   []tvmtype.NamedDescriptor
	InputID   uint32
	OutputID  uint32
	ExplicitID *uint32
}

// Event is a resolved contract event.
type Event struct {
	Name       string
	Inputs     []tvmtype.NamedDescriptor
	ID         uint32
	ExplicitID *uint32
}

// DataField is one entry of the contract's persistent "data" section,
// addressed by an explicit Hashmap key (defaulting to its index) rather
// than by structural offset.
type DataField struct {
	Key  uint64
	Name string
	Type *tvmtype.Descriptor
	Init bool
}

// Contract is a fully resolved ABI document.
type Contract struct {
	Version   int
	Header    []tvmtype.NamedDescriptor
	Functions map[string]*Function
	Events    map[string]*Event
	Data      []DataField
	Fields    []tvmtype.NamedDescriptor
}

// Load parses and validates a JSON ABI document, resolving every
// parameter type and every function/event id.
func Load(raw []byte) (*Contract, error) {
	var doc rawDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "schema: invalid JSON")
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, errors.Wrap(err, "schema: document validation")
	}

	version, err := resolveVersion(doc)
	if err != nil {
		return nil, err
	}

	opts := tvmtype.ParseOptions{Version: version}

	header, err := resolveHeader(doc.Header, doc.SetTime, version)
	if err != nil {
		return nil, err
	}

	c := &Contract{
		Version:   version,
		Header:    header,
		Functions: make(map[string]*Function, len(doc.Functions)),
		Events:    make(map[string]*Event, len(doc.Events)),
	}

	for _, rf := range doc.Functions {
		if _, dup := c.Functions[rf.Name]; dup {
			return nil, errors.Wrapf(ErrDuplicateName, "function %q", rf.Name)
		}
		in, err := resolveParams(rf.Inputs, opts, "functions."+rf.Name+".inputs")
		if err != nil {
			return nil, err
		}
		out, err := resolveParams(rf.Outputs, opts, "functions."+rf.Name+".outputs")
		if err != nil {
			return nil, err
		}

		var explicit *uint32
		if rf.ID != nil {
			v := uint32(*rf.ID)
			explicit = &v
		}
		inID, outID := funcid.FunctionIDs(rf.Name, in, out, version, explicit)

		c.Functions[rf.Name] = &Function{
			Name: rf.Name, Inputs: in, Outputs: out,
			InputID: inID, OutputID: outID, ExplicitID: explicit,
		}
	}

	for _, re := range doc.Events {
		if _, dup := c.Events[re.Name]; dup {
			return nil, errors.Wrapf(ErrDuplicateName, "event %q", re.Name)
		}
		in, err := resolveParams(re.Inputs, opts, "events."+re.Name+".inputs")
		if err != nil {
			return nil, err
		}

		var explicit *uint32
		if re.ID != nil {
			v := uint32(*re.ID)
			explicit = &v
		}
		id := funcid.EventID(re.Name, in, version, explicit)

		c.Events[re.Name] = &Event{Name: re.Name, Inputs: in, ID: id, ExplicitID: explicit}
	}

	if len(doc.Data) > 0 {
		fields, err := resolveDataFields(doc.Data, opts)
		if err != nil {
			return nil, err
		}
		c.Data = fields
	}

	if len(doc.Fields) > 0 {
		if version < tvmtype.VersionV20 {
			return nil, errors.Wrapf(ErrUnsupportedAbiVersion, "fields section requires ABI >= 2.0")
		}
		fields, err := resolveParams(doc.Fields, opts, "fields")
		if err != nil {
			return nil, err
		}
		c.Fields = fields
	}

	return c, nil
}

// resolveVersion accepts either the legacy "ABI version" integer key
// (0 and 1 both denote version 1, a quirk of the original encoder) or
// the "version" string key ("2.0".."2.4").
func resolveVersion(doc rawDocument) (int, error) {
	if doc.Version != "" {
		parts := strings.SplitN(doc.Version, ".", 2)
		major, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, errors.Wrapf(ErrUnsupportedAbiVersion, "version %q", doc.Version)
		}
		if major != 2 || len(parts) != 2 {
			return 0, errors.Wrapf(ErrUnsupportedAbiVersion, "version %q", doc.Version)
		}
		minor, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, errors.Wrapf(ErrUnsupportedAbiVersion, "version %q", doc.Version)
		}
		switch minor {
		case 0, 1, 2, 3, 4:
			return tvmtype.VersionV20 + minor, nil
		default:
			return 0, errors.Wrapf(ErrUnsupportedAbiVersion, "version %q", doc.Version)
		}
	}
	if doc.ABIVersionLegacy == 0 || doc.ABIVersionLegacy == 1 {
		return tvmtype.VersionV1, nil
	}
	return 0, errors.Wrapf(ErrUnsupportedAbiVersion, "ABI version %d", doc.ABIVersionLegacy)
}

// resolveSetTime applies §9's open-question resolution: a document that
// omits "setTime" gets the time header by default from ABI 2.0 onward,
// and never under ABI 1.
func resolveSetTime(setTime *bool, version int) bool {
	if setTime != nil {
		return *setTime
	}
	return version >= tvmtype.VersionV20
}

// resolveHeader maps the header array's builtin keywords (time/expire/
// pubkey) and ordinary types into named descriptors, in declaration
// order — the order actual header values are written/read in. Per
// §4.2/§6.1, a document whose header[] omits "time" still gets an
// implicit time header prepended when setTime resolves true; an
// explicit "time" entry always wins regardless of setTime.
func resolveHeader(header []string, setTime *bool, version int) ([]tvmtype.NamedDescriptor, error) {
	hasTime := false
	for _, h := range header {
		if h == "time" {
			hasTime = true
			break
		}
	}

	out := make([]tvmtype.NamedDescriptor, 0, len(header)+1)
	if !hasTime && resolveSetTime(setTime, version) {
		out = append(out, tvmtype.NamedDescriptor{Name: "time", Type: &tvmtype.Descriptor{Kind: tvmtype.KindUint, Bits: 64}})
	}

	for _, h := range header {
		if kind, ok := tvmtype.HeaderBuiltin(h); ok {
			switch h {
			case "time":
				out = append(out, tvmtype.NamedDescriptor{Name: "time", Type: &tvmtype.Descriptor{Kind: tvmtype.KindUint, Bits: 64}})
			case "expire":
				out = append(out, tvmtype.NamedDescriptor{Name: "expire", Type: &tvmtype.Descriptor{Kind: tvmtype.KindUint, Bits: 32}})
			case "pubkey":
				_ = kind
				out = append(out, tvmtype.NamedDescriptor{Name: "pubkey", Type: &tvmtype.Descriptor{Kind: tvmtype.KindOptional, Elem: &tvmtype.Descriptor{Kind: tvmtype.KindFixedBytes, Bits: 256}}})
			}
			continue
		}
		d, err := tvmtype.Parse(h, tvmtype.ParseOptions{Version: version}, nil)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidType, "header %q: %v", h, err)
		}
		out = append(out, tvmtype.NamedDescriptor{Name: h, Type: d})
	}
	return out, nil
}

func resolveParams(params []rawParam, opts tvmtype.ParseOptions, path string) ([]tvmtype.NamedDescriptor, error) {
	out := make([]tvmtype.NamedDescriptor, len(params))
	seen := make(map[string]bool, len(params))
	for i, p := range params {
		if seen[p.Name] {
			return nil, errors.Wrapf(ErrDuplicateName, "%s[%d]: %q", path, i, p.Name)
		}
		seen[p.Name] = true

		d, err := resolveOne(p, opts, path+"."+p.Name)
		if err != nil {
			return nil, err
		}
		out[i] = tvmtype.NamedDescriptor{Name: p.Name, Type: d}
	}
	return out, nil
}

func resolveOne(p rawParam, opts tvmtype.ParseOptions, path string) (*tvmtype.Descriptor, error) {
	getComponents := func(string) ([]tvmtype.NamedDescriptor, error) {
		if len(p.Components) == 0 {
			return nil, errors.Wrapf(ErrMissingComponents, "%s", path)
		}
		return resolveParams(p.Components, opts, path+".components")
	}
	d, err := tvmtype.Parse(p.Type, opts, getComponents)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidType, "%s: %v", path, err)
	}
	return d, nil
}

func resolveDataFields(params []rawParam, opts tvmtype.ParseOptions) ([]DataField, error) {
	out := make([]DataField, len(params))
	seenKey := make(map[uint64]bool, len(params))
	seenName := make(map[string]bool, len(params))
	for i, p := range params {
		if seenName[p.Name] {
			return nil, errors.Wrapf(ErrDuplicateName, "data[%d]: %q", i, p.Name)
		}
		seenName[p.Name] = true

		key := uint64(i)
		if p.Key != nil {
			key = *p.Key
		}
		if seenKey[key] {
			return nil, errors.Wrapf(ErrDuplicateKey, "data[%d]: key %d", i, key)
		}
		seenKey[key] = true

		d, err := resolveOne(p, opts, "data."+p.Name)
		if err != nil {
			return nil, err
		}
		out[i] = DataField{Key: key, Name: p.Name, Type: d, Init: p.Init}
	}
	return out, nil
}
