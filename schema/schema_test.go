package schema

import "testing"

const sampleV22 = `{
  "version": "2.2",
  "header": ["time", "expire", "pubkey"],
  "functions": [
    {
      "name": "transfer",
      "inputs": [
        {"name": "dest", "type": "address"},
        {"name": "amount", "type": "uint128"}
      ],
      "outputs": []
    }
  ],
  "events": [
    {
      "name": "Transferred",
      "inputs": [
        {"name": "amount", "type": "uint128"}
      ]
    }
  ],
  "data": [
    {"name": "owner", "type": "address"}
  ]
}`

func TestLoadV22(t *testing.T) {
	c, err := Load([]byte(sampleV22))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Version != 22 {
		t.Fatalf("version = %d, want 22", c.Version)
	}
	if len(c.Header) != 3 {
		t.Fatalf("header len = %d, want 3", len(c.Header))
	}
	fn, ok := c.Functions["transfer"]
	if !ok {
		t.Fatal("missing function transfer")
	}
	if fn.InputID&funcidResponseBit() != 0 {
		t.Fatal("input id should not have the response bit set")
	}
	if fn.OutputID&funcidResponseBit() == 0 {
		t.Fatal("output id should have the response bit set")
	}
	if fn.InputID&^funcidResponseBit() != fn.OutputID&^funcidResponseBit() {
		t.Fatal("input/output ids should only differ by the response bit")
	}

	ev, ok := c.Events["Transferred"]
	if !ok {
		t.Fatal("missing event Transferred")
	}
	if ev.ID&funcidResponseBit() != 0 {
		t.Fatal("event id should never have the response bit set")
	}

	if len(c.Data) != 1 || c.Data[0].Key != 0 {
		t.Fatalf("unexpected data fields: %+v", c.Data)
	}
}

func TestLoadLegacyV1(t *testing.T) {
	raw := `{"ABI version": 1, "functions": [{"name": "ping", "inputs": [], "outputs": []}]}`
	c, err := Load([]byte(raw))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Version != 1 {
		t.Fatalf("version = %d, want 1", c.Version)
	}
}

func TestLoadDuplicateFunctionName(t *testing.T) {
	raw := `{"version": "2.0", "functions": [
		{"name": "foo", "inputs": [], "outputs": []},
		{"name": "foo", "inputs": [], "outputs": []}
	]}`
	if _, err := Load([]byte(raw)); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestLoadExplicitFunctionID(t *testing.T) {
	raw := `{"version": "2.0", "functions": [
		{"name": "foo", "inputs": [], "outputs": [], "id": "0x7E8764FF"}
	]}`
	c, err := Load([]byte(raw))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Functions["foo"].InputID != 0x7E8764FF {
		t.Fatalf("input id = %x, want 7e8764ff", c.Functions["foo"].InputID)
	}
}

func TestLoadImplicitTimeHeaderDefaultsByVersion(t *testing.T) {
	raw := `{"version": "2.2", "header": ["expire"], "functions": [{"name": "foo", "inputs": [], "outputs": []}]}`
	c, err := Load([]byte(raw))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Header) != 2 || c.Header[0].Name != "time" || c.Header[1].Name != "expire" {
		t.Fatalf("expected implicit time header prepended, got %+v", c.Header)
	}

	raw1 := `{"ABI version": 1, "functions": [{"name": "foo", "inputs": [], "outputs": []}]}`
	c1, err := Load([]byte(raw1))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c1.Header) != 0 {
		t.Fatalf("ABI 1 should default to no implicit time header, got %+v", c1.Header)
	}
}

func TestLoadSetTimeFalseSuppressesImplicitHeader(t *testing.T) {
	raw := `{"version": "2.2", "setTime": false, "header": ["expire"], "functions": [{"name": "foo", "inputs": [], "outputs": []}]}`
	c, err := Load([]byte(raw))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Header) != 1 || c.Header[0].Name != "expire" {
		t.Fatalf("setTime: false should suppress the implicit time header, got %+v", c.Header)
	}
}

func TestLoadSetTimeTrueUnderABI1(t *testing.T) {
	raw := `{"ABI version": 1, "setTime": true, "functions": [{"name": "foo", "inputs": [], "outputs": []}]}`
	c, err := Load([]byte(raw))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Header) != 1 || c.Header[0].Name != "time" {
		t.Fatalf("explicit setTime: true should add time even under ABI 1, got %+v", c.Header)
	}
}

func TestLoadExplicitTimeHeaderNotDuplicated(t *testing.T) {
	raw := `{"version": "2.0", "header": ["time"], "functions": [{"name": "foo", "inputs": [], "outputs": []}]}`
	c, err := Load([]byte(raw))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Header) != 1 || c.Header[0].Name != "time" {
		t.Fatalf("explicit time header should not be duplicated, got %+v", c.Header)
	}
}

func funcidResponseBit() uint32 { return 1 << 31 }
