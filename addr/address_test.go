package addr

import "testing"

func TestParseNone(t *testing.T) {
	a, err := Parse("")
	if err != nil {
		t.Fatal(err)
	}
	if a.Variant != None {
		t.Fatalf("variant = %v, want None", a.Variant)
	}
	if a.String() != "" {
		t.Fatalf("String() = %q, want empty", a.String())
	}
}

func TestParseStdRoundTrip(t *testing.T) {
	s := "0:" + "ab"
	hash64 := make([]byte, 64)
	for i := range hash64 {
		hash64[i] = 'a'
	}
	full := "-1:" + string(hash64)

	a, err := Parse(full)
	if err != nil {
		t.Fatal(err)
	}
	if a.Variant != Std {
		t.Fatalf("variant = %v, want Std", a.Variant)
	}
	if a.Workchain != -1 {
		t.Fatalf("workchain = %d, want -1", a.Workchain)
	}
	if got := a.String(); got != full {
		t.Fatalf("String() = %q, want %q", got, full)
	}

	_ = s
}

func TestParseExtern(t *testing.T) {
	a, err := Parse(":deadbeef")
	if err != nil {
		t.Fatal(err)
	}
	if a.Variant != Extern {
		t.Fatalf("variant = %v, want Extern", a.Variant)
	}
	if got := a.String(); got != ":deadbeef" {
		t.Fatalf("String() = %q, want :deadbeef", got)
	}
}

func TestParseInvalid(t *testing.T) {
	cases := []string{"only-one-part", "a:b:c:d"}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Errorf("Parse(%q) expected error", c)
		}
	}
}

func TestUserFriendlyNonEmpty(t *testing.T) {
	hash := make([]byte, 32)
	for i := range hash {
		hash[i] = byte(i)
	}
	a, err := NewStd(0, hash)
	if err != nil {
		t.Fatal(err)
	}
	uf, err := a.UserFriendly()
	if err != nil {
		t.Fatal(err)
	}
	if len(uf) == 0 {
		t.Fatal("expected non-empty user-friendly address")
	}
}
