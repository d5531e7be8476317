package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	u, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("not a UUID: %q: %v", id, err)
	}
	if u.Version() != 7 {
		t.Fatalf("version = %d, want 7", u.Version())
	}
}

func TestUUIDv7_Uniqueness(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		id := gen()
		if seen[id] {
			t.Fatalf("duplicate ID %q", id)
		}
		seen[id] = true
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("trc_", Default)()
	if !strings.HasPrefix(id, "trc_") {
		t.Fatalf("missing prefix: %q", id)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(id, "trc_")); err != nil {
		t.Fatalf("suffix is not a UUID: %q", id)
	}
}

func TestParse(t *testing.T) {
	id := New()
	if got, err := Parse(id); err != nil || got != id {
		t.Fatalf("Parse(%q) = %q, %v", id, got, err)
	}

	upper := "trc_" + strings.ToUpper(id)
	got, err := Parse(upper, "evt_", "trc_")
	if err != nil {
		t.Fatal(err)
	}
	if got != "trc_"+id {
		t.Fatalf("got %q", got)
	}

	for _, bad := range []string{"", "not-a-uuid", "trc_", "abc_" + id} {
		if _, err := Parse(bad, "trc_"); err == nil {
			t.Errorf("Parse(%q) should fail", bad)
		}
	}
}
