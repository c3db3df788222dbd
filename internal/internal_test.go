package internal

import (
	"strings"
	"testing"
)

func TestNewSessionIDIsValid(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, err := NewSessionID()
		if err != nil {
			t.Fatalf("NewSessionID failed: %v", err)
		}
		if err := CheckSessionID(id); err != nil {
			t.Fatalf("minted id %q rejected: %v", id, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate session id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestCheckSessionID(t *testing.T) {
	ok := []string{"a", "s1", "0d4c-11_aa.b~", strings.Repeat("x", MaxSessionIDLen)}
	for _, id := range ok {
		if err := CheckSessionID(id); err != nil {
			t.Fatalf("expected %q accepted, got %v", id, err)
		}
	}
	bad := []string{"", "a:b", "a b", "a\x00", "ünicode", strings.Repeat("x", MaxSessionIDLen+1)}
	for _, id := range bad {
		if err := CheckSessionID(id); err == nil {
			t.Fatalf("expected %q rejected", id)
		}
	}
}

func TestFlightKey(t *testing.T) {
	a := FlightKey("s1", "refresh-a")
	if a != FlightKey("s1", "refresh-a") {
		t.Fatal("expected deterministic key")
	}
	if a == FlightKey("s1", "refresh-b") {
		t.Fatal("rotated refresh credential must start a new round")
	}
	if a == FlightKey("s2", "refresh-a") {
		t.Fatal("sessions must not share rounds")
	}
	if strings.Contains(a, "refresh-a") {
		t.Fatal("flight key must not embed the raw credential")
	}
}

func TestFingerprint(t *testing.T) {
	if Fingerprint("") != "" {
		t.Fatal("expected empty fingerprint for empty value")
	}
	if got := Fingerprint("tok"); len(got) != 8 {
		t.Fatalf("expected 8 hex chars, got %q", got)
	}
}

// FuzzCheckSessionID: no panics, and every accepted ID stays within the key alphabet.
func FuzzCheckSessionID(f *testing.F) {
	f.Add("")
	f.Add("s1")
	f.Add("gg:cred:s1")
	f.Add(strings.Repeat("a", 200))

	f.Fuzz(func(t *testing.T, input string) {
		if err := CheckSessionID(input); err != nil {
			return
		}
		if strings.ContainsAny(input, ": \t\r\n") {
			t.Fatalf("accepted id with separator: %q", input)
		}
		if len(input) > MaxSessionIDLen {
			t.Fatalf("accepted overlong id (%d bytes)", len(input))
		}
	})
}
