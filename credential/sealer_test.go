package credential

import (
	"errors"
	"testing"
)

func TestSealerRoundTripBindsSessionAndKind(t *testing.T) {
	s := testSealer(t)

	sealed, err := s.seal("s1", KindAccess, "token")
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}

	got, err := s.open("s1", KindAccess, sealed)
	if err != nil || got != "token" {
		t.Fatalf("open = %q, %v", got, err)
	}

	if _, err := s.open("s2", KindAccess, sealed); !errors.Is(err, ErrStorage) {
		t.Fatalf("expected cross-session open to fail with ErrStorage, got %v", err)
	}
	if _, err := s.open("s1", KindRefresh, sealed); !errors.Is(err, ErrStorage) {
		t.Fatalf("expected cross-kind open to fail with ErrStorage, got %v", err)
	}
}

func TestSealerRejectsPlaintextAndGarbage(t *testing.T) {
	s := testSealer(t)
	for _, stored := range []string{"plain", sealedPrefix + "!!!", sealedPrefix + "AAAA"} {
		if _, err := s.open("s1", KindAccess, stored); !errors.Is(err, ErrStorage) {
			t.Fatalf("expected ErrStorage for %q, got %v", stored, err)
		}
	}
}

func TestNewSealerKeyLength(t *testing.T) {
	if _, err := NewSealer([]byte("short")); !errors.Is(err, ErrSealerKey) {
		t.Fatalf("expected ErrSealerKey, got %v", err)
	}
}

func TestNilSealerPassThrough(t *testing.T) {
	var s *Sealer
	v, err := s.seal("s1", KindAccess, "x")
	if err != nil || v != "x" {
		t.Fatalf("nil seal = %q, %v", v, err)
	}
	v, err = s.open("s1", KindAccess, "x")
	if err != nil || v != "x" {
		t.Fatalf("nil open = %q, %v", v, err)
	}
}
