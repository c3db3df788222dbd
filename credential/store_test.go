package credential

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
)

func runStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "s1", KindRefresh); err != nil || ok {
		t.Fatalf("expected absent refresh on empty store, ok=%v err=%v", ok, err)
	}

	if err := store.SetPair(ctx, "s1", "r1", "a1"); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}
	assertValue(t, store, "s1", KindRefresh, "r1")
	assertValue(t, store, "s1", KindAccess, "a1")

	if err := store.Set(ctx, "s1", KindAccess, "a2"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	assertValue(t, store, "s1", KindAccess, "a2")
	assertValue(t, store, "s1", KindRefresh, "r1")

	if err := store.Clear(ctx, "s1", KindAccess); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	assertAbsent(t, store, "s1", KindAccess)
	assertValue(t, store, "s1", KindRefresh, "r1")

	if err := store.Set(ctx, "s2", KindRefresh, "other"); err != nil {
		t.Fatalf("Set s2 failed: %v", err)
	}

	if err := store.ClearAll(ctx, "s1"); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	assertAbsent(t, store, "s1", KindRefresh)
	assertAbsent(t, store, "s1", KindAccess)
	assertValue(t, store, "s2", KindRefresh, "other")

	if err := store.Set(ctx, "s2", KindRefresh, ""); err != nil {
		t.Fatalf("Set empty failed: %v", err)
	}
	assertAbsent(t, store, "s2", KindRefresh)

	if _, _, err := store.Get(ctx, "", KindAccess); !errors.Is(err, ErrEmptySession) {
		t.Fatalf("expected ErrEmptySession, got %v", err)
	}
	if err := store.Set(ctx, "s1", Kind(9), "x"); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func runNoTornReads(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if err := store.SetPair(ctx, "race", "r", "access-0"); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}

	const writes = 200
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 1; i <= writes; i++ {
			if err := store.Set(ctx, "race", KindAccess, "access-"+strconv.Itoa(i)); err != nil {
				t.Errorf("Set failed: %v", err)
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			v, ok, err := store.Get(ctx, "race", KindAccess)
			if err != nil || !ok {
				t.Errorf("Get failed ok=%v err=%v", ok, err)
				return
			}
			n, convErr := strconv.Atoi(strings.TrimPrefix(v, "access-"))
			if !strings.HasPrefix(v, "access-") || convErr != nil || n < 0 || n > writes {
				t.Errorf("torn read %q", v)
				return
			}
		}
	}()

	wg.Wait()
}

func assertValue(t *testing.T, store Store, sid string, kind Kind, want string) {
	t.Helper()
	got, ok, err := store.Get(context.Background(), sid, kind)
	if err != nil {
		t.Fatalf("Get(%s,%s) failed: %v", sid, kind, err)
	}
	if !ok || got != want {
		t.Fatalf("Get(%s,%s) = %q,%v want %q", sid, kind, got, ok, want)
	}
}

func assertAbsent(t *testing.T, store Store, sid string, kind Kind) {
	t.Helper()
	got, ok, err := store.Get(context.Background(), sid, kind)
	if err != nil {
		t.Fatalf("Get(%s,%s) failed: %v", sid, kind, err)
	}
	if ok {
		t.Fatalf("expected %s/%s absent, got %q", sid, kind, got)
	}
}

func testSealer(t *testing.T) *Sealer {
	t.Helper()
	s, err := NewSealer([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}
	return s
}
