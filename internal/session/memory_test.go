package session

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	if err := store.Set(ctx, "sess-1", &Data{AccountID: "acct-1"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if data == nil {
		t.Fatal("expected session data, got nil")
	}
	if data.AccountID != "acct-1" {
		t.Errorf("AccountID = %s, want acct-1", data.AccountID)
	}
}

func TestMemoryStoreMissing(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	t.Cleanup(func() { store.Close() })

	data, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if data != nil {
		t.Errorf("expected nil for missing session, got %+v", data)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(10 * time.Millisecond)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	if err := store.Set(ctx, "sess-1", &Data{AccountID: "acct-1"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	data, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if data != nil {
		t.Error("expected expired session to be gone")
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	store.Set(ctx, "sess-1", &Data{AccountID: "acct-1"})
	if err := store.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	data, _ := store.Get(ctx, "sess-1")
	if data != nil {
		t.Error("expected deleted session to be gone")
	}
}

func TestNewIDUnique(t *testing.T) {
	a, err := NewID()
	if err != nil {
		t.Fatalf("NewID: %v", err)
	}
	b, err := NewID()
	if err != nil {
		t.Fatalf("NewID: %v", err)
	}
	if a == b {
		t.Error("expected distinct session ids")
	}
	if len(a) != 32 {
		t.Errorf("len(id) = %d, want 32", len(a))
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(configWithBackend("bolt"))
	if err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestNewMemoryBackend(t *testing.T) {
	store, err := New(configWithBackend("memory"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("expected *MemoryStore, got %T", store)
	}
}
