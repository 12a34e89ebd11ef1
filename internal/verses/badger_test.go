package verses

import (
	"context"
	"errors"
	"testing"
)

func TestBadgerStore_RoundTrip(t *testing.T) {
	store, err := OpenBadger(t.TempDir())
	if err != nil {
		t.Fatalf("OpenBadger failed: %v", err)
	}
	defer store.Close()

	if err := store.Put("John", 3, 16, "For God so loved the world"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	text, err := store.Lookup(context.Background(), "John", 3, 16)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if text != "For God so loved the world" {
		t.Errorf("unexpected text %q", text)
	}

	// Keys are case-insensitive on book name.
	if _, err := store.Lookup(context.Background(), "JOHN", 3, 16); err != nil {
		t.Errorf("expected case-insensitive lookup, got %v", err)
	}
}

func TestBadgerStore_NotFound(t *testing.T) {
	store, err := OpenBadger(t.TempDir())
	if err != nil {
		t.Fatalf("OpenBadger failed: %v", err)
	}
	defer store.Close()

	_, err = store.Lookup(context.Background(), "John", 3, 16)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
