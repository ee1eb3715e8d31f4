package cache

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryCache_SetGetDelete(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}

	val, err := c.Get(ctx, "k")
	if err != nil || string(val) != "v" {
		t.Errorf("Expected v, got %q (%v)", val, err)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := c.Get(ctx, "k"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestInMemoryCache_TTLExpiry(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), -time.Second); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if _, err := c.Get(ctx, "k"); err != ErrNotFound {
		t.Errorf("Expected expired entry to miss, got %v", err)
	}
}

func TestJSONHelpers(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	in := map[string]int{"a": 1}
	if err := SetJSON(ctx, c, "k", in, time.Minute); err != nil {
		t.Fatalf("Failed to set JSON: %v", err)
	}

	var out map[string]int
	if err := GetJSON(ctx, c, "k", &out); err != nil {
		t.Fatalf("Failed to get JSON: %v", err)
	}
	if out["a"] != 1 {
		t.Errorf("Expected roundtrip value, got %v", out)
	}
}

func TestListKey_DistinguishesGenerations(t *testing.T) {
	a := ListKey("u1", "gen-a", 1, 50, "", "", "", "any")
	b := ListKey("u1", "gen-b", 1, 50, "", "", "", "any")
	if a == b {
		t.Error("Expected different generations to produce different keys")
	}
}
