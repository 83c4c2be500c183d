package cache

import (
	"context"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	// Get always returns miss
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	// Set does nothing (no error)
	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}

	// Still a miss after Set
	_, hit, _ = c.Get(ctx, "key")
	if hit {
		t.Error("NullCache should not store data")
	}

	// Delete does nothing (no error)
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	// Miss before Set
	_, hit, err := c.Get(ctx, "index:repo1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("expected miss before Set")
	}

	// Round trip
	if err := c.Set(ctx, "index:repo1", []byte("payload"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "index:repo1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !hit {
		t.Fatal("expected hit after Set")
	}
	if string(data) != "payload" {
		t.Errorf("Get = %q, want payload", data)
	}

	// Expired entries are misses
	if err := c.Set(ctx, "index:stale", []byte("old"), -time.Second); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	_, hit, _ = c.Get(ctx, "index:stale")
	if hit {
		t.Error("expected expired entry to miss")
	}

	// Delete
	if err := c.Delete(ctx, "index:repo1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	_, hit, _ = c.Get(ctx, "index:repo1")
	if hit {
		t.Error("expected miss after Delete")
	}

	// Deleting an absent key is not an error
	if err := c.Delete(ctx, "index:absent"); err != nil {
		t.Errorf("Delete of absent key: %v", err)
	}
}

func TestScoped(t *testing.T) {
	ctx := context.Background()
	backend, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	a := NewScoped(backend, "a:")
	b := NewScoped(backend, "b:")

	if err := a.Set(ctx, "key", []byte("for-a"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	// Same key, different scope
	_, hit, _ := b.Get(ctx, "key")
	if hit {
		t.Error("scoped caches should not share keys")
	}
	data, hit, _ := a.Get(ctx, "key")
	if !hit || string(data) != "for-a" {
		t.Errorf("scoped Get = %q, %v", data, hit)
	}

	// The backend sees the prefixed key
	_, hit, _ = backend.Get(ctx, "a:key")
	if !hit {
		t.Error("backend should store the prefixed key")
	}
}

func TestHash(t *testing.T) {
	// Test determinism
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}

	// Test different inputs produce different hashes
	h3 := Hash([]byte("world"))
	if h1 == h3 {
		t.Error("Different inputs should produce different hashes")
	}

	// Test hash length (SHA-256 produces 64 hex chars)
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestKey(t *testing.T) {
	k1 := Key("index", "https://example.com/index.json")
	k2 := Key("index", "https://example.com/index.json")
	if k1 != k2 {
		t.Error("Key should be deterministic")
	}
	if keyType(k1) != "index" {
		t.Errorf("keyType = %q, want index", keyType(k1))
	}

	k3 := Key("index", "https://example.com/other.json")
	if k1 == k3 {
		t.Error("Different parts should produce different keys")
	}
}

func TestKeyType(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"index:abc", "index"},
		{"artifact:def", "artifact"},
		{"noprefix", "default"},
		{":empty", "default"},
	}
	for _, tt := range tests {
		if got := keyType(tt.key); got != tt.want {
			t.Errorf("keyType(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
