package cache

import (
	"context"
	"testing"
	"time"
)

func TestFileCacheRoundTrip(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "https://example.com/dl/"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	body := []byte("<html>listing</html>")
	if err := c.Set(ctx, "https://example.com/dl/", body, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := c.Get(ctx, "https://example.com/dl/")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(got) != string(body) {
		t.Errorf("Get = %q, want %q", got, body)
	}

	if err := c.Delete(ctx, "https://example.com/dl/"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "https://example.com/dl/"); ok {
		t.Error("expected miss after delete")
	}
}

func TestFileCacheExpiry(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, ok, err := c.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected expired entry to miss, got ok=%v err=%v", ok, err)
	}
}

func TestFileCacheDeleteMissing(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	if err := c.Delete(context.Background(), "never-set"); err != nil {
		t.Errorf("Delete missing key: %v", err)
	}
}

func TestNullCacheAlwaysMisses(t *testing.T) {
	c := NewNullCache()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, err := c.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestKeyStable(t *testing.T) {
	a := Key("https://example.com/dl/")
	b := Key("https://example.com/dl/")
	if a != b {
		t.Errorf("Key not deterministic: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("Key length = %d, want 64", len(a))
	}
	if a == Key("https://example.com/other/") {
		t.Error("distinct URLs produced the same key")
	}
}
