package cache

import (
	"testing"
	"time"
)

type testKey struct {
	CategoryID string
	Month      string
}

func TestLRUGetSet(t *testing.T) {
	c := NewLRU[testKey, int](4, time.Minute)

	key := testKey{"cat-1", "2024-03"}
	if _, ok := c.Get(key); ok {
		t.Error("expected miss on empty cache")
	}

	c.Set(key, 42)
	if v, ok := c.Get(key); !ok || v != 42 {
		t.Errorf("Get = %d, %v; want 42, true", v, ok)
	}

	c.Set(key, 99)
	if v, _ := c.Get(key); v != 99 {
		t.Errorf("expected overwrite to 99, got %d", v)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestLRUEviction(t *testing.T) {
	c := NewLRU[testKey, int](2, time.Minute)

	a := testKey{"cat-1", "2024-01"}
	b := testKey{"cat-1", "2024-02"}
	d := testKey{"cat-1", "2024-03"}

	c.Set(a, 1)
	c.Set(b, 2)
	c.Get(a) // a is now most recently used
	c.Set(d, 3)

	if _, ok := c.Get(b); ok {
		t.Error("expected least recently used entry evicted")
	}
	if _, ok := c.Get(a); !ok {
		t.Error("expected recently used entry retained")
	}
	if _, ok := c.Get(d); !ok {
		t.Error("expected newest entry present")
	}
}

func TestLRUTTL(t *testing.T) {
	c := NewLRU[testKey, int](4, 10*time.Millisecond)

	key := testKey{"cat-1", "2024-03"}
	c.Set(key, 1)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get(key); ok {
		t.Error("expected entry expired")
	}
}

func TestLRUDeleteAndPurge(t *testing.T) {
	c := NewLRU[testKey, int](4, time.Minute)

	a := testKey{"cat-1", "2024-01"}
	b := testKey{"cat-2", "2024-01"}
	c.Set(a, 1)
	c.Set(b, 2)

	c.Delete(a)
	if _, ok := c.Get(a); ok {
		t.Error("expected deleted entry gone")
	}
	if _, ok := c.Get(b); !ok {
		t.Error("expected other entry untouched")
	}

	c.Purge()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after purge, got %d", c.Len())
	}
}
