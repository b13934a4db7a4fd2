package cache

import (
	"errors"
	"testing"
	"time"
)

func TestTimedLRUGetInsert(t *testing.T) {
	c := NewTimedLRU[string, int](4, time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Error("Expected miss on empty cache")
	}

	c.Insert("a", 1)

	value, ok := c.Get("a")
	if !ok {
		t.Fatal("Expected hit after insert")
	}
	if value != 1 {
		t.Errorf("Expected value 1, got %d", value)
	}

	hits, misses := c.Stats()
	if hits != 1 {
		t.Errorf("Expected 1 hit, got %d", hits)
	}
	if misses != 1 {
		t.Errorf("Expected 1 miss, got %d", misses)
	}
}

func TestTimedLRUEviction(t *testing.T) {
	c := NewTimedLRU[string, int](2, time.Minute)

	c.Insert("a", 1)
	c.Insert("b", 2)
	c.Insert("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Error("Expected oldest entry to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("Expected entry 'b' to survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("Expected entry 'c' to survive")
	}
	if c.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", c.Len())
	}
}

func TestTimedLRUExpiry(t *testing.T) {
	c := NewTimedLRU[string, int](4, 10*time.Millisecond)

	c.Insert("a", 1)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Error("Expected entry to expire after TTL")
	}
}

func TestTimedLRUGetOrInsert(t *testing.T) {
	c := NewTimedLRU[string, int](4, time.Minute)

	calls := 0
	fn := func() (int, error) {
		calls++
		return 42, nil
	}

	value, err := c.GetOrInsert("a", fn)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if value != 42 {
		t.Errorf("Expected value 42, got %d", value)
	}

	if _, err := c.GetOrInsert("a", fn); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected compute function to run once, ran %d times", calls)
	}
}

func TestTimedLRUGetOrInsertError(t *testing.T) {
	c := NewTimedLRU[string, int](4, time.Minute)

	wantErr := errors.New("boom")
	if _, err := c.GetOrInsert("a", func() (int, error) { return 0, wantErr }); !errors.Is(err, wantErr) {
		t.Errorf("Expected compute error to propagate, got %v", err)
	}
	if c.Len() != 0 {
		t.Error("Expected failed computation not to be cached")
	}
}
