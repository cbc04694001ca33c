package cache

import (
	"testing"
	"time"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("a = %d, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size = %d, want 2", c.Size())
	}
}

func TestLRUPerEntryTTL(t *testing.T) {
	c := NewLRUCache[string](10, time.Hour)
	c.SetWithTTL("short", "x", 10*time.Millisecond)
	c.SetWithTTL("forever", "y", 0)
	c.Set("default", "z")

	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Error("short should have expired")
	}
	if _, ok := c.Get("forever"); !ok {
		t.Error("forever should not expire")
	}
	if _, ok := c.Get("default"); !ok {
		t.Error("default should still be cached")
	}
}

func TestManagerSweep(t *testing.T) {
	c := NewLRUCache[int](10, time.Hour)
	c.SetWithTTL("a", 1, time.Millisecond)
	c.SetWithTTL("b", 2, time.Millisecond)
	c.Set("c", 3)
	time.Sleep(10 * time.Millisecond)

	m := NewManager(nil)
	m.Register(c)
	if n := m.Sweep(); n != 2 {
		t.Errorf("Sweep removed %d, want 2", n)
	}
	m.Stop()
	m.Stop()
}
