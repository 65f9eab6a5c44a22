package lrucache

import "testing"

func TestCachePutGet(t *testing.T) {
	c := New[string, int](2)

	c.Put("a", 1)
	c.Put("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("got (%v, %v), want (1, true)", v, ok)
	}

	c.Put("c", 3) // evicts "b", since "a" was just touched by Get

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatalf("got (%v, %v), want (3, true)", v, ok)
	}
}

func TestGetOrCompute(t *testing.T) {
	c := New[int, int](4)
	calls := 0

	compute := func() int {
		calls++
		return 42
	}

	for i := 0; i < 3; i++ {
		if v := c.GetOrCompute(1, compute); v != 42 {
			t.Fatalf("got %d, want 42", v)
		}
	}
	if calls != 1 {
		t.Fatalf("compute called %d times, want 1", calls)
	}
}
