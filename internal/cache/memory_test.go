package cache

import (
	"fmt"
	"testing"
)

func TestMemory_SetGet(t *testing.T) {
	m := NewMemory(10)
	m.Set("g", "k1", []string{"a", "b"})

	got, ok := m.Get("k1")
	if !ok || len(got) != 2 {
		t.Fatalf("expected hit with 2 values, got %v ok=%v", got, ok)
	}
	if _, ok := m.Get("k2"); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestMemory_EvictsOldestPerGroup(t *testing.T) {
	m := NewMemory(3)
	for i := 0; i < 5; i++ {
		m.Set("g", fmt.Sprintf("k%d", i), []string{"v"})
	}

	if _, ok := m.Get("k0"); ok {
		t.Fatal("expected k0 evicted")
	}
	if _, ok := m.Get("k1"); ok {
		t.Fatal("expected k1 evicted")
	}
	if _, ok := m.Get("k4"); !ok {
		t.Fatal("expected k4 retained")
	}
	if m.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", m.Len())
	}
}

func TestMemory_GroupsEvictIndependently(t *testing.T) {
	m := NewMemory(1)
	m.Set("g1", "a", []string{"v"})
	m.Set("g2", "b", []string{"v"})

	if _, ok := m.Get("a"); !ok {
		t.Fatal("expected a retained: groups have separate caps")
	}
	if _, ok := m.Get("b"); !ok {
		t.Fatal("expected b retained")
	}
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	m := NewMemory(10)
	m.Set("g", "k", []string{"a", "b"})

	got, _ := m.Get("k")
	got[0] = "mutated"

	fresh, _ := m.Get("k")
	if fresh[0] != "a" {
		t.Fatalf("expected cache entry unaffected by caller mutation, got %v", fresh)
	}
}

func TestMemory_OverwriteDoesNotEvict(t *testing.T) {
	m := NewMemory(2)
	m.Set("g", "a", []string{"1"})
	m.Set("g", "b", []string{"2"})
	m.Set("g", "a", []string{"3"})

	got, ok := m.Get("a")
	if !ok || got[0] != "3" {
		t.Fatalf("expected updated a, got %v ok=%v", got, ok)
	}
	if _, ok := m.Get("b"); !ok {
		t.Fatal("expected b retained after overwrite")
	}
}
