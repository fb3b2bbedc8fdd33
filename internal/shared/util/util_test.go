package util

import "testing"

func TestSortedStringKeys(t *testing.T) {
	t.Parallel()

	m := map[string]int{"b": 2, "a": 1, "c": 3}
	keys := SortedStringKeys(m)
	expected := []string{"a", "b", "c"}
	if len(keys) != len(expected) {
		t.Fatalf("expected %d keys, got %d", len(expected), len(keys))
	}
	for i, key := range expected {
		if keys[i] != key {
			t.Fatalf("expected %q at %d, got %q", key, i, keys[i])
		}
	}
	if got := SortedStringKeys(map[string]bool{}); len(got) != 0 {
		t.Fatalf("expected no keys, got %v", got)
	}
}

func TestGetHeapAllocMB(t *testing.T) {
	buf := make([]byte, 8<<20)
	if GetHeapAllocMB() == 0 {
		t.Fatal("expected a non-zero heap after allocating 8MB")
	}
	_ = buf[len(buf)-1]
}
