package jsondb

import (
	"fmt"
	"slices"
	"testing"
)

func TestNextID(t *testing.T) {
	t.Run("empty sequence allocates 1", func(t *testing.T) {
		if got := NextID(6, slices.Values([]string{})); got != "000001" {
			t.Errorf("Expected 000001, got %s", got)
		}
	})

	t.Run("pads to width", func(t *testing.T) {
		if got := NextID(10, slices.Values([]string{"0000000041"})); got != "0000000042" {
			t.Errorf("Expected 0000000042, got %s", got)
		}
	})

	t.Run("takes max not last", func(t *testing.T) {
		if got := NextID(7, slices.Values([]string{"0000003", "0000009", "0000001"})); got != "0000010" {
			t.Errorf("Expected 0000010, got %s", got)
		}
	})

	t.Run("ignores non-numeric ids", func(t *testing.T) {
		if got := NextID(6, slices.Values([]string{"junk", "000004", ""})); got != "000005" {
			t.Errorf("Expected 000005, got %s", got)
		}
	})

	t.Run("values wider than width are preserved", func(t *testing.T) {
		if got := NextID(6, slices.Values([]string{"1000000"})); got != "1000001" {
			t.Errorf("Expected 1000001, got %s", got)
		}
	})

	t.Run("sequential allocations are strictly increasing and unique", func(t *testing.T) {
		ids := []string{}
		seen := map[string]bool{}
		prev := 0
		for range 50 {
			id := NextID(6, slices.Values(ids))
			if seen[id] {
				t.Fatalf("Duplicate id %s", id)
			}
			seen[id] = true
			var n int
			if _, err := fmt.Sscanf(id, "%d", &n); err != nil {
				t.Fatal(err)
			}
			if n != prev+1 {
				t.Fatalf("Expected %d, got %d", prev+1, n)
			}
			prev = n
			ids = append(ids, id)
		}
	})
}
