package wall

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wgwall/walld/internal/jsondb"
)

func openTestDoc(t *testing.T, posts []*Post) (*jsondb.Doc[*Post], string) {
	t.Helper()
	dir := t.TempDir()
	doc, err := jsondb.Open[*Post](filepath.Join(dir, "posts.json"))
	if err != nil {
		t.Fatal(err)
	}
	if posts != nil {
		if err := doc.Mutate(func([]*Post) ([]*Post, error) { return posts, nil }); err != nil {
			t.Fatal(err)
		}
	}
	return doc, dir
}

func TestViewCache_SortsByDateDescending(t *testing.T) {
	doc, dir := openTestDoc(t, []*Post{
		{PID: "000001", Content: "a", Date: "2024-01-01 10:00:00"},
		{PID: "000002", Content: "b", Date: "2024-01-03 10:00:00"},
		{PID: "000003", Content: "c", Date: "2024-01-02 10:00:00"},
	})
	c := newViewCache(doc, filepath.Join(dir, "cache.json"))
	view := c.View(time.Minute)
	want := []string{"000002", "000003", "000001"}
	for i, pid := range want {
		if view[i].PID != pid {
			t.Fatalf("view[%d].PID = %q, want %q", i, view[i].PID, pid)
		}
	}
}

func TestViewCache_UnparseableDateSortsLast(t *testing.T) {
	doc, dir := openTestDoc(t, []*Post{
		{PID: "000001", Content: "a", Date: "not a date"},
		{PID: "000002", Content: "b", Date: "2024-01-03 10:00:00"},
	})
	c := newViewCache(doc, filepath.Join(dir, "cache.json"))
	view := c.View(time.Minute)
	if view[0].PID != "000002" || view[1].PID != "000001" {
		t.Fatalf("unexpected order: %q, %q", view[0].PID, view[1].PID)
	}
}

func TestViewCache_ServesStaleUntilInvalidated(t *testing.T) {
	doc, dir := openTestDoc(t, []*Post{
		{PID: "000001", Content: "a", Date: "2024-01-01 10:00:00"},
	})
	c := newViewCache(doc, filepath.Join(dir, "cache.json"))
	if got := len(c.View(time.Minute)); got != 1 {
		t.Fatalf("len(view) = %d, want 1", got)
	}

	err := doc.Mutate(func(rows []*Post) ([]*Post, error) {
		return append([]*Post{{PID: "000002", Content: "b", Date: "2024-01-02 10:00:00"}}, rows...), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	// Still within TTL: the cached view has not noticed the write.
	if got := len(c.View(time.Minute)); got != 1 {
		t.Fatalf("len(view) = %d, want stale 1", got)
	}
	c.Invalidate()
	if got := len(c.View(time.Minute)); got != 2 {
		t.Fatalf("len(view) = %d after invalidate, want 2", got)
	}
}

func TestViewCache_ExpiresAfterTTL(t *testing.T) {
	doc, dir := openTestDoc(t, []*Post{
		{PID: "000001", Content: "a", Date: "2024-01-01 10:00:00"},
	})
	c := newViewCache(doc, filepath.Join(dir, "cache.json"))
	c.View(time.Minute)
	err := doc.Mutate(func(rows []*Post) ([]*Post, error) {
		return append([]*Post{{PID: "000002", Content: "b", Date: "2024-01-02 10:00:00"}}, rows...), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	// A zero max age forces a rebuild on the next read.
	if got := len(c.View(0)); got != 2 {
		t.Fatalf("len(view) = %d with zero TTL, want 2", got)
	}
}

func TestViewCache_Artifact(t *testing.T) {
	doc, dir := openTestDoc(t, []*Post{
		{PID: "000001", Content: "a", Date: "2024-01-01 10:00:00"},
		{PID: "000002", Content: "b", Date: "2024-01-02 10:00:00"},
	})
	path := filepath.Join(dir, "cache.json")
	c := newViewCache(doc, path)
	c.View(time.Minute)

	t.Run("PersistedOnRebuild", func(t *testing.T) {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("artifact missing: %v", err)
		}
	})
	t.Run("LoadedByFreshCache", func(t *testing.T) {
		c2 := newViewCache(doc, path)
		view := c2.View(time.Minute)
		if len(view) != 2 || view[0].PID != "000002" {
			t.Fatalf("unexpected view from artifact: %+v", view)
		}
	})
	t.Run("CorruptIgnored", func(t *testing.T) {
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		c3 := newViewCache(doc, path)
		if got := len(c3.View(time.Minute)); got != 2 {
			t.Fatalf("len(view) = %d, want rebuild from document", got)
		}
	})
	t.Run("RemovedOnInvalidate", func(t *testing.T) {
		c.Invalidate()
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("artifact still present after invalidate: %v", err)
		}
	})
}
