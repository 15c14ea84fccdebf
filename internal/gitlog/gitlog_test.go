package gitlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHistory(t *testing.T) {
	dir := t.TempDir()
	h, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("EmptyHasNoCommits", func(t *testing.T) {
		entries, err := h.Commits(10)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Fatalf("len = %d, want 0", len(entries))
		}
	})
	t.Run("RecordsChange", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "posts.json"), []byte("[]"), 0o644); err != nil {
			t.Fatal(err)
		}
		h.Record("publish post 000001")
		entries, err := h.Commits(10)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Fatalf("len = %d, want 1", len(entries))
		}
		if !strings.Contains(entries[0].Message, "publish post 000001") {
			t.Fatalf("message = %q", entries[0].Message)
		}
	})
	t.Run("CleanTreeSkipsCommit", func(t *testing.T) {
		h.Record("nothing changed")
		entries, err := h.Commits(10)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Fatalf("len = %d, want 1", len(entries))
		}
	})
	t.Run("IgnoresDerivedFiles", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "cache.json"), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
		h.Record("cache rebuild")
		entries, err := h.Commits(10)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Fatalf("len = %d, want cache.json to be ignored", len(entries))
		}
	})
	t.Run("NewestFirst", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "users.json"), []byte("[]"), 0o644); err != nil {
			t.Fatal(err)
		}
		h.Record("register user 0000000001")
		entries, err := h.Commits(10)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 2 {
			t.Fatalf("len = %d, want 2", len(entries))
		}
		if !strings.Contains(entries[0].Message, "register user") {
			t.Fatalf("entries[0].Message = %q", entries[0].Message)
		}
	})
	t.Run("Reopen", func(t *testing.T) {
		h2, err := Open(dir)
		if err != nil {
			t.Fatal(err)
		}
		entries, err := h2.Commits(10)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 2 {
			t.Fatalf("len = %d, want 2", len(entries))
		}
	})
}
