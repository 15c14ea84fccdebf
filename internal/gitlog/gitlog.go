// Package gitlog keeps a git commit trail of the data directory.
//
// Every successful mutation records one commit, which gives free
// point-in-time recovery of the JSON documents without a real database.
// Pure go-git, no git binary required.
package gitlog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	commitName  = "walld"
	commitEmail = "walld@localhost"
)

// ignoreFile keeps derived and staging files out of the history.
const ignoreFile = "cache.json\nimg/tmp/\nportrait-img/tmp/\n"

// Entry is one recorded commit.
type Entry struct {
	Hash    string
	Message string
	When    time.Time
}

// History is a git repository over the data directory.
type History struct {
	dir  string
	repo *gogit.Repository
	mu   sync.Mutex
}

// Open opens the data directory as a git repository, initializing it on
// first use.
func Open(dir string) (*History, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		repo, err = gogit.PlainInit(dir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize history repo: %w", err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, fmt.Errorf("failed to read git config: %w", err)
		}
		cfg.User.Name = commitName
		cfg.User.Email = commitEmail
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write git config: %w", err)
		}
	}
	ignorePath := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(ignorePath); os.IsNotExist(err) {
		if err := os.WriteFile(ignorePath, []byte(ignoreFile), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write .gitignore: %w", err)
		}
	}
	return &History{dir: dir, repo: repo}, nil
}

// Record stages every change in the data directory and commits it.
// Best-effort: history failures are logged and never surface to the
// mutation that triggered them.
func (h *History) Record(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.commit(message); err != nil {
		slog.Warn("Failed to record history", "msg", message, "err", err)
	}
}

func (h *History) commit(message string) error {
	w, err := h.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := w.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return fmt.Errorf("failed to stage changes: %w", err)
	}
	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	if status.IsClean() {
		return nil
	}
	now := time.Now()
	sig := &object.Signature{Name: commitName, Email: commitEmail, When: now}
	if _, err := w.Commit(message, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Commits returns the most recent n commits, newest first.
func (h *History) Commits(n int) ([]Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n <= 0 || n > 1000 {
		n = 1000
	}
	iter, err := h.repo.Log(&gogit.LogOptions{})
	if err != nil {
		// No commits yet.
		return nil, nil
	}
	defer iter.Close()
	var entries []Entry
	for range n {
		c, err := iter.Next()
		if err != nil {
			break
		}
		entries = append(entries, Entry{
			Hash:    c.Hash.String(),
			Message: c.Message,
			When:    c.Author.When,
		})
	}
	return entries, nil
}
