package wall

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/wgwall/walld/internal/jsondb"
)

// DefaultCacheTTL bounds how stale the sorted view may get between
// rebuilds. Writes invalidate explicitly, so the TTL only matters for
// out-of-band edits and multi-process deployments.
const DefaultCacheTTL = 60 * time.Second

// viewCache is a derived, time-bounded snapshot of the posts collection
// sorted by post date descending. It is never authoritative: every write
// path must call Invalidate so the next read rebuilds from the document.
//
// The view is also persisted to a cache artifact on disk with an explicit
// rebuilt timestamp, so a restarted process can serve the first page
// without re-sorting.
type viewCache struct {
	doc  *jsondb.Doc[*Post]
	path string

	mu      sync.Mutex
	view    []*Post
	rebuilt time.Time
}

// cacheArtifact is the on-disk form of the cached view.
type cacheArtifact struct {
	Rebuilt time.Time `json:"rebuilt"`
	Posts   []*Post   `json:"posts"`
}

func newViewCache(doc *jsondb.Doc[*Post], path string) *viewCache {
	return &viewCache{doc: doc, path: path}
}

// View returns the sorted posts view, rebuilding it when older than
// maxAge. The returned slice is shared; callers must not modify it or
// the posts it points to.
func (c *viewCache) View(maxAge time.Duration) []*Post {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.view != nil && now.Sub(c.rebuilt) < maxAge {
		return c.view
	}
	if c.view == nil {
		if art := c.loadArtifact(); art != nil && now.Sub(art.Rebuilt) < maxAge {
			c.view = art.Posts
			c.rebuilt = art.Rebuilt
			return c.view
		}
	}

	view := c.doc.Snapshot()
	slices.SortStableFunc(view, func(a, b *Post) int {
		return b.date().Compare(a.date())
	})
	c.view = view
	c.rebuilt = now
	c.saveArtifact()
	return c.view
}

// Invalidate discards the cached view unconditionally so the next View
// call rebuilds regardless of age.
func (c *viewCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = nil
	c.rebuilt = time.Time{}
	if c.path != "" {
		if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove cache artifact", "path", c.path, "err", err)
		}
	}
}

func (c *viewCache) loadArtifact() *cacheArtifact {
	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil
	}
	var art cacheArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		slog.Warn("Ignoring corrupt cache artifact", "path", c.path, "err", err)
		return nil
	}
	if art.Posts == nil {
		art.Posts = []*Post{}
	}
	return &art
}

// saveArtifact persists the current view. A failed rebuild persist never
// blocks reads or writes; it only costs the next process a re-sort.
func (c *viewCache) saveArtifact() {
	if c.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		slog.Warn("Failed to create cache directory", "path", c.path, "err", err)
		return
	}
	data, err := json.Marshal(cacheArtifact{Rebuilt: c.rebuilt, Posts: c.view})
	if err != nil {
		slog.Warn("Failed to marshal cache artifact", "err", err)
		return
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil { //nolint:gosec // G306: derived data, same mode as the documents
		slog.Warn("Failed to write cache artifact", "path", c.path, "err", err)
	}
}
