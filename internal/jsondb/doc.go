// Package jsondb stores small collections as whole JSON documents.
//
// A Doc[T] holds one named collection as a single JSON array on disk and a
// mirror of it in memory. Readers get cloned snapshots; writers go through
// Mutate, which serializes every read-modify-write cycle behind a single
// writer lock and replaces the file atomically (temp file + rename), so a
// crash never leaves a torn document visible to the next load.
package jsondb

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// ErrCorrupt is returned when the stored bytes are not a valid JSON array.
//
// Loads degrade to an empty collection so reads stay available, but a Doc
// that loaded corrupt refuses to mutate: rewriting a broken document as if
// it were empty would silently destroy whatever the bytes used to be.
var ErrCorrupt = errors.New("document contains invalid JSON")

// Cloner is implemented by row types that can deep-copy themselves.
type Cloner[T any] interface {
	Clone() T
}

// Doc handles storage and in-memory mirroring of a single JSON document.
type Doc[T Cloner[T]] struct {
	path string
	mu   sync.RWMutex

	rows    []T
	corrupt bool
}

// Open creates a Doc backed by path and loads it. A missing file is an
// empty collection; an unparseable file degrades to empty with a warning.
func Open[T Cloner[T]](path string) (*Doc[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	d := &Doc[T]{path: path}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Path returns the backing file path.
func (d *Doc[T]) Path() string {
	return d.path
}

// Len returns the number of rows.
func (d *Doc[T]) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rows)
}

// Reload re-reads the document from disk, replacing the in-memory mirror.
// Used at startup and when the file changes out-of-band.
func (d *Doc[T]) Reload() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			d.rows = nil
			d.corrupt = false
			return nil
		}
		return fmt.Errorf("failed to read document %s: %w", d.path, err)
	}

	var rows []T
	if err := json.Unmarshal(data, &rows); err != nil {
		slog.Warn("Document is corrupt, treating as empty", "path", d.path, "err", err)
		d.rows = nil
		d.corrupt = true
		return nil
	}
	d.rows = rows
	d.corrupt = false
	return nil
}

// Snapshot returns a cloned copy of all rows.
func (d *Doc[T]) Snapshot() []T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rows := make([]T, len(d.rows))
	for i, row := range d.rows {
		rows[i] = row.Clone()
	}
	return rows
}

// All returns an iterator over clones of all rows.
func (d *Doc[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		for _, row := range d.rows {
			if !yield(row.Clone()) {
				return
			}
		}
	}
}

// Mutate runs one read-modify-write cycle under the writer lock.
//
// fn receives a cloned copy of the rows and returns the full replacement
// slice. If fn succeeds, the document is rewritten atomically and the
// in-memory mirror updated; if fn or the save fails, nothing changes and
// the error is returned unchanged (fn errors) or wrapped (save errors).
func (d *Doc[T]) Mutate(fn func(rows []T) ([]T, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.corrupt {
		return fmt.Errorf("refusing to mutate %s: %w", d.path, ErrCorrupt)
	}

	rows := make([]T, len(d.rows))
	for i, row := range d.rows {
		rows[i] = row.Clone()
	}

	next, err := fn(rows)
	if err != nil {
		return err
	}
	if err := d.save(next); err != nil {
		return err
	}
	d.rows = next
	return nil
}

// save writes rows to a temp file in the document's directory, syncs it
// and renames it over the document.
func (d *Doc[T]) save(rows []T) error {
	if rows == nil {
		rows = []T{}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	dir := filepath.Dir(d.path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(d.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := f.Name()
	if _, err := f.Write(data); err != nil {
		return errors.Join(fmt.Errorf("failed to write document: %w", err), f.Close(), os.Remove(tmpPath))
	}
	if err := f.Sync(); err != nil {
		return errors.Join(fmt.Errorf("failed to sync document: %w", err), f.Close(), os.Remove(tmpPath))
	}
	if err := f.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(tmpPath))
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil { //nolint:gosec // G302: documents are world-readable
		return errors.Join(fmt.Errorf("failed to chmod temp file: %w", err), os.Remove(tmpPath))
	}
	if err := os.Rename(tmpPath, d.path); err != nil {
		return errors.Join(fmt.Errorf("failed to replace document: %w", err), os.Remove(tmpPath))
	}
	return nil
}
