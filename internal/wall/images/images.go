// Package images validates and stores uploaded wall images.
//
// Uploads are staged into a tmp directory and promoted into the image
// directory by rename, so a partially written file is never visible under
// its final name. Promotion happens before the post document is saved;
// the caller compensates by removing promoted files if that save fails.
package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/maruel/ksid"

	// Decoders for every MIME type in the allow-list.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Limits for post and comment image attachments.
const (
	MaxCount     = 3
	MaxFileSize  = 3 << 20 // per image
	MaxTotalSize = 6 << 20 // combined

	// MaxPortraitSize applies to the single registration portrait upload.
	MaxPortraitSize = 2 << 20
)

// allowedTypes is the sniffed-MIME allow-list for post/comment images.
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// portraitTypes is the stricter allow-list for registration portraits.
var portraitTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// extByType maps sniffed MIME types to a canonical stored extension.
var extByType = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
	"image/bmp":  "bmp",
}

// Upload is one uploaded file, fully read into memory.
type Upload struct {
	Name string
	Data []byte
}

// Validate checks a batch of post/comment attachments: count, per-file
// and combined size, sniffed MIME type and decodability. The first
// failure short-circuits and names the offending file. A nil error means
// the whole batch is acceptable.
func Validate(uploads []Upload) error {
	if len(uploads) > MaxCount {
		return fmt.Errorf("at most %d images per post", MaxCount)
	}
	total := 0
	for _, u := range uploads {
		if len(u.Data) == 0 {
			return fmt.Errorf("image %q is empty", u.Name)
		}
		if len(u.Data) > MaxFileSize {
			return fmt.Errorf("image %q exceeds %d MB", u.Name, MaxFileSize>>20)
		}
		if err := checkImage(u, allowedTypes); err != nil {
			return err
		}
		total += len(u.Data)
	}
	if total > MaxTotalSize {
		return fmt.Errorf("images exceed %d MB combined, reduce or compress them", MaxTotalSize>>20)
	}
	return nil
}

// ValidatePortrait checks a single registration portrait upload.
func ValidatePortrait(u Upload) error {
	if len(u.Data) == 0 {
		return fmt.Errorf("image %q is empty", u.Name)
	}
	if len(u.Data) > MaxPortraitSize {
		return fmt.Errorf("image %q exceeds %d MB", u.Name, MaxPortraitSize>>20)
	}
	return checkImage(u, portraitTypes)
}

func checkImage(u Upload, allowed map[string]bool) error {
	mimeType := sniff(u.Data)
	if !allowed[mimeType] {
		return fmt.Errorf("image %q has unsupported type %s", u.Name, mimeType)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(u.Data)); err != nil {
		return fmt.Errorf("image %q is not a valid image file", u.Name)
	}
	return nil
}

// sniff returns the detected MIME type, stripped of parameters.
func sniff(data []byte) string {
	mimeType := http.DetectContentType(data)
	if t, _, ok := strings.Cut(mimeType, ";"); ok {
		return strings.TrimSpace(t)
	}
	return mimeType
}

// Store writes uploads under a directory and hands out the web paths
// that get persisted in the documents.
type Store struct {
	dir       string // e.g. <data>/img
	urlPrefix string // e.g. img
}

// NewStore creates the image directory (and its staging subdirectory)
// if needed.
func NewStore(dir, urlPrefix string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &Store{dir: dir, urlPrefix: urlPrefix}, nil
}

// Dir returns the directory files are stored in.
func (s *Store) Dir() string {
	return s.dir
}

// Save stages one upload and promotes it to <prefix>_<ksid>.<ext>,
// returning the web path to persist. The ksid suffix keeps concurrent
// uploads collision-free.
func (s *Store) Save(prefix string, u Upload) (string, error) {
	ext := extByType[sniff(u.Data)]
	if ext == "" {
		ext = strings.TrimPrefix(strings.ToLower(path.Ext(u.Name)), ".")
	}
	name := fmt.Sprintf("%s_%s.%s", prefix, ksid.NewID(), ext)

	f, err := os.CreateTemp(filepath.Join(s.dir, "tmp"), "*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to stage image: %w", err)
	}
	tmpPath := f.Name()
	if _, err := f.Write(u.Data); err != nil {
		return "", errors.Join(fmt.Errorf("failed to write image: %w", err), f.Close(), os.Remove(tmpPath))
	}
	if err := f.Close(); err != nil {
		return "", errors.Join(fmt.Errorf("failed to close staged image: %w", err), os.Remove(tmpPath))
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil { //nolint:gosec // G302: served files are world-readable
		return "", errors.Join(fmt.Errorf("failed to chmod image: %w", err), os.Remove(tmpPath))
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		return "", errors.Join(fmt.Errorf("failed to promote image: %w", err), os.Remove(tmpPath))
	}
	return s.urlPrefix + "/" + name, nil
}

// SaveAll saves a batch, aborting and removing already-promoted files on
// the first failure.
func (s *Store) SaveAll(prefix string, uploads []Upload) ([]string, error) {
	saved := []string{}
	for _, u := range uploads {
		p, err := s.Save(prefix, u)
		if err != nil {
			s.Remove(saved)
			return nil, err
		}
		saved = append(saved, p)
	}
	return saved, nil
}

// Remove deletes stored images by web path. Best-effort compensating
// cleanup: failures are logged, not returned.
func (s *Store) Remove(paths []string) {
	for _, p := range paths {
		name := strings.TrimPrefix(p, s.urlPrefix+"/")
		// Refuse anything that escapes the image directory.
		if name == p && !strings.HasPrefix(p, s.urlPrefix) {
			continue
		}
		name = filepath.Base(name)
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove image", "path", p, "err", err)
		}
	}
}
