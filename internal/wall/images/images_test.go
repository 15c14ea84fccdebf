package images

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func gifBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// padded appends trailing zeros. Decoders read only the header, so a
// padded image still sniffs and decodes but counts against the size
// limits.
func padded(data []byte, size int) []byte {
	out := make([]byte, size)
	copy(out, data)
	return out
}

func TestValidate(t *testing.T) {
	valid := pngBytes(t)
	t.Run("OK", func(t *testing.T) {
		uploads := []Upload{
			{Name: "a.png", Data: valid},
			{Name: "b.gif", Data: gifBytes(t)},
		}
		if err := Validate(uploads); err != nil {
			t.Fatal(err)
		}
	})
	t.Run("Empty", func(t *testing.T) {
		if err := Validate(nil); err != nil {
			t.Fatal(err)
		}
	})
	t.Run("TooMany", func(t *testing.T) {
		uploads := make([]Upload, MaxCount+1)
		for i := range uploads {
			uploads[i] = Upload{Name: "a.png", Data: valid}
		}
		if err := Validate(uploads); err == nil {
			t.Fatal("expected error for too many images")
		}
	})
	t.Run("EmptyFile", func(t *testing.T) {
		if err := Validate([]Upload{{Name: "a.png"}}); err == nil {
			t.Fatal("expected error for empty file")
		}
	})
	t.Run("Oversize", func(t *testing.T) {
		u := Upload{Name: "big.png", Data: padded(valid, MaxFileSize+1)}
		err := Validate([]Upload{u})
		if err == nil || !strings.Contains(err.Error(), "big.png") {
			t.Fatalf("err = %v, want failure naming the file", err)
		}
	})
	t.Run("CombinedOversize", func(t *testing.T) {
		// Each file passes the per-file limit; together they do not.
		u := Upload{Name: "a.png", Data: padded(valid, MaxTotalSize/2+1)}
		if err := Validate([]Upload{u, u}); err == nil {
			t.Fatal("expected error for combined size")
		}
	})
	t.Run("UnsupportedType", func(t *testing.T) {
		u := Upload{Name: "doc.pdf", Data: []byte("%PDF-1.4 not an image")}
		err := Validate([]Upload{u})
		if err == nil || !strings.Contains(err.Error(), "doc.pdf") {
			t.Fatalf("err = %v, want failure naming the file", err)
		}
	})
	t.Run("Undecodable", func(t *testing.T) {
		// Sniffs as PNG but the stream is garbage.
		data := append([]byte("\x89PNG\r\n\x1a\n"), []byte("garbage")...)
		if err := Validate([]Upload{{Name: "fake.png", Data: data}}); err == nil {
			t.Fatal("expected error for undecodable image")
		}
	})
}

func TestValidatePortrait(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		if err := ValidatePortrait(Upload{Name: "p.png", Data: pngBytes(t)}); err != nil {
			t.Fatal(err)
		}
	})
	t.Run("Oversize", func(t *testing.T) {
		u := Upload{Name: "p.png", Data: padded(pngBytes(t), MaxPortraitSize+1)}
		if err := ValidatePortrait(u); err == nil {
			t.Fatal("expected error for oversize portrait")
		}
	})
}

func TestStore(t *testing.T) {
	newStore := func(t *testing.T) (*Store, string) {
		t.Helper()
		dir := t.TempDir()
		s, err := NewStore(filepath.Join(dir, "img"), "img")
		if err != nil {
			t.Fatal(err)
		}
		return s, filepath.Join(dir, "img")
	}

	t.Run("Save", func(t *testing.T) {
		s, dir := newStore(t)
		data := pngBytes(t)
		p, err := s.Save("post_000001", Upload{Name: "pic.png", Data: data})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(p, "img/post_000001_") || !strings.HasSuffix(p, ".png") {
			t.Fatalf("path = %q", p)
		}
		stored, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(p, "img/")))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(stored, data) {
			t.Fatal("stored bytes differ from upload")
		}
	})
	t.Run("CollisionFreeNames", func(t *testing.T) {
		s, _ := newStore(t)
		u := Upload{Name: "pic.png", Data: pngBytes(t)}
		a, err := s.Save("post_000001", u)
		if err != nil {
			t.Fatal(err)
		}
		b, err := s.Save("post_000001", u)
		if err != nil {
			t.Fatal(err)
		}
		if a == b {
			t.Fatalf("identical names for two saves: %q", a)
		}
	})
	t.Run("SaveAllAbortsAndCleansUp", func(t *testing.T) {
		s, dir := newStore(t)
		uploads := []Upload{
			{Name: "ok.png", Data: pngBytes(t)},
			{Name: "bad.png", Data: pngBytes(t)},
		}
		// Breaking the staging directory fails the second save after the
		// first file was already promoted.
		saved, err := s.SaveAll("post_000001", uploads[:1])
		if err != nil {
			t.Fatal(err)
		}
		s.Remove(saved)
		if err := os.RemoveAll(filepath.Join(dir, "tmp")); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "tmp"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := s.SaveAll("post_000002", uploads); err == nil {
			t.Fatal("expected SaveAll to fail")
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if e.Name() != "tmp" {
				t.Fatalf("file %q survived the aborted batch", e.Name())
			}
		}
	})
	t.Run("RemoveIgnoresMissing", func(t *testing.T) {
		s, _ := newStore(t)
		s.Remove([]string{"img/not_there.png"})
	})
}
