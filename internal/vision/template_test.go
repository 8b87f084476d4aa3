package vision

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStoreLoad_Memoizes(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "t.png", noiseGray(6, 6, 1))

	store := NewStore()
	first, err := store.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	// Later loads must serve the cached raster even if the file changes.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	second, err := store.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("expected the cached template instance on the second load")
	}
}

func TestStoreLoad_MissingFile(t *testing.T) {
	_, err := NewStore().Load(filepath.Join(t.TempDir(), "nope.png"))
	if !errors.Is(err, ErrTemplateUnreadable) {
		t.Fatalf("expected ErrTemplateUnreadable, got %v", err)
	}
}

func TestStoreLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewStore().Load(path)
	if !errors.Is(err, ErrTemplateUnreadable) {
		t.Fatalf("expected ErrTemplateUnreadable, got %v", err)
	}
}

func TestTemplateSize(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "t.png", noiseGray(14, 9, 2))

	tmpl, err := NewStore().Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if w, h := tmpl.Size(); w != 14 || h != 9 {
		t.Errorf("expected 14x9, got %dx%d", w, h)
	}
}
