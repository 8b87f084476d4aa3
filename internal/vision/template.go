package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
)

// ErrTemplateUnreadable marks a template file that is missing, unreadable,
// or not a decodable image. This is a hard failure, distinct from a
// template that simply is not visible on screen.
var ErrTemplateUnreadable = errors.New("template unreadable")

// Template is a decoded reference image. The raster is immutable after
// decode; callers must treat the returned pixels as read-only.
type Template struct {
	Path string
	gray *image.Gray
}

// Gray returns the decoded grayscale raster.
func (t *Template) Gray() *image.Gray {
	return t.gray
}

// Size returns the template dimensions in pixels.
func (t *Template) Size() (w, h int) {
	b := t.gray.Bounds()
	return b.Dx(), b.Dy()
}

// Store loads and memoizes templates by path. Entries live for the
// process lifetime and are safe for concurrent readers once inserted.
type Store struct {
	mu    sync.RWMutex
	cache map[string]*Template
}

// NewStore returns an empty template store.
func NewStore() *Store {
	return &Store{cache: make(map[string]*Template)}
}

// Load decodes the image at path, memoized by path. The file is read as
// a raw byte stream and decoded from memory so that non-ASCII paths
// survive regardless of the platform locale.
func (s *Store) Load(path string) (*Template, error) {
	s.mu.RLock()
	t, ok := s.cache[path]
	s.mu.RUnlock()
	if ok {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateUnreadable, path, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateUnreadable, path, err)
	}

	t = &Template{Path: path, gray: ToGray(img)}

	s.mu.Lock()
	// A concurrent Load may have won the race; keep the first entry so
	// callers never observe two rasters for one path.
	if existing, ok := s.cache[path]; ok {
		t = existing
	} else {
		s.cache[path] = t
	}
	s.mu.Unlock()
	return t, nil
}
