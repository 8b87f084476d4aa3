package vision

import (
	"image"
	"testing"
)

// noiseGray builds a deterministic pseudo-random raster so matcher tests
// are reproducible without fixture files.
func noiseGray(w, h int, seed uint32) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	state := seed
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			state = state*1664525 + 1013904223
			img.Pix[y*img.Stride+x] = uint8(state >> 24)
		}
	}
	return img
}

// gradientGray builds a smooth horizontal ramp with no edge content.
func gradientGray(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Pix[y*img.Stride+x] = uint8(x * 255 / w)
		}
	}
	return img
}

// checkerGray builds a high-contrast checkerboard.
func checkerGray(w, h, cell int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.Pix[y*img.Stride+x] = 255
			}
		}
	}
	return img
}

// crop copies a sub-rectangle into a fresh raster.
func crop(src *image.Gray, x, y, w, h int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for j := 0; j < h; j++ {
		copy(dst.Pix[j*dst.Stride:j*dst.Stride+w], src.Pix[(y+j)*src.Stride+x:(y+j)*src.Stride+x+w])
	}
	return dst
}

func TestMatchOne_ExactCopy(t *testing.T) {
	screen := noiseGray(40, 30, 7)
	tmpl := crop(screen, 12, 9, 8, 8)

	m, ok := MatchOne(screen, tmpl, 0.99)
	if !ok {
		t.Fatal("expected a match for an exact template copy")
	}
	if m.X != 12 || m.Y != 9 {
		t.Errorf("expected match at (12, 9), got (%d, %d)", m.X, m.Y)
	}
	if m.Confidence < 0.999 {
		t.Errorf("expected confidence ~1.0 for exact copy, got %v", m.Confidence)
	}
}

func TestMatchOne_NoResemblance(t *testing.T) {
	screen := gradientGray(64, 48)
	tmpl := checkerGray(16, 16, 2)

	if m, ok := MatchOne(screen, tmpl, 0.82); ok {
		t.Fatalf("expected no match from either pass, got confidence %v at (%d, %d)", m.Confidence, m.X, m.Y)
	}
}

func TestMatchOne_TemplateLargerThanScreen(t *testing.T) {
	screen := noiseGray(10, 10, 1)
	tmpl := noiseGray(20, 20, 2)

	if _, ok := MatchOne(screen, tmpl, 0.5); ok {
		t.Fatal("expected no match when the template does not fit the screen")
	}
}

func TestMatchOne_FlatTemplate(t *testing.T) {
	screen := noiseGray(30, 30, 3)
	tmpl := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range tmpl.Pix {
		tmpl.Pix[i] = 128
	}

	if _, ok := MatchOne(screen, tmpl, 0.5); ok {
		t.Fatal("expected no match for a flat template: correlation is undefined")
	}
}

func TestMatchOne_EdgeFallback(t *testing.T) {
	// A box outline whose interior content changed between capture and
	// match time. The interiors are smooth ramps sloping in opposite
	// directions, so the intensity pass scores low while the edge maps,
	// which only see the outline, still agree.
	box := func(reversed bool) *image.Gray {
		img := image.NewGray(image.Rect(0, 0, 24, 16))
		for y := 0; y < 16; y++ {
			for x := 0; x < 24; x++ {
				switch {
				case x < 2 || x >= 22 || y < 2 || y >= 14:
					img.Pix[y*img.Stride+x] = 255
				case reversed:
					img.Pix[y*img.Stride+x] = uint8(86 - (x-2)*4)
				default:
					img.Pix[y*img.Stride+x] = uint8(10 + (x-2)*4)
				}
			}
		}
		return img
	}

	screen := image.NewGray(image.Rect(0, 0, 60, 40))
	for i := range screen.Pix {
		screen.Pix[i] = 255
	}
	withBox := box(false)
	for y := 0; y < 16; y++ {
		copy(screen.Pix[(10+y)*screen.Stride+20:(10+y)*screen.Stride+44], withBox.Pix[y*withBox.Stride:y*withBox.Stride+24])
	}
	tmpl := box(true)

	if score, _, ok := correlate(screen, tmpl); ok && score >= 0.98 {
		t.Fatalf("intensity pass unexpectedly scored %v, the fallback would not run", score)
	}

	m, ok := MatchOne(screen, tmpl, 0.98)
	if !ok {
		t.Fatal("expected the edge fallback pass to find the box outline")
	}
	if m.X != 20 || m.Y != 10 {
		t.Errorf("expected edge match at (20, 10), got (%d, %d)", m.X, m.Y)
	}
}

func TestMatchOne_ExactCopyInLargeArea(t *testing.T) {
	// A window-sized search area with the copy planted at odd
	// coordinates. Raw noise gives the sharpest possible correlation
	// surface: every position off by even one pixel scores near zero,
	// so anything short of an exhaustive scan misses the peak.
	screen := noiseGray(200, 160, 11)
	tmpl := crop(screen, 77, 53, 12, 12)

	m, ok := MatchOne(screen, tmpl, 0.9)
	if !ok {
		t.Fatal("expected an exact copy to match in a large search area")
	}
	if m.X != 77 || m.Y != 53 {
		t.Errorf("expected match at (77, 53), got (%d, %d)", m.X, m.Y)
	}
	if m.Confidence < 0.999 {
		t.Errorf("expected confidence ~1.0, got %v", m.Confidence)
	}
}

func TestEdgeMap_GradientHasNoEdges(t *testing.T) {
	edges := edgeMap(gradientGray(32, 32))
	for i, p := range edges.Pix {
		if p != 0 {
			t.Fatalf("expected a smooth ramp to produce no edges, found one at index %d", i)
		}
	}
}
