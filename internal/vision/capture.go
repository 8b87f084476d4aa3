// Package vision locates pre-captured UI element images on the live
// screen. It combines a grayscale screen capturer, a memoizing template
// store, and a two-pass correlation matcher behind a single Localizer.
package vision

import (
	"fmt"
	"image"

	"github.com/go-vgo/robotgo"

	"github.com/c30tools/autologin/internal/config"
)

// Capturer produces a grayscale raster of a screen region on demand.
// A nil region captures the full primary display. Captures are never
// cached; every call reflects the current screen state.
type Capturer interface {
	Capture(region *config.Region) (*image.Gray, error)
}

// ScreenCapturer implements Capturer against the live display.
type ScreenCapturer struct{}

// NewScreenCapturer returns a Capturer backed by the OS screen buffer.
func NewScreenCapturer() *ScreenCapturer {
	return &ScreenCapturer{}
}

// Capture grabs the region (or the full screen) and converts it to a
// single-channel intensity raster. Color carries no signal for template
// matching and dropping it halves the correlation cost.
func (c *ScreenCapturer) Capture(region *config.Region) (*image.Gray, error) {
	var img image.Image
	var err error
	if region != nil {
		if !region.Valid() {
			return nil, fmt.Errorf("capture region %s has non-positive dimensions", region)
		}
		img, err = robotgo.CaptureImg(region.X, region.Y, region.W, region.H)
	} else {
		img, err = robotgo.CaptureImg()
	}
	if err != nil || img == nil {
		return nil, fmt.Errorf("screen capture failed (region=%v)", region)
	}
	return ToGray(img), nil
}

// ToGray converts any image to an 8-bit grayscale raster.
func ToGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok {
		return g
	}
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x-b.Min.X, y-b.Min.Y, src.At(x, y))
		}
	}
	return dst
}
