package vision

import (
	"image"
	"math"
)

// Match is a raw matcher hit in screen-raster coordinates (top-left of
// the matched window, not its center).
type Match struct {
	X          int
	Y          int
	Confidence float64
}

// Edge detector parameters, fixed on purpose: they were tuned against the
// target application's chrome and are not worth exposing as configuration.
const (
	edgeLow  = 50
	edgeHigh = 150
)

// edgeRelax is subtracted from the primary threshold for the edge pass,
// floored at edgeFloor. Edge correlation is noisier than intensity
// correlation, so it only ever runs as a fallback.
const (
	edgeRelax = 0.1
	edgeFloor = 0.6
)

// MatchOne searches screen for the single best placement of tmpl.
//
// The primary pass is zero-mean normalized cross-correlation on raw
// intensities. When its global maximum misses the threshold, both rasters
// are reduced to edge maps and correlated again at a relaxed threshold:
// a text field's typed content changes between capture time and login
// time, but the field's border survives in the edge map.
func MatchOne(screen, tmpl *image.Gray, threshold float64) (Match, bool) {
	score, loc, ok := correlate(screen, tmpl)
	if ok && score >= threshold {
		return Match{X: loc.X, Y: loc.Y, Confidence: score}, true
	}

	relaxed := math.Max(threshold-edgeRelax, edgeFloor)
	score, loc, ok = correlate(edgeMap(screen), edgeMap(tmpl))
	if ok && score >= relaxed {
		return Match{X: loc.X, Y: loc.Y, Confidence: score}, true
	}
	return Match{}, false
}

// correlate returns the global maximum of the zero-mean normalized
// cross-correlation of tmpl over screen. ok is false when the template
// does not fit inside the screen raster or either signal is flat.
func correlate(screen, tmpl *image.Gray) (float64, image.Point, bool) {
	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	tw, th := tmpl.Bounds().Dx(), tmpl.Bounds().Dy()
	if tw == 0 || th == 0 || tw > sw || th > sh {
		return 0, image.Point{}, false
	}

	tdev, tnorm := templateDeviations(tmpl)
	if tnorm == 0 {
		// Flat template: correlation is undefined.
		return 0, image.Point{}, false
	}

	sums, sqSums := integralImages(screen)

	px := sw - tw + 1
	py := sh - th + 1

	// Every position is scanned. Correlation surfaces from real UI
	// chrome are sharp, so a subsampled scan can step over the true
	// peak entirely; the integral images keep the per-position cost
	// down to the numerator loop.
	bestScore := math.Inf(-1)
	var bestLoc image.Point
	for y := 0; y < py; y++ {
		for x := 0; x < px; x++ {
			s := scoreAt(screen, sums, sqSums, tdev, tnorm, x, y, tw, th)
			if s > bestScore {
				bestScore = s
				bestLoc = image.Point{X: x, Y: y}
			}
		}
	}
	if math.IsInf(bestScore, -1) {
		return 0, image.Point{}, false
	}
	return bestScore, bestLoc, true
}

// templateDeviations returns each template pixel minus the template mean,
// and the L2 norm of those deviations.
func templateDeviations(tmpl *image.Gray) ([]float64, float64) {
	tw, th := tmpl.Bounds().Dx(), tmpl.Bounds().Dy()
	n := tw * th
	dev := make([]float64, n)

	var sum float64
	for y := 0; y < th; y++ {
		row := tmpl.Pix[y*tmpl.Stride : y*tmpl.Stride+tw]
		for _, p := range row {
			sum += float64(p)
		}
	}
	mean := sum / float64(n)

	var sq float64
	for y := 0; y < th; y++ {
		row := tmpl.Pix[y*tmpl.Stride : y*tmpl.Stride+tw]
		for x, p := range row {
			d := float64(p) - mean
			dev[y*tw+x] = d
			sq += d * d
		}
	}
	return dev, math.Sqrt(sq)
}

// integralImages builds summed-area tables of pixel values and squared
// pixel values, each of size (w+1)x(h+1), giving O(1) window sums.
func integralImages(img *image.Gray) ([]int64, []int64) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	stride := w + 1
	sums := make([]int64, stride*(h+1))
	sqSums := make([]int64, stride*(h+1))
	for y := 0; y < h; y++ {
		var rowSum, rowSq int64
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for x, p := range row {
			v := int64(p)
			rowSum += v
			rowSq += v * v
			idx := (y+1)*stride + x + 1
			sums[idx] = sums[idx-stride] + rowSum
			sqSums[idx] = sqSums[idx-stride] + rowSq
		}
	}
	return sums, sqSums
}

func windowSums(sums, sqSums []int64, stride, x, y, w, h int) (int64, int64) {
	a := y*stride + x
	b := y*stride + x + w
	c := (y+h)*stride + x
	d := (y+h)*stride + x + w
	return sums[d] - sums[b] - sums[c] + sums[a],
		sqSums[d] - sqSums[b] - sqSums[c] + sqSums[a]
}

// scoreAt computes the normalized correlation score of the template over
// the screen window whose top-left corner is (x, y).
//
// Because the template deviations sum to zero, the zero-mean numerator
// reduces to sum(S * tdev), so the screen window mean never needs to be
// subtracted per pixel.
func scoreAt(screen *image.Gray, sums, sqSums []int64, tdev []float64, tnorm float64, x, y, tw, th int) float64 {
	stride := screen.Bounds().Dx() + 1
	n := float64(tw * th)

	wsum, wsq := windowSums(sums, sqSums, stride, x, y, tw, th)
	svar := float64(wsq) - float64(wsum)*float64(wsum)/n
	if svar <= 0 {
		// Flat screen window; no correlation with a non-flat template.
		return 0
	}

	var num float64
	for j := 0; j < th; j++ {
		row := screen.Pix[(y+j)*screen.Stride+x : (y+j)*screen.Stride+x+tw]
		trow := tdev[j*tw : (j+1)*tw]
		for i, p := range row {
			num += float64(p) * trow[i]
		}
	}
	return num / (math.Sqrt(svar) * tnorm)
}

// edgeMap reduces a raster to a binary edge image: Sobel gradient
// magnitude with double thresholding, where weak edges survive only when
// touching a strong edge.
func edgeMap(img *image.Gray) *image.Gray {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w < 3 || h < 3 {
		return out
	}

	const (
		none   = 0
		weak   = 1
		strong = 2
	)
	class := make([]uint8, w*h)

	at := func(x, y int) int {
		return int(img.Pix[y*img.Stride+x])
	}
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -at(x-1, y-1) + at(x+1, y-1) +
				-2*at(x-1, y) + 2*at(x+1, y) +
				-at(x-1, y+1) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			mag := (abs(gx) + abs(gy)) / 4
			switch {
			case mag >= edgeHigh:
				class[y*w+x] = strong
			case mag >= edgeLow:
				class[y*w+x] = weak
			}
		}
	}

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			switch class[y*w+x] {
			case strong:
				out.Pix[y*out.Stride+x] = 255
			case weak:
				if hasStrongNeighbor(class, w, x, y) {
					out.Pix[y*out.Stride+x] = 255
				}
			}
		}
	}
	return out
}

func hasStrongNeighbor(class []uint8, w, x, y int) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if class[(y+dy)*w+x+dx] == 2 {
				return true
			}
		}
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
