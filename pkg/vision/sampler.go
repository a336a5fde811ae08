// Package vision turns camera frames into colour labels: a centre patch
// sampler, a fixed-threshold classifier and the set of colours seen so far.
package vision

import (
	"errors"

	"github.com/teslashibe/go-rover/pkg/sensor"
)

// PatchRadius is k in the (2k+1)x(2k+1) centre patch.
const PatchRadius = 5

// ErrDegenerateFrame is returned when the centre patch holds no in-bounds
// pixels. The caller skips the whole tick.
var ErrDegenerateFrame = errors.New("vision: no pixels in sampling patch")

// Sample is the mean colour of the centre patch.
type Sample struct {
	R, G, B int
	Count   int // Pixels averaged
}

// SamplePatch averages red, green and blue over the square of radius
// PatchRadius centred at (width/2, height/2), clipped to the frame.
// Sums are integers and the mean truncates toward zero.
func SamplePatch(f sensor.Frame) (Sample, error) {
	return SamplePatchRadius(f, PatchRadius)
}

// SamplePatchRadius is SamplePatch with an explicit radius.
func SamplePatchRadius(f sensor.Frame, k int) (Sample, error) {
	if f == nil {
		return Sample{}, ErrDegenerateFrame
	}
	w, h := f.Width(), f.Height()
	cx, cy := w/2, h/2

	var rSum, gSum, bSum, n int
	for dx := -k; dx <= k; dx++ {
		for dy := -k; dy <= k; dy++ {
			x, y := cx+dx, cy+dy
			if x < 0 || x >= w || y < 0 || y >= h {
				continue
			}
			r, g, b := f.PixelAt(x, y)
			rSum += int(r)
			gSum += int(g)
			bSum += int(b)
			n++
		}
	}

	if n == 0 {
		return Sample{}, ErrDegenerateFrame
	}
	return Sample{R: rSum / n, G: gSum / n, B: bSum / n, Count: n}, nil
}
