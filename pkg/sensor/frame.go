// Package sensor wraps one timestep of raw device readings into a typed,
// read-only snapshot.
package sensor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
)

// ProximityChannels is the number of infrared proximity sensors on the chassis.
const ProximityChannels = 8

// ProximityNames are the device names of the proximity sensors, in index order.
var ProximityNames = [ProximityChannels]string{"ps0", "ps1", "ps2", "ps3", "ps4", "ps5", "ps6", "ps7"}

// PixelFormat describes the byte layout of a raw camera buffer.
type PixelFormat string

const (
	FormatBGRA PixelFormat = "bgra" // Webots camera layout
	FormatRGBA PixelFormat = "rgba"
)

var (
	// ErrShortBuffer is returned when a raw buffer is smaller than width*height*4.
	ErrShortBuffer = errors.New("sensor: pixel buffer too short")

	// ErrFrameTooLarge is returned when width*height*4 does not fit in an int.
	ErrFrameTooLarge = errors.New("sensor: frame dimensions too large")
)

// Frame is one camera image addressable by pixel.
type Frame interface {
	Width() int
	Height() int
	// PixelAt returns the 8-bit red, green and blue values at (x, y).
	// Callers must keep x and y within bounds.
	PixelAt(x, y int) (r, g, b uint8)
}

// RawFrame is a camera frame backed by a packed 4-bytes-per-pixel buffer,
// as delivered by the simulator.
type RawFrame struct {
	width, height int
	format        PixelFormat
	pix           []byte
}

// NewRawFrame wraps a packed buffer. Zero-sized frames are allowed and
// represent a camera that delivered no pixels.
func NewRawFrame(width, height int, format PixelFormat, pix []byte) (*RawFrame, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("sensor: invalid frame size %dx%d", width, height)
	}
	if width > 0 && height > (math.MaxInt/4)/width {
		return nil, fmt.Errorf("%w: %dx%d", ErrFrameTooLarge, width, height)
	}
	switch format {
	case FormatBGRA, FormatRGBA:
	default:
		return nil, fmt.Errorf("sensor: unsupported pixel format %q", format)
	}
	if len(pix) < width*height*4 {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(pix), width*height*4)
	}
	return &RawFrame{width: width, height: height, format: format, pix: pix}, nil
}

func (f *RawFrame) Width() int  { return f.width }
func (f *RawFrame) Height() int { return f.height }

func (f *RawFrame) PixelAt(x, y int) (r, g, b uint8) {
	i := (y*f.width + x) * 4
	if f.format == FormatBGRA {
		return f.pix[i+2], f.pix[i+1], f.pix[i]
	}
	return f.pix[i], f.pix[i+1], f.pix[i+2]
}

// ImageFrame adapts an image.Image (for example a decoded JPEG) to Frame.
type ImageFrame struct {
	img image.Image
}

// FromImage wraps img. Pixel coordinates are relative to img.Bounds().Min.
func FromImage(img image.Image) *ImageFrame {
	return &ImageFrame{img: img}
}

func (f *ImageFrame) Width() int  { return f.img.Bounds().Dx() }
func (f *ImageFrame) Height() int { return f.img.Bounds().Dy() }

func (f *ImageFrame) PixelAt(x, y int) (r, g, b uint8) {
	origin := f.img.Bounds().Min
	c := color.NRGBAModel.Convert(f.img.At(origin.X+x, origin.Y+y)).(color.NRGBA)
	return c.R, c.G, c.B
}

// Image returns the wrapped image.
func (f *ImageFrame) Image() image.Image { return f.img }

// ToImage converts any Frame to an image.Image for collaborators that
// work on images, such as classifiers.
func ToImage(f Frame) image.Image {
	if f == nil {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}
	if imf, ok := f.(*ImageFrame); ok {
		return imf.img
	}
	w, h := f.Width(), f.Height()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b := f.PixelAt(x, y)
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 0xff})
		}
	}
	return img
}
