package sensor

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestRawFrame_PixelAt(t *testing.T) {
	// 2x1 frame: pixel 0 pure red, pixel 1 pure blue.
	bgra := []byte{
		0, 0, 255, 255,
		255, 0, 0, 255,
	}
	rgba := []byte{
		255, 0, 0, 255,
		0, 0, 255, 255,
	}

	tests := []struct {
		name   string
		format PixelFormat
		pix    []byte
	}{
		{"bgra", FormatBGRA, bgra},
		{"rgba", FormatRGBA, rgba},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewRawFrame(2, 1, tt.format, tt.pix)
			if err != nil {
				t.Fatalf("NewRawFrame: %v", err)
			}
			if r, g, b := f.PixelAt(0, 0); r != 255 || g != 0 || b != 0 {
				t.Errorf("pixel 0 = (%d,%d,%d), want red", r, g, b)
			}
			if r, g, b := f.PixelAt(1, 0); r != 0 || g != 0 || b != 255 {
				t.Errorf("pixel 1 = (%d,%d,%d), want blue", r, g, b)
			}
		})
	}
}

func TestNewRawFrame_Errors(t *testing.T) {
	if _, err := NewRawFrame(2, 2, FormatRGBA, make([]byte, 15)); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("expected ErrShortBuffer, got %v", err)
	}
	if _, err := NewRawFrame(1, 1, "yuv", make([]byte, 4)); err == nil {
		t.Error("expected error for unsupported format")
	}
	if _, err := NewRawFrame(-1, 1, FormatRGBA, nil); err == nil {
		t.Error("expected error for negative width")
	}
	for _, size := range [][2]int{{1 << 62, 4}, {4, 1 << 62}, {1 << 31, 1 << 31}} {
		if _, err := NewRawFrame(size[0], size[1], FormatBGRA, nil); !errors.Is(err, ErrFrameTooLarge) {
			t.Errorf("NewRawFrame(%d, %d): expected ErrFrameTooLarge, got %v", size[0], size[1], err)
		}
	}
	if f, err := NewRawFrame(0, 0, FormatRGBA, nil); err != nil || f.Width() != 0 {
		t.Errorf("zero-sized frame should be allowed, got %v", err)
	}
}

func TestImageFrame_OffsetBounds(t *testing.T) {
	img := image.NewNRGBA(image.Rect(10, 10, 12, 12))
	img.SetNRGBA(10, 10, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	f := FromImage(img)
	if f.Width() != 2 || f.Height() != 2 {
		t.Fatalf("size = %dx%d, want 2x2", f.Width(), f.Height())
	}
	if r, g, b := f.PixelAt(0, 0); r != 1 || g != 2 || b != 3 {
		t.Errorf("PixelAt(0,0) = (%d,%d,%d), want (1,2,3)", r, g, b)
	}
}

func TestToImage(t *testing.T) {
	f, _ := NewRawFrame(1, 1, FormatBGRA, []byte{30, 20, 10, 255})
	img := ToImage(f)

	c := color.NRGBAModel.Convert(img.At(0, 0)).(color.NRGBA)
	if c.R != 10 || c.G != 20 || c.B != 30 {
		t.Errorf("ToImage pixel = %+v, want R=10 G=20 B=30", c)
	}

	wrapped := FromImage(img)
	if ToImage(wrapped) != img {
		t.Error("ToImage should return the wrapped image unchanged")
	}
}

type constReader float64

func (c constReader) Read() float64 { return float64(c) }

func TestReadProximity(t *testing.T) {
	var ch [ProximityChannels]Reader
	for i := range ch {
		ch[i] = constReader(i * 10)
	}
	ch[3] = nil

	got := ReadProximity(ch)
	want := [ProximityChannels]float64{0, 10, 20, 0, 40, 50, 60, 70}
	if got != want {
		t.Errorf("ReadProximity = %v, want %v", got, want)
	}
}
