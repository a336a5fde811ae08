package vision

import (
	"errors"
	"testing"

	"github.com/teslashibe/go-rover/pkg/sensor"
)

// fillFrame is a frame whose pixels are produced by fn.
type fillFrame struct {
	w, h int
	fn   func(x, y int) (uint8, uint8, uint8)
}

func (f fillFrame) Width() int  { return f.w }
func (f fillFrame) Height() int { return f.h }
func (f fillFrame) PixelAt(x, y int) (uint8, uint8, uint8) {
	if x < 0 || y < 0 || x >= f.w || y >= f.h {
		panic("pixel out of bounds")
	}
	return f.fn(x, y)
}

func solid(w, h int, r, g, b uint8) fillFrame {
	return fillFrame{w: w, h: h, fn: func(int, int) (uint8, uint8, uint8) { return r, g, b }}
}

func TestSamplePatch_Solid(t *testing.T) {
	s, err := SamplePatch(solid(64, 48, 150, 30, 20))
	if err != nil {
		t.Fatalf("SamplePatch: %v", err)
	}
	if s.R != 150 || s.G != 30 || s.B != 20 {
		t.Errorf("mean = (%d,%d,%d), want (150,30,20)", s.R, s.G, s.B)
	}
	if s.Count != 121 {
		t.Errorf("Count = %d, want 121", s.Count)
	}
}

func TestSamplePatch_SinglePixel(t *testing.T) {
	s, err := SamplePatch(solid(1, 1, 7, 8, 9))
	if err != nil {
		t.Fatalf("1x1 frame should not be degenerate: %v", err)
	}
	if s != (Sample{R: 7, G: 8, B: 9, Count: 1}) {
		t.Errorf("got %+v, want single pixel values with count 1", s)
	}
}

func TestSamplePatch_Degenerate(t *testing.T) {
	empty, err := sensor.NewRawFrame(0, 0, sensor.FormatBGRA, nil)
	if err != nil {
		t.Fatalf("NewRawFrame: %v", err)
	}

	tests := []struct {
		name  string
		frame sensor.Frame
	}{
		{"0x0 raw frame", empty},
		{"zero width", solid(0, 10, 1, 1, 1)},
		{"nil frame", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := SamplePatch(tt.frame); !errors.Is(err, ErrDegenerateFrame) {
				t.Errorf("expected ErrDegenerateFrame, got %v", err)
			}
		})
	}
}

func TestSamplePatch_ClippedCounts(t *testing.T) {
	tests := []struct {
		w, h  int
		count int
	}{
		{3, 3, 9},     // whole frame inside the patch
		{11, 11, 121}, // exactly fits
		{4, 20, 44},   // centre x=2 covers x 0..3, y 5..15
		{200, 2, 22},  // centre y=1 covers y 0..1
	}
	for _, tt := range tests {
		s, err := SamplePatch(solid(tt.w, tt.h, 1, 1, 1))
		if err != nil {
			t.Fatalf("%dx%d: %v", tt.w, tt.h, err)
		}
		if s.Count != tt.count {
			t.Errorf("%dx%d: Count = %d, want %d", tt.w, tt.h, s.Count, tt.count)
		}
	}
}

func TestSamplePatch_Truncates(t *testing.T) {
	// 1x2 frame centred at (0,1): patch covers both pixels.
	// Red mean (100+101)/2 = 100.5 truncates to 100, which must not pass R>100.
	f := fillFrame{w: 1, h: 2, fn: func(_, y int) (uint8, uint8, uint8) {
		if y == 0 {
			return 100, 0, 0
		}
		return 101, 1, 0
	}}

	s, err := SamplePatch(f)
	if err != nil {
		t.Fatalf("SamplePatch: %v", err)
	}
	if s.R != 100 || s.G != 0 {
		t.Errorf("mean = (%d,%d,%d), want truncated (100,0,0)", s.R, s.G, s.B)
	}
	if got := Loose().Classify(s); got != None {
		t.Errorf("truncated mean should classify as None, got %v", got)
	}
}

func TestSamplePatch_CentreOnly(t *testing.T) {
	// Red square in the middle of a blue field; the patch sees only red.
	f := fillFrame{w: 80, h: 60, fn: func(x, y int) (uint8, uint8, uint8) {
		if x >= 30 && x < 50 && y >= 20 && y < 40 {
			return 200, 10, 10
		}
		return 0, 0, 255
	}}

	s, err := SamplePatch(f)
	if err != nil {
		t.Fatalf("SamplePatch: %v", err)
	}
	if got := Loose().Classify(s); got != Red {
		t.Errorf("centre patch classified %v, want red (sample %+v)", got, s)
	}
}
