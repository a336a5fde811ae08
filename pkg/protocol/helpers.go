package protocol

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/teslashibe/go-rover/pkg/sensor"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewHelloMessage creates a hello message
func NewHelloMessage(robot string, devices []string, basicTimeStepMs int) (*Message, error) {
	return NewMessage(TypeHello, HelloData{
		Robot:         robot,
		Devices:       devices,
		BasicTimeStep: basicTimeStepMs,
	})
}

// NewSenseMessage creates a sense message. frame may be nil.
func NewSenseMessage(step uint64, proximity []float64, frame *FrameData) (*Message, error) {
	return NewMessage(TypeSense, SenseData{
		Step:      step,
		Proximity: proximity,
		Frame:     frame,
	})
}

// NewRawFrame encodes a packed 4-bytes-per-pixel buffer.
func NewRawFrame(width, height int, format sensor.PixelFormat, pix []byte) *FrameData {
	return &FrameData{
		Width:  width,
		Height: height,
		Format: string(format),
		Data:   base64.StdEncoding.EncodeToString(pix),
	}
}

// NewStopMessage creates a stop message
func NewStopMessage(reason string) (*Message, error) {
	return NewMessage(TypeStop, StopData{Reason: reason})
}

// NewStepMessage creates a step command
func NewStepMessage(durationMs int64, left, right float64) (*Message, error) {
	return NewMessage(TypeStep, StepCommand{
		DurationMs: durationMs,
		Left:       left,
		Right:      right,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetHelloData extracts hello data from a message
func (m *Message) GetHelloData() (*HelloData, error) {
	var data HelloData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetSenseData extracts sense data from a message
func (m *Message) GetSenseData() (*SenseData, error) {
	var data SenseData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStepCommand extracts a step command from a message
func (m *Message) GetStepCommand() (*StepCommand, error) {
	var data StepCommand
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStopData extracts stop data from a message
func (m *Message) GetStopData() (*StopData, error) {
	var data StopData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Decode turns the frame payload into a sensor.Frame.
func (f *FrameData) Decode() (sensor.Frame, error) {
	raw, err := base64.StdEncoding.DecodeString(f.Data)
	if err != nil {
		return nil, fmt.Errorf("decode frame data: %w", err)
	}

	switch f.Format {
	case string(sensor.FormatBGRA), string(sensor.FormatRGBA):
		return sensor.NewRawFrame(f.Width, f.Height, sensor.PixelFormat(f.Format), raw)
	case "jpeg", "png":
		img, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("decode %s frame: %w", f.Format, err)
		}
		return sensor.FromImage(img), nil
	default:
		return nil, fmt.Errorf("unsupported frame format %q", f.Format)
	}
}
