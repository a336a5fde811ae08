// Package protocol defines the WebSocket message types exchanged with the
// simulator supervisor and streamed to telemetry clients.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Simulator → controller
	TypeHello MessageType = "hello" // Device list and basic time step
	TypeSense MessageType = "sense" // Sensor readings for one step
	TypeStop  MessageType = "stop"  // Simulation ended

	// Controller → simulator
	TypeStep MessageType = "step" // Advance one step with wheel velocities

	// Controller → telemetry clients
	TypeSighting   MessageType = "sighting"   // First sighting of a colour
	TypeObstacle   MessageType = "obstacle"   // Turn triggered
	TypeClassified MessageType = "classified" // Optional classifier result
	TypeState      MessageType = "state"      // Periodic state snapshot
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Simulator → Controller Message Types
// =============================================================================

// HelloData announces the devices the simulated robot exposes.
type HelloData struct {
	Robot         string   `json:"robot"`
	Devices       []string `json:"devices"`
	BasicTimeStep int      `json:"basic_time_step"` // Milliseconds
}

// SenseData carries one step of sensor readings.
type SenseData struct {
	Step      uint64     `json:"step"`
	Proximity []float64  `json:"proximity"` // ps0..ps7
	Frame     *FrameData `json:"frame,omitempty"`
}

// FrameData contains a camera frame
type FrameData struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"` // "bgra", "rgba", "jpeg", "png"
	Data   string `json:"data"`   // base64 encoded
}

// StopData explains why the simulation ended.
type StopData struct {
	Reason string `json:"reason,omitempty"`
}

// =============================================================================
// Controller → Simulator Message Types
// =============================================================================

// StepCommand advances the simulation. The wheel velocities are applied for
// the duration of the step.
type StepCommand struct {
	DurationMs int64   `json:"duration_ms"`
	Left       float64 `json:"left"`
	Right      float64 `json:"right"`
}

// =============================================================================
// Telemetry Message Types
// =============================================================================

// SightingData is sent the first time a colour is seen.
type SightingData struct {
	RunID string   `json:"run_id,omitempty"`
	Tick  uint64   `json:"tick"`
	Label string   `json:"label"`
	Seen  []string `json:"seen"`
}

// ObstacleData is sent when an obstacle starts a turn.
type ObstacleData struct {
	RunID     string    `json:"run_id,omitempty"`
	Tick      uint64    `json:"tick"`
	Proximity []float64 `json:"proximity"`
}

// ClassifiedData carries the result of the one-shot image classifier.
type ClassifiedData struct {
	RunID string `json:"run_id,omitempty"`
	Tick  uint64 `json:"tick"`
	Label string `json:"label,omitempty"`
	Error string `json:"error,omitempty"`
}

// StateData is a snapshot of the control loop.
type StateData struct {
	RunID   string   `json:"run_id,omitempty"`
	Tick    uint64   `json:"tick"`
	Mode    string   `json:"mode"`
	Counter int      `json:"counter"`
	Left    float64  `json:"left"`
	Right   float64  `json:"right"`
	Seen    []string `json:"seen"`
	Paused  bool     `json:"paused"`
}
