package robot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/teslashibe/go-rover/pkg/sensor"
)

// ErrNoFrame is returned by a scripted camera when the current step has no frame.
var ErrNoFrame = errors.New("robot: no frame for this step")

// Velocities is a recorded wheel command.
type Velocities struct {
	Left, Right float64
}

// ScriptStep is what the sensors report during one scripted timestep.
type ScriptStep struct {
	Proximity [sensor.ProximityChannels]float64
	Frame     sensor.Frame
}

// Scripted is an in-memory robot that replays a fixed sequence of sensor
// readings and records the wheel velocities in effect after each tick. It
// is used by tests and by the dry-run mode of the rover binary.
type Scripted struct {
	mu       sync.Mutex
	steps    []ScriptStep
	idx      int
	stepped  bool
	timeStep time.Duration

	left, right float64
	applied     []Velocities

	// Unavailable lists device names that Device reports as missing.
	Unavailable map[string]bool
}

// NewScripted returns a robot that will run len(steps) timesteps.
func NewScripted(timeStep time.Duration, steps []ScriptStep) *Scripted {
	return &Scripted{steps: steps, idx: -1, timeStep: timeStep}
}

// BasicTimeStep returns the scripted time step.
func (s *Scripted) BasicTimeStep() time.Duration { return s.timeStep }

// Step advances to the next scripted reading. The velocities set during the
// previous tick are recorded before advancing.
func (s *Scripted) Step(ctx context.Context, _ time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stepped {
		s.applied = append(s.applied, Velocities{Left: s.left, Right: s.right})
	}
	s.stepped = true

	if ctx.Err() != nil {
		return false
	}
	s.idx++
	return s.idx < len(s.steps)
}

// Applied returns the wheel velocities recorded after each completed tick.
func (s *Scripted) Applied() []Velocities {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Velocities, len(s.applied))
	copy(out, s.applied)
	return out
}

func (s *Scripted) current() (ScriptStep, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx < 0 || s.idx >= len(s.steps) {
		return ScriptStep{}, false
	}
	return s.steps[s.idx], true
}

// Device implements Provider.
func (s *Scripted) Device(name string) (any, error) {
	if s.Unavailable[name] {
		return nil, ErrDeviceUnavailable
	}
	for i, n := range sensor.ProximityNames {
		if n == name {
			return scriptedProximity{s: s, index: i}, nil
		}
	}
	switch name {
	case CameraName:
		return scriptedCamera{s: s}, nil
	case LeftMotorName:
		return scriptedMotor{set: func(v float64) { s.mu.Lock(); s.left = v; s.mu.Unlock() }}, nil
	case RightMotorName:
		return scriptedMotor{set: func(v float64) { s.mu.Lock(); s.right = v; s.mu.Unlock() }}, nil
	}
	return nil, fmt.Errorf("%w: no device named %q", ErrDeviceUnavailable, name)
}

type scriptedProximity struct {
	s     *Scripted
	index int
}

func (p scriptedProximity) Read() float64 {
	step, _ := p.s.current()
	return step.Proximity[p.index]
}

type scriptedCamera struct{ s *Scripted }

func (c scriptedCamera) Capture() (sensor.Frame, error) {
	step, ok := c.s.current()
	if !ok || step.Frame == nil {
		return nil, ErrNoFrame
	}
	return step.Frame, nil
}

type scriptedMotor struct{ set func(float64) }

func (m scriptedMotor) SetVelocity(v float64) { m.set(v) }
