// Package robot provides the device interfaces the rover control loop
// consumes, device acquisition, and an in-memory scripted robot.
//
// The interfaces are small and segregated: the control loop depends only on
// the capability it uses (stepping, reading, capturing, driving).
package robot

import (
	"context"
	"time"

	"github.com/teslashibe/go-rover/pkg/sensor"
)

// Device names on the e-puck chassis.
const (
	CameraName     = "camera"
	LeftMotorName  = "left wheel motor"
	RightMotorName = "right wheel motor"
)

// Stepper advances the simulation or hardware by one timestep. It blocks
// until the step completes and returns false when the environment asks the
// controller to stop.
type Stepper interface {
	Step(ctx context.Context, d time.Duration) bool
}

// ProximitySensor is one infrared distance channel.
type ProximitySensor interface {
	Read() float64
}

// Camera captures the current frame.
type Camera interface {
	Capture() (sensor.Frame, error)
}

// Motor is one wheel in velocity-control mode.
type Motor interface {
	SetVelocity(v float64)
}

// DriveActuator sets both wheel velocities. Velocities hold until the next
// call.
type DriveActuator interface {
	SetVelocities(left, right float64)
}

// Provider resolves devices by name.
type Provider interface {
	Device(name string) (any, error)
}

// TimeStepper reports the environment's basic time step.
type TimeStepper interface {
	BasicTimeStep() time.Duration
}
