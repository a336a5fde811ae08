package robot

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-rover/pkg/sensor"
)

// ErrDeviceUnavailable is returned when a named device cannot be acquired.
var ErrDeviceUnavailable = errors.New("robot: device unavailable")

// DeviceError names the device that failed to resolve.
type DeviceError struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("robot: device %q: %v", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Devices is the full device set the control loop needs.
type Devices struct {
	Stepper   Stepper
	Proximity [sensor.ProximityChannels]ProximitySensor
	Camera    Camera
	Drive     DriveActuator
}

// ReadProximity samples all proximity channels in index order.
func (d *Devices) ReadProximity() [sensor.ProximityChannels]float64 {
	var readers [sensor.ProximityChannels]sensor.Reader
	for i, p := range d.Proximity {
		if p != nil {
			readers[i] = p
		}
	}
	return sensor.ReadProximity(readers)
}

// Acquire resolves every device up-front. Any missing device is fatal: the
// caller must not start the loop with a partial device set.
func Acquire(p Provider, stepper Stepper) (*Devices, error) {
	if stepper == nil {
		return nil, &DeviceError{Name: "stepper", Err: ErrDeviceUnavailable}
	}
	d := &Devices{Stepper: stepper}

	for i, name := range sensor.ProximityNames {
		ps, err := lookup[ProximitySensor](p, name)
		if err != nil {
			return nil, err
		}
		d.Proximity[i] = ps
	}

	cam, err := lookup[Camera](p, CameraName)
	if err != nil {
		return nil, err
	}
	d.Camera = cam

	left, err := lookup[Motor](p, LeftMotorName)
	if err != nil {
		return nil, err
	}
	right, err := lookup[Motor](p, RightMotorName)
	if err != nil {
		return nil, err
	}
	d.Drive = NewWheelPair(left, right)

	return d, nil
}

func lookup[T any](p Provider, name string) (T, error) {
	var zero T
	dev, err := p.Device(name)
	if err != nil {
		if errors.Is(err, ErrDeviceUnavailable) {
			return zero, &DeviceError{Name: name, Err: err}
		}
		return zero, &DeviceError{Name: name, Err: fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)}
	}
	typed, ok := dev.(T)
	if !ok || dev == nil {
		return zero, &DeviceError{Name: name, Err: fmt.Errorf("%w: unexpected type %T", ErrDeviceUnavailable, dev)}
	}
	return typed, nil
}
