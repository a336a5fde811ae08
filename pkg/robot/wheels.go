package robot

// MaxWheelVelocity is the e-puck motor limit in rad/s.
const MaxWheelVelocity = 6.28

// clamp restricts v to the range [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// WheelPair drives two velocity-controlled motors as one actuator.
type WheelPair struct {
	Left, Right Motor
	MaxVelocity float64
}

// NewWheelPair pairs two motors with the e-puck velocity limit.
func NewWheelPair(left, right Motor) *WheelPair {
	return &WheelPair{Left: left, Right: right, MaxVelocity: MaxWheelVelocity}
}

// SetVelocities clamps both velocities to the motor limit and applies them.
func (w *WheelPair) SetVelocities(left, right float64) {
	limit := w.MaxVelocity
	if limit <= 0 {
		limit = MaxWheelVelocity
	}
	w.Left.SetVelocity(clamp(left, -limit, limit))
	w.Right.SetVelocity(clamp(right, -limit, limit))
}
